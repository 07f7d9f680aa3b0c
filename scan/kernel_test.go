package scan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ibitd/ibitd/rowmask"
)

func TestScanFullLength(t *testing.T) {
	values := []int32{10, 20, 30, 40, 50}
	mask := rowmask.NewAllOnes(5)
	pred := Predicate[int32](func(v int32) bool { return v >= 30 })

	hits := Scan(values, pred, mask)
	require.Equal(t, 3, hits.Count())
	require.True(t, hits.Test(2))
	require.True(t, hits.Test(3))
	require.True(t, hits.Test(4))
}

func TestScanPacked(t *testing.T) {
	// mask selects rows {1, 3}; packed values correspond 1:1 with the
	// set bits in ascending order.
	db := rowmask.NewDenseBuilder(5)
	db.Set(1)
	db.Set(3)
	mask := db.Finalize()

	packed := []int32{100, 200} // value at row 1, value at row 3
	pred := Predicate[int32](func(v int32) bool { return v == 200 })

	hits := Scan(packed, pred, mask)
	require.Equal(t, 1, hits.Count())
	require.True(t, hits.Test(3))
	require.False(t, hits.Test(1))
}

func TestScanValuesAndBoth(t *testing.T) {
	values := []int32{1, 2, 3, 4, 5}
	mask := rowmask.NewAllOnes(5)
	pred := Predicate[int32](func(v int32) bool { return v%2 == 0 })

	got := ScanValues(values, pred, mask)
	require.Equal(t, []int32{2, 4}, got)

	gotVals, gotHits := ScanBoth(values, pred, mask)
	require.Equal(t, []int32{2, 4}, gotVals)
	require.Equal(t, 2, gotHits.Count())
}

func TestNegScanComplementsScanWithinMask(t *testing.T) {
	values := []int32{1, 2, 3, 4, 5}
	mask := rowmask.NewAllOnes(5)
	pred := Predicate[int32](func(v int32) bool { return v > 3 })

	hits := Scan(values, pred, mask)
	neg := NegScan(values, pred, mask)

	require.Equal(t, mask.Count(), hits.Count()+neg.Count())
	for i := 0; i < 5; i++ {
		require.NotEqual(t, hits.Test(i), neg.Test(i))
	}
}

func TestDecodeArrayRoundTrip(t *testing.T) {
	raw := append(EncodeInt32(7), EncodeInt32(-3)...)
	got := DecodeArray[int32](raw, 4, DecodeInt32)
	require.Equal(t, []int32{7, -3}, got)
}
