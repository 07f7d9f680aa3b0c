package rowmask

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllZerosAllOnes(t *testing.T) {
	z := NewAllZeros(10)
	require.Equal(t, 0, z.Count())
	require.Equal(t, 10, z.Size())

	o := NewAllOnes(10)
	require.Equal(t, 10, o.Count())
	for i := 0; i < 10; i++ {
		require.True(t, o.Test(i))
	}
}

func TestAllOnesMasksTrailingBits(t *testing.T) {
	// size 5 needs only one word but only the low 5 bits should be set.
	o := NewAllOnes(5)
	require.Equal(t, 5, o.Count())
	require.False(t, o.Test(5))
}

func TestAndOrXorAndNot(t *testing.T) {
	a := NewDenseBuilder(8)
	a.Set(0)
	a.Set(1)
	a.Set(2)
	ba := a.Finalize()

	b := NewDenseBuilder(8)
	b.Set(1)
	b.Set(2)
	b.Set(3)
	bb := b.Finalize()

	and := ba.And(bb)
	require.Equal(t, 2, and.Count())
	require.True(t, and.Test(1))
	require.True(t, and.Test(2))

	or := ba.Or(bb)
	require.Equal(t, 4, or.Count())

	xor := ba.Xor(bb)
	require.Equal(t, 2, xor.Count())
	require.True(t, xor.Test(0))
	require.True(t, xor.Test(3))

	andNot := ba.AndNot(bb)
	require.Equal(t, 1, andNot.Count())
	require.True(t, andNot.Test(0))
}

func TestNot(t *testing.T) {
	b := NewDenseBuilder(5)
	b.Set(0)
	b.Set(2)
	bm := b.Finalize()

	not := bm.Not()
	require.Equal(t, 3, not.Count())
	require.True(t, not.Test(1))
	require.True(t, not.Test(3))
	require.True(t, not.Test(4))
}

func TestSparseBuilderMatchesDense(t *testing.T) {
	sb := NewSparseBuilder(100)
	sb.Add(5)
	sb.Add(42)
	sb.Add(99)
	sparse := sb.Finalize()

	db := NewDenseBuilder(100)
	db.Set(5)
	db.Set(42)
	db.Set(99)
	dense := db.Finalize()

	require.Equal(t, dense.ToBoolSlice(), sparse.ToBoolSlice())
}

func TestRangeRuns(t *testing.T) {
	b := NewDenseBuilder(10)
	for _, i := range []int{1, 2, 3, 7, 8} {
		b.Set(i)
	}
	runs := b.Finalize().RangeRuns()
	require.Equal(t, []Range{{Start: 1, End: 4}, {Start: 7, End: 9}}, runs)
}

func TestForEachSetBit(t *testing.T) {
	b := NewDenseBuilder(70) // spans two words
	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(69)
	bm := b.Finalize()

	var got []int
	bm.ForEachSetBit(func(i int) { got = append(got, i) })
	require.Equal(t, []int{0, 63, 64, 69}, got)
}

func TestFromBoolSliceRoundTrip(t *testing.T) {
	bits := []bool{true, false, true, true, false, false, true}
	bm := FromBoolSlice(bits)
	require.Equal(t, bits, bm.ToBoolSlice())
}

func TestToCSR(t *testing.T) {
	b := NewDenseBuilder(10)
	b.Set(2)
	b.Set(5)
	bm := b.Finalize()

	csr := bm.ToCSR()
	require.Equal(t, []int32{2, 5}, csr.Indices)
	require.Equal(t, []int32{0, 2}, csr.IndPtr)
}
