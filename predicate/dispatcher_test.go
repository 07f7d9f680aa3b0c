package predicate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ibitd/ibitd/bitmapindex"
	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/rowmask"
	"github.com/ibitd/ibitd/scan"
)

func newTestManager(t *testing.T) *fileman.Manager {
	t.Helper()
	m, err := fileman.New(fileman.Options{})
	require.NoError(t, err)
	return m
}

func writeInt32Column(t *testing.T, dir, name string, values []int32) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var raw []byte
	for _, v := range values {
		raw = append(raw, scan.EncodeInt32(v)...)
	}
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestDispatcherEvaluateRangeNoIndex(t *testing.T) {
	dir := t.TempDir()
	path := writeInt32Column(t, dir, "score", []int32{1, 5, 10, 15, 20})
	c := column.New("score", column.Int, path)

	m := newTestManager(t)
	d := New(m)
	mask := rowmask.NewAllOnes(5)

	r := RangePredicate{
		Column: "score",
		Lower:  Bound{Defined: true, Op: OpGE, Value: 5},
		Upper:  Bound{Defined: true, Op: OpLE, Value: 15},
	}
	hits, err := d.EvaluateRange(c, r, mask)
	require.NoError(t, err)
	require.Equal(t, 3, hits.Count())
	require.True(t, hits.Test(1))
	require.True(t, hits.Test(2))
	require.True(t, hits.Test(3))
}

func TestDispatcherEvaluateRangeWithIndexAgreesWithScan(t *testing.T) {
	dir := t.TempDir()
	path := writeInt32Column(t, dir, "score", []int32{3, 7, 7, 12, 1, 9})
	c := column.New("score", column.Int, path)

	m := newTestManager(t)
	d := New(m)
	mask := rowmask.NewAllOnes(6)

	values := []int32{3, 7, 7, 12, 1, 9}
	c.Index = bitmapindex.Build(values, mask)

	r := RangePredicate{
		Column: "score",
		Lower:  Bound{Defined: true, Op: OpGT, Value: 2},
		Upper:  Bound{Defined: true, Op: OpLT, Value: 10},
	}
	withIndex, err := d.EvaluateRange(c, r, mask)
	require.NoError(t, err)

	c.Index = nil
	withoutIndex, err := d.EvaluateRange(c, r, mask)
	require.NoError(t, err)

	require.Equal(t, withoutIndex.ToBoolSlice(), withIndex.ToBoolSlice())
	require.Equal(t, 4, withIndex.Count()) // {3, 7, 7, 9}
}

func TestDispatcherEvaluateRangeIntersectsMask(t *testing.T) {
	dir := t.TempDir()
	path := writeInt32Column(t, dir, "score", []int32{1, 2, 3, 4, 5})
	c := column.New("score", column.Int, path)

	m := newTestManager(t)
	d := New(m)

	db := rowmask.NewDenseBuilder(5)
	db.Set(0)
	db.Set(2)
	db.Set(4)
	mask := db.Finalize() // only rows {0, 2, 4} are active

	r := RangePredicate{Column: "score", Lower: Bound{Defined: true, Op: OpGE, Value: 0}}
	hits, err := d.EvaluateRange(c, r, mask)
	require.NoError(t, err)
	require.Equal(t, mask.Count(), hits.Count())
	require.Equal(t, mask.ToBoolSlice(), hits.ToBoolSlice())
}

func TestDispatcherEvaluateMembership(t *testing.T) {
	dir := t.TempDir()
	path := writeInt32Column(t, dir, "code", []int32{1, 2, 3, 4, 5})
	c := column.New("code", column.Int, path)

	m := newTestManager(t)
	d := New(m)
	mask := rowmask.NewAllOnes(5)

	hits, err := d.EvaluateMembership(c, []float64{2, 4}, mask)
	require.NoError(t, err)
	require.Equal(t, 2, hits.Count())
	require.True(t, hits.Test(1))
	require.True(t, hits.Test(3))
}

func writeInt64Column(t *testing.T, dir, name string, values []int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var raw []byte
	for _, v := range values {
		raw = append(raw, scan.EncodeInt64(v)...)
	}
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestDispatcherEvaluateIntMembershipAbove2to53(t *testing.T) {
	dir := t.TempDir()
	// Adjacent values around 2^53; as float64 the odd one rounds onto
	// its even neighbor, so only the native path can tell them apart.
	path := writeInt64Column(t, dir, "rid", []int64{
		9007199254740992, // 2^53
		9007199254740993, // 2^53 + 1
		9007199254740994,
	})
	c := column.New("rid", column.Long, path)

	m := newTestManager(t)
	d := New(m)
	mask := rowmask.NewAllOnes(3)

	hits, err := d.EvaluateIntMembership(c, IntMembership{Signed: []int64{9007199254740993}}, mask)
	require.NoError(t, err)
	require.Equal(t, 1, hits.Count())
	require.True(t, hits.Test(1))
	require.False(t, hits.Test(0))
	require.False(t, hits.Test(2))
}

func TestDispatcherEstimateCostPrefersIndex(t *testing.T) {
	dir := t.TempDir()
	path := writeInt32Column(t, dir, "score", []int32{1, 2, 3})
	c := column.New("score", column.Int, path)

	m := newTestManager(t)
	d := New(m)
	mask := rowmask.NewAllOnes(3)

	require.Equal(t, float64(3), d.EstimateCost(c, mask))

	c.Index = bitmapindex.Build([]int32{1, 2, 3}, mask)
	require.Equal(t, 1.0, d.EstimateCost(c, mask))
}
