package predicate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildComparatorTwoSidedInteger(t *testing.T) {
	r := RangePredicate{
		Column: "c",
		Lower:  Bound{Defined: true, Op: OpGE, Value: 2.5},
		Upper:  Bound{Defined: true, Op: OpLT, Value: 9.9},
	}
	pred, ok := BuildComparator[int32](r, true, 0, 100)
	require.True(t, ok)
	require.False(t, pred(2))
	require.True(t, pred(3))
	require.True(t, pred(9))
	require.False(t, pred(10))
}

func TestBuildComparatorEmptyIntervalNotOK(t *testing.T) {
	r := RangePredicate{
		Column: "c",
		Lower:  Bound{Defined: true, Op: OpGT, Value: 5},
		Upper:  Bound{Defined: true, Op: OpLT, Value: 5},
	}
	_, ok := BuildComparator[int32](r, true, 0, 100)
	require.False(t, ok)
}

func TestBuildComparatorFloatColumnSkipsCoercion(t *testing.T) {
	r := RangePredicate{
		Column: "c",
		Lower:  Bound{Defined: true, Op: OpGE, Value: 1.25},
		Upper:  Bound{Defined: true, Op: OpLE, Value: 1.75},
	}
	pred, ok := BuildComparator[float64](r, false, 0, 0)
	require.True(t, ok)
	require.True(t, pred(1.5))
	require.False(t, pred(1.8))
}

func TestBuildComparatorFloatEqualityNonRepresentable(t *testing.T) {
	// 2.0000001 rounds to 2.0 as a float32; equality must still decide
	// empty rather than matching the rounded value.
	r := RangePredicate{Column: "c", Lower: Bound{Defined: true, Op: OpEQ, Value: 2.0000001}}
	pred, ok := BuildComparator[float32](r, false, 0, 0)
	require.True(t, ok)
	require.False(t, pred(2.0))

	exact := RangePredicate{Column: "c", Lower: Bound{Defined: true, Op: OpEQ, Value: 2.0}}
	pred, ok = BuildComparator[float32](exact, false, 0, 0)
	require.True(t, ok)
	require.True(t, pred(2.0))
	require.False(t, pred(3.0))
}

func TestBuildComparatorOneSided(t *testing.T) {
	r := RangePredicate{Column: "c", Lower: Bound{Defined: true, Op: OpGE, Value: 10}}
	pred, ok := BuildComparator[int64](r, true, 0, 1000)
	require.True(t, ok)
	require.True(t, pred(10))
	require.True(t, pred(1000))
	require.False(t, pred(9))
}
