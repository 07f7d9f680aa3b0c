// Package scan implements the type-specialized scan kernels described
// in spec.md §4.5: scan/negScan over either a full-length or packed
// value array, against a comparator supplied as a composable function
// value (Go generics stand in for the C++ template parameter and
// function object — see DESIGN.md).
package scan

import "github.com/ibitd/ibitd/rowmask"

// Numeric is the set of column value kinds the scan kernels are
// monomorphized over.
type Numeric interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Predicate is the inlined comparator the kernels evaluate per value;
// one-sided and two-sided range predicates, equality, and membership
// all compile down to a Predicate[T] closure so the kernel loop itself
// never branches on predicate shape.
type Predicate[T Numeric] func(v T) bool

// builder picks the dense or sparse scratch representation per the
// compression heuristic in spec.md §4.5 and finalizes to the same
// compressed rowmask.Bitmap either way.
type builder struct {
	dense  *rowmask.DenseBuilder
	sparse *rowmask.SparseBuilder
}

func newBuilder(size int, candidateCount int) *builder {
	if size>>8 < candidateCount {
		return &builder{dense: rowmask.NewDenseBuilder(size)}
	}
	return &builder{sparse: rowmask.NewSparseBuilder(size)}
}

func (b *builder) set(i int) {
	if b.dense != nil {
		b.dense.Set(i)
		return
	}
	b.sparse.Add(i)
}

func (b *builder) finalize() *rowmask.Bitmap {
	if b.dense != nil {
		return b.dense.Finalize()
	}
	return b.sparse.Finalize()
}

// isPacked reports whether values is the dense/packed representation
// (len == mask.Count()) rather than the full representation
// (len == mask.Size()), per spec.md §4.5. When the two lengths coincide
// (an all-ones mask) either interpretation yields the same row mapping.
func isPacked(valuesLen int, mask *rowmask.Bitmap) bool {
	return valuesLen != mask.Size() && valuesLen == mask.Count()
}

// valueAt returns the value for absolute row index i given a running
// packed-index counter k (only meaningful when values is packed).
func valueAt[T Numeric](values []T, packed bool, i, k int) T {
	if packed {
		return values[k]
	}
	return values[i]
}

// Scan evaluates pred over every row selected by mask and returns the
// hit bitvector (spec.md §4.5, variant 1).
func Scan[T Numeric](values []T, pred Predicate[T], mask *rowmask.Bitmap) *rowmask.Bitmap {
	packed := isPacked(len(values), mask)
	b := newBuilder(mask.Size(), mask.Count())
	k := 0
	mask.ForEachSetBit(func(i int) {
		if pred(valueAt(values, packed, i, k)) {
			b.set(i)
		}
		k++
	})
	return b.finalize()
}

// ScanValues evaluates pred over every row selected by mask and
// materializes the matching values in ascending row order (spec.md
// §4.5, variant 2).
func ScanValues[T Numeric](values []T, pred Predicate[T], mask *rowmask.Bitmap) []T {
	packed := isPacked(len(values), mask)
	var out []T
	k := 0
	mask.ForEachSetBit(func(i int) {
		v := valueAt(values, packed, i, k)
		if pred(v) {
			out = append(out, v)
		}
		k++
	})
	return out
}

// ScanBoth evaluates pred and returns both the matching values and the
// hit bitvector in one pass (spec.md §4.5, variant 3).
func ScanBoth[T Numeric](values []T, pred Predicate[T], mask *rowmask.Bitmap) ([]T, *rowmask.Bitmap) {
	packed := isPacked(len(values), mask)
	var out []T
	b := newBuilder(mask.Size(), mask.Count())
	k := 0
	mask.ForEachSetBit(func(i int) {
		v := valueAt(values, packed, i, k)
		if pred(v) {
			out = append(out, v)
			b.set(i)
		}
		k++
	})
	return out, b.finalize()
}

// NegScan returns the logical complement of Scan within mask (spec.md
// §4.5, variant 4): rows selected by mask where pred does NOT hold.
func NegScan[T Numeric](values []T, pred Predicate[T], mask *rowmask.Bitmap) *rowmask.Bitmap {
	packed := isPacked(len(values), mask)
	b := newBuilder(mask.Size(), mask.Count())
	k := 0
	mask.ForEachSetBit(func(i int) {
		if !pred(valueAt(values, packed, i, k)) {
			b.set(i)
		}
		k++
	})
	return b.finalize()
}
