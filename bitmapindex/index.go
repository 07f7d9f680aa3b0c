// Package bitmapindex provides a reference per-column bitmap index.
// spec.md §1 treats the real index implementations as external
// collaborators — only the operations the partition invokes
// (estimate/evaluate/build/load) are specified. This package supplies a
// runnable default so predicate dispatch is exercised end to end,
// grounded on the sorted-by-value, build-once shape of
// _examples/open-policy-agent-opa/ast/index.go's baseDocEqIndex (there:
// a trie keyed by ref value, frequency-sorted; here: a sorted slice
// keyed by column value, since a column index has exactly one key).
package bitmapindex

import (
	"sort"

	"github.com/ibitd/ibitd/rowmask"
	"github.com/ibitd/ibitd/scan"
)

// Index is a lossless, build-once bitmap index over one numeric
// column's distinct values.
type Index[T scan.Numeric] struct {
	values   []T
	bitmaps  []*rowmask.Bitmap
	rowCount int
	loaded   bool
}

// Build constructs an Index over values (either full-length or packed
// against mask, per spec.md §4.5's two representations) and mask. The
// resulting index is immediately Loaded.
func Build[T scan.Numeric](values []T, mask *rowmask.Bitmap) *Index[T] {
	groups := map[T][]int{}
	packed := len(values) != mask.Size() && len(values) == mask.Count()
	k := 0
	mask.ForEachSetBit(func(i int) {
		var v T
		if packed {
			v = values[k]
		} else {
			v = values[i]
		}
		groups[v] = append(groups[v], i)
		k++
	})

	uniq := make([]T, 0, len(groups))
	for v := range groups {
		uniq = append(uniq, v)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	ix := &Index[T]{
		values:   uniq,
		bitmaps:  make([]*rowmask.Bitmap, len(uniq)),
		rowCount: mask.Size(),
		loaded:   true,
	}
	for i, v := range uniq {
		b := rowmask.NewSparseBuilder(mask.Size())
		for _, row := range groups[v] {
			b.Add(row)
		}
		ix.bitmaps[i] = b.Finalize()
	}
	return ix
}

// Loaded implements column.BitmapIndex.
func (ix *Index[T]) Loaded() bool { return ix.loaded }

// RowCount implements column.BitmapIndex; spec.md §4.8 discards and
// rebuilds an index whose RowCount disagrees with the partition's
// nEvents.
func (ix *Index[T]) RowCount() int { return ix.rowCount }

// Unload drops the index's in-memory state (spec.md §4.8
// unloadIndexes).
func (ix *Index[T]) Unload() {
	ix.values = nil
	ix.bitmaps = nil
	ix.loaded = false
}

// Evaluate ORs together the bitmaps of every distinct value for which
// pred holds. Because this index is lossless, its estimate and its
// exact evaluation coincide (sure == possible == evaluate), which
// trivially satisfies the S(r) ⊆ evaluate(r) ⊆ P(r) invariant in
// spec.md §8.
func (ix *Index[T]) Evaluate(pred func(T) bool) *rowmask.Bitmap {
	out := rowmask.NewAllZeros(ix.rowCount)
	for i, v := range ix.values {
		if pred(v) {
			out = out.Or(ix.bitmaps[i])
		}
	}
	return out
}

// Estimate returns (sure, possible) for pred. This reference index is
// exact, so sure and possible are the same bitmap.
func (ix *Index[T]) Estimate(pred func(T) bool) (sure, possible *rowmask.Bitmap) {
	hits := ix.Evaluate(pred)
	return hits, hits
}

// Values returns the sorted distinct values the index covers, used by
// the self-test package's range-subdivision generator (spec.md §4.9).
func (ix *Index[T]) Values() []T {
	return append([]T(nil), ix.values...)
}
