package predicate

import (
	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/rowmask"
	"github.com/ibitd/ibitd/scan"
)

// EvaluateStringEquality implements evaluate for StringEquality on a
// CATEGORY column: the literal is resolved through the column's
// dictionary to its integer code, reducing the predicate to an ordinary
// uint32 equality scan/index lookup. A literal absent from the
// dictionary can match no row.
func (d *Dispatcher) EvaluateStringEquality(col *column.Descriptor, eq StringEquality, mask *rowmask.Bitmap) (*rowmask.Bitmap, error) {
	if err := column.RequireCategory(col.Name, col.Type); err != nil {
		return nil, err
	}
	code, ok := col.Dict.Code(eq.Value)
	if !ok {
		return rowmask.NewAllZeros(mask.Size()), nil
	}
	pred := func(v uint32) bool { return v == uint32(code) }
	return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeUint32, 4)
}

// EvaluateStringIn implements evaluate for StringIn on a CATEGORY
// column: every resolvable literal becomes a code in the membership
// set; unresolvable literals are simply dropped, since they cannot
// match any row.
func (d *Dispatcher) EvaluateStringIn(col *column.Descriptor, in StringIn, mask *rowmask.Bitmap) (*rowmask.Bitmap, error) {
	if err := column.RequireCategory(col.Name, col.Type); err != nil {
		return nil, err
	}
	codes := make(map[uint32]struct{}, len(in.Values))
	for _, v := range in.Values {
		if code, ok := col.Dict.Code(v); ok {
			codes[uint32(code)] = struct{}{}
		}
	}
	if len(codes) == 0 {
		return rowmask.NewAllZeros(mask.Size()), nil
	}
	pred := func(v uint32) bool { _, ok := codes[v]; return ok }
	return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeUint32, 4)
}

// EstimateCostCategory gives StringEquality/StringIn the same index-vs-
// scan cost signal as the numeric kinds.
func (d *Dispatcher) EstimateCostCategory(col *column.Descriptor, mask *rowmask.Bitmap) float64 {
	return d.EstimateCost(col, mask)
}
