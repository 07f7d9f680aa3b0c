package predicate

import (
	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/rowmask"
	"github.com/ibitd/ibitd/scan"
)

// Dispatcher routes the eight predicate kinds from spec.md §4.4 to
// either a column's bitmap index or its scan kernel, always intersecting
// with the caller-supplied active-row mask.
type Dispatcher struct {
	Manager *fileman.Manager
}

// New returns a Dispatcher backed by m.
func New(m *fileman.Manager) *Dispatcher {
	return &Dispatcher{Manager: m}
}

// indexedEval is the structural subset of *bitmapindex.Index[T] the
// dispatcher needs, asserted against column.BitmapIndex once T is known
// from the column's declared type.
type indexedEval[T scan.Numeric] interface {
	Loaded() bool
	RowCount() int
	Evaluate(func(T) bool) *rowmask.Bitmap
	Estimate(func(T) bool) (sure, possible *rowmask.Bitmap)
}

// evaluateGeneric implements the index-or-scan dispatch shared by every
// numeric predicate kind: use the column's bitmap index when it is
// loaded and its row count still matches mask (spec.md §4.8's
// rebuild-on-mismatch invariant means a stale index is simply not
// trusted here — the caller, not the dispatcher, is responsible for
// triggering a rebuild); otherwise fetch the column's values and run the
// matching scan kernel.
func evaluateGeneric[T scan.Numeric](col *column.Descriptor, pred scan.Predicate[T], mask *rowmask.Bitmap, m *fileman.Manager, decode scan.Decoder[T], elemSize int) (*rowmask.Bitmap, error) {
	if col.Index != nil {
		if ix, ok := col.Index.(indexedEval[T]); ok && ix.Loaded() && ix.RowCount() == mask.Size() {
			return ix.Evaluate(pred).And(mask), nil
		}
	}

	handle, fd, err := col.Fetch(m, 0)
	if err != nil && perr.Is(err, perr.ErrTransient) {
		// Resource pressure: let every registered cleaner release what it
		// can, then retry once on the file-descriptor path.
		m.EvictAll()
		fd, err = col.FetchFD(m, fileman.PreferRead)
	}
	if err != nil {
		return nil, err
	}
	if handle != nil {
		values := scan.DecodeArray[T](handle.Bytes, elemSize, decode)
		return scan.Scan(values, pred, mask), nil
	}
	defer fd.Close()
	return scan.ScanFile(fd, m, elemSize, decode, pred, mask)
}

// estimateGeneric mirrors evaluateGeneric for the estimate(predicate)
// operation: it only ever consults the index, returning the trivial
// (sure=∅, possible=mask) bound when no current index exists (spec.md
// §4.4: "may be trivial").
func estimateGeneric[T scan.Numeric](col *column.Descriptor, pred scan.Predicate[T], mask *rowmask.Bitmap) (sure, possible *rowmask.Bitmap) {
	if col.Index != nil {
		if ix, ok := col.Index.(indexedEval[T]); ok && ix.Loaded() && ix.RowCount() == mask.Size() {
			s, p := ix.Estimate(pred)
			return s.And(mask), p.And(mask)
		}
	}
	return rowmask.NewAllZeros(mask.Size()), mask
}

// EvaluateRange implements evaluate(predicate, candidateMask) for a
// continuous range predicate.
func (d *Dispatcher) EvaluateRange(col *column.Descriptor, r RangePredicate, mask *rowmask.Bitmap) (*rowmask.Bitmap, error) {
	isInteger := col.Type.IsInteger()
	min, max := col.Type.IntegerBounds()

	switch col.Type {
	case column.Byte:
		pred, ok := BuildComparator[int8](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), nil
		}
		return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeInt8, 1)
	case column.UByte:
		pred, ok := BuildComparator[uint8](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), nil
		}
		return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeUint8, 1)
	case column.Short:
		pred, ok := BuildComparator[int16](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), nil
		}
		return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeInt16, 2)
	case column.UShort:
		pred, ok := BuildComparator[uint16](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), nil
		}
		return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeUint16, 2)
	case column.Int:
		pred, ok := BuildComparator[int32](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), nil
		}
		return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeInt32, 4)
	case column.UInt, column.Category:
		pred, ok := BuildComparator[uint32](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), nil
		}
		return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeUint32, 4)
	case column.Long:
		pred, ok := BuildComparator[int64](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), nil
		}
		return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeInt64, 8)
	case column.ULong, column.OID:
		pred, ok := BuildComparator[uint64](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), nil
		}
		return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeUint64, 8)
	case column.Float:
		pred, ok := BuildComparator[float32](r, false, 0, 0)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), nil
		}
		return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeFloat32, 4)
	case column.Double:
		pred, ok := BuildComparator[float64](r, false, 0, 0)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), nil
		}
		return evaluateGeneric(col, pred, mask, d.Manager, scan.DecodeFloat64, 8)
	default:
		return nil, perr.UnsupportedType(col.Name, col.Type)
	}
}

// EstimateRange implements estimate(predicate) for a continuous range.
func (d *Dispatcher) EstimateRange(col *column.Descriptor, r RangePredicate, mask *rowmask.Bitmap) (sure, possible *rowmask.Bitmap, err error) {
	isInteger := col.Type.IsInteger()
	min, max := col.Type.IntegerBounds()

	switch col.Type {
	case column.Byte:
		pred, ok := BuildComparator[int8](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), rowmask.NewAllZeros(mask.Size()), nil
		}
		s, p := estimateGeneric(col, pred, mask)
		return s, p, nil
	case column.UByte:
		pred, ok := BuildComparator[uint8](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), rowmask.NewAllZeros(mask.Size()), nil
		}
		s, p := estimateGeneric(col, pred, mask)
		return s, p, nil
	case column.Short:
		pred, ok := BuildComparator[int16](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), rowmask.NewAllZeros(mask.Size()), nil
		}
		s, p := estimateGeneric(col, pred, mask)
		return s, p, nil
	case column.UShort:
		pred, ok := BuildComparator[uint16](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), rowmask.NewAllZeros(mask.Size()), nil
		}
		s, p := estimateGeneric(col, pred, mask)
		return s, p, nil
	case column.Int:
		pred, ok := BuildComparator[int32](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), rowmask.NewAllZeros(mask.Size()), nil
		}
		s, p := estimateGeneric(col, pred, mask)
		return s, p, nil
	case column.UInt, column.Category:
		pred, ok := BuildComparator[uint32](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), rowmask.NewAllZeros(mask.Size()), nil
		}
		s, p := estimateGeneric(col, pred, mask)
		return s, p, nil
	case column.Long:
		pred, ok := BuildComparator[int64](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), rowmask.NewAllZeros(mask.Size()), nil
		}
		s, p := estimateGeneric(col, pred, mask)
		return s, p, nil
	case column.ULong, column.OID:
		pred, ok := BuildComparator[uint64](r, isInteger, min, max)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), rowmask.NewAllZeros(mask.Size()), nil
		}
		s, p := estimateGeneric(col, pred, mask)
		return s, p, nil
	case column.Float:
		pred, ok := BuildComparator[float32](r, false, 0, 0)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), rowmask.NewAllZeros(mask.Size()), nil
		}
		s, p := estimateGeneric(col, pred, mask)
		return s, p, nil
	case column.Double:
		pred, ok := BuildComparator[float64](r, false, 0, 0)
		if !ok {
			return rowmask.NewAllZeros(mask.Size()), rowmask.NewAllZeros(mask.Size()), nil
		}
		s, p := estimateGeneric(col, pred, mask)
		return s, p, nil
	default:
		return nil, nil, perr.UnsupportedType(col.Name, col.Type)
	}
}

// EstimateCost implements estimateCost(predicate): cheaper when a
// current index exists (an OR over a handful of precomputed bitmaps),
// proportional to candidateMask's population otherwise (a full scan).
// The query layer uses this to order compound-predicate evaluation,
// cheapest first.
func (d *Dispatcher) EstimateCost(col *column.Descriptor, mask *rowmask.Bitmap) float64 {
	if col.Index != nil && col.Index.Loaded() && col.Index.RowCount() == mask.Size() {
		return 1.0
	}
	return float64(mask.Count())
}

// EvaluateMembership implements evaluate for DiscreteMembership (`IN`),
// reduced to a float64 value set against the column's concrete numeric
// type. IntMembership (`INTHOD`/`UINTHOD`) goes through
// EvaluateIntMembership instead.
func (d *Dispatcher) EvaluateMembership(col *column.Descriptor, values []float64, mask *rowmask.Bitmap) (*rowmask.Bitmap, error) {
	switch col.Type {
	case column.Byte:
		return evaluateGeneric(col, membershipComparator[int8](values), mask, d.Manager, scan.DecodeInt8, 1)
	case column.UByte:
		return evaluateGeneric(col, membershipComparator[uint8](values), mask, d.Manager, scan.DecodeUint8, 1)
	case column.Short:
		return evaluateGeneric(col, membershipComparator[int16](values), mask, d.Manager, scan.DecodeInt16, 2)
	case column.UShort:
		return evaluateGeneric(col, membershipComparator[uint16](values), mask, d.Manager, scan.DecodeUint16, 2)
	case column.Int:
		return evaluateGeneric(col, membershipComparator[int32](values), mask, d.Manager, scan.DecodeInt32, 4)
	case column.UInt, column.Category:
		return evaluateGeneric(col, membershipComparator[uint32](values), mask, d.Manager, scan.DecodeUint32, 4)
	case column.Long:
		return evaluateGeneric(col, membershipComparator[int64](values), mask, d.Manager, scan.DecodeInt64, 8)
	case column.ULong, column.OID:
		return evaluateGeneric(col, membershipComparator[uint64](values), mask, d.Manager, scan.DecodeUint64, 8)
	case column.Float:
		return evaluateGeneric(col, membershipComparator[float32](values), mask, d.Manager, scan.DecodeFloat32, 4)
	case column.Double:
		return evaluateGeneric(col, membershipComparator[float64](values), mask, d.Manager, scan.DecodeFloat64, 8)
	default:
		return nil, perr.UnsupportedType(col.Name, col.Type)
	}
}

// EvaluateIntMembership implements evaluate for IntMembership
// (`INTHOD`/`UINTHOD`) on its own native 64-bit path: the literal set
// stays int64/uint64 end to end, since a float64 round-trip collapses
// distinct values above 2^53 — exactly the RID/OID-sized columns the
// predicate kind exists for. FLOAT/DOUBLE columns still reduce to the
// float64 set, where the projection is the defined semantics.
func (d *Dispatcher) EvaluateIntMembership(col *column.Descriptor, m IntMembership, mask *rowmask.Bitmap) (*rowmask.Bitmap, error) {
	switch col.Type {
	case column.Byte:
		return evaluateGeneric(col, signedMembership[int8](m.SignedSet()), mask, d.Manager, scan.DecodeInt8, 1)
	case column.UByte:
		return evaluateGeneric(col, unsignedMembership[uint8](m.UnsignedSet()), mask, d.Manager, scan.DecodeUint8, 1)
	case column.Short:
		return evaluateGeneric(col, signedMembership[int16](m.SignedSet()), mask, d.Manager, scan.DecodeInt16, 2)
	case column.UShort:
		return evaluateGeneric(col, unsignedMembership[uint16](m.UnsignedSet()), mask, d.Manager, scan.DecodeUint16, 2)
	case column.Int:
		return evaluateGeneric(col, signedMembership[int32](m.SignedSet()), mask, d.Manager, scan.DecodeInt32, 4)
	case column.UInt, column.Category:
		return evaluateGeneric(col, unsignedMembership[uint32](m.UnsignedSet()), mask, d.Manager, scan.DecodeUint32, 4)
	case column.Long:
		return evaluateGeneric(col, signedMembership[int64](m.SignedSet()), mask, d.Manager, scan.DecodeInt64, 8)
	case column.ULong, column.OID:
		return evaluateGeneric(col, unsignedMembership[uint64](m.UnsignedSet()), mask, d.Manager, scan.DecodeUint64, 8)
	case column.Float:
		return evaluateGeneric(col, membershipComparator[float32](m.AsFloat64()), mask, d.Manager, scan.DecodeFloat32, 4)
	case column.Double:
		return evaluateGeneric(col, membershipComparator[float64](m.AsFloat64()), mask, d.Manager, scan.DecodeFloat64, 8)
	default:
		return nil, perr.UnsupportedType(col.Name, col.Type)
	}
}
