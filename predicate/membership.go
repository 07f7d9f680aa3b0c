package predicate

import (
	"math"

	"github.com/ibitd/ibitd/scan"
)

// DiscreteMembership is spec.md §4.4's `IN` predicate over a set of
// literal values, applicable to any numeric column.
type DiscreteMembership struct {
	Column string
	Values []float64
}

// IntMembership is spec.md §4.4's `INTHOD`/`UINTHOD`: membership tested
// against a set of 64-bit integers, signed or unsigned, independent of
// the column's own width (narrower columns simply never match a value
// outside their range). The literal set is kept in its native 64-bit
// width end to end — see EvaluateIntMembership.
type IntMembership struct {
	Column   string
	Unsigned bool
	Signed   []int64
	UValues  []uint64
}

// signedInteger and unsignedInteger constrain the native 64-bit
// membership comparators below. INTHOD/UINTHOD exist as distinct
// predicate kinds precisely because their literals must not round-trip
// through float64, which collapses distinct values above 2^53 (the
// RID/OID-sized columns the kinds exist for).
type signedInteger interface {
	~int8 | ~int16 | ~int32 | ~int64
}

type unsignedInteger interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// membershipComparator builds a Predicate[T] testing set membership for
// DiscreteMembership's float64 literal set (and IntMembership's
// fallback on FLOAT/DOUBLE columns, where the float64 projection is the
// defined semantics).
func membershipComparator[T scan.Numeric](values []float64) scan.Predicate[T] {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[T(v)] = struct{}{}
	}
	return func(x T) bool {
		_, ok := set[x]
		return ok
	}
}

// SignedSet merges both literal lists into an int64 membership set,
// dropping unsigned literals no signed column value can equal.
func (m IntMembership) SignedSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(m.Signed)+len(m.UValues))
	for _, v := range m.Signed {
		set[v] = struct{}{}
	}
	for _, v := range m.UValues {
		if v <= math.MaxInt64 {
			set[int64(v)] = struct{}{}
		}
	}
	return set
}

// UnsignedSet mirrors SignedSet for unsigned columns, dropping negative
// signed literals.
func (m IntMembership) UnsignedSet() map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(m.Signed)+len(m.UValues))
	for _, v := range m.UValues {
		set[v] = struct{}{}
	}
	for _, v := range m.Signed {
		if v >= 0 {
			set[uint64(v)] = struct{}{}
		}
	}
	return set
}

// signedMembership widens each column value to int64 and probes set;
// both sides stay integral, so values above 2^53 compare exactly.
func signedMembership[T signedInteger](set map[int64]struct{}) scan.Predicate[T] {
	return func(x T) bool {
		_, ok := set[int64(x)]
		return ok
	}
}

// unsignedMembership is signedMembership's uint64 counterpart.
func unsignedMembership[T unsignedInteger](set map[uint64]struct{}) scan.Predicate[T] {
	return func(x T) bool {
		_, ok := set[uint64(x)]
		return ok
	}
}

// AsFloat64 projects an IntMembership's values to the dispatcher's
// common float64 currency. Only the FLOAT/DOUBLE column fallback uses
// this; integer columns take the exact native path above.
func (m IntMembership) AsFloat64() []float64 {
	out := make([]float64, 0, len(m.Signed)+len(m.UValues))
	for _, v := range m.Signed {
		out = append(out, float64(v))
	}
	for _, v := range m.UValues {
		out = append(out, float64(v))
	}
	return out
}
