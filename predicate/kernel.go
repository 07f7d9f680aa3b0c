package predicate

import "github.com/ibitd/ibitd/scan"

// comparator builds the inlined predicate closure for one resolved
// bound, generic over the column's numeric Go type (spec.md §4.5:
// "predicate inlining via composable comparator").
func comparator[T scan.Numeric](b Bound) scan.Predicate[T] {
	v := T(b.Value)
	switch b.Op {
	case OpLT:
		return func(x T) bool { return x < v }
	case OpLE:
		return func(x T) bool { return x <= v }
	case OpGT:
		return func(x T) bool { return x > v }
	case OpGE:
		return func(x T) bool { return x >= v }
	case OpEQ:
		// Equality against a literal that T cannot represent exactly can
		// match no stored value (spec.md §4.4; scenario S4 for FLOAT).
		// Integer columns never reach here with a non-representable
		// literal (coerceBound resolves those to Never), so this guard
		// only ever fires for float columns narrower than the literal.
		if float64(v) != b.Value {
			return func(T) bool { return false }
		}
		return func(x T) bool { return x == v }
	default:
		return func(T) bool { return true }
	}
}

// and composes two optional comparators with logical AND; an absent
// side is the identity (always true).
func and[T scan.Numeric](a, b scan.Predicate[T], hasA, hasB bool) scan.Predicate[T] {
	switch {
	case hasA && hasB:
		return func(x T) bool { return a(x) && b(x) }
	case hasA:
		return a
	case hasB:
		return b
	default:
		return func(T) bool { return true }
	}
}

// BuildComparator resolves r against an integer column's representable
// range [min, max] (pass min==max==0 and isInteger=false for float
// columns, which skip numeric-bound coercion entirely) and returns the
// composed Predicate[T], or ok=false if the range is provably empty
// (spec.md §4.4's empty-interval short-circuit — callers should return
// an all-zero hit set without touching the index or scanning).
func BuildComparator[T scan.Numeric](r RangePredicate, isInteger bool, min, max float64) (pred scan.Predicate[T], ok bool) {
	lowerCoerced := coerceResult{Bound: r.Lower, Always: !r.Lower.Defined}
	upperCoerced := coerceResult{Bound: r.Upper, Always: !r.Upper.Defined}
	if isInteger {
		lowerCoerced = coerceBound(r.Lower, min, max)
		upperCoerced = coerceBound(r.Upper, min, max)
	}

	lo, lowerOK, hi, upperOK, empty := resolveRange(lowerCoerced, upperCoerced)
	if empty {
		return nil, false
	}

	var loPred, hiPred scan.Predicate[T]
	if lowerOK {
		loPred = comparator[T](lo)
	}
	if upperOK {
		hiPred = comparator[T](hi)
	}
	return and(loPred, hiPred, lowerOK, upperOK), true
}
