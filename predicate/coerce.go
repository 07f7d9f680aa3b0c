package predicate

import "math"

// coerceResult is the outcome of coercing one Bound against an integer
// column's representable range: either a rewritten Bound, or a decision
// that the bound is trivially true (Always) or trivially false (Never)
// for every representable value, short-circuiting evaluation entirely.
type coerceResult struct {
	Bound  Bound
	Always bool
	Never  bool
}

// coerceBound applies spec.md §4.4's numeric-bound coercion rules for an
// integer column with representable range [min, max]: a bound whose
// literal is non-integral is tightened to the nearest representable
// value with an operator adjusted to preserve meaning (e.g. "< 3.7"
// becomes "<= 3"); a bound outside [min, max] either clamps to the
// saturated end with a tightened operator or, when no representable
// value can satisfy it, resolves to Never. A defined bound that every
// representable value satisfies is clamped the same way (e.g. "< 500"
// over [0, 100] becomes "<= 100"), not dropped; Always is returned only
// for an undefined bound or an unrecognized operator.
func coerceBound(b Bound, min, max float64) coerceResult {
	if !b.Defined {
		return coerceResult{Always: true}
	}
	x := b.Value

	switch b.Op {
	case OpEQ:
		if x != math.Trunc(x) || x < min || x > max {
			return coerceResult{Never: true}
		}
		return coerceResult{Bound: Bound{Defined: true, Op: OpEQ, Value: x}}

	case OpLT:
		if x <= min {
			return coerceResult{Never: true}
		}
		if x > max {
			return coerceResult{Bound: Bound{Defined: true, Op: OpLE, Value: max}}
		}
		if f := math.Floor(x); f != x {
			return coerceResult{Bound: Bound{Defined: true, Op: OpLE, Value: f}}
		}
		return coerceResult{Bound: b}

	case OpLE:
		if x < min {
			return coerceResult{Never: true}
		}
		if x >= max {
			return coerceResult{Bound: Bound{Defined: true, Op: OpLE, Value: max}}
		}
		return coerceResult{Bound: Bound{Defined: true, Op: OpLE, Value: math.Floor(x)}}

	case OpGT:
		if x >= max {
			return coerceResult{Never: true}
		}
		if x < min {
			return coerceResult{Bound: Bound{Defined: true, Op: OpGE, Value: min}}
		}
		if c := math.Ceil(x); c != x {
			return coerceResult{Bound: Bound{Defined: true, Op: OpGE, Value: c}}
		}
		return coerceResult{Bound: b}

	case OpGE:
		if x > max {
			return coerceResult{Never: true}
		}
		if x <= min {
			return coerceResult{Bound: Bound{Defined: true, Op: OpGE, Value: min}}
		}
		return coerceResult{Bound: Bound{Defined: true, Op: OpGE, Value: math.Ceil(x)}}

	default:
		return coerceResult{Always: true}
	}
}

// resolveRange applies operator-pair resolution to a two-sided range: it
// coerces each side (for integer columns; integral is a no-op passthrough
// for float columns, selected by the caller only calling coerceBound for
// integer types), then detects the empty-interval case from spec.md §4.4
// ("3 < x < 3" and similar) before a kernel is ever built.
//
// lowerOK/upperOK report whether that side still constrains anything;
// empty reports the interval is provably unsatisfiable.
func resolveRange(lower, upper coerceResult) (lo Bound, lowerOK bool, hi Bound, upperOK bool, empty bool) {
	if lower.Never || upper.Never {
		return Bound{}, false, Bound{}, false, true
	}
	if !lower.Always {
		lo, lowerOK = lower.Bound, true
	}
	if !upper.Always {
		hi, upperOK = upper.Bound, true
	}
	// The crossed-bounds test below assumes Lower is a lower bound and
	// Upper an upper one; a pair written the other way round is left to
	// the kernel.
	if lowerOK && upperOK && lo.Op != OpLT && lo.Op != OpLE && hi.Op != OpGT && hi.Op != OpGE {
		if lo.Value > hi.Value {
			return lo, lowerOK, hi, upperOK, true
		}
		if lo.Value == hi.Value {
			strictLower := lo.Op == OpGT
			strictUpper := hi.Op == OpLT
			bothEQ := lo.Op == OpEQ && hi.Op == OpEQ
			if !bothEQ && (strictLower || strictUpper) {
				return lo, lowerOK, hi, upperOK, true
			}
		}
	}
	return lo, lowerOK, hi, upperOK, false
}
