// Package predicate implements the predicate dispatcher from spec.md
// §4.4: it accepts the eight predicate kinds, offers estimate/evaluate/
// estimateCost, performs the numeric-bound coercion and operator-pair
// resolution, and always intersects results with the active-row mask.
package predicate

// Op is a comparison operator. Range predicates use LT/LE/GT/GE/EQ;
// EQ on one side of a two-sided range degrades that side to an
// equality kernel per spec.md §4.4.
type Op int

const (
	OpUndefined Op = iota
	OpLT
	OpLE
	OpGT
	OpGE
	OpEQ
)

func (o Op) String() string {
	switch o {
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	case OpEQ:
		return "="
	default:
		return "?"
	}
}

// Bound is one side of a continuous range predicate (spec.md §4.4:
// "two bounds with independent operators < ≤ > ≥ = each optionally
// undefined").
type Bound struct {
	Defined bool
	Op      Op
	Value   float64
}

// RangePredicate is spec.md §4.4's continuous range predicate: up to
// two independent bounds on one column, combined with AND.
// Conventionally Lower.Op is GT/GE/EQ and Upper.Op is LT/LE/EQ, but the
// dispatcher does not require that — it evaluates whatever is defined.
type RangePredicate struct {
	Column string
	Lower  Bound
	Upper  Bound
}
