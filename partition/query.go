package partition

import (
	"github.com/ibitd/ibitd/perr"
	"github.com/ibitd/ibitd/predicate"
	"github.com/ibitd/ibitd/resource"
	"github.com/ibitd/ibitd/ridindex"
	"github.com/ibitd/ibitd/rowmask"
)

// Query is the union of the eight predicate kinds from spec.md §4.4,
// naming the column it applies to. Exactly one field is populated; the
// caller builds it directly rather than going through a parser, since
// query construction is out of this package's scope.
type Query struct {
	Range      *predicate.RangePredicate
	Membership *predicate.DiscreteMembership
	IntMember  *predicate.IntMembership
	StrEq      *predicate.StringEquality
	StrIn      *predicate.StringIn
	Like       *predicate.Like
	Keyword    *predicate.Keyword
	AllKeyword *predicate.AllKeywords
}

func (q Query) columnName() string {
	switch {
	case q.Range != nil:
		return q.Range.Column
	case q.Membership != nil:
		return q.Membership.Column
	case q.IntMember != nil:
		return q.IntMember.Column
	case q.StrEq != nil:
		return q.StrEq.Column
	case q.StrIn != nil:
		return q.StrIn.Column
	case q.Like != nil:
		return q.Like.Column
	case q.Keyword != nil:
		return q.Keyword.Column
	case q.AllKeyword != nil:
		return q.AllKeyword.Column
	default:
		return ""
	}
}

// Evaluate implements spec.md §4.4's evaluate(predicate): it resolves
// q's column, dispatches to the matching kernel, and always returns a
// subset of the partition's active mask (invariant 1 in spec.md §8),
// since every dispatcher path already intersects with the mask it is
// given and this method never passes anything else.
func (p *Partition) Evaluate(q Query) (*rowmask.Bitmap, error) {
	p.rw.RLock()
	defer p.rw.RUnlock()

	c := p.Column(q.columnName())
	if c == nil {
		return rowmask.NewAllZeros(p.Mask.Size()), perr.New(perr.ErrQuery, "partition %s: unknown column %q", p.Name, q.columnName())
	}

	hitsBefore, missesBefore := p.manager.CacheStats()

	var (
		hits *rowmask.Bitmap
		err  error
	)
	switch {
	case q.Range != nil:
		hits, err = p.dispatch.EvaluateRange(c, *q.Range, p.Mask)
	case q.Membership != nil:
		hits, err = p.dispatch.EvaluateMembership(c, q.Membership.Values, p.Mask)
	case q.IntMember != nil:
		hits, err = p.dispatch.EvaluateIntMembership(c, *q.IntMember, p.Mask)
	case q.StrEq != nil:
		hits, err = p.dispatch.EvaluateStringEquality(c, *q.StrEq, p.Mask)
	case q.StrIn != nil:
		hits, err = p.dispatch.EvaluateStringIn(c, *q.StrIn, p.Mask)
	case q.Like != nil:
		hits, err = p.dispatch.EvaluateLike(c, *q.Like, p.Mask)
	case q.Keyword != nil:
		hits, err = p.dispatch.EvaluateKeyword(c, *q.Keyword, p.Mask)
	case q.AllKeyword != nil:
		hits, err = p.dispatch.EvaluateAllKeywords(c, *q.AllKeyword, p.Mask)
	default:
		return rowmask.NewAllZeros(p.Mask.Size()), perr.New(perr.ErrQuery, "partition %s: empty query", p.Name)
	}
	if err != nil {
		return rowmask.NewAllZeros(p.Mask.Size()), err
	}
	hitsAfter, missesAfter := p.manager.CacheStats()
	cacheHitsTotal.WithLabelValues(p.Name).Add(float64(hitsAfter - hitsBefore))
	cacheMissesTotal.WithLabelValues(p.Name).Add(float64(missesAfter - missesBefore))
	scanRowsTotal.WithLabelValues(p.Name).Add(float64(p.Mask.Count()))
	return hits, nil
}

// Estimate implements spec.md §4.4's estimate(predicate): a cheap,
// index-only sure/possible bound. Only the range kind carries an
// index-backed estimate in this implementation; the remaining
// kinds fall back to the trivial (∅, mask) bound, which is always a
// safe estimate since sure ⊆ evaluate(p) ⊆ possible.
func (p *Partition) Estimate(q Query) (sure, possible *rowmask.Bitmap, err error) {
	p.rw.RLock()
	defer p.rw.RUnlock()

	c := p.Column(q.columnName())
	if c == nil {
		return nil, nil, perr.New(perr.ErrQuery, "partition %s: unknown column %q", p.Name, q.columnName())
	}

	if q.Range != nil {
		sure, possible, err = p.dispatch.EstimateRange(c, *q.Range, p.Mask)
		if err == nil && sure.Count() > 0 {
			indexHitsTotal.WithLabelValues(p.Name).Inc()
		}
		return sure, possible, err
	}
	return rowmask.NewAllZeros(p.Mask.Size()), p.Mask, nil
}

// EstimateCost implements spec.md §4.4's estimateCost(predicate),
// letting a caller order a compound predicate's conjuncts cheapest
// first before calling Evaluate on each.
func (p *Partition) EstimateCost(q Query) float64 {
	p.rw.RLock()
	defer p.rw.RUnlock()

	c := p.Column(q.columnName())
	if c == nil {
		return float64(p.Mask.Count())
	}
	if q.StrEq != nil || q.StrIn != nil {
		return p.dispatch.EstimateCostCategory(c, p.Mask)
	}
	if q.Like != nil {
		return p.dispatch.EstimateCostLike(c, *q.Like, p.Mask)
	}
	return p.dispatch.EstimateCost(c, p.Mask)
}

// EstimateCostConjunction prices an AND of predicates the way the query
// layer orders compound evaluation: the sum of per-conjunct costs,
// except that two LIKE patterns on the same column whose glob
// intersection is provably empty price the whole conjunction at zero —
// no row can satisfy both, so the query layer can skip evaluating
// either branch.
func (p *Partition) EstimateCostConjunction(qs []Query) float64 {
	total := 0.0
	likes := map[string][]string{}
	for _, q := range qs {
		total += p.EstimateCost(q)
		if q.Like != nil {
			likes[q.Like.Column] = append(likes[q.Like.Column], q.Like.Pattern)
		}
	}
	for _, patterns := range likes {
		for i := 0; i < len(patterns); i++ {
			for j := i + 1; j < len(patterns); j++ {
				if disjoint, err := predicate.PatternsDisjoint(patterns[i], patterns[j]); err == nil && disjoint {
					return 0
				}
			}
		}
	}
	return total
}

// EvaluateRids implements spec.md §4.7's evaluateRidSet: it resolves a
// set of (runId, eventId) pairs against the partition's RID index (or,
// when no RID file was ever built, treats eventId as a direct row
// number) and intersects the result with the active mask.
func (p *Partition) EvaluateRids(rids []ridindex.Rid) (*rowmask.Bitmap, error) {
	p.rw.RLock()
	defer p.rw.RUnlock()

	if p.Rids == nil {
		return rowmask.NewAllZeros(p.Mask.Size()), nil
	}
	hits := p.Rids.EvaluateRidSet(rids, p.Mask.Size())
	return hits.And(p.Mask), nil
}

// EvaluateCSR runs Evaluate and, when the exportBitmapAsCsr resource
// key is set, additionally exports the hit set as a rowmask.CSR for
// tools that consume that format directly; otherwise csr is the zero
// value and only hits is meaningful.
func (p *Partition) EvaluateCSR(q Query) (hits *rowmask.Bitmap, csr rowmask.CSR, err error) {
	hits, err = p.Evaluate(q)
	if err != nil {
		return nil, rowmask.CSR{}, err
	}
	if p.resource != nil && p.resource.BoolOr(resource.KeyExportBitmapCsr, false) {
		csr = hits.ToCSR()
	}
	return hits, csr, nil
}
