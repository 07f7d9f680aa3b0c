package selftest

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ibitd/ibitd/partition"
	"github.com/ibitd/ibitd/predicate"
	"github.com/ibitd/ibitd/resource"
)

// Config selects how much self-testing to run, derived from the
// per-partition resource keys (spec.md §6): longTests deepens the
// subdivision, randomTests adds the randomized index-vs-scan agreement
// pass, testIndexSpeed times the index path against a forced scan.
type Config struct {
	Depth        int
	RandomRanges int
	TimeIndex    bool
}

// FromResource reads partName's self-test keys out of res. Defaults:
// depth 3, no random pass, no speed timing.
func FromResource(res *resource.Store, partName string) Config {
	cfg := Config{Depth: 3}
	if res == nil {
		return cfg
	}
	if res.BoolOr(resource.PartitionKey(partName, resource.SuffixLongTests), false) {
		cfg.Depth = 6
	}
	if n, ok := res.Int(resource.PartitionKey(partName, resource.SuffixRandomTests)); ok && n > 0 {
		cfg.RandomRanges = n
	}
	cfg.TimeIndex = res.BoolOr(resource.PartitionKey(partName, resource.SuffixTestIndexSpeed), false)
	return cfg
}

// RunRandomAgreement evaluates n random sub-ranges of colName's value
// range via the partition's normal (index-or-scan) path and a forced
// full scan, and reports any range where the two disagree bit for bit.
func RunRandomAgreement(p *partition.Partition, colName string, n int, rng *rand.Rand) (mismatches []string, err error) {
	c := p.Column(colName)
	if c == nil {
		return nil, fmt.Errorf("selftest: unknown column %q", colName)
	}
	lo, hi := c.Bounds(func() (float64, float64) { return computeBounds(p, c) })
	if hi <= lo {
		return nil, nil
	}

	for i := 0; i < n; i++ {
		a := lo + rng.Float64()*(hi-lo)
		b := lo + rng.Float64()*(hi-lo)
		if b < a {
			a, b = b, a
		}
		indexHits, scanHits, err := evaluateBoth(p, c, a, b)
		if err != nil {
			return mismatches, err
		}
		if !sameBits(indexHits, scanHits) {
			mismatches = append(mismatches, fmt.Sprintf(
				"column %s range [%g, %g): index/scan disagree", colName, a, b))
		}
	}
	return mismatches, nil
}

// SpeedReport holds one index-vs-scan timing sample from RunIndexSpeed.
type SpeedReport struct {
	Index time.Duration
	Scan  time.Duration
}

// RunIndexSpeed times one whole-range evaluation through the normal
// path (which uses the index when loaded) and through a forced scan,
// honoring the testIndexSpeed resource key. Purely informational; a
// slower index is reported, never failed.
func RunIndexSpeed(p *partition.Partition, colName string) (*SpeedReport, error) {
	c := p.Column(colName)
	if c == nil {
		return nil, fmt.Errorf("selftest: unknown column %q", colName)
	}
	lo, hi := c.Bounds(func() (float64, float64) { return computeBounds(p, c) })
	r := predicate.RangePredicate{
		Column: colName,
		Lower:  predicate.Bound{Defined: true, Op: predicate.OpGE, Value: lo},
		Upper:  predicate.Bound{Defined: true, Op: predicate.OpLE, Value: hi},
	}

	start := time.Now()
	if _, err := p.Evaluate(partition.Query{Range: &r}); err != nil {
		return nil, err
	}
	indexDur := time.Since(start)

	start = time.Now()
	if _, err := forceScan(p, c, r); err != nil {
		return nil, err
	}
	return &SpeedReport{Index: indexDur, Scan: time.Since(start)}, nil
}
