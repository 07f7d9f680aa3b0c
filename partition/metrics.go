package partition

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the process-wide prometheus counters wired in by
// SPEC_FULL.md's domain-stack expansion; every partition reports
// through the same registered vectors, labeled by partition name.
var (
	scanRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ibitd_scan_rows_total",
		Help: "Active rows covered by successful Evaluate calls, whether answered by an index or a scan, per partition.",
	}, []string{"partition"})

	indexHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ibitd_index_hits_total",
		Help: "Range estimates whose bitmap-index sure set was non-empty, per partition; Evaluate does not update it.",
	}, []string{"partition"})

	cacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ibitd_cache_hits_total",
		Help: "File manager array-cache hits, per partition.",
	}, []string{"partition"})

	cacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ibitd_cache_misses_total",
		Help: "File manager array-cache misses, per partition.",
	}, []string{"partition"})
)

// RegisterMetrics registers every partition metric with reg. Safe to
// call once per process; a partition opened in tests can pass a fresh
// prometheus.NewRegistry() to avoid global-registry collisions.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{scanRowsTotal, indexHitsTotal, cacheHitsTotal, cacheMissesTotal} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
