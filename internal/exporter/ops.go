package exporter

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ops holds the operational counters the refresh loop maintains.
type Ops struct {
	Runs             *prometheus.CounterVec
	RepoFailures     *prometheus.CounterVec
	RecordsCollected *prometheus.CounterVec
}

// FetchCacheStats is a point-in-time view of the fetch client response cache.
type FetchCacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// NewOps registers the operational metrics. cacheStatsFn reports the fetch
// cache state and may be nil.
func NewOps(registry *prometheus.Registry, cacheStatsFn func() FetchCacheStats) *Ops {
	ops := &Ops{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hackboard_refresh_runs_total",
			Help: "Aggregation runs by event and outcome.",
		}, []string{"event", "outcome"}),
		RepoFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hackboard_repo_collection_failures_total",
			Help: "Repository collection branches that failed.",
		}, []string{"event"}),
		RecordsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hackboard_records_collected_total",
			Help: "Activity records collected by event and kind.",
		}, []string{"event", "kind"}),
	}

	if registry != nil {
		registry.MustRegister(ops.Runs, ops.RepoFailures, ops.RecordsCollected)
		if cacheStatsFn != nil {
			registry.MustRegister(
				prometheus.NewGaugeFunc(prometheus.GaugeOpts{
					Name: "hackboard_fetch_cache_entries",
					Help: "Entries currently held in the fetch client response cache.",
				}, func() float64 { return float64(cacheStatsFn().Entries) }),
				prometheus.NewCounterFunc(prometheus.CounterOpts{
					Name: "hackboard_fetch_cache_hits_total",
					Help: "Requests served from the fetch client response cache.",
				}, func() float64 { return float64(cacheStatsFn().Hits) }),
				prometheus.NewCounterFunc(prometheus.CounterOpts{
					Name: "hackboard_fetch_cache_misses_total",
					Help: "Requests that bypassed the fetch client response cache.",
				}, func() float64 { return float64(cacheStatsFn().Misses) }),
			)
		}
	}
	return ops
}
