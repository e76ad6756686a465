// Package telemetry exports cache counters to Prometheus and serves the
// health and metrics endpoints.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"socialcore/internal/cache"
)

// SnapshotSource is satisfied by *cache.Store.
type SnapshotSource interface {
	Metrics() cache.MetricsSnapshot
}

// RegisterCacheMetrics registers one counter per cache event, each read from
// a fresh snapshot at scrape time.
func RegisterCacheMetrics(reg prometheus.Registerer, src SnapshotSource) error {
	counters := []struct {
		name, help string
		value      func(cache.MetricsSnapshot) uint64
	}{
		{"hits_total", "Cache reads served from a fresh entry.", func(s cache.MetricsSnapshot) uint64 { return s.Hits }},
		{"stale_hits_total", "Cache reads served from an expired entry on request.", func(s cache.MetricsSnapshot) uint64 { return s.StaleHits }},
		{"misses_total", "Cache reads that found nothing usable.", func(s cache.MetricsSnapshot) uint64 { return s.Misses }},
		{"expired_total", "Cache reads that found an expired entry.", func(s cache.MetricsSnapshot) uint64 { return s.Expired }},
		{"corrupt_total", "Corrupt cache entries removed on read.", func(s cache.MetricsSnapshot) uint64 { return s.Corrupt }},
		{"writes_total", "Cache entries written.", func(s cache.MetricsSnapshot) uint64 { return s.Writes }},
		{"clears_total", "Cache keys cleared.", func(s cache.MetricsSnapshot) uint64 { return s.Clears }},
		{"fetches_total", "Fetches run after a cache miss.", func(s cache.MetricsSnapshot) uint64 { return s.Fetches }},
		{"fetch_errors_total", "Fetches that failed after a cache miss.", func(s cache.MetricsSnapshot) uint64 { return s.FetchErrors }},
	}
	for _, c := range counters {
		value := c.value
		collector := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "socialcore",
			Subsystem: "cache",
			Name:      c.name,
			Help:      c.help,
		}, func() float64 { return float64(value(src.Metrics())) })
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
