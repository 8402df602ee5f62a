package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "urlguard"

// Collectors exposes the accumulator counters as Prometheus metrics. The
// values are read on scrape, so they always agree with Snapshot.
func (a *Accumulator) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of result cache hits.",
		}, func() float64 { return float64(a.hits.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of result cache misses, including expired entries.",
		}, func() float64 { return float64(a.misses.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_time_saved_seconds_total",
			Help:      "Estimated extraction time avoided by cache hits.",
		}, func() float64 { return a.timeSaved.Load() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_hit_ratio",
			Help:      "Hits divided by requests served, 0 before the first request.",
		}, func() float64 { return a.Snapshot().HitRatio }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the metrics accumulator started.",
		}, func() float64 { return a.Snapshot().UptimeSeconds }),
	}
}

// Register registers all collectors with reg.
func (a *Accumulator) Register(reg prometheus.Registerer) error {
	for _, c := range a.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
