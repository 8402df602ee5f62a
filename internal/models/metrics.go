package models

import "math"

// Snapshot is a point-in-time view of the cache metrics.
type Snapshot struct {
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	HitRatio       float64 `json:"hit_ratio"`
	TotalTimeSaved float64 `json:"total_time_saved"`
	AvgTimeSaved   float64 `json:"avg_time_saved"`
	RequestsServed int64   `json:"requests_served"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Rounded returns a copy with the float fields rounded to two decimals,
// the form written for external consumers.
func (s Snapshot) Rounded() Snapshot {
	s.HitRatio = Round2(s.HitRatio)
	s.TotalTimeSaved = Round2(s.TotalTimeSaved)
	s.AvgTimeSaved = Round2(s.AvgTimeSaved)
	s.UptimeSeconds = Round2(s.UptimeSeconds)
	return s
}

// Report is a snapshot enriched with business estimates. Savings is nil, and
// left out of the JSON form, until a request has been served.
type Report struct {
	Snapshot
	*Savings
}

// Savings holds the estimates derived from the hit count.
type Savings struct {
	EstimatedCostSavings   string `json:"estimated_cost_savings"`
	BandwidthSavedKB       int64  `json:"bandwidth_saved_kb"`
	PerformanceImprovement string `json:"performance_improvement"`
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
