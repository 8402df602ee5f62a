package metrics

import (
	"fmt"
	"math"

	"goflare.io/urlguard/internal/config"
	"goflare.io/urlguard/internal/models"
)

// BuildReport enriches a snapshot with cost, bandwidth and latency estimates
// derived linearly from the hit count. Nothing is added before the first
// request.
func BuildReport(s models.Snapshot, rc config.ReportingConfig) models.Report {
	r := models.Report{Snapshot: s}
	if s.RequestsServed <= 0 {
		return r
	}

	r.Savings = &models.Savings{
		EstimatedCostSavings:   fmt.Sprintf("$%.2f", float64(s.CacheHits)*rc.CostPerRequest),
		BandwidthSavedKB:       s.CacheHits * rc.KBPerRequest,
		PerformanceImprovement: fmt.Sprintf("%.0fms per request", math.Round(s.AvgTimeSaved*1000)),
	}
	return r
}
