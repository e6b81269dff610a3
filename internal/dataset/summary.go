package dataset

import (
	"math"

	"sr-dashboard-go/internal/logger"
	"sr-dashboard-go/internal/types"
)

// DefaultSliderStep is the days-open slider step.
const DefaultSliderStep = 100

type DatasetSummary struct {
	TotalRequests   int            `json:"total_requests"`
	MaxDaysOpen     float64        `json:"max_days_open"`
	SliderEnd       int            `json:"slider_end"`
	MissingDaysOpen int            `json:"missing_days_open"`
	ByDepartment    map[string]int `json:"by_department"`
	ByStatus        map[string]int `json:"by_status"`
}

// Summarize computes the figures the dashboards need up front: the slider
// bound and per-department/status counts.
func Summarize(t types.Table) DatasetSummary {
	log := logger.New().Component("dataset.summary")

	ds := DatasetSummary{
		TotalRequests: t.Len(),
		ByDepartment:  map[string]int{},
		ByStatus:      map[string]int{},
	}
	maxDays := math.NaN()
	for _, r := range t.Records {
		if r.Department != "" {
			ds.ByDepartment[r.Department]++
		}
		if r.Status != "" {
			ds.ByStatus[r.Status]++
		}
		if math.IsNaN(r.DaysOpen) || math.IsInf(r.DaysOpen, 0) {
			ds.MissingDaysOpen++
			continue
		}
		if math.IsNaN(maxDays) || r.DaysOpen > maxDays {
			maxDays = r.DaysOpen
		}
	}
	if !math.IsNaN(maxDays) {
		ds.MaxDaysOpen = maxDays
	}
	ds.SliderEnd = RoundDown(ds.MaxDaysOpen, DefaultSliderStep)

	log.WithFields(map[string]interface{}{
		"total_requests": ds.TotalRequests,
		"max_days_open":  ds.MaxDaysOpen,
		"slider_end":     ds.SliderEnd,
		"departments":    len(ds.ByDepartment),
	}).Info("dataset summarization complete")
	return ds
}

// RoundDown rounds v down to the nearest multiple of step, so the slider end
// always leaves at least one record visible. Negative and non-finite values
// round to 0.
func RoundDown(v float64, step int) int {
	if step <= 0 || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	n := int(math.Floor(v))
	return n - n%step
}
