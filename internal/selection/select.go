package selection

import (
	"strings"

	"sr-dashboard-go/internal/types"
)

// SelectRequests returns the records open for at least MinDaysOpen days whose
// department contains the selected code. The department test is a
// case-sensitive substring match, so "PARK" also selects "PARKING". Records
// with an unknown days-open value never match.
func SelectRequests(t types.Table, c types.FilterCriteria) []types.ServiceRequestRecord {
	out := make([]types.ServiceRequestRecord, 0)
	threshold := float64(c.MinDaysOpen)
	for _, r := range t.Records {
		// NaN compares false
		if !(r.DaysOpen >= threshold) {
			continue
		}
		if !strings.Contains(r.Department, c.Department) {
			continue
		}
		out = append(out, r)
	}
	return out
}
