package aggregator

import "sr-dashboard-go/internal/types"

const statusOverdue = "OVERDUE"

// Insight summarises the visible records, e.g. for legend counts.
type Insight struct {
	Count        int            `json:"count"`
	StatusCounts map[string]int `json:"status_counts,omitempty"`
	QueueCounts  map[string]int `json:"queue_counts,omitempty"`
	OverdueRate  float64        `json:"overdue_rate"`
	MeanDaysOpen float64        `json:"mean_days_open"`
	MaxDaysOpen  float64        `json:"max_days_open"`
}

func Aggregate(frame types.Frame) Insight {
	f, ok := frame.(types.PlotFrame)
	if !ok {
		return Insight{Count: frame.Len()}
	}
	status := map[string]int{}
	queues := map[string]int{}
	total := 0.0
	maxDays := 0.0
	for i := range f.ID {
		if f.Status[i] != "" {
			status[f.Status[i]]++
		}
		if f.Queue[i] != "" {
			queues[f.Queue[i]]++
		}
		total += f.DaysOpen[i]
		if f.DaysOpen[i] > maxDays {
			maxDays = f.DaysOpen[i]
		}
	}
	ins := Insight{
		Count:        f.Len(),
		StatusCounts: status,
		QueueCounts:  queues,
		MaxDaysOpen:  maxDays,
	}
	if ins.Count > 0 {
		ins.MeanDaysOpen = total / float64(ins.Count)
		ins.OverdueRate = float64(status[statusOverdue]) / float64(ins.Count)
	}
	return ins
}
