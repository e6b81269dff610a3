package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"sr-dashboard-go/internal/projection"
	"sr-dashboard-go/internal/types"
)

func TestAggregate(t *testing.T) {
	frame := projection.Project([]types.ServiceRequestRecord{
		{CaseID: "1", Status: "ONTIME", Queue: "PARK_Forestry", DaysOpen: 100},
		{CaseID: "2", Status: "OVERDUE", Queue: "PARK_Forestry", DaysOpen: 300},
		{CaseID: "3", Status: "OVERDUE", Queue: "", DaysOpen: 200},
		{CaseID: "4", Status: "OVERDUE", Queue: "BTDT_Parking", DaysOpen: 200},
	})

	ins := Aggregate(frame)
	assert.Equal(t, 4, ins.Count)
	assert.Equal(t, map[string]int{"ONTIME": 1, "OVERDUE": 3}, ins.StatusCounts)
	assert.Equal(t, map[string]int{"PARK_Forestry": 2, "BTDT_Parking": 1}, ins.QueueCounts)
	assert.InDelta(t, 0.75, ins.OverdueRate, 1e-9)
	assert.InDelta(t, 200.0, ins.MeanDaysOpen, 1e-9)
	assert.Equal(t, 300.0, ins.MaxDaysOpen)
}

func TestAggregateEmpty(t *testing.T) {
	ins := Aggregate(types.NewPlotFrame(0))
	assert.Equal(t, 0, ins.Count)
	assert.Equal(t, 0.0, ins.OverdueRate)
	assert.Equal(t, 0.0, ins.MeanDaysOpen)
}

func TestAggregateCoordinates(t *testing.T) {
	ins := Aggregate(types.CoordinateFrame{X: []float64{1, 2}, Y: []float64{3, 4}})
	assert.Equal(t, Insight{Count: 2}, ins)
}
