package projection

import (
	"sr-dashboard-go/internal/types"
)

// Project maps filtered records onto the plot source fields, one entry per
// record in every field.
func Project(records []types.ServiceRequestRecord) types.PlotFrame {
	f := types.NewPlotFrame(len(records))
	for _, r := range records {
		f.X = append(f.X, r.X)
		f.Y = append(f.Y, r.Y)
		f.Dept = append(f.Dept, r.Department)
		f.DaysOpen = append(f.DaysOpen, r.DaysOpen)
		f.Status = append(f.Status, r.Status)
		f.Title = append(f.Title, r.Title)
		f.Source = append(f.Source, r.Source)
		f.ID = append(f.ID, r.CaseID)
		f.Queue = append(f.Queue, r.Queue)
	}
	return f
}

// ProjectCoordinates keeps only the web mercator coordinates.
func ProjectCoordinates(records []types.ServiceRequestRecord) types.CoordinateFrame {
	f := types.CoordinateFrame{
		X: make([]float64, 0, len(records)),
		Y: make([]float64, 0, len(records)),
	}
	for _, r := range records {
		f.X = append(f.X, r.X)
		f.Y = append(f.Y, r.Y)
	}
	return f
}
