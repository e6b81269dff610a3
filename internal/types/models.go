package types

import (
	"github.com/m-mizutani/goerr/v2"
)

// ErrFrameMismatch is returned when the fields of a frame are not parallel.
var ErrFrameMismatch = goerr.New("frame fields have different lengths")

// ServiceRequestRecord is one row of the service-request dataset.
type ServiceRequestRecord struct {
	Index      string  `json:"index"`
	CaseID     string  `json:"case_enquiry_id"`
	Department string  `json:"department"`
	Title      string  `json:"case_title"`
	Source     string  `json:"source"`
	DaysOpen   float64 `json:"days_open"` // NaN when the cell is empty
	Status     string  `json:"ontime_status"`
	Queue      string  `json:"queue"`
	X          float64 `json:"wm_x"`
	Y          float64 `json:"wm_y"`
}

// Table is the loaded dataset. Records are never modified after load.
type Table struct {
	IndexName string
	Records   []ServiceRequestRecord
}

func (t Table) Len() int { return len(t.Records) }

// FilterCriteria mirrors the latest widget state.
type FilterCriteria struct {
	Department  string `json:"department"`
	MinDaysOpen int    `json:"min_days_open"`
}

// Frame is the content of a reactive data source: named parallel columns.
type Frame interface {
	Len() int
	Fields() []string
	Validate() error
}

// --------------------------------------------
// PlotFrame feeds the departments dashboard
// --------------------------------------------
type PlotFrame struct {
	X        []float64 `json:"x"`
	Y        []float64 `json:"y"`
	Dept     []string  `json:"dept"`
	DaysOpen []float64 `json:"days_open"`
	Status   []string  `json:"status"`
	Title    []string  `json:"title"`
	Source   []string  `json:"source"`
	ID       []string  `json:"id"`
	Queue    []string  `json:"queue"`
}

// PlotFrameFields lists the PlotFrame field names in declaration order.
var PlotFrameFields = []string{"x", "y", "dept", "days_open", "status", "title", "source", "id", "queue"}

// NewPlotFrame allocates a frame of n rows capacity with every field non-nil.
func NewPlotFrame(n int) PlotFrame {
	return PlotFrame{
		X:        make([]float64, 0, n),
		Y:        make([]float64, 0, n),
		Dept:     make([]string, 0, n),
		DaysOpen: make([]float64, 0, n),
		Status:   make([]string, 0, n),
		Title:    make([]string, 0, n),
		Source:   make([]string, 0, n),
		ID:       make([]string, 0, n),
		Queue:    make([]string, 0, n),
	}
}

func (f PlotFrame) Len() int { return len(f.X) }

func (f PlotFrame) Fields() []string { return PlotFrameFields }

func (f PlotFrame) Validate() error {
	lens := map[string]int{
		"x":         len(f.X),
		"y":         len(f.Y),
		"dept":      len(f.Dept),
		"days_open": len(f.DaysOpen),
		"status":    len(f.Status),
		"title":     len(f.Title),
		"source":    len(f.Source),
		"id":        len(f.ID),
		"queue":     len(f.Queue),
	}
	return checkParallel(len(f.X), lens)
}

// --------------------------------------------
// CoordinateFrame feeds the static requests map
// --------------------------------------------
type CoordinateFrame struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

var CoordinateFrameFields = []string{"x", "y"}

func (f CoordinateFrame) Len() int { return len(f.X) }

func (f CoordinateFrame) Fields() []string { return CoordinateFrameFields }

func (f CoordinateFrame) Validate() error {
	return checkParallel(len(f.X), map[string]int{"x": len(f.X), "y": len(f.Y)})
}

func checkParallel(want int, lens map[string]int) error {
	for field, n := range lens {
		if n != want {
			return goerr.Wrap(ErrFrameMismatch, "invalid frame",
				goerr.V("field", field), goerr.V("len", n), goerr.V("want", want))
		}
	}
	return nil
}
