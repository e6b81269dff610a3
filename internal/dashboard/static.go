package dashboard

import (
	"sr-dashboard-go/internal/aggregator"
	"sr-dashboard-go/internal/dataset"
	"sr-dashboard-go/internal/layout"
	"sr-dashboard-go/internal/logger"
	"sr-dashboard-go/internal/projection"
	"sr-dashboard-go/internal/source"
	"sr-dashboard-go/internal/types"
)

// StaticMap plots every request once; it has no widgets.
type StaticMap struct {
	doc     layout.Document
	summary dataset.DatasetSummary
	src     *source.Source
}

func NewStaticMap(table types.Table, doc layout.Document) (*StaticMap, error) {
	if err := doc.Validate(types.CoordinateFrameFields); err != nil {
		return nil, err
	}
	src, err := source.New(doc.Source, types.CoordinateFrame{X: []float64{}, Y: []float64{}})
	if err != nil {
		return nil, err
	}
	snap, err := src.Replace(projection.ProjectCoordinates(table.Records))
	if err != nil {
		return nil, err
	}
	logger.New().Component("dashboard").WithField("source", doc.Source).
		WithField("rows", snap.Data.Len()).Info("static map ready")
	return &StaticMap{doc: doc, summary: dataset.Summarize(table), src: src}, nil
}

func (m *StaticMap) Document() layout.Document       { return m.doc }
func (m *StaticMap) Source() *source.Source          { return m.src }
func (m *StaticMap) Summary() dataset.DatasetSummary { return m.summary }

func (m *StaticMap) Insight() aggregator.Insight {
	return aggregator.Aggregate(m.src.Snapshot().Data)
}

func (m *StaticMap) Close() { m.src.Close() }
