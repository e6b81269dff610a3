package dashboard

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sirupsen/logrus"
	"sr-dashboard-go/internal/aggregator"
	"sr-dashboard-go/internal/dataset"
	"sr-dashboard-go/internal/layout"
	"sr-dashboard-go/internal/logger"
	"sr-dashboard-go/internal/projection"
	"sr-dashboard-go/internal/selection"
	"sr-dashboard-go/internal/source"
	"sr-dashboard-go/internal/types"
	"sr-dashboard-go/internal/widgets"
)

const DefaultCacheSize = 64

type Options struct {
	// CacheSize bounds the number of memoised frames, one per criteria.
	CacheSize int
}

// Compute is the whole filter-and-project pipeline.
func Compute(t types.Table, c types.FilterCriteria) types.PlotFrame {
	return projection.Project(selection.SelectRequests(t, c))
}

// Dashboard is the departments dashboard: a department selector and a
// days-open slider driving one data source. Widget events are handled one at
// a time and each runs the pipeline to completion.
type Dashboard struct {
	log     *logrus.Entry
	table   types.Table
	summary dataset.DatasetSummary
	doc     layout.Document
	cache   *lru.Cache[types.FilterCriteria, types.PlotFrame]
	src     *source.Source

	mu      sync.Mutex
	dept    *widgets.Select
	days    *widgets.Slider
	lastErr error
}

func New(table types.Table, doc layout.Document, opts Options) (*Dashboard, error) {
	if err := doc.Validate(types.PlotFrameFields); err != nil {
		return nil, err
	}
	if doc.Controls == nil {
		return nil, goerr.Wrap(layout.ErrInvalidDocument, "departments document has no controls")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	summary := dataset.Summarize(table)
	ctl := doc.Controls
	dept, err := widgets.NewSelect(ctl.Department.Name, ctl.Department.Title, ctl.Department.Options, ctl.Department.Default)
	if err != nil {
		return nil, err
	}
	rng := widgets.Range{
		Start: 0,
		End:   dataset.RoundDown(summary.MaxDaysOpen, ctl.DaysOpen.Step),
		Step:  ctl.DaysOpen.Step,
	}
	days, err := widgets.NewSlider(ctl.DaysOpen.Name, ctl.DaysOpen.Title, rng, ctl.DaysOpen.Default)
	if err != nil {
		return nil, err
	}
	src, err := source.New(doc.Source, types.NewPlotFrame(0))
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[types.FilterCriteria, types.PlotFrame](opts.CacheSize)
	if err != nil {
		return nil, goerr.Wrap(err, "create frame cache", goerr.V("size", opts.CacheSize))
	}

	d := &Dashboard{
		log:     logger.New().Component("dashboard").WithField("source", doc.Source),
		table:   table,
		summary: summary,
		doc:     doc,
		cache:   cache,
		src:     src,
		dept:    dept,
		days:    days,
	}
	dept.OnChange(func(ev widgets.ValueChanged[string]) { d.handle(ev.Widget, ev.Value) })
	days.OnChange(func(ev widgets.ValueChanged[int]) { d.handle(ev.Widget, ev.Value) })

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.update(); err != nil {
		return nil, err
	}
	d.log.WithFields(logrus.Fields{
		"records":    table.Len(),
		"slider_end": rng.End,
	}).Info("dashboard ready")
	return d, nil
}

func (d *Dashboard) handle(widget string, value any) {
	d.log.WithField("widget", widget).WithField("value", value).Debug("widget changed")
	d.lastErr = d.update()
}

// update runs with d.mu held.
func (d *Dashboard) update() error {
	c := d.criteria()
	snap, err := d.src.Replace(d.frame(c))
	if err != nil {
		d.log.WithError(err).Error("update failed")
		return err
	}
	d.log.WithFields(logrus.Fields{
		"department":    c.Department,
		"min_days_open": c.MinDaysOpen,
		"rows":          snap.Data.Len(),
		"version":       snap.Version,
	}).Info("source updated")
	return nil
}

func (d *Dashboard) criteria() types.FilterCriteria {
	return types.FilterCriteria{Department: d.dept.Value(), MinDaysOpen: d.days.Value()}
}

func (d *Dashboard) frame(c types.FilterCriteria) types.PlotFrame {
	if f, ok := d.cache.Get(c); ok {
		return f
	}
	f := Compute(d.table, c)
	d.cache.Add(c, f)
	return f
}

// SetDepartment delivers a department selector change.
func (d *Dashboard) SetDepartment(v string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastErr = nil
	if err := d.dept.SetValue(v); err != nil {
		return err
	}
	return d.lastErr
}

// SetMinDaysOpen delivers a days-open slider change.
func (d *Dashboard) SetMinDaysOpen(v int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastErr = nil
	if err := d.days.SetValue(v); err != nil {
		return err
	}
	return d.lastErr
}

// Criteria returns the current widget state.
func (d *Dashboard) Criteria() types.FilterCriteria {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.criteria()
}

// Preview evaluates the pipeline for c without touching widget state or the
// source. The department must be one of the selector options.
func (d *Dashboard) Preview(c types.FilterCriteria) (types.PlotFrame, error) {
	if err := d.dept.Validate(c.Department); err != nil {
		return types.PlotFrame{}, err
	}
	if c.MinDaysOpen < 0 {
		return types.PlotFrame{}, goerr.Wrap(widgets.ErrOutOfRange, "negative threshold",
			goerr.V("min_days_open", c.MinDaysOpen))
	}
	return d.frame(c), nil
}

func (d *Dashboard) Widgets() []widgets.Descriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return []widgets.Descriptor{d.dept.Describe(), d.days.Describe()}
}

// Document returns the layout document with the live widget state.
func (d *Dashboard) Document() layout.Document {
	doc := d.doc
	doc.Widgets = d.Widgets()
	return doc
}

func (d *Dashboard) Source() *source.Source { return d.src }

func (d *Dashboard) Summary() dataset.DatasetSummary { return d.summary }

// Insight aggregates the frame currently published.
func (d *Dashboard) Insight() aggregator.Insight {
	return aggregator.Aggregate(d.src.Snapshot().Data)
}

func (d *Dashboard) Close() { d.src.Close() }
