package widgets

import (
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidOption = goerr.New("value is not one of the options")
	ErrOutOfRange    = goerr.New("value is out of range")
)

const (
	KindSelect = "select"
	KindSlider = "slider"
)

// ValueChanged is delivered to handlers after a widget value changes. Only
// the new value is carried.
type ValueChanged[T any] struct {
	Widget string
	Value  T
}

type Handler[T any] func(ValueChanged[T])

// Range describes slider bounds.
type Range struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
	Step  int `json:"step" yaml:"step"`
}

// Descriptor is the JSON view of a widget handed to the renderer.
type Descriptor struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Value   any      `json:"value"`
	Options []string `json:"options,omitempty"`
	Range   *Range   `json:"range,omitempty"`
}

// Select is a drop-down with a fixed option set.
type Select struct {
	name     string
	title    string
	options  []string
	value    string
	handlers []Handler[string]
}

func NewSelect(name, title string, options []string, value string) (*Select, error) {
	if len(options) == 0 {
		return nil, goerr.New("select has no options", goerr.V("widget", name))
	}
	if !slices.Contains(options, value) {
		return nil, goerr.Wrap(ErrInvalidOption, "invalid default",
			goerr.V("widget", name), goerr.V("value", value))
	}
	return &Select{
		name:    name,
		title:   title,
		options: slices.Clone(options),
		value:   value,
	}, nil
}

func (s *Select) Name() string      { return s.name }
func (s *Select) Value() string     { return s.value }
func (s *Select) Options() []string { return slices.Clone(s.options) }

func (s *Select) OnChange(h Handler[string]) { s.handlers = append(s.handlers, h) }

// Validate reports whether v could be selected.
func (s *Select) Validate(v string) error {
	if !slices.Contains(s.options, v) {
		return goerr.Wrap(ErrInvalidOption, "rejected value",
			goerr.V("widget", s.name), goerr.V("value", v))
	}
	return nil
}

// SetValue selects v and runs the handlers when the value changed.
func (s *Select) SetValue(v string) error {
	if err := s.Validate(v); err != nil {
		return err
	}
	if v == s.value {
		return nil
	}
	s.value = v
	ev := ValueChanged[string]{Widget: s.name, Value: v}
	for _, h := range s.handlers {
		h(ev)
	}
	return nil
}

func (s *Select) Describe() Descriptor {
	return Descriptor{
		Name:    s.name,
		Kind:    KindSelect,
		Title:   s.title,
		Value:   s.value,
		Options: s.Options(),
	}
}

// Slider is an integer slider over [Start, End].
type Slider struct {
	name     string
	title    string
	rng      Range
	value    int
	handlers []Handler[int]
}

func NewSlider(name, title string, rng Range, value int) (*Slider, error) {
	if rng.Step <= 0 {
		return nil, goerr.New("slider step must be positive", goerr.V("widget", name), goerr.V("step", rng.Step))
	}
	if rng.End < rng.Start {
		return nil, goerr.New("slider end before start",
			goerr.V("widget", name), goerr.V("start", rng.Start), goerr.V("end", rng.End))
	}
	s := &Slider{name: name, title: title, rng: rng}
	if err := s.Validate(value); err != nil {
		return nil, err
	}
	s.value = value
	return s, nil
}

func (s *Slider) Name() string { return s.name }
func (s *Slider) Value() int   { return s.value }
func (s *Slider) Range() Range { return s.rng }

func (s *Slider) OnChange(h Handler[int]) { s.handlers = append(s.handlers, h) }

func (s *Slider) Validate(v int) error {
	if v < s.rng.Start || v > s.rng.End {
		return goerr.Wrap(ErrOutOfRange, "rejected value",
			goerr.V("widget", s.name), goerr.V("value", v),
			goerr.V("start", s.rng.Start), goerr.V("end", s.rng.End))
	}
	return nil
}

// SetValue moves the slider and runs the handlers when the value changed.
func (s *Slider) SetValue(v int) error {
	if err := s.Validate(v); err != nil {
		return err
	}
	if v == s.value {
		return nil
	}
	s.value = v
	ev := ValueChanged[int]{Widget: s.name, Value: v}
	for _, h := range s.handlers {
		h(ev)
	}
	return nil
}

func (s *Slider) Describe() Descriptor {
	rng := s.rng
	return Descriptor{
		Name:  s.name,
		Kind:  KindSlider,
		Title: s.title,
		Value: s.value,
		Range: &rng,
	}
}
