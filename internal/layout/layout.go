package layout

import (
	"embed"
	"os"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
	"sr-dashboard-go/internal/widgets"
)

//go:embed defaults/*.yaml
var defaults embed.FS

var ErrInvalidDocument = goerr.New("invalid layout document")

// Document describes what the external renderer should draw. The service
// never renders it.
type Document struct {
	Title       string               `json:"title" yaml:"title"`
	Source      string               `json:"source" yaml:"source"`
	Figure      Figure               `json:"figure" yaml:"figure"`
	Hover       []Tooltip            `json:"hover,omitempty" yaml:"hover"`
	Table       *DataTable           `json:"table,omitempty" yaml:"table"`
	ColorMapper *ColorMapper         `json:"color_mapper,omitempty" yaml:"color_mapper"`
	Controls    *Controls            `json:"-" yaml:"controls"`
	Widgets     []widgets.Descriptor `json:"widgets,omitempty" yaml:"-"`
}

type Figure struct {
	WebGL bool   `json:"webgl" yaml:"webgl"`
	Tile  string `json:"tile,omitempty" yaml:"tile"`
	Glyph Glyph  `json:"glyph" yaml:"glyph"`
}

type Glyph struct {
	Kind       string  `json:"kind" yaml:"kind"`
	X          string  `json:"x" yaml:"x"`
	Y          string  `json:"y" yaml:"y"`
	Alpha      float64 `json:"alpha,omitempty" yaml:"alpha"`
	ColorField string  `json:"color_field,omitempty" yaml:"color_field"`
}

type Tooltip struct {
	Label string `json:"label" yaml:"label"`
	Field string `json:"field" yaml:"field"`
}

type DataTable struct {
	Columns []TableColumn `json:"columns" yaml:"columns"`
	Width   int           `json:"width" yaml:"width"`
	Height  int           `json:"height" yaml:"height"`
}

type TableColumn struct {
	Field string `json:"field" yaml:"field"`
	Title string `json:"title" yaml:"title"`
}

// ColorMapper maps categorical factors onto palette colors, pairwise.
type ColorMapper struct {
	Factors []string `json:"factors" yaml:"factors"`
	Palette []string `json:"palette" yaml:"palette"`
}

// Controls holds the widget definitions of an interactive document.
type Controls struct {
	Department SelectControl `yaml:"department"`
	DaysOpen   SliderControl `yaml:"days_open"`
}

type SelectControl struct {
	Name    string   `yaml:"name"`
	Title   string   `yaml:"title"`
	Options []string `yaml:"options"`
	Default string   `yaml:"default"`
}

// SliderControl has no end: it is derived from the dataset.
type SliderControl struct {
	Name    string `yaml:"name"`
	Title   string `yaml:"title"`
	Step    int    `yaml:"step"`
	Default int    `yaml:"default"`
}

// Departments returns the built-in departments dashboard document.
func Departments() Document { return mustDefault("defaults/departments.yaml") }

// Requests returns the built-in static requests map document.
func Requests() Document { return mustDefault("defaults/requests.yaml") }

func mustDefault(name string) Document {
	raw, err := defaults.ReadFile(name)
	if err != nil {
		panic(err)
	}
	doc, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return doc
}

// LoadFile reads a document from a YAML file.
func LoadFile(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, goerr.Wrap(err, "read layout", goerr.V("path", path))
	}
	doc, err := Parse(raw)
	if err != nil {
		return Document{}, goerr.Wrap(err, "parse layout", goerr.V("path", path))
	}
	return doc, nil
}

func Parse(raw []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Document{}, goerr.Wrap(err, "decode yaml")
	}
	return doc, nil
}

// Validate checks the document against the field names of the frame it will
// be bound to.
func (d Document) Validate(fields []string) error {
	has := func(f string) bool { return slices.Contains(fields, f) }

	g := d.Figure.Glyph
	if !has(g.X) || !has(g.Y) {
		return goerr.Wrap(ErrInvalidDocument, "glyph coordinates are not frame fields",
			goerr.V("x", g.X), goerr.V("y", g.Y))
	}
	if g.Alpha < 0 || g.Alpha > 1 {
		return goerr.Wrap(ErrInvalidDocument, "glyph alpha outside [0, 1]", goerr.V("alpha", g.Alpha))
	}
	if g.ColorField != "" {
		if !has(g.ColorField) {
			return goerr.Wrap(ErrInvalidDocument, "unknown color field", goerr.V("field", g.ColorField))
		}
		if d.ColorMapper == nil {
			return goerr.Wrap(ErrInvalidDocument, "color field without color mapper", goerr.V("field", g.ColorField))
		}
	}
	if cm := d.ColorMapper; cm != nil {
		if len(cm.Palette) == 0 || len(cm.Factors) != len(cm.Palette) {
			return goerr.Wrap(ErrInvalidDocument, "color mapper factors and palette differ",
				goerr.V("factors", len(cm.Factors)), goerr.V("palette", len(cm.Palette)))
		}
	}
	for _, tt := range d.Hover {
		if !has(tt.Field) {
			return goerr.Wrap(ErrInvalidDocument, "unknown tooltip field", goerr.V("field", tt.Field))
		}
	}
	if d.Table != nil {
		for _, c := range d.Table.Columns {
			if !has(c.Field) {
				return goerr.Wrap(ErrInvalidDocument, "unknown table field", goerr.V("field", c.Field))
			}
		}
	}
	if c := d.Controls; c != nil {
		if !slices.Contains(c.Department.Options, c.Department.Default) {
			return goerr.Wrap(ErrInvalidDocument, "department default is not an option",
				goerr.V("default", c.Department.Default))
		}
		if c.DaysOpen.Step <= 0 {
			return goerr.Wrap(ErrInvalidDocument, "days open step must be positive", goerr.V("step", c.DaysOpen.Step))
		}
	}
	return nil
}
