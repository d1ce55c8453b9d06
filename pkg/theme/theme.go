// Package theme loads the declarative LCD layouts.
//
// A theme is a TOML document naming a palette and an ordered list of
// widgets. Widget types come from a fixed set interpreted by the
// compositor; data bindings must resolve against the live-data catalog
// when the theme is loaded.
package theme

import (
	"fmt"
	"slices"
	"strings"
)

// Widget types understood by the compositor.
const (
	WidgetRect  = "rect"
	WidgetLabel = "label"
	WidgetText  = "text"
	WidgetValue = "value"
	WidgetBar   = "bar"
	WidgetGraph = "graph"
	WidgetClock = "clock"
)

// WidgetTypes lists every widget type.
var WidgetTypes = []string{WidgetRect, WidgetLabel, WidgetText, WidgetValue, WidgetBar, WidgetGraph, WidgetClock}

// needsSource lists widget types that read live data.
var needsSource = map[string]bool{
	WidgetText:  true,
	WidgetValue: true,
	WidgetBar:   true,
	WidgetGraph: true,
}

// DefaultClockSource feeds clock widgets that do not name a source.
const DefaultClockSource = "sys.time"

// Widget is one positioned element of a layout.
type Widget struct {
	Type   string  `toml:"type" json:"type"`
	X      int     `toml:"x" json:"x"`
	Y      int     `toml:"y" json:"y"`
	W      int     `toml:"w" json:"w,omitempty"`
	H      int     `toml:"h" json:"h,omitempty"`
	Source string  `toml:"source" json:"source,omitempty"`
	Label  string  `toml:"label" json:"label,omitempty"`
	Format string  `toml:"format" json:"format,omitempty"`
	Color  string  `toml:"color" json:"color,omitempty"`
	Size   float64 `toml:"size" json:"size,omitempty"`
	Min    float64 `toml:"min" json:"min,omitempty"`
	Max    float64 `toml:"max" json:"max,omitempty"`
	Align  string  `toml:"align" json:"align,omitempty"`
}

// Theme is an immutable, validated layout.
type Theme struct {
	ID          string
	Name        string
	Description string
	Palette     Palette
	Widgets     []Widget
	Path        string
}

// Builtin reports whether t was loaded from the embedded set.
func (t *Theme) Builtin() bool {
	return strings.HasPrefix(t.Path, "builtin/")
}

// Catalog resolves live-data keys.
type Catalog interface {
	Has(key string) bool
}

// check validates the semantic rules the schema cannot express.
func (w Widget) check(catalog Catalog) error {
	if !slices.Contains(WidgetTypes, w.Type) {
		return fmt.Errorf("unknown widget type %q", w.Type)
	}
	if w.Type == WidgetLabel && w.Label == "" {
		return fmt.Errorf("label widget needs a label")
	}
	if (w.Type == WidgetRect || w.Type == WidgetBar || w.Type == WidgetGraph) && (w.W == 0 || w.H == 0) {
		return fmt.Errorf("%s widget needs w and h", w.Type)
	}
	src := w.Source
	if w.Type == WidgetClock && src == "" {
		src = DefaultClockSource
	}
	if needsSource[w.Type] && src == "" {
		return fmt.Errorf("%s widget needs a source", w.Type)
	}
	if src != "" && catalog != nil && !catalog.Has(src) {
		return fmt.Errorf("unresolvable data source %q", src)
	}
	if w.Type == WidgetBar || w.Type == WidgetGraph {
		if w.Max != 0 && w.Max <= w.Min {
			return fmt.Errorf("%s widget max %v must exceed min %v", w.Type, w.Max, w.Min)
		}
	}
	if !validRef(w.Color) {
		return fmt.Errorf("unknown colour %q", w.Color)
	}
	return nil
}

// Range returns the widget's scale, defaulting to 0..100.
func (w Widget) Range() (lo, hi float64) {
	if w.Max == 0 && w.Min == 0 {
		return 0, 100
	}
	return w.Min, w.Max
}

// Error reports a theme that failed to load.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("theme %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
