package theme

import (
	"fmt"
	"image/color"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Palette holds the colour roles widgets refer to.
type Palette struct {
	Primary    color.RGBA
	Secondary  color.RGBA
	Text       color.RGBA
	Background color.RGBA
	Accent     color.RGBA
}

var presets = map[string]Palette{
	"default":         mustPalette("00DDDD", "FF6B6B", "FFFFFF", "1A1A2E", "FFD166"),
	"hacker":          mustPalette("00FF00", "00AA00", "00FF00", "000000", "AAFF00"),
	"solarized-light": mustPalette("268BD2", "859900", "657B83", "FDF6E3", "CB4B16"),
	"solarized-dark":  mustPalette("268BD2", "859900", "839496", "002B36", "CB4B16"),
	"nord":            mustPalette("88C0D0", "81A1C1", "ECEFF4", "2E3440", "EBCB8B"),
	"tokyonight":      mustPalette("7AA2F7", "BB9AF7", "C0CAF5", "1A1B26", "E0AF68"),
}

// Presets lists the built-in palette names.
func Presets() []string {
	return slices.Sorted(maps.Keys(presets))
}

// Preset returns a built-in palette.
func Preset(name string) (Palette, bool) {
	p, ok := presets[strings.ToLower(name)]
	return p, ok
}

func mustPalette(primary, secondary, text, background, accent string) Palette {
	var p Palette
	for _, f := range []struct {
		dst *color.RGBA
		hex string
	}{{&p.Primary, primary}, {&p.Secondary, secondary}, {&p.Text, text}, {&p.Background, background}, {&p.Accent, accent}} {
		c, err := ParseColor(f.hex)
		if err != nil {
			panic(err)
		}
		*f.dst = c
	}
	return p
}

// ParseColor parses "RRGGBB" or "#RRGGBB".
func ParseColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("colour %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

// Resolve maps a role name or hex literal to a colour. Empty refs use
// fallback.
func (p Palette) Resolve(ref string, fallback color.RGBA) color.RGBA {
	switch strings.ToLower(ref) {
	case "":
		return fallback
	case "primary":
		return p.Primary
	case "secondary":
		return p.Secondary
	case "text":
		return p.Text
	case "background":
		return p.Background
	case "accent":
		return p.Accent
	}
	if c, err := ParseColor(ref); err == nil {
		return c
	}
	return fallback
}

// validRef reports whether ref names a role or parses as a colour.
func validRef(ref string) bool {
	switch strings.ToLower(ref) {
	case "", "primary", "secondary", "text", "background", "accent":
		return true
	}
	_, err := ParseColor(ref)
	return err == nil
}

// paletteSpec is the TOML form: a preset name or a table of overrides.
type paletteSpec struct {
	Preset     string
	Primary    string
	Secondary  string
	Text       string
	Background string
	Accent     string
}

// UnmarshalTOML accepts `palette = "nord"` or a [palette] table.
func (s *paletteSpec) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		s.Preset = t
		return nil
	case map[string]any:
		for k, raw := range t {
			str, ok := raw.(string)
			if !ok {
				return fmt.Errorf("palette.%s: want string", k)
			}
			switch k {
			case "preset":
				s.Preset = str
			case "primary":
				s.Primary = str
			case "secondary":
				s.Secondary = str
			case "text":
				s.Text = str
			case "background":
				s.Background = str
			case "accent":
				s.Accent = str
			default:
				return fmt.Errorf("palette: unknown role %q", k)
			}
		}
		return nil
	}
	return fmt.Errorf("palette: want string or table, got %T", v)
}

func (s paletteSpec) build() (Palette, error) {
	name := s.Preset
	if name == "" {
		name = "default"
	}
	p, ok := Preset(name)
	if !ok {
		return Palette{}, fmt.Errorf("unknown palette preset %q", name)
	}
	for _, o := range []struct {
		dst *color.RGBA
		hex string
	}{{&p.Primary, s.Primary}, {&p.Secondary, s.Secondary}, {&p.Text, s.Text}, {&p.Background, s.Background}, {&p.Accent, s.Accent}} {
		if o.hex == "" {
			continue
		}
		c, err := ParseColor(o.hex)
		if err != nil {
			return Palette{}, err
		}
		*o.dst = c
	}
	return p, nil
}
