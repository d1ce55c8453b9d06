package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/urmzd/ht32-panel/pkg/sensors"
	"github.com/urmzd/ht32-panel/pkg/theme"
)

// missing is shown when a bound source has no reading.
const missing = "--"

// scene is what a widget renderer draws into.
type scene struct {
	img     *image.RGBA
	palette theme.Palette
	data    sensors.Data
	faces   *faces
}

type widgetFunc func(s *scene, w theme.Widget) error

// widgetTable dispatches widget types to their renderers. Themes are data;
// this table is the only code that interprets them.
var widgetTable = map[string]widgetFunc{
	theme.WidgetRect:  drawRect,
	theme.WidgetLabel: drawLabel,
	theme.WidgetText:  drawSourceText,
	theme.WidgetValue: drawValue,
	theme.WidgetBar:   drawBar,
	theme.WidgetGraph: drawGraph,
	theme.WidgetClock: drawClock,
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// mix blends a toward b by t in [0,1].
func mix(a, b color.RGBA, t float64) color.RGBA {
	l := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5) }
	return color.RGBA{R: l(a.R, b.R), G: l(a.G, b.G), B: l(a.B, b.B), A: 0xFF}
}

func bounds(w theme.Widget) image.Rectangle {
	return image.Rect(w.X, w.Y, w.X+w.W, w.Y+w.H)
}

func drawRect(s *scene, w theme.Widget) error {
	fill(s.img, bounds(w), s.palette.Resolve(w.Color, s.palette.Secondary))
	return nil
}

func (s *scene) text(w theme.Widget, str string, mono bool) error {
	fc, err := s.faces.face(w.Size, mono)
	if err != nil {
		return err
	}
	drawText(s.img, fc, str, w.X, w.Y, w.W, w.Align, s.palette.Resolve(w.Color, s.palette.Text))
	return nil
}

func drawLabel(s *scene, w theme.Widget) error {
	return s.text(w, w.Label, false)
}

func drawSourceText(s *scene, w theme.Widget) error {
	str, ok := s.data.Text(w.Source)
	if !ok {
		str = missing
	}
	if w.Label != "" {
		str = w.Label + " " + str
	}
	return s.text(w, str, false)
}

func drawValue(s *scene, w theme.Widget) error {
	str := missing
	if v, ok := s.data.Value(w.Source); ok {
		format := w.Format
		if format == "" {
			format = "%.1f"
		}
		str = fmt.Sprintf(format, v)
	}
	return s.text(w, str, true)
}

func drawClock(s *scene, w theme.Widget) error {
	src := w.Source
	if src == "" {
		src = theme.DefaultClockSource
	}
	str, ok := s.data.Text(src)
	if !ok {
		str = "--:--"
	}
	return s.text(w, str, true)
}

// fraction maps v onto the widget's range, clamped to [0,1].
func fraction(w theme.Widget, v float64) float64 {
	lo, hi := w.Range()
	f := (v - lo) / (hi - lo)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func drawBar(s *scene, w theme.Widget) error {
	fg := s.palette.Resolve(w.Color, s.palette.Primary)
	r := bounds(w)
	fill(s.img, r, mix(s.palette.Background, fg, 0.2))

	v, ok := s.data.Value(w.Source)
	if !ok {
		return nil
	}
	filled := int(fraction(w, v)*float64(w.W) + 0.5)
	fill(s.img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+filled, r.Max.Y), fg)
	return nil
}

// drawGraph draws the source's history as a filled area, newest sample on
// the right.
func drawGraph(s *scene, w theme.Widget) error {
	fg := s.palette.Resolve(w.Color, s.palette.Primary)
	r := bounds(w)
	fill(s.img, r, mix(s.palette.Background, fg, 0.1))

	hist := s.data.History(w.Source)
	if len(hist) > w.W {
		hist = hist[len(hist)-w.W:]
	}
	n := len(hist)
	if n == 0 {
		return nil
	}

	for col := 0; col < w.W; col++ {
		// Right-align: the last sample lands in the last column.
		idx := n - w.W + col
		if n < w.W {
			idx = col * n / w.W
		}
		if idx < 0 {
			continue
		}
		h := int(fraction(w, hist[idx])*float64(w.H) + 0.5)
		x := r.Min.X + col
		fill(s.img, image.Rect(x, r.Max.Y-h, x+1, r.Max.Y), fg)
	}

	edge := mix(s.palette.Background, fg, 0.5)
	fill(s.img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), edge)
	return nil
}
