package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// DefaultTextSize applies to widgets without an explicit size.
const DefaultTextSize = 12

// faces caches rasterised faces per size. Faces are not safe for
// concurrent use, so the cache is only touched under the compositor lock.
type faces struct {
	regular *opentype.Font
	mono    *opentype.Font
	cache   map[faceKey]font.Face
}

type faceKey struct {
	mono bool
	size float64
}

func newFaces() (*faces, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	mono, err := opentype.Parse(gomonobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse mono font: %w", err)
	}
	return &faces{regular: regular, mono: mono, cache: make(map[faceKey]font.Face)}, nil
}

func (f *faces) face(size float64, mono bool) (font.Face, error) {
	if size <= 0 {
		size = DefaultTextSize
	}
	// Quarter-point steps keep the cache bounded.
	size = math.Round(size*4) / 4
	key := faceKey{mono: mono, size: size}
	if fc, ok := f.cache[key]; ok {
		return fc, nil
	}
	src := f.regular
	if mono {
		src = f.mono
	}
	fc, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	f.cache[key] = fc
	return fc, nil
}

func (f *faces) close() {
	for _, fc := range f.cache {
		_ = fc.Close()
	}
}

// drawText draws s with its top-left at (x, y). When w > 0 the text is
// aligned within [x, x+w].
func drawText(dst *image.RGBA, fc font.Face, s string, x, y, w int, align string, col color.RGBA) {
	adv := font.MeasureString(fc, s).Ceil()
	switch align {
	case "right":
		if w > 0 {
			x += w - adv
		}
	case "center":
		if w > 0 {
			x += (w - adv) / 2
		}
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: fc,
		Dot:  fixed.P(x, y+fc.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}
