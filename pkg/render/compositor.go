package render

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/sensors"
	"github.com/urmzd/ht32-panel/pkg/theme"
)

// Compositor renders themes onto a fixed-size canvas.
type Compositor struct {
	width  int
	height int

	mu    sync.Mutex
	faces *faces
}

// NewCompositor creates a compositor for a width×height panel.
func NewCompositor(width, height int) (*Compositor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas %dx%d: %w", width, height, device.ErrValidation)
	}
	f, err := newFaces()
	if err != nil {
		return nil, err
	}
	return &Compositor{width: width, height: height, faces: f}, nil
}

// Size returns the native canvas dimensions.
func (c *Compositor) Size() (int, int) {
	return c.width, c.height
}

// Render draws th against data. The result depends only on its arguments:
// the same inputs always produce the same pixels. A widget that fails to
// draw is skipped and reported in the returned error alongside a usable
// canvas.
func (c *Compositor) Render(th *theme.Theme, data sensors.Data, o device.Orientation) (*Canvas, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lw, lh := logicalSize(c.width, c.height, o)
	img := image.NewRGBA(image.Rect(0, 0, lw, lh))
	fill(img, img.Bounds(), th.Palette.Background)

	s := &scene{img: img, palette: th.Palette, data: data, faces: c.faces}

	var firstErr error
	for i, w := range th.Widgets {
		fn, ok := widgetTable[w.Type]
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("widget %d: no renderer for %q", i, w.Type)
			}
			continue
		}
		if err := fn(s, w); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("widget %d (%s): %w", i, w.Type, err)
		}
	}

	canvas := toNative(img, c.width, c.height, o)
	canvas.upright = img
	return canvas, firstErr
}

// Close releases cached font faces.
func (c *Compositor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faces.close()
}

// Screen holds the most recently pushed frame for preview surfaces.
type Screen struct {
	canvas atomic.Pointer[Canvas]
}

// Store publishes c.
func (s *Screen) Store(c *Canvas) {
	s.canvas.Store(c)
}

// Load returns the latest frame, or nil before the first render.
func (s *Screen) Load() *Canvas {
	return s.canvas.Load()
}
