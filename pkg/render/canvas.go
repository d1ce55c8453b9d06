// Package render composites themes into LCD frames.
package render

import (
	"bytes"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"

	"github.com/urmzd/ht32-panel/pkg/lcd"
	"github.com/zeebo/blake3"
)

// Canvas is one native-orientation frame in RGB565.
type Canvas struct {
	Width  int
	Height int
	Pix    []uint16

	// upright is the logical image before rotation, kept for previews.
	upright *image.RGBA
}

// NewCanvas allocates a black canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

// SolidCanvas allocates a canvas filled with one colour.
func SolidCanvas(width, height int, col color.RGBA) *Canvas {
	c := NewCanvas(width, height)
	p := RGB565(col)
	for i := range c.Pix {
		c.Pix[i] = p
	}
	return c
}

// RGB565 packs an RGB888 colour.
func RGB565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

// RGB888 expands a packed colour, replicating high bits into the low ones.
func RGB888(p uint16) color.RGBA {
	r := uint8(p>>11) & 0x1F
	g := uint8(p>>5) & 0x3F
	b := uint8(p) & 0x1F
	return color.RGBA{R: r<<3 | r>>2, G: g<<2 | g>>4, B: b<<3 | b>>2, A: 0xFF}
}

// Bytes returns the frame as big-endian RGB565, the panel's byte order.
func (c *Canvas) Bytes() []byte {
	out := make([]byte, len(c.Pix)*2)
	for i, p := range c.Pix {
		out[2*i] = byte(p >> 8)
		out[2*i+1] = byte(p)
	}
	return out
}

// Reports chunks the frame into redraw reports.
func (c *Canvas) Reports() ([][]byte, error) {
	return lcd.RedrawReports(c.Bytes())
}

// Digest is a content hash of the frame.
func (c *Canvas) Digest() string {
	sum := blake3.Sum256(c.Bytes())
	return hex.EncodeToString(sum[:16])
}

// Image decodes the native frame.
func (c *Canvas) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	for i, p := range c.Pix {
		img.SetRGBA(i%c.Width, i/c.Width, RGB888(p))
	}
	return img
}

// PNG encodes the frame as the user sees it, upright.
func (c *Canvas) PNG() ([]byte, error) {
	var img image.Image = c.upright
	if c.upright == nil {
		img = c.Image()
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
