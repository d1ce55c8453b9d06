package render

import (
	"image"

	"github.com/urmzd/ht32-panel/pkg/device"
)

// logicalSize returns the canvas a theme is drawn on for an orientation.
func logicalSize(width, height int, o device.Orientation) (int, int) {
	if o.Portrait() {
		return height, width
	}
	return width, height
}

// toNative packs the logical image into a width×height RGB565 frame.
// Portrait images are rotated 90° clockwise; upside-down variants are
// then turned 180° by reversing the buffer.
func toNative(src *image.RGBA, width, height int, o device.Orientation) *Canvas {
	c := NewCanvas(width, height)
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()

	for y := 0; y < sh; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < sw; x++ {
			i := x * 4
			p := uint16(row[i]>>3)<<11 | uint16(row[i+1]>>2)<<5 | uint16(row[i+2]>>3)

			dx, dy := x, y
			if o.Portrait() {
				dx, dy = sh-1-y, x
			}
			c.Pix[dy*width+dx] = p
		}
	}

	if o.UpsideDown() {
		for i, j := 0, len(c.Pix)-1; i < j; i, j = i+1, j-1 {
			c.Pix[i], c.Pix[j] = c.Pix[j], c.Pix[i]
		}
	}
	return c
}
