package render

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/lcd"
	"github.com/urmzd/ht32-panel/pkg/sensors"
	"github.com/urmzd/ht32-panel/pkg/theme"
)

func liveData() sensors.Data {
	return sensors.Data{
		Time: time.Date(2025, 6, 1, 9, 41, 0, 0, time.UTC),
		Values: map[string]float64{
			"cpu.percent": 37.5,
			"mem.percent": 61.2,
			"net.rx_rate": 1_200_000,
			"net.tx_rate": 40_000,
		},
		Strings: map[string]string{
			"sys.hostname":  "panel-box",
			"sys.time":      "09:41",
			"sys.date":      "Sun 01 Jun",
			"sys.uptime":    "2d 3h 4m",
			"net.interface": "eth0",
			"net.rx_rate":   "1.2 MB/s",
			"net.tx_rate":   "40.0 KB/s",
		},
		Series: map[string][]float64{
			"cpu.percent": {10, 20, 30, 37.5},
		},
	}
}

type allKeys struct{}

func (allKeys) Has(string) bool { return true }

func builtinTheme(t *testing.T, id string) *theme.Theme {
	t.Helper()
	s, err := theme.NewStore(allKeys{}, nil)
	require.NoError(t, err)
	th, ok := s.Get(id)
	require.True(t, ok)
	return th
}

func newCompositor(t *testing.T) *Compositor {
	t.Helper()
	c, err := NewCompositor(lcd.NativeWidth, lcd.NativeHeight)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestRender_Deterministic(t *testing.T) {
	c := newCompositor(t)
	for _, id := range []string{"default", "minimal", "clock", "network"} {
		th := builtinTheme(t, id)
		for _, o := range device.Orientations {
			a, err := c.Render(th, liveData(), o)
			require.NoError(t, err, "%s/%s", id, o)
			b, err := c.Render(th, liveData(), o)
			require.NoError(t, err)

			assert.Equal(t, a.Pix, b.Pix, "%s/%s not byte-identical", id, o)
			assert.Equal(t, a.Bytes(), b.Bytes())
			assert.Equal(t, a.Digest(), b.Digest())
		}
	}
}

func TestRender_DataChangesFrame(t *testing.T) {
	c := newCompositor(t)
	th := builtinTheme(t, "default")

	a, err := c.Render(th, liveData(), device.Landscape)
	require.NoError(t, err)

	d := liveData()
	d.Values["cpu.percent"] = 99
	b, err := c.Render(th, d, device.Landscape)
	require.NoError(t, err)

	assert.NotEqual(t, a.Pix, b.Pix)
	assert.NotEqual(t, a.Digest(), b.Digest())
}

func TestRender_NativeSizeInEveryOrientation(t *testing.T) {
	c := newCompositor(t)
	th := builtinTheme(t, "default")
	for _, o := range device.Orientations {
		cv, err := c.Render(th, liveData(), o)
		require.NoError(t, err)
		assert.Equal(t, lcd.NativeWidth, cv.Width)
		assert.Equal(t, lcd.NativeHeight, cv.Height)
		assert.Len(t, cv.Pix, lcd.NativeWidth*lcd.NativeHeight)

		reports, err := cv.Reports()
		require.NoError(t, err)
		assert.Len(t, reports, 27)
	}
}

func TestRender_BackgroundFillsCanvas(t *testing.T) {
	c := newCompositor(t)
	th := &theme.Theme{ID: "blank", Palette: theme.Palette{Background: color.RGBA{0xFF, 0x00, 0x00, 0xFF}}}

	cv, err := c.Render(th, sensors.Data{}, device.Landscape)
	require.NoError(t, err)
	for _, p := range cv.Pix {
		require.Equal(t, uint16(0xF800), p)
	}
}

func TestRender_Rect(t *testing.T) {
	c := newCompositor(t)
	green := color.RGBA{0x00, 0xFF, 0x00, 0xFF}
	th := &theme.Theme{
		ID:      "rect",
		Palette: theme.Palette{Secondary: green},
		Widgets: []theme.Widget{{Type: theme.WidgetRect, X: 0, Y: 0, W: 2, H: 1}},
	}

	cv, err := c.Render(th, sensors.Data{}, device.Landscape)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x07E0), cv.Pix[0])
	assert.Equal(t, uint16(0x07E0), cv.Pix[1])
	assert.Equal(t, uint16(0x0000), cv.Pix[2])
	assert.Equal(t, uint16(0x0000), cv.Pix[cv.Width])

	// Upside-down puts the rect in the bottom-right corner.
	cv, err = c.Render(th, sensors.Data{}, device.LandscapeUpsideDown)
	require.NoError(t, err)
	n := len(cv.Pix)
	assert.Equal(t, uint16(0x07E0), cv.Pix[n-1])
	assert.Equal(t, uint16(0x07E0), cv.Pix[n-2])
	assert.Equal(t, uint16(0x0000), cv.Pix[0])
}

func TestRender_PortraitRotation(t *testing.T) {
	c := newCompositor(t)
	blue := color.RGBA{0x00, 0x00, 0xFF, 0xFF}
	th := &theme.Theme{
		ID:      "dot",
		Palette: theme.Palette{Secondary: blue},
		Widgets: []theme.Widget{{Type: theme.WidgetRect, X: 0, Y: 0, W: 1, H: 1}},
	}

	// Logical (0,0) of a 170x320 canvas lands at native (319, 0).
	cv, err := c.Render(th, sensors.Data{}, device.Portrait)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x001F), cv.Pix[lcd.NativeWidth-1])
	assert.Equal(t, uint16(0x0000), cv.Pix[0])
}

func TestRender_UnknownWidgetSkipped(t *testing.T) {
	c := newCompositor(t)
	th := &theme.Theme{ID: "odd", Widgets: []theme.Widget{{Type: "hologram"}}}
	cv, err := c.Render(th, sensors.Data{}, device.Landscape)
	assert.Error(t, err)
	assert.NotNil(t, cv)
}

func TestWidgetTableCoversEveryType(t *testing.T) {
	for _, typ := range theme.WidgetTypes {
		_, ok := widgetTable[typ]
		assert.True(t, ok, typ)
	}
}

func TestRGB565(t *testing.T) {
	assert.Equal(t, uint16(0xFFFF), RGB565(color.RGBA{255, 255, 255, 255}))
	assert.Equal(t, uint16(0xF800), RGB565(color.RGBA{255, 0, 0, 255}))
	assert.Equal(t, uint16(0x07E0), RGB565(color.RGBA{0, 255, 0, 255}))
	assert.Equal(t, uint16(0x001F), RGB565(color.RGBA{0, 0, 255, 255}))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, RGB888(0xFFFF))
	assert.Equal(t, []byte{0xF8, 0x00}, (&Canvas{Width: 1, Height: 1, Pix: []uint16{0xF800}}).Bytes())
}

func TestCanvasPNG(t *testing.T) {
	c := newCompositor(t)
	cv, err := c.Render(builtinTheme(t, "clock"), liveData(), device.Portrait)
	require.NoError(t, err)

	raw, err := cv.PNG()
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	// Preview is upright.
	assert.Equal(t, lcd.NativeHeight, img.Bounds().Dx())
	assert.Equal(t, lcd.NativeWidth, img.Bounds().Dy())
}

func TestScreen(t *testing.T) {
	var s Screen
	assert.Nil(t, s.Load())
	cv := NewCanvas(2, 2)
	s.Store(cv)
	assert.Same(t, cv, s.Load())
}

func TestNewCompositor_RejectsBadSize(t *testing.T) {
	_, err := NewCompositor(0, 170)
	assert.ErrorIs(t, err, device.ErrValidation)
}
