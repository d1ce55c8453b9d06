package device

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrientation(t *testing.T) {
	tests := []struct {
		in   string
		want Orientation
	}{
		{"landscape", Landscape},
		{"Portrait", Portrait},
		{"landscape_upside_down", LandscapeUpsideDown},
		{"inverted-portrait", PortraitUpsideDown},
		{" portrait-upside-down ", PortraitUpsideDown},
	}
	for _, tt := range tests {
		got, err := ParseOrientation(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseOrientation("sideways")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseIPDisplay(t *testing.T) {
	got, err := ParseIPDisplay("IPv6_ULA")
	require.NoError(t, err)
	assert.Equal(t, IPv6ULA, got)

	got, err = ParseIPDisplay("ipv4")
	require.NoError(t, err)
	assert.Equal(t, IPv4, got)

	for _, bad := range []string{"", "ipv6", "gua"} {
		_, err := ParseIPDisplay(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestOrientationFlags(t *testing.T) {
	assert.False(t, Landscape.Portrait())
	assert.True(t, PortraitUpsideDown.Portrait())
	assert.True(t, PortraitUpsideDown.UpsideDown())
	assert.False(t, Portrait.UpsideDown())
}

func TestParseLedTheme(t *testing.T) {
	got, err := ParseLedTheme("breathing")
	require.NoError(t, err)
	assert.Equal(t, LedBreathing, got)

	got, err = ParseLedTheme("4")
	require.NoError(t, err)
	assert.Equal(t, LedOff, got)

	for _, bad := range []string{"0", "6", "strobe", ""} {
		_, err := ParseLedTheme(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestLedThemeText(t *testing.T) {
	b, err := LedAuto.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "auto", string(b))

	var th LedTheme
	require.NoError(t, th.UnmarshalText([]byte("colors")))
	assert.Equal(t, LedColors, th)

	_, err = LedTheme(9).MarshalText()
	assert.Error(t, err)
}

func TestLedThemeJSON(t *testing.T) {
	var req struct {
		Theme LedTheme `json:"theme"`
	}
	for _, body := range []string{`{"theme":3}`, `{"theme":"3"}`, `{"theme":"colors"}`} {
		require.NoError(t, json.Unmarshal([]byte(body), &req), body)
		assert.Equal(t, LedColors, req.Theme, body)
	}
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"theme":7}`), &req), ErrValidation)

	out, err := json.Marshal(LedState{Theme: LedOff, Intensity: 1, Speed: 1})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"theme":"off"`)
}

func TestValidateLed(t *testing.T) {
	assert.NoError(t, ValidateLed(LedRainbow, 1, 5))
	assert.ErrorIs(t, ValidateLed(LedRainbow, 0, 3), ErrValidation)
	assert.ErrorIs(t, ValidateLed(LedRainbow, 3, 6), ErrValidation)
	assert.ErrorIs(t, ValidateLed(LedTheme(0), 3, 3), ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(ValidateLed(LedRainbow, 3, 9), &verr))
	assert.Equal(t, "led speed", verr.Field)
}

func TestWriteWithTimeout(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, WriteWithTimeout(ctx, time.Second, func() error { return nil }))

	err := WriteWithTimeout(ctx, time.Second, func() error { return errors.New("broken pipe") })
	assert.ErrorIs(t, err, ErrIO)

	block := make(chan struct{})
	defer close(block)
	err = WriteWithTimeout(ctx, 10*time.Millisecond, func() error { <-block; return nil })
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrIO)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder("test")
	ctx := context.Background()

	require.NoError(t, r.WriteFrame(ctx, []byte{1, 2}))
	r.Fail(ErrIO)
	assert.ErrorIs(t, r.WriteFrame(ctx, []byte{3}), ErrIO)
	r.Fail(nil)
	require.NoError(t, r.WriteFrame(ctx, []byte{4}))

	assert.Equal(t, [][]byte{{1, 2}, {4}}, r.Frames())

	require.NoError(t, r.Close())
	assert.True(t, r.Closed())
	assert.ErrorIs(t, r.WriteFrame(ctx, []byte{5}), ErrNotConnected)
}
