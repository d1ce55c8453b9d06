package animator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/led"
)

func ledState(theme device.LedTheme, intensity, speed int) device.LedState {
	return device.LedState{Theme: theme, Intensity: intensity, Speed: speed}
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, 600*time.Millisecond, TickInterval(1))
	assert.Equal(t, 200*time.Millisecond, TickInterval(3))
	assert.Equal(t, 120*time.Millisecond, TickInterval(5))

	for s := 1; s < 5; s++ {
		assert.Greater(t, TickInterval(s), TickInterval(s+1), "speed %d", s)
	}
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(ledState(device.LedBreathing, 0, 3))
	assert.ErrorIs(t, err, device.ErrValidation)
}

func TestSameSettingsSameFrames(t *testing.T) {
	run := func() []Frame {
		a, err := New(ledState(device.LedBreathing, 3, 3))
		require.NoError(t, err)
		// Re-applying the identical setting must not disturb the sequence.
		require.NoError(t, a.Configure(ledState(device.LedBreathing, 3, 3)))
		var out []Frame
		for i := 0; i < 100; i++ {
			out = append(out, a.Step(1, Input{}))
			if i == 50 {
				require.NoError(t, a.Configure(ledState(device.LedBreathing, 3, 3)))
			}
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestModeSwitchResetsPhase(t *testing.T) {
	a, err := New(ledState(device.LedRainbow, 5, 5))
	require.NoError(t, err)
	a.Step(10, Input{})
	assert.Equal(t, uint64(10), a.Ticks())

	require.NoError(t, a.Configure(ledState(device.LedRainbow, 2, 1)))
	assert.Equal(t, uint64(10), a.Ticks(), "intensity/speed keep phase")
	assert.Equal(t, 600*time.Millisecond, a.Interval())

	require.NoError(t, a.Configure(ledState(device.LedColors, 2, 1)))
	assert.Equal(t, uint64(0), a.Ticks())
}

func TestBreathingCycle(t *testing.T) {
	a, err := New(ledState(device.LedBreathing, 5, 3))
	require.NoError(t, err)

	f := a.Step(0, Input{})
	assert.Equal(t, 0.0, f.Level)

	f = a.Step(32, Input{})
	assert.InDelta(t, 0.5, f.Phase, 1e-9)
	assert.InDelta(t, 1.0, f.Level, 1e-6)

	f = a.Step(32, Input{})
	assert.InDelta(t, 0.0, f.Phase, 1e-9)
	assert.InDelta(t, 0.0, f.Level, 1e-6)
}

func TestIntensityScalesLevel(t *testing.T) {
	dim, err := New(ledState(device.LedRainbow, 1, 3))
	require.NoError(t, err)
	bright, err := New(ledState(device.LedRainbow, 5, 3))
	require.NoError(t, err)

	assert.InDelta(t, 0.2, dim.Step(1, Input{}).Level, 1e-9)
	assert.InDelta(t, 1.0, bright.Step(1, Input{}).Level, 1e-9)
}

func TestOffFrame(t *testing.T) {
	a, err := New(ledState(device.LedOff, 4, 4))
	require.NoError(t, err)
	f := a.Step(3, Input{})
	assert.Equal(t, 0.0, f.Level)
	assert.Equal(t, led.OffPacket(), f.Packet)
}

func TestAutoFollowsLoad(t *testing.T) {
	a, err := New(ledState(device.LedAuto, 5, 3))
	require.NoError(t, err)

	idle := a.Step(1, Input{Load: 0})
	busy := a.Step(1, Input{Load: 100})
	assert.Equal(t, uint8(0), idle.Color.R)
	assert.Equal(t, uint8(255), idle.Color.G)
	assert.Equal(t, uint8(255), busy.Color.R)
	assert.Equal(t, uint8(0), busy.Color.G)
}

func TestPacketMatchesProtocol(t *testing.T) {
	a, err := New(ledState(device.LedColors, 2, 4))
	require.NoError(t, err)
	want, err := led.Packet(device.LedColors, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, want, a.Packet())
	assert.Equal(t, want, a.Step(7, Input{}).Packet)
}
