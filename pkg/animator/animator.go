// Package animator models the LED strip's animation on the host.
//
// The controller runs the animation itself once it has received a mode
// packet; the animator tracks the same phase so previews and the auto mode
// have a host-side view of what the strip shows.
package animator

import (
	"image/color"
	"math"
	"time"

	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/led"
)

// BaseTick is the tick interval at speed 1.
const BaseTick = 600 * time.Millisecond

// PhaseStep is how far one tick advances the animation cycle.
const PhaseStep = 1.0 / 64

// TickInterval returns the LED tick period for speed, shorter for faster
// speeds.
func TickInterval(speed int) time.Duration {
	if speed < 1 {
		speed = 1
	}
	if speed > 5 {
		speed = 5
	}
	return BaseTick / time.Duration(speed)
}

// palette cycled by the colors mode.
var palette = []color.RGBA{
	{0xFF, 0x00, 0x00, 0xFF},
	{0xFF, 0x80, 0x00, 0xFF},
	{0xFF, 0xFF, 0x00, 0xFF},
	{0x00, 0xFF, 0x00, 0xFF},
	{0x00, 0xFF, 0xFF, 0xFF},
	{0x00, 0x00, 0xFF, 0xFF},
	{0xFF, 0x00, 0xFF, 0xFF},
}

// Input is host data feeding the auto mode.
type Input struct {
	// Load is system load in percent.
	Load float64
}

// Frame is the result of one tick.
type Frame struct {
	Tick   uint64               `json:"tick"`
	Packet [led.PacketSize]byte `json:"packet"`
	Theme  device.LedTheme      `json:"theme"`
	Phase  float64              `json:"phase"`
	Level  float64              `json:"level"`
	Color  color.RGBA           `json:"color"`
}

// Animator is the state machine. It is not safe for concurrent use.
type Animator struct {
	theme     device.LedTheme
	intensity int
	speed     int
	packet    [led.PacketSize]byte
	ticks     uint64
}

// New creates an animator for st.
func New(st device.LedState) (*Animator, error) {
	a := &Animator{}
	if err := a.Configure(st); err != nil {
		return nil, err
	}
	return a, nil
}

// Configure applies a new setting. Switching mode resets the phase;
// intensity and speed changes keep it.
func (a *Animator) Configure(st device.LedState) error {
	p, err := led.Packet(st.Theme, st.Intensity, st.Speed)
	if err != nil {
		return err
	}
	if st.Theme != a.theme {
		a.ticks = 0
	}
	a.theme, a.intensity, a.speed, a.packet = st.Theme, st.Intensity, st.Speed, p
	return nil
}

// Interval is the tick period for the current speed.
func (a *Animator) Interval() time.Duration {
	return TickInterval(a.speed)
}

// Ticks returns how many ticks the current mode has run.
func (a *Animator) Ticks() uint64 {
	return a.ticks
}

// Packet is the control packet for the current setting.
func (a *Animator) Packet() [led.PacketSize]byte {
	return a.packet
}

// Step advances n ticks and returns the resulting frame.
func (a *Animator) Step(n int, in Input) Frame {
	if n > 0 {
		a.ticks += uint64(n)
	}
	return a.frame(in)
}

func (a *Animator) frame(in Input) Frame {
	phase := math.Mod(float64(a.ticks)*PhaseStep, 1)
	scale := float64(a.intensity) / 5

	f := Frame{Tick: a.ticks, Packet: a.packet, Theme: a.theme, Phase: phase}
	switch a.theme {
	case device.LedRainbow:
		f.Level = scale
		f.Color = hue(phase)
	case device.LedBreathing:
		f.Level = scale * (1 - math.Cos(2*math.Pi*phase)) / 2
		f.Color = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	case device.LedColors:
		f.Level = scale
		f.Color = palette[int(phase*float64(len(palette)))%len(palette)]
	case device.LedAuto:
		load := math.Max(0, math.Min(100, in.Load)) / 100
		f.Level = scale
		f.Color = color.RGBA{uint8(255 * load), uint8(255 * (1 - load)), 0, 0xFF}
	case device.LedOff:
		f.Color = color.RGBA{A: 0xFF}
	}
	f.Level = math.Round(f.Level*1e6) / 1e6
	return f
}

// hue converts a phase in [0,1) to a fully saturated colour.
func hue(h float64) color.RGBA {
	h6 := h * 6
	x := uint8(255 * (1 - math.Abs(math.Mod(h6, 2)-1)))
	switch int(h6) % 6 {
	case 0:
		return color.RGBA{255, x, 0, 255}
	case 1:
		return color.RGBA{x, 255, 0, 255}
	case 2:
		return color.RGBA{0, 255, x, 255}
	case 3:
		return color.RGBA{0, x, 255, 255}
	case 4:
		return color.RGBA{x, 0, 255, 255}
	default:
		return color.RGBA{255, 0, x, 255}
	}
}
