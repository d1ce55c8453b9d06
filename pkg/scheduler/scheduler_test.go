package scheduler

import (
	"context"
	"errors"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/ht32-panel/pkg/clock"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/lcd"
	"github.com/urmzd/ht32-panel/pkg/led"
	"github.com/urmzd/ht32-panel/pkg/render"
	"github.com/urmzd/ht32-panel/pkg/sensors"
	"github.com/urmzd/ht32-panel/pkg/state"
	"github.com/urmzd/ht32-panel/pkg/theme"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// reportsPerFrame is the redraw report count for a 320x170 frame.
const reportsPerFrame = 27

type fixture struct {
	store *state.Store
	sched *Scheduler
	lcd   *device.Recorder
	led   *device.Recorder
	clk   *clock.FakeClock
}

func liveSources() *sensors.Registry {
	r := sensors.NewRegistry(8)
	_ = r.Register(sensors.NewStatic("test",
		map[string]float64{
			"cpu.percent": 42, "mem.percent": 61, "mem.used": 4 << 30, "mem.total": 8 << 30,
			"net.rx_rate": 1200, "net.tx_rate": 300, "sys.uptime": 93784,
		},
		map[string]string{
			"net.interface": "eth0", "sys.hostname": "panel", "sys.time": "12:00", "sys.date": "Sun 01 Mar",
		}))
	return r
}

func newFixture(t *testing.T, configure func(*Options)) *fixture {
	t.Helper()

	reg := liveSources()
	themes, err := theme.NewStore(reg, nil)
	require.NoError(t, err)

	store, err := state.New(device.State{
		LCD: device.LcdState{Device: "auto", Orientation: device.Landscape, Theme: theme.DefaultID, RefreshMs: 1600},
		LED: device.LedState{Device: "/dev/ttyUSB0", Theme: device.LedBreathing, Intensity: 3, Speed: 3},
	}, themes)
	require.NoError(t, err)

	comp, err := render.NewCompositor(lcd.NativeWidth, lcd.NativeHeight)
	require.NoError(t, err)
	t.Cleanup(comp.Close)

	f := &fixture{
		store: store,
		lcd:   device.NewRecorder("/dev/hidraw0"),
		led:   device.NewRecorder("/dev/ttyUSB0"),
		clk:   clock.Fake(epoch),
	}

	opts := Options{
		Store:      store,
		Themes:     themes,
		Sensors:    reg,
		Compositor: comp,
		Clock:      f.clk,
		Poll:       500 * time.Millisecond,
		Heartbeat:  60 * time.Second,
		LCD:        f.lcd,
		LCDPath:    "auto",
		LED:        f.led,
		LEDPath:    "/dev/ttyUSB0",
	}
	if configure != nil {
		configure(&opts)
	}

	f.sched, err = New(opts)
	require.NoError(t, err)
	t.Cleanup(f.sched.Close)
	return f
}

// tickFor drives the scheduler in 100ms steps from epoch through d.
func (f *fixture) tickFor(ctx context.Context, d time.Duration) {
	for at := time.Duration(0); at <= d; at += 100 * time.Millisecond {
		f.sched.Tick(ctx, epoch.Add(at))
	}
}

func TestFiveSecondsOfDefaults(t *testing.T) {
	f := newFixture(t, nil)
	f.tickFor(context.Background(), 5*time.Second)

	st := f.sched.Stats()
	assert.Equal(t, uint64(10), st.Samples)
	assert.Equal(t, uint64(3), st.Frames)
	assert.Equal(t, uint64(1), st.PendingSamples)
	assert.Equal(t, uint64(0), st.Heartbeats)
	assert.Equal(t, uint64(25), st.LedTicks)
	assert.Equal(t, uint64(1), st.LedWrites)

	assert.Len(t, f.lcd.Frames(), 3*reportsPerFrame)

	want, err := led.Packet(device.LedBreathing, 3, 3)
	require.NoError(t, err)
	require.Len(t, f.led.Frames(), 1)
	assert.Equal(t, want[:], f.led.Frames()[0])

	frame, ok := f.sched.LedFrame()
	require.True(t, ok)
	assert.Equal(t, uint64(25), frame.Tick)
	assert.Equal(t, device.LedBreathing, frame.Theme)

	snap := f.store.Snapshot()
	assert.True(t, snap.LCD.Connected)
	assert.True(t, snap.LED.Connected)
	assert.True(t, snap.LastHeartbeat.IsZero())
}

func TestHeartbeat(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Heartbeat = 2 * time.Second })
	f.tickFor(context.Background(), 5*time.Second)

	assert.Equal(t, uint64(2), f.sched.Stats().Heartbeats)
	assert.Equal(t, epoch.Add(4*time.Second), f.store.Snapshot().LastHeartbeat)

	var beats int
	for _, r := range f.lcd.Frames() {
		if r[2] == lcd.CmdConfig && r[3] == lcd.SubSetTime {
			beats++
		}
	}
	assert.Equal(t, 2, beats)
}

func TestMissedDeadlinesCollapse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.sched.Tick(ctx, epoch)
	f.sched.Tick(ctx, epoch.Add(5*time.Second))

	st := f.sched.Stats()
	assert.Equal(t, uint64(1), st.Samples)
	assert.Equal(t, uint64(1), st.Frames)
	assert.Equal(t, uint64(25), st.LedTicks, "LED ticks are stepped, not collapsed")
}

func TestRun(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()

	f.clk.WaitForTimers(1)
	for range 50 {
		f.clk.Advance(100 * time.Millisecond)
		f.clk.WaitForTimers(1)
	}
	cancel()
	require.NoError(t, <-done)

	st := f.sched.Stats()
	assert.Equal(t, uint64(3), st.Frames)
	assert.Equal(t, uint64(10), st.Samples)
	assert.Equal(t, uint64(25), st.LedTicks)

	assert.True(t, f.lcd.Closed(), "handles are closed before Run returns")
	assert.True(t, f.led.Closed())
}

func TestDisconnectWithinOneTick(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.sched.Tick(ctx, epoch)
	f.lcd.Fail(errors.New("broken pipe"))
	f.sched.Tick(ctx, epoch.Add(1600*time.Millisecond))

	assert.False(t, f.store.Snapshot().LCD.Connected)
	assert.True(t, f.lcd.Closed())
	assert.Empty(t, f.lcd.Frames(), "in-flight frame is abandoned")

	st := f.sched.Stats()
	assert.Equal(t, uint64(1), st.Disconnects)
	assert.Equal(t, uint64(0), st.Frames)
	assert.Equal(t, uint64(1), st.Renders, "preview keeps rendering while disconnected")
	assert.NotNil(t, f.sched.Screen().Load())
}

func TestReconnectBackoff(t *testing.T) {
	var attempts atomic.Int32
	replacement := device.NewRecorder("/dev/hidraw1")

	f := newFixture(t, func(o *Options) {
		o.OpenLCD = func(ctx context.Context, path string) (device.Handle, error) {
			if attempts.Add(1) < 4 {
				return nil, device.ErrNotFound
			}
			return replacement, nil
		}
	})
	ctx := context.Background()

	f.sched.Tick(ctx, epoch)
	f.lcd.Fail(errors.New("broken pipe"))
	f.sched.Tick(ctx, epoch.Add(1600*time.Millisecond))
	require.False(t, f.store.Snapshot().LCD.Connected)

	// The scheduler itself never arms a clock timer under Tick, so every
	// pending timer belongs to the watcher.
	delays := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second}
	for i, d := range delays {
		f.clk.WaitForTimers(1)
		f.clk.Advance(d - time.Millisecond)
		assert.Equal(t, 1, f.clk.PendingCount(), "attempt %d fired early", i+1)
		f.clk.Advance(time.Millisecond)
		if i < len(delays)-1 {
			require.Eventually(t, func() bool { return attempts.Load() == int32(i+1) }, time.Second, time.Millisecond)
		}
	}

	require.Eventually(t, func() bool {
		f.sched.Tick(ctx, f.clk.Now())
		return f.store.Snapshot().LCD.Connected
	}, time.Second, time.Millisecond)

	st := f.sched.Stats()
	assert.Equal(t, uint64(4), st.Retries)
	assert.Equal(t, uint64(1), st.Reconnects)
	assert.Len(t, replacement.Frames(), reportsPerFrame, "reconnect forces a refresh")
}

func TestBackoff(t *testing.T) {
	b := DefaultBackoff()

	var prev time.Duration
	for i := 0; i < 6; i++ {
		d := b.Next()
		assert.Greater(t, d, prev)
		assert.LessOrEqual(t, d, b.Max)
		prev = d
	}
	assert.Equal(t, 16*time.Second, prev)
	assert.Equal(t, 30*time.Second, b.Next())
	assert.Equal(t, 30*time.Second, b.Next(), "stays at the cap")

	b.Reset()
	assert.Equal(t, 500*time.Millisecond, b.Next())
}

func TestAbsentDeviceStartsDisconnected(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.LCD = nil
		o.OpenLCD = func(ctx context.Context, path string) (device.Handle, error) {
			return nil, device.ErrNotFound
		}
	})
	f.tickFor(context.Background(), 2*time.Second)

	assert.False(t, f.store.Snapshot().LCD.Connected)
	assert.True(t, f.store.Snapshot().LED.Connected)

	st := f.sched.Stats()
	assert.Equal(t, uint64(0), st.Frames)
	assert.Equal(t, uint64(1), st.Renders)

	// Close must stop the sleeping watcher.
	f.sched.Close()
}

func TestLedOffWrittenOnNextTick(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sub := f.store.Subscribe(4)
	defer sub.Close()

	f.sched.Tick(ctx, epoch)
	_, err := f.store.LedOff(ctx)
	require.NoError(t, err)

	var last state.Change
	for len(sub.C()) > 0 {
		last = <-sub.C()
	}
	assert.Equal(t, device.LedOff, last.State.LED.Theme)

	f.sched.Tick(ctx, epoch.Add(10*time.Millisecond))

	frames := f.led.Frames()
	require.Len(t, frames, 2)
	off := led.OffPacket()
	assert.Equal(t, off[:], frames[1])
}

func TestSetLedTwiceWritesOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.sched.Tick(ctx, epoch)
	for range 2 {
		_, err := f.store.SetLed(ctx, device.LedRainbow, 5, 1)
		require.NoError(t, err)
		f.sched.Tick(ctx, epoch.Add(10*time.Millisecond))
	}

	assert.Equal(t, uint64(2), f.sched.Stats().LedWrites)
	want, err := led.Packet(device.LedRainbow, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, want[:], f.led.Frames()[1])
}

func TestOrientationChangeForcesRefresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.sched.Tick(ctx, epoch)
	_, err := f.store.SetLcdOrientation(ctx, "portrait")
	require.NoError(t, err)
	f.sched.Tick(ctx, epoch.Add(10*time.Millisecond))

	assert.Equal(t, uint64(1), f.sched.Stats().Frames)
	c := f.sched.Screen().Load()
	require.NotNil(t, c)
	assert.Equal(t, lcd.NativeWidth, c.Width)
	assert.Equal(t, lcd.NativeHeight, c.Height)
}

func TestRefreshIntervalChange(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.sched.Tick(ctx, epoch)
	_, err := f.store.SetRefreshInterval(ctx, 2500)
	require.NoError(t, err)

	f.tickFor(ctx, 5*time.Second)
	assert.Equal(t, uint64(2), f.sched.Stats().Frames)
}

func TestClearDisplay(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()
	f.clk.WaitForTimers(1)

	cctx, ccancel := context.WithTimeout(ctx, 5*time.Second)
	defer ccancel()
	require.NoError(t, f.sched.Clear(cctx, color.RGBA{R: 0xFF, A: 0xFF}))

	frames := f.lcd.Frames()
	require.Len(t, frames, reportsPerFrame)
	assert.Equal(t, []byte{0xF8, 0x00, 0xF8, 0x00}, frames[0][9:13])
	c := f.sched.Screen().Load()
	require.NotNil(t, c)
	assert.Equal(t, uint16(0xF800), c.Pix[len(c.Pix)-1])

	cancel()
	require.NoError(t, <-done)

	// Nothing is driving the scheduler any more.
	tctx, tcancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer tcancel()
	assert.ErrorIs(t, f.sched.Clear(tctx, color.RGBA{A: 0xFF}), context.DeadlineExceeded)
}

func TestClearDisplayWithoutLcd(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.LCD = nil })
	f.sched.Tick(context.Background(), epoch)

	err := f.sched.clearFrame(context.Background(), color.RGBA{B: 0xFF, A: 0xFF})
	assert.ErrorIs(t, err, device.ErrNotConnected)
	require.NotNil(t, f.sched.Screen().Load(), "preview still shows the cleared frame")
	assert.Equal(t, uint16(0x001F), f.sched.Screen().Load().Pix[0])
}

type selection struct {
	iface string
	pref  device.IPDisplay
}

type recordingSelector struct{ calls []selection }

func (r *recordingSelector) Configure(iface string, pref device.IPDisplay) {
	r.calls = append(r.calls, selection{iface, pref})
}

func TestNetworkSelectionFollowsStore(t *testing.T) {
	sel := &recordingSelector{}
	f := newFixture(t, func(o *Options) { o.Network = sel })
	ctx := context.Background()

	f.sched.Tick(ctx, epoch)
	require.Equal(t, []selection{{device.AutoDetect, device.IPv6GUA}}, sel.calls)

	_, err := f.store.SetNetworkInterface(ctx, "wlan0")
	require.NoError(t, err)
	_, err = f.store.SetIPDisplay(ctx, "ipv4")
	require.NoError(t, err)
	f.sched.Tick(ctx, epoch.Add(10*time.Millisecond))

	assert.Equal(t, selection{"wlan0", device.IPv4}, sel.calls[len(sel.calls)-1])
	assert.Equal(t, uint64(1), f.sched.Stats().Frames, "selection change redraws at once")
	assert.Equal(t, uint64(1), f.sched.Stats().Samples, "and resamples")
}
