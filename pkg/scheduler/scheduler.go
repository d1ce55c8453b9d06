// Package scheduler owns both device handles and drives the panel.
//
// Three LCD cadences (poll, refresh, heartbeat) and the LED animation tick
// all run off one wake-up timer. Reconnects happen on separate watcher
// goroutines that hand a freshly opened handle back over a channel, so
// backoff sleeps never hold up rendering.
package scheduler

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/ht32-panel/pkg/animator"
	"github.com/urmzd/ht32-panel/pkg/clock"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/lcd"
	"github.com/urmzd/ht32-panel/pkg/led"
	"github.com/urmzd/ht32-panel/pkg/render"
	"github.com/urmzd/ht32-panel/pkg/sensors"
	"github.com/urmzd/ht32-panel/pkg/state"
	"github.com/urmzd/ht32-panel/pkg/theme"
)

// failureLogEvery limits how often a failure streak is repeated in the log.
const failureLogEvery = time.Minute

// Themes resolves the active LCD theme.
type Themes interface {
	Get(id string) (*theme.Theme, bool)
	Default() *theme.Theme
}

// Sampler produces live data for themes.
type Sampler interface {
	Sample(ctx context.Context, now time.Time) (sensors.Data, error)
}

// NetworkSelector is told which interface and address the network
// widgets should show.
type NetworkSelector interface {
	Configure(iface string, pref device.IPDisplay)
}

// Options wire a Scheduler.
type Options struct {
	Store      *state.Store
	Themes     Themes
	Sensors    Sampler
	Compositor *render.Compositor
	Screen     *render.Screen
	Clock      clock.Clock

	Poll      time.Duration
	Heartbeat time.Duration

	// LCD and LED are the handles opened at startup; nil means absent.
	LCD     device.Handle
	LCDPath string
	OpenLCD device.Opener

	LED     device.Handle
	LEDPath string
	OpenLED device.Opener

	Backoff Backoff

	// OnSample is called with every poll sample.
	OnSample func(sensors.Data)

	// Network follows the store's interface and address selection.
	Network NetworkSelector
}

// Stats counts what the scheduler has done.
type Stats struct {
	Samples        uint64 `json:"samples"`
	Renders        uint64 `json:"renders"`
	Frames         uint64 `json:"frames"`
	Heartbeats     uint64 `json:"heartbeats"`
	PendingSamples uint64 `json:"pending_samples"`
	LedTicks       uint64 `json:"led_ticks"`
	LedWrites      uint64 `json:"led_writes"`
	Disconnects    uint64 `json:"disconnects"`
	Reconnects     uint64 `json:"reconnects"`
	Retries        uint64 `json:"retries"`
}

type peripheral struct {
	name    string
	path    string
	open    device.Opener
	handle  device.Handle
	connect func(ctx context.Context, connected bool) (device.State, error)

	watching bool
	cancel   context.CancelFunc
}

type attach struct {
	p *peripheral
	h device.Handle
}

type lcdView struct {
	orientation device.Orientation
	theme       string
	iface       string
	ipDisplay   device.IPDisplay
}

type clearRequest struct {
	color color.RGBA
	done  chan error
}

// Scheduler is the only component that performs device I/O.
type Scheduler struct {
	store      *state.Store
	themes     Themes
	sensors    Sampler
	compositor *render.Compositor
	screen     *render.Screen
	clock      clock.Clock
	onSample   func(sensors.Data)
	network    NetworkSelector
	backoff    Backoff

	poll      time.Duration
	heartbeat time.Duration
	refresh   time.Duration

	lcd *peripheral
	led *peripheral

	attached  chan attach
	clears    chan clearRequest
	watchers  sync.WaitGroup
	closeOnce sync.Once

	started       bool
	nextPoll      time.Time
	nextRefresh   time.Time
	nextHeartbeat time.Time
	nextLed       time.Time

	data     sensors.Data
	view     lcdView
	lcdDirty bool

	anim     *animator.Animator
	ledCfg   device.LedState
	written  [led.PacketSize]byte
	ledDirty bool

	pollFails   failureLog
	renderFails failureLog
	beatFails   failureLog

	statsMu sync.Mutex
	stats   Stats

	lastLed atomic.Pointer[animator.Frame]
}

// New creates a scheduler. Nothing runs until Run or Tick is called.
func New(opts Options) (*Scheduler, error) {
	if opts.Store == nil || opts.Themes == nil || opts.Sensors == nil || opts.Compositor == nil {
		return nil, fmt.Errorf("scheduler: store, themes, sensors and compositor are required")
	}
	if opts.Poll <= 0 || opts.Heartbeat <= 0 {
		return nil, device.Invalid("interval", "poll and heartbeat must be positive")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Screen == nil {
		opts.Screen = &render.Screen{}
	}
	if opts.Backoff.Initial <= 0 {
		opts.Backoff = DefaultBackoff()
	}

	snap := opts.Store.Snapshot()
	anim, err := animator.New(snap.LED)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		store:      opts.Store,
		themes:     opts.Themes,
		sensors:    opts.Sensors,
		compositor: opts.Compositor,
		screen:     opts.Screen,
		clock:      opts.Clock,
		onSample:   opts.OnSample,
		network:    opts.Network,
		backoff:    opts.Backoff,
		poll:       opts.Poll,
		heartbeat:  opts.Heartbeat,
		refresh:    time.Duration(snap.LCD.RefreshMs) * time.Millisecond,
		lcd: &peripheral{
			name:    "lcd",
			path:    opts.LCDPath,
			open:    opts.OpenLCD,
			handle:  opts.LCD,
			connect: opts.Store.SetLcdConnected,
		},
		led: &peripheral{
			name:    "led",
			path:    opts.LEDPath,
			open:    opts.OpenLED,
			handle:  opts.LED,
			connect: opts.Store.SetLedConnected,
		},
		attached: make(chan attach, 2),
		clears:   make(chan clearRequest),
		view:     viewOf(snap.LCD),
		anim:     anim,
		ledCfg:   snap.LED,
		ledDirty: true,
	}, nil
}

func viewOf(l device.LcdState) lcdView {
	return lcdView{orientation: l.Orientation, theme: l.Theme, iface: l.NetworkInterface, ipDisplay: l.IPDisplay}
}

// Run drives the scheduler until ctx is cancelled, then releases both
// handles before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	sub := s.store.Subscribe(state.DefaultBuffer)
	defer sub.Close()
	defer s.Close()

	log.Info().
		Dur("poll", s.poll).
		Dur("refresh", s.refresh).
		Dur("heartbeat", s.heartbeat).
		Msg("Scheduler started")

	s.Tick(ctx, s.clock.Now())
	for {
		timer := s.clock.NewTimer(s.untilNext(s.clock.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Scheduler stopping")
			return nil
		case now := <-timer.C():
			s.Tick(ctx, now)
		case a := <-s.attached:
			timer.Stop()
			s.adopt(ctx, a)
			s.Tick(ctx, s.clock.Now())
		case <-sub.C():
			timer.Stop()
			s.Tick(ctx, s.clock.Now())
		case req := <-s.clears:
			timer.Stop()
			req.done <- s.clearFrame(ctx, req.color)
		}
	}
}

// Tick performs everything due at now. Missed LCD deadlines collapse into
// one run; missed LED ticks are all stepped.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	if !s.started {
		s.start(ctx, now)
	}
	s.drain(ctx)

	snap := s.store.Snapshot()
	s.apply(snap, now)

	if !now.Before(s.nextPoll) {
		s.sample(ctx, now)
		s.nextPoll = following(s.nextPoll, now, s.poll)
	}

	refreshDue := !now.Before(s.nextRefresh)
	if refreshDue || s.lcdDirty {
		if s.data.Time.IsZero() {
			s.sample(ctx, now)
		}
		s.pushFrame(ctx, now)
		s.lcdDirty = false
		if refreshDue {
			s.nextRefresh = following(s.nextRefresh, now, s.refresh)
		}
	}

	if !now.Before(s.nextHeartbeat) {
		s.sendHeartbeat(ctx, now)
		s.nextHeartbeat = following(s.nextHeartbeat, now, s.heartbeat)
	}

	if !now.Before(s.nextLed) {
		every := s.anim.Interval()
		n := 1 + int(now.Sub(s.nextLed)/every)
		s.nextLed = s.nextLed.Add(time.Duration(n) * every)
		s.stepLed(n)
	}
	s.writeLed(ctx)

	s.watch(ctx, s.lcd)
	s.watch(ctx, s.led)
}

func (s *Scheduler) start(ctx context.Context, now time.Time) {
	s.started = true
	s.nextPoll = now.Add(s.poll)
	s.nextRefresh = now.Add(s.refresh)
	s.nextHeartbeat = now.Add(s.heartbeat)
	s.nextLed = now.Add(s.anim.Interval())

	if s.network != nil {
		s.network.Configure(s.view.iface, s.view.ipDisplay)
	}
	for _, p := range []*peripheral{s.lcd, s.led} {
		if _, err := p.connect(ctx, p.handle != nil); err != nil {
			log.Warn().Err(err).Str("device", p.name).Msg("Failed to record connection state")
		}
	}
}

// following returns the deadline after next, skipping any already missed.
func following(next, now time.Time, every time.Duration) time.Time {
	next = next.Add(every)
	if !next.After(now) {
		next = now.Add(every)
	}
	return next
}

func (s *Scheduler) untilNext(now time.Time) time.Duration {
	next := s.nextPoll
	for _, t := range []time.Time{s.nextRefresh, s.nextHeartbeat, s.nextLed} {
		if t.Before(next) {
			next = t
		}
	}
	return next.Sub(now)
}

// apply picks up state changes made through the store since the last tick.
func (s *Scheduler) apply(snap device.State, now time.Time) {
	if d := time.Duration(snap.LCD.RefreshMs) * time.Millisecond; d > 0 && d != s.refresh {
		s.nextRefresh = s.nextRefresh.Add(d - s.refresh)
		s.refresh = d
	}

	if v := viewOf(snap.LCD); v != s.view {
		if s.network != nil && (v.iface != s.view.iface || v.ipDisplay != s.view.ipDisplay) {
			s.network.Configure(v.iface, v.ipDisplay)
			// Resample so the next frame shows the new selection.
			s.data = sensors.Data{}
		}
		s.view = v
		s.lcdDirty = true
	}

	cfg := snap.LED
	if cfg.Theme != s.ledCfg.Theme || cfg.Intensity != s.ledCfg.Intensity || cfg.Speed != s.ledCfg.Speed {
		if err := s.anim.Configure(cfg); err != nil {
			log.Error().Err(err).Msg("Rejected LED setting")
			return
		}
		if cfg.Speed != s.ledCfg.Speed {
			s.nextLed = now.Add(s.anim.Interval())
		}
		s.ledCfg = cfg
	}
}

func (s *Scheduler) sample(ctx context.Context, now time.Time) {
	data, err := s.sensors.Sample(ctx, now)
	if err != nil {
		s.pollFails.fail(now, err, "Sensor sample incomplete")
	} else {
		s.pollFails.ok("Sensor sampling recovered")
	}
	s.data = data

	s.statsMu.Lock()
	s.stats.Samples++
	s.stats.PendingSamples++
	s.statsMu.Unlock()

	if s.onSample != nil {
		s.onSample(data)
	}
}

func (s *Scheduler) activeTheme() *theme.Theme {
	if th, ok := s.themes.Get(s.view.theme); ok {
		return th
	}
	return s.themes.Default()
}

// pushFrame renders the current view and writes every redraw report. A
// write failure abandons the rest of the frame.
func (s *Scheduler) pushFrame(ctx context.Context, now time.Time) {
	canvas, err := s.compositor.Render(s.activeTheme(), s.data, s.view.orientation)
	if err != nil {
		s.renderFails.fail(now, err, "Render incomplete")
	} else {
		s.renderFails.ok("Rendering recovered")
	}
	s.screen.Store(canvas)

	s.statsMu.Lock()
	s.stats.Renders++
	s.stats.PendingSamples = 0
	s.statsMu.Unlock()

	if s.lcd.handle == nil {
		return
	}
	reports, err := canvas.Reports()
	if err != nil {
		s.renderFails.fail(now, err, "Frame encoding failed")
		return
	}
	for _, r := range reports {
		if err := s.lcd.handle.WriteFrame(ctx, r); err != nil {
			s.disconnect(ctx, s.lcd, err)
			return
		}
	}

	s.statsMu.Lock()
	s.stats.Frames++
	s.statsMu.Unlock()
}

// Clear fills the LCD with one colour until the next refresh redraws the
// theme. It waits for Run to perform the write.
func (s *Scheduler) Clear(ctx context.Context, c color.RGBA) error {
	req := clearRequest{color: c, done: make(chan error, 1)}
	select {
	case s.clears <- req:
	case <-ctx.Done():
		return fmt.Errorf("clear display: %w", ctx.Err())
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("clear display: %w", ctx.Err())
	}
}

func (s *Scheduler) clearFrame(ctx context.Context, c color.RGBA) error {
	w, h := s.compositor.Size()
	canvas := render.SolidCanvas(w, h, c)
	s.screen.Store(canvas)

	if s.lcd.handle == nil {
		return fmt.Errorf("lcd: %w", device.ErrNotConnected)
	}
	reports, err := canvas.Reports()
	if err != nil {
		return err
	}
	for _, r := range reports {
		if err := s.lcd.handle.WriteFrame(ctx, r); err != nil {
			s.disconnect(ctx, s.lcd, err)
			return err
		}
	}
	log.Debug().Str("color", fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)).Msg("LCD cleared")

	s.statsMu.Lock()
	s.stats.Frames++
	s.statsMu.Unlock()
	return nil
}

func (s *Scheduler) sendHeartbeat(ctx context.Context, now time.Time) {
	if s.lcd.handle == nil {
		return
	}
	if err := s.lcd.handle.WriteFrame(ctx, lcd.HeartbeatReport(now)); err != nil {
		s.beatFails.fail(now, err, "Heartbeat failed")
		s.disconnect(ctx, s.lcd, err)
		return
	}
	s.beatFails.ok("Heartbeat recovered")

	if _, err := s.store.MarkHeartbeat(ctx, now); err != nil {
		log.Warn().Err(err).Msg("Failed to record heartbeat")
	}
	s.statsMu.Lock()
	s.stats.Heartbeats++
	s.statsMu.Unlock()
}

func (s *Scheduler) stepLed(n int) {
	load, _ := s.data.Value("cpu.percent")
	frame := s.anim.Step(n, animator.Input{Load: load})
	s.lastLed.Store(&frame)

	s.statsMu.Lock()
	s.stats.LedTicks += uint64(n)
	s.statsMu.Unlock()
}

// writeLed sends the mode packet when it differs from what the strip last
// received.
func (s *Scheduler) writeLed(ctx context.Context) {
	if s.led.handle == nil {
		return
	}
	p := s.anim.Packet()
	if !s.ledDirty && p == s.written {
		return
	}
	if err := s.led.handle.WriteFrame(ctx, p[:]); err != nil {
		s.disconnect(ctx, s.led, err)
		return
	}
	s.written = p
	s.ledDirty = false

	log.Debug().Str("theme", s.ledCfg.Theme.String()).Hex("packet", p[:]).Msg("LED packet written")
	s.statsMu.Lock()
	s.stats.LedWrites++
	s.statsMu.Unlock()
}

// disconnect drops a failed handle and records the peripheral as
// disconnected. The reconnect watcher starts at the end of the tick.
func (s *Scheduler) disconnect(ctx context.Context, p *peripheral, cause error) {
	log.Warn().Err(cause).Str("device", p.name).Str("path", p.handle.Path()).Msg("Device write failed, disconnecting")

	if err := p.handle.Close(); err != nil {
		log.Debug().Err(err).Str("device", p.name).Msg("Close after failure")
	}
	p.handle = nil
	if p == s.led {
		s.ledDirty = true
	}
	if _, err := p.connect(ctx, false); err != nil {
		log.Warn().Err(err).Str("device", p.name).Msg("Failed to record disconnect")
	}

	s.statsMu.Lock()
	s.stats.Disconnects++
	s.statsMu.Unlock()
}

// watch starts a reconnect watcher for an absent peripheral.
func (s *Scheduler) watch(ctx context.Context, p *peripheral) {
	if p.handle != nil || p.watching || p.open == nil {
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	p.watching = true
	p.cancel = cancel

	s.watchers.Add(1)
	go s.reconnect(wctx, p, s.backoff)
}

// reconnect retries p.open with backoff until it succeeds or ctx ends.
// It runs on its own goroutine and only touches immutable fields of p.
func (s *Scheduler) reconnect(ctx context.Context, p *peripheral, b Backoff) {
	defer s.watchers.Done()

	for attempt := 1; ; attempt++ {
		delay := b.Next()
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(delay):
		}

		s.statsMu.Lock()
		s.stats.Retries++
		s.statsMu.Unlock()

		h, err := p.open(ctx, p.path)
		if err != nil {
			log.Debug().Err(err).Str("device", p.name).Int("attempt", attempt).Dur("waited", delay).Msg("Reconnect failed")
			continue
		}

		select {
		case s.attached <- attach{p: p, h: h}:
		case <-ctx.Done():
			_ = h.Close()
		}
		return
	}
}

// drain adopts every handle the watchers have delivered.
func (s *Scheduler) drain(ctx context.Context) {
	for {
		select {
		case a := <-s.attached:
			s.adopt(ctx, a)
		default:
			return
		}
	}
}

func (s *Scheduler) adopt(ctx context.Context, a attach) {
	p := a.p
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.watching = false
	if p.handle != nil {
		_ = p.handle.Close()
	}
	p.handle = a.h

	if _, err := p.connect(ctx, true); err != nil {
		log.Warn().Err(err).Str("device", p.name).Msg("Failed to record reconnect")
	}
	switch p {
	case s.lcd:
		s.lcdDirty = true
	case s.led:
		s.ledDirty = true
	}
	log.Info().Str("device", p.name).Str("path", a.h.Path()).Msg("Device reconnected")

	s.statsMu.Lock()
	s.stats.Reconnects++
	s.statsMu.Unlock()
}

// Close stops the reconnect watchers and closes both handles. It is safe
// to call more than once.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		for _, p := range []*peripheral{s.lcd, s.led} {
			if p.cancel != nil {
				p.cancel()
			}
		}
		s.watchers.Wait()

		for drained := false; !drained; {
			select {
			case a := <-s.attached:
				_ = a.h.Close()
			default:
				drained = true
			}
		}

		for _, p := range []*peripheral{s.lcd, s.led} {
			if p.handle == nil {
				continue
			}
			if err := p.handle.Close(); err != nil {
				log.Warn().Err(err).Str("device", p.name).Msg("Failed to close device")
			}
			p.handle = nil
		}
	})
}

// Stats returns a copy of the counters.
func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// LedFrame returns the most recent animator frame.
func (s *Scheduler) LedFrame() (animator.Frame, bool) {
	f := s.lastLed.Load()
	if f == nil {
		return animator.Frame{}, false
	}
	return *f, true
}

// Screen returns the frame holder shared with preview surfaces.
func (s *Scheduler) Screen() *render.Screen {
	return s.screen
}

type failureLog struct {
	streak int
	last   time.Time
}

func (f *failureLog) fail(now time.Time, err error, msg string) {
	f.streak++
	if f.streak == 1 || now.Sub(f.last) >= failureLogEvery {
		log.Warn().Err(err).Int("streak", f.streak).Msg(msg)
		f.last = now
	}
}

func (f *failureLog) ok(msg string) {
	if f.streak > 0 {
		log.Info().Int("failures", f.streak).Msg(msg)
	}
	f.streak = 0
}
