// Package state holds the authoritative record of both peripherals.
//
// Every control surface and the scheduler go through a Store. Mutations
// are admitted one at a time and validated before they are applied;
// readers always see a complete snapshot. Each applied change is fanned
// out to subscribers, whose bounded buffers drop the oldest pending change
// rather than block the store.
package state

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/urmzd/ht32-panel/pkg/device"
)

// Refresh interval bounds for runtime changes.
const (
	MinRefreshMs = 1500
	MaxRefreshMs = 10000
)

// DefaultBuffer is the per-subscriber buffer when none is given.
const DefaultBuffer = 16

// Field names reported in Change.Fields.
const (
	FieldLcdOrientation = "lcd.orientation"
	FieldLcdTheme       = "lcd.theme"
	FieldLcdRefresh     = "lcd.refresh_ms"
	FieldLcdNetwork     = "lcd.network_interface"
	FieldLcdIPDisplay   = "lcd.ip_display"
	FieldLcdConnected   = "lcd.connected"
	FieldLedTheme       = "led.theme"
	FieldLedIntensity   = "led.intensity"
	FieldLedSpeed       = "led.speed"
	FieldLedConnected   = "led.connected"
	FieldHeartbeat      = "last_heartbeat"
)

// ThemeCatalog resolves LCD theme ids.
type ThemeCatalog interface {
	Has(id string) bool
}

// Change is one applied mutation.
type Change struct {
	Version uint64       `json:"version"`
	Fields  []string     `json:"fields"`
	State   device.State `json:"state"`
}

// Store is the single source of truth for device state.
type Store struct {
	admit chan struct{}

	mu    sync.RWMutex
	state device.State

	themes ThemeCatalog

	subsMu sync.Mutex
	subs   map[*Subscription]struct{}
}

// New creates a store from the configured initial state, which must itself
// satisfy every invariant.
func New(initial device.State, themes ThemeCatalog) (*Store, error) {
	if _, err := device.ParseOrientation(string(initial.LCD.Orientation)); err != nil {
		return nil, err
	}
	if themes != nil && !themes.Has(initial.LCD.Theme) {
		return nil, device.Invalid("lcd theme", "unknown theme %q", initial.LCD.Theme)
	}
	if err := device.ValidateLed(initial.LED.Theme, initial.LED.Intensity, initial.LED.Speed); err != nil {
		return nil, err
	}
	initial.LCD.NetworkInterface = normalizeInterface(initial.LCD.NetworkInterface)
	if initial.LCD.IPDisplay == "" {
		initial.LCD.IPDisplay = device.IPv6GUA
	} else if _, err := device.ParseIPDisplay(string(initial.LCD.IPDisplay)); err != nil {
		return nil, err
	}
	initial.Version = 1
	return &Store{
		admit:  make(chan struct{}, 1),
		state:  initial,
		themes: themes,
		subs:   make(map[*Subscription]struct{}),
	}, nil
}

// Snapshot returns the current state.
func (s *Store) Snapshot() device.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// mutate runs fn on a copy of the state once the mutation is admitted.
// fn returns the fields it changed; no changed fields means no new version
// and no notification.
func (s *Store) mutate(ctx context.Context, fn func(st *device.State) ([]string, error)) (device.State, error) {
	select {
	case s.admit <- struct{}{}:
	case <-ctx.Done():
		return device.State{}, fmt.Errorf("waiting for state mutation: %w", ctx.Err())
	}
	defer func() { <-s.admit }()

	next := s.Snapshot()
	fields, err := fn(&next)
	if err != nil {
		return s.Snapshot(), err
	}
	if len(fields) == 0 {
		return next, nil
	}
	next.Version++

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.publish(Change{Version: next.Version, Fields: fields, State: next})
	return next, nil
}

// SetLcdOrientation accepts any spelling ParseOrientation does.
func (s *Store) SetLcdOrientation(ctx context.Context, value string) (device.State, error) {
	o, err := device.ParseOrientation(value)
	if err != nil {
		return s.Snapshot(), err
	}
	return s.mutate(ctx, func(st *device.State) ([]string, error) {
		if st.LCD.Orientation == o {
			return nil, nil
		}
		st.LCD.Orientation = o
		return []string{FieldLcdOrientation}, nil
	})
}

// SetLcdTheme switches the active theme reference.
func (s *Store) SetLcdTheme(ctx context.Context, id string) (device.State, error) {
	if id == "" || (s.themes != nil && !s.themes.Has(id)) {
		return s.Snapshot(), device.Invalid("lcd theme", "unknown theme %q", id)
	}
	return s.mutate(ctx, func(st *device.State) ([]string, error) {
		if st.LCD.Theme == id {
			return nil, nil
		}
		st.LCD.Theme = id
		return []string{FieldLcdTheme}, nil
	})
}

// SetRefreshInterval changes the LCD push cadence, clamped to
// [MinRefreshMs, MaxRefreshMs].
func (s *Store) SetRefreshInterval(ctx context.Context, ms int) (device.State, error) {
	if ms <= 0 {
		return s.Snapshot(), device.Invalid("refresh interval", "%d must be positive", ms)
	}
	ms = max(MinRefreshMs, min(MaxRefreshMs, ms))
	return s.mutate(ctx, func(st *device.State) ([]string, error) {
		if st.LCD.RefreshMs == ms {
			return nil, nil
		}
		st.LCD.RefreshMs = ms
		return []string{FieldLcdRefresh}, nil
	})
}

// SetNetworkInterface pins the monitored interface. An empty name or
// "auto" returns to automatic selection. Whether the interface exists is
// the caller's concern.
func (s *Store) SetNetworkInterface(ctx context.Context, name string) (device.State, error) {
	name = normalizeInterface(name)
	if strings.ContainsAny(name, "/ \t") {
		return s.Snapshot(), device.Invalid("network interface", "bad name %q", name)
	}
	return s.mutate(ctx, func(st *device.State) ([]string, error) {
		if st.LCD.NetworkInterface == name {
			return nil, nil
		}
		st.LCD.NetworkInterface = name
		return []string{FieldLcdNetwork}, nil
	})
}

// SetIPDisplay picks which address family and scope is shown.
func (s *Store) SetIPDisplay(ctx context.Context, value string) (device.State, error) {
	d, err := device.ParseIPDisplay(value)
	if err != nil {
		return s.Snapshot(), err
	}
	return s.mutate(ctx, func(st *device.State) ([]string, error) {
		if st.LCD.IPDisplay == d {
			return nil, nil
		}
		st.LCD.IPDisplay = d
		return []string{FieldLcdIPDisplay}, nil
	})
}

func normalizeInterface(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, device.AutoDetect) {
		return device.AutoDetect
	}
	return name
}

// SetLed replaces the LED mode, intensity and speed together. Values
// outside [1,5] are rejected and leave the state untouched.
func (s *Store) SetLed(ctx context.Context, theme device.LedTheme, intensity, speed int) (device.State, error) {
	if err := device.ValidateLed(theme, intensity, speed); err != nil {
		return s.Snapshot(), err
	}
	return s.mutate(ctx, func(st *device.State) ([]string, error) {
		var fields []string
		if st.LED.Theme != theme {
			st.LED.Theme = theme
			fields = append(fields, FieldLedTheme)
		}
		if st.LED.Intensity != intensity {
			st.LED.Intensity = intensity
			fields = append(fields, FieldLedIntensity)
		}
		if st.LED.Speed != speed {
			st.LED.Speed = speed
			fields = append(fields, FieldLedSpeed)
		}
		return fields, nil
	})
}

// LedOff switches the strip off, keeping intensity and speed.
func (s *Store) LedOff(ctx context.Context) (device.State, error) {
	return s.mutate(ctx, func(st *device.State) ([]string, error) {
		if st.LED.Theme == device.LedOff {
			return nil, nil
		}
		st.LED.Theme = device.LedOff
		return []string{FieldLedTheme}, nil
	})
}

// SetLcdConnected records the LCD link status.
func (s *Store) SetLcdConnected(ctx context.Context, connected bool) (device.State, error) {
	return s.mutate(ctx, func(st *device.State) ([]string, error) {
		if st.LCD.Connected == connected {
			return nil, nil
		}
		st.LCD.Connected = connected
		return []string{FieldLcdConnected}, nil
	})
}

// SetLedConnected records the LED link status.
func (s *Store) SetLedConnected(ctx context.Context, connected bool) (device.State, error) {
	return s.mutate(ctx, func(st *device.State) ([]string, error) {
		if st.LED.Connected == connected {
			return nil, nil
		}
		st.LED.Connected = connected
		return []string{FieldLedConnected}, nil
	})
}

// MarkHeartbeat records a successful liveness write.
func (s *Store) MarkHeartbeat(ctx context.Context, at time.Time) (device.State, error) {
	return s.mutate(ctx, func(st *device.State) ([]string, error) {
		if st.LastHeartbeat.Equal(at) {
			return nil, nil
		}
		st.LastHeartbeat = at
		return []string{FieldHeartbeat}, nil
	})
}
