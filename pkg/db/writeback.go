package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/state"
)

// Writeback persists settings changes published by a state store.
type Writeback struct {
	db      *DB
	sub     *state.Subscription
	dropped uint64
}

// NewWriteback subscribes to store. Run must be called to drain the
// subscription.
func NewWriteback(db *DB, store *state.Store) *Writeback {
	return &Writeback{db: db, sub: store.Subscribe(state.DefaultBuffer)}
}

// Run persists changes until ctx is cancelled.
func (w *Writeback) Run(ctx context.Context) error {
	defer w.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-w.sub.C():
			if !ok {
				return nil
			}
			if err := w.persist(ctx, c); err != nil {
				log.Warn().Err(err).Uint64("version", c.Version).Msg("Failed to persist state change")
			}
		}
	}
}

// persist writes the settings named in c. If changes were dropped since
// the last call every setting is rewritten from c's snapshot.
func (w *Writeback) persist(ctx context.Context, c state.Change) error {
	all := SettingsOf(c.State)
	values := make(map[string]string)

	if d := w.sub.Dropped(); d != w.dropped {
		w.dropped = d
		values = all
	} else {
		for _, f := range c.Fields {
			if v, ok := all[f]; ok {
				values[f] = v
			}
		}
	}

	var errs []error
	if len(values) > 0 {
		errs = append(errs, w.db.Settings().SetAll(ctx, values))
	}

	events := w.db.ConnectionEvents()
	if slices.Contains(c.Fields, state.FieldLcdConnected) {
		errs = append(errs, events.Record(ctx, &ConnectionEvent{Device: "lcd", Connected: c.State.LCD.Connected, Version: c.Version}))
	}
	if slices.Contains(c.Fields, state.FieldLedConnected) {
		errs = append(errs, events.Record(ctx, &ConnectionEvent{Device: "led", Connected: c.State.LED.Connected, Version: c.Version}))
	}
	return errors.Join(errs...)
}

// Restore applies persisted settings to store through its ordinary
// commands, so every value is validated again. A value that no longer
// validates is skipped and reported.
func Restore(ctx context.Context, db *DB, store *state.Store) error {
	settings, err := db.Settings().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	saved := make(map[string]string, len(settings))
	for _, s := range settings {
		saved[s.Key] = s.Value
	}

	var errs []error
	if v, ok := saved[state.FieldLcdOrientation]; ok {
		if _, err := store.SetLcdOrientation(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	if v, ok := saved[state.FieldLcdTheme]; ok {
		if _, err := store.SetLcdTheme(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	if v, ok := saved[state.FieldLcdRefresh]; ok {
		ms, err := strconv.Atoi(v)
		if err == nil {
			_, err = store.SetRefreshInterval(ctx, ms)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", state.FieldLcdRefresh, err))
		}
	}
	if v, ok := saved[state.FieldLcdNetwork]; ok {
		if _, err := store.SetNetworkInterface(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	if v, ok := saved[state.FieldLcdIPDisplay]; ok {
		if _, err := store.SetIPDisplay(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}

	led := store.Snapshot().LED
	ledSaved := false
	if v, ok := saved[state.FieldLedTheme]; ok {
		if t, err := device.ParseLedTheme(v); err != nil {
			errs = append(errs, err)
		} else {
			led.Theme, ledSaved = t, true
		}
	}
	for key, dst := range map[string]*int{state.FieldLedIntensity: &led.Intensity, state.FieldLedSpeed: &led.Speed} {
		v, ok := saved[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		*dst, ledSaved = n, true
	}
	if ledSaved {
		if _, err := store.SetLed(ctx, led.Theme, led.Intensity, led.Speed); err != nil {
			errs = append(errs, err)
		}
	}

	if len(saved) > 0 {
		log.Info().Int("settings", len(saved)).Msg("Restored persisted settings")
	}
	return errors.Join(errs...)
}
