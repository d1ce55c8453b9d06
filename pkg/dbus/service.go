// Package dbus publishes the panel's command surface as the
// org.ht32panel.Daemon1 D-Bus interface and provides a client for it.
package dbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/panel"
	"github.com/urmzd/ht32-panel/pkg/state"
)

// Bus identifiers.
const (
	Interface                   = "org.ht32panel.Daemon1"
	DefaultName                 = "org.ht32panel.Daemon1"
	ObjectPath  dbus.ObjectPath = "/org/ht32panel/Daemon1"

	SignalStateChanged = Interface + ".StateChanged"
)

// Error names returned by the service.
const (
	ErrorInvalidArgs  = "org.freedesktop.DBus.Error.InvalidArgs"
	ErrorFailed       = "org.freedesktop.DBus.Error.Failed"
	ErrorTimeout      = "org.freedesktop.DBus.Error.Timeout"
	ErrorNotSupported = "org.freedesktop.DBus.Error.NotSupported"
	ErrorNotConnected = Interface + ".Error.NotConnected"
	ErrorNoFrame      = Interface + ".Error.NoFrame"
)

// callTimeout bounds each method call against the store.
const callTimeout = 5 * time.Second

// Connect opens the named bus, "session" or "system".
func Connect(bus string) (*dbus.Conn, error) {
	switch bus {
	case "", "session":
		return dbus.ConnectSessionBus()
	case "system":
		return dbus.ConnectSystemBus()
	default:
		return nil, fmt.Errorf("unknown bus %q", bus)
	}
}

// Options configure a Service.
type Options struct {
	Panel panel.Controller
	Store *state.Store
	Name  string

	// WebEnabled is reported as the WebEnabled property.
	WebEnabled bool

	// Quit is called when a client asks the daemon to exit.
	Quit func()
}

// Service exports the daemon object on a bus connection.
type Service struct {
	conn  *dbus.Conn
	obj   *daemon1
	store *state.Store
	name  string

	props *prop.Properties
	web   bool
	last  map[string]any
}

// properties returns the read-only property values for st.
func properties(st device.State, web bool) map[string]any {
	return map[string]any{
		"Connected":        st.LCD.Connected,
		"WebEnabled":       web,
		"Orientation":      string(st.LCD.Orientation),
		"Theme":            st.LCD.Theme,
		"RefreshInterval":  uint32(st.LCD.RefreshMs),
		"NetworkInterface": st.LCD.NetworkInterface,
		"IpDisplay":        string(st.LCD.IPDisplay),
		"LedTheme":         byte(st.LED.Theme),
		"LedIntensity":     byte(st.LED.Intensity),
		"LedSpeed":         byte(st.LED.Speed),
	}
}

func propertyMap(values map[string]any) prop.Map {
	m := make(map[string]*prop.Prop, len(values))
	for name, v := range values {
		m[name] = &prop.Prop{Value: v, Writable: false, Emit: prop.EmitTrue}
	}
	return prop.Map{Interface: m}
}

// NewService exports the interface and claims the bus name.
func NewService(conn *dbus.Conn, opts Options) (*Service, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	obj := &daemon1{panel: opts.Panel, quit: opts.Quit}

	if err := conn.Export(obj, ObjectPath, Interface); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", Interface, err)
	}
	values := properties(opts.Store.Snapshot(), opts.WebEnabled)
	props, err := prop.Export(conn, ObjectPath, propertyMap(values))
	if err != nil {
		return nil, fmt.Errorf("failed to export properties: %w", err)
	}
	node := &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       Interface,
				Methods:    introspect.Methods(obj),
				Properties: props.Introspection(Interface),
				Signals: []introspect.Signal{{
					Name: "StateChanged",
					Args: []introspect.Arg{{Name: "state", Type: "s"}},
				}},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := conn.RequestName(opts.Name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("bus name %s is already owned", opts.Name)
	}

	log.Info().Str("name", opts.Name).Str("path", string(ObjectPath)).Msg("D-Bus service registered")
	return &Service{
		conn:  conn,
		obj:   obj,
		store: opts.Store,
		name:  opts.Name,
		props: props,
		web:   opts.WebEnabled,
		last:  values,
	}, nil
}

// Run emits StateChanged and PropertiesChanged for every store change
// until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	sub := s.store.Subscribe(0)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-sub.C():
			if !ok {
				return nil
			}
			s.updateProperties(change.State)

			payload, err := json.Marshal(change.State)
			if err != nil {
				log.Error().Err(err).Uint64("version", change.Version).Msg("Failed to encode StateChanged")
				continue
			}
			if err := s.conn.Emit(ObjectPath, SignalStateChanged, string(payload)); err != nil {
				log.Warn().Err(err).Msg("Failed to emit StateChanged")
			}
		}
	}
}

// updateProperties publishes the properties that changed. SetMust panics
// when the signal cannot be sent.
func (s *Service) updateProperties(st device.State) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("Failed to update D-Bus properties")
		}
	}()
	for name, v := range properties(st, s.web) {
		if s.last[name] == v {
			continue
		}
		s.props.SetMust(Interface, name, v)
		s.last[name] = v
	}
}

// Close releases the bus name.
func (s *Service) Close() error {
	_, err := s.conn.ReleaseName(s.name)
	return err
}

// daemon1 holds exactly the exported D-Bus methods.
type daemon1 struct {
	panel panel.Controller
	quit  func()
}

func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	name := ErrorFailed
	switch {
	case errors.Is(err, device.ErrValidation):
		name = ErrorInvalidArgs
	case errors.Is(err, device.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		name = ErrorTimeout
	case errors.Is(err, device.ErrNotConnected):
		name = ErrorNotConnected
	case errors.Is(err, device.ErrUnsupported):
		name = ErrorNotSupported
	case errors.Is(err, panel.ErrNoFrame):
		name = ErrorNoFrame
	}
	return dbus.NewError(name, []any{err.Error()})
}

func (d *daemon1) state() (device.State, *dbus.Error) {
	ctx, cancel := callContext()
	defer cancel()
	st, err := d.panel.State(ctx)
	return st, toDBusError(err)
}

func (d *daemon1) GetState() (string, *dbus.Error) {
	st, derr := d.state()
	if derr != nil {
		return "", derr
	}
	b, err := json.Marshal(st)
	if err != nil {
		return "", toDBusError(err)
	}
	return string(b), nil
}

func (d *daemon1) SetOrientation(orientation string) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()
	_, err := d.panel.SetOrientation(ctx, orientation)
	return toDBusError(err)
}

func (d *daemon1) GetOrientation() (string, *dbus.Error) {
	st, derr := d.state()
	return string(st.LCD.Orientation), derr
}

func (d *daemon1) SetTheme(id string) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()
	_, err := d.panel.SetTheme(ctx, id)
	return toDBusError(err)
}

func (d *daemon1) GetTheme() (string, *dbus.Error) {
	st, derr := d.state()
	return st.LCD.Theme, derr
}

func (d *daemon1) ListThemes() ([]string, *dbus.Error) {
	ctx, cancel := callContext()
	defer cancel()
	infos, err := d.panel.Themes(ctx)
	if err != nil {
		return nil, toDBusError(err)
	}
	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	return ids, nil
}

// DescribeThemes returns the theme summaries as JSON.
func (d *daemon1) DescribeThemes() (string, *dbus.Error) {
	ctx, cancel := callContext()
	defer cancel()
	infos, err := d.panel.Themes(ctx)
	if err != nil {
		return "", toDBusError(err)
	}
	b, err := json.Marshal(infos)
	if err != nil {
		return "", toDBusError(err)
	}
	return string(b), nil
}

func (d *daemon1) SetLed(theme, intensity, speed byte) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()
	_, err := d.panel.SetLed(ctx, device.LedTheme(theme), int(intensity), int(speed))
	return toDBusError(err)
}

func (d *daemon1) LedOff() *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()
	_, err := d.panel.LedOff(ctx)
	return toDBusError(err)
}

func (d *daemon1) GetLedSettings() (byte, byte, byte, *dbus.Error) {
	st, derr := d.state()
	return byte(st.LED.Theme), byte(st.LED.Intensity), byte(st.LED.Speed), derr
}

func (d *daemon1) SetRefreshInterval(ms uint32) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()
	_, err := d.panel.SetRefreshInterval(ctx, int(ms))
	return toDBusError(err)
}

func (d *daemon1) GetRefreshInterval() (uint32, *dbus.Error) {
	st, derr := d.state()
	return uint32(st.LCD.RefreshMs), derr
}

// ClearDisplay fills the LCD with a "#RRGGBB" colour.
func (d *daemon1) ClearDisplay(color string) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()
	return toDBusError(d.panel.ClearDisplay(ctx, color))
}

func (d *daemon1) GetNetworkInterface() (string, *dbus.Error) {
	st, derr := d.state()
	return st.LCD.NetworkInterface, derr
}

// SetNetworkInterface accepts an interface name, or "auto" or "" for
// automatic selection.
func (d *daemon1) SetNetworkInterface(name string) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()
	_, err := d.panel.SetNetworkInterface(ctx, name)
	return toDBusError(err)
}

func (d *daemon1) ListNetworkInterfaces() ([]string, *dbus.Error) {
	ctx, cancel := callContext()
	defer cancel()
	names, err := d.panel.NetworkInterfaces(ctx)
	return names, toDBusError(err)
}

func (d *daemon1) GetIpDisplay() (string, *dbus.Error) {
	st, derr := d.state()
	return string(st.LCD.IPDisplay), derr
}

func (d *daemon1) SetIpDisplay(value string) *dbus.Error {
	ctx, cancel := callContext()
	defer cancel()
	_, err := d.panel.SetIPDisplay(ctx, value)
	return toDBusError(err)
}

func (d *daemon1) ListIpDisplayOptions() ([]string, *dbus.Error) {
	out := make([]string, len(device.IPDisplays))
	for i, v := range device.IPDisplays {
		out[i] = string(v)
	}
	return out, nil
}

func (d *daemon1) GetScreenPng() ([]byte, *dbus.Error) {
	ctx, cancel := callContext()
	defer cancel()
	png, err := d.panel.Screenshot(ctx)
	return png, toDBusError(err)
}

func (d *daemon1) Quit() *dbus.Error {
	if d.quit == nil {
		return dbus.NewError(ErrorFailed, []any{"quit is not supported"})
	}
	log.Info().Msg("D-Bus: Quit requested")
	d.quit()
	return nil
}
