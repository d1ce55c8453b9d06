package dbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/panel"
)

// Client calls a running daemon over D-Bus. It satisfies panel.Controller.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

var _ panel.Controller = (*Client)(nil)

// Dial connects to bus and addresses the daemon registered as name.
func Dial(bus, name string) (*Client, error) {
	conn, err := Connect(bus)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s bus: %w", bus, err)
	}
	return NewClient(conn, name), nil
}

// NewClient wraps an open connection.
func NewClient(conn *dbus.Conn, name string) *Client {
	if name == "" {
		name = DefaultName
	}
	return &Client{conn: conn, obj: conn.Object(name, ObjectPath)}
}

// Close closes the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	call := c.obj.CallWithContext(ctx, Interface+"."+method, 0, args...)
	if call.Err != nil {
		call.Err = fromDBusError(call.Err)
	}
	return call
}

// fromDBusError maps service error names back onto device sentinels.
func fromDBusError(err error) error {
	var derr dbus.Error
	if !errors.As(err, &derr) {
		var pderr *dbus.Error
		if !errors.As(err, &pderr) {
			return err
		}
		derr = *pderr
	}
	msg := derr.Error()
	switch derr.Name {
	case ErrorInvalidArgs:
		return fmt.Errorf("%s: %w", msg, device.ErrValidation)
	case ErrorTimeout:
		return fmt.Errorf("%s: %w", msg, device.ErrTimeout)
	case ErrorNotConnected:
		return fmt.Errorf("%s: %w", msg, device.ErrNotConnected)
	case ErrorNotSupported:
		return fmt.Errorf("%s: %w", msg, device.ErrUnsupported)
	case ErrorNoFrame:
		return panel.ErrNoFrame
	case "org.freedesktop.DBus.Error.ServiceUnknown", "org.freedesktop.DBus.Error.NameHasNoOwner":
		return fmt.Errorf("daemon is not running: %w", device.ErrNotConnected)
	}
	return err
}

func (c *Client) State(ctx context.Context) (device.State, error) {
	var raw string
	if err := c.call(ctx, "GetState").Store(&raw); err != nil {
		return device.State{}, err
	}
	var st device.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return device.State{}, fmt.Errorf("failed to decode state: %w", err)
	}
	return st, nil
}

// after returns the daemon state following a successful command.
func (c *Client) after(ctx context.Context, call *dbus.Call) (device.State, error) {
	if call.Err != nil {
		return device.State{}, call.Err
	}
	return c.State(ctx)
}

func (c *Client) SetOrientation(ctx context.Context, value string) (device.State, error) {
	return c.after(ctx, c.call(ctx, "SetOrientation", value))
}

func (c *Client) SetTheme(ctx context.Context, id string) (device.State, error) {
	return c.after(ctx, c.call(ctx, "SetTheme", id))
}

func (c *Client) Themes(ctx context.Context) ([]panel.ThemeInfo, error) {
	var raw string
	if err := c.call(ctx, "DescribeThemes").Store(&raw); err != nil {
		return nil, err
	}
	var infos []panel.ThemeInfo
	if err := json.Unmarshal([]byte(raw), &infos); err != nil {
		return nil, fmt.Errorf("failed to decode themes: %w", err)
	}
	return infos, nil
}

func (c *Client) SetRefreshInterval(ctx context.Context, ms int) (device.State, error) {
	if ms <= 0 {
		return device.State{}, device.Invalid("refresh interval", "%d must be positive", ms)
	}
	return c.after(ctx, c.call(ctx, "SetRefreshInterval", uint32(ms)))
}

func (c *Client) SetLed(ctx context.Context, theme device.LedTheme, intensity, speed int) (device.State, error) {
	// Checked here too so out-of-range ints cannot wrap into valid bytes.
	if err := device.ValidateLed(theme, intensity, speed); err != nil {
		return device.State{}, err
	}
	return c.after(ctx, c.call(ctx, "SetLed", byte(theme), byte(intensity), byte(speed)))
}

func (c *Client) LedOff(ctx context.Context) (device.State, error) {
	return c.after(ctx, c.call(ctx, "LedOff"))
}

func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	var png []byte
	if err := c.call(ctx, "GetScreenPng").Store(&png); err != nil {
		return nil, err
	}
	return png, nil
}

func (c *Client) ClearDisplay(ctx context.Context, color string) error {
	return c.call(ctx, "ClearDisplay", color).Err
}

func (c *Client) NetworkInterfaces(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.call(ctx, "ListNetworkInterfaces").Store(&names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) SetNetworkInterface(ctx context.Context, name string) (device.State, error) {
	return c.after(ctx, c.call(ctx, "SetNetworkInterface", name))
}

func (c *Client) SetIPDisplay(ctx context.Context, value string) (device.State, error) {
	return c.after(ctx, c.call(ctx, "SetIpDisplay", value))
}

// Quit asks the daemon to shut down.
func (c *Client) Quit(ctx context.Context) error {
	return c.call(ctx, "Quit").Err
}

// Watch streams state snapshots from StateChanged signals until ctx is done.
func (c *Client) Watch(ctx context.Context) (<-chan device.State, error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(ObjectPath),
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchMember("StateChanged"),
	}
	if err := c.conn.AddMatchSignalContext(ctx, opts...); err != nil {
		return nil, fmt.Errorf("failed to subscribe to StateChanged: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)

	out := make(chan device.State)
	go func() {
		defer close(out)
		defer func() {
			c.conn.RemoveSignal(signals)
			_ = c.conn.RemoveMatchSignal(opts...)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				st, ok := decodeSignal(sig)
				if !ok {
					continue
				}
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decodeSignal(sig *dbus.Signal) (device.State, bool) {
	if sig.Name != SignalStateChanged || len(sig.Body) != 1 {
		return device.State{}, false
	}
	raw, ok := sig.Body[0].(string)
	if !ok {
		return device.State{}, false
	}
	var st device.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return device.State{}, false
	}
	return st, true
}
