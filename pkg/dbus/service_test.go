package dbus

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/panel"
	"github.com/urmzd/ht32-panel/pkg/state"
	"github.com/urmzd/ht32-panel/pkg/theme"
)

type anyKey struct{}

func (anyKey) Has(string) bool { return true }

func newObject(t *testing.T) (*daemon1, *state.Store, *bool) {
	t.Helper()
	themes, err := theme.NewStore(anyKey{}, nil)
	require.NoError(t, err)
	store, err := state.New(device.State{
		LCD: device.LcdState{Orientation: device.Landscape, Theme: theme.DefaultID, RefreshMs: 1600},
		LED: device.LedState{Theme: device.LedBreathing, Intensity: 3, Speed: 3},
	}, themes)
	require.NoError(t, err)
	quit := false
	obj := &daemon1{panel: panel.NewLocal(store, themes, nil), quit: func() { quit = true }}
	return obj, store, &quit
}

func TestDaemonMethods(t *testing.T) {
	obj, store, _ := newObject(t)

	require.Nil(t, obj.SetOrientation("portrait"))
	o, derr := obj.GetOrientation()
	require.Nil(t, derr)
	assert.Equal(t, "portrait", o)

	require.Nil(t, obj.SetTheme("clock"))
	th, derr := obj.GetTheme()
	require.Nil(t, derr)
	assert.Equal(t, "clock", th)

	require.Nil(t, obj.SetLed(5, 4, 1))
	lt, li, ls, derr := obj.GetLedSettings()
	require.Nil(t, derr)
	assert.Equal(t, []byte{5, 4, 1}, []byte{lt, li, ls})

	require.Nil(t, obj.LedOff())
	assert.Equal(t, device.LedOff, store.Snapshot().LED.Theme)

	require.Nil(t, obj.SetRefreshInterval(50000))
	ms, derr := obj.GetRefreshInterval()
	require.Nil(t, derr)
	assert.Equal(t, uint32(state.MaxRefreshMs), ms)

	raw, derr := obj.GetState()
	require.Nil(t, derr)
	var st device.State
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	assert.Equal(t, store.Snapshot(), st)

	ids, derr := obj.ListThemes()
	require.Nil(t, derr)
	assert.Contains(t, ids, theme.DefaultID)

	rawThemes, derr := obj.DescribeThemes()
	require.Nil(t, derr)
	var infos []panel.ThemeInfo
	require.NoError(t, json.Unmarshal([]byte(rawThemes), &infos))
	assert.Len(t, infos, len(ids))
}

func TestDaemonErrors(t *testing.T) {
	obj, store, _ := newObject(t)
	before := store.Snapshot()

	derr := obj.SetOrientation("diagonal")
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgs, derr.Name)

	derr = obj.SetLed(0, 3, 3)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgs, derr.Name)

	derr = obj.SetTheme("missing")
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgs, derr.Name)

	_, derr = obj.GetScreenPng()
	require.NotNil(t, derr)
	assert.Equal(t, ErrorNoFrame, derr.Name)

	assert.Equal(t, before, store.Snapshot())
}

type fakeDisplay struct{ last color.RGBA }

func (d *fakeDisplay) Clear(ctx context.Context, c color.RGBA) error {
	d.last = c
	return nil
}

func TestNetworkAndDisplayMethods(t *testing.T) {
	obj, store, _ := newObject(t)
	display := &fakeDisplay{}
	obj.panel.(*panel.Local).
		WithDisplay(display).
		WithInterfaces(func() ([]string, error) { return []string{"eth0", "wlan0"}, nil })

	require.Nil(t, obj.ClearDisplay("#00ff00"))
	assert.Equal(t, color.RGBA{G: 0xFF, A: 0xFF}, display.last)
	derr := obj.ClearDisplay("green")
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgs, derr.Name)

	names, derr := obj.ListNetworkInterfaces()
	require.Nil(t, derr)
	assert.Equal(t, []string{"eth0", "wlan0"}, names)

	require.Nil(t, obj.SetNetworkInterface("wlan0"))
	iface, derr := obj.GetNetworkInterface()
	require.Nil(t, derr)
	assert.Equal(t, "wlan0", iface)

	derr = obj.SetNetworkInterface("tun0")
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgs, derr.Name)
	require.Nil(t, obj.SetNetworkInterface("auto"))
	assert.Equal(t, device.AutoDetect, store.Snapshot().LCD.NetworkInterface)

	opts, derr := obj.ListIpDisplayOptions()
	require.Nil(t, derr)
	assert.Equal(t, []string{"ipv6-gua", "ipv6-lla", "ipv6-ula", "ipv4"}, opts)

	require.Nil(t, obj.SetIpDisplay("ipv4"))
	ip, derr := obj.GetIpDisplay()
	require.Nil(t, derr)
	assert.Equal(t, "ipv4", ip)
	derr = obj.SetIpDisplay("ipv7")
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgs, derr.Name)
}

func TestProperties(t *testing.T) {
	st := device.State{
		LCD: device.LcdState{Orientation: device.Portrait, Theme: "clock", RefreshMs: 2000, NetworkInterface: "eth0", IPDisplay: device.IPv4, Connected: true},
		LED: device.LedState{Theme: device.LedRainbow, Intensity: 4, Speed: 2},
	}
	values := properties(st, true)

	signatures := map[string]string{
		"Connected":        "b",
		"WebEnabled":       "b",
		"Orientation":      "s",
		"Theme":            "s",
		"RefreshInterval":  "u",
		"NetworkInterface": "s",
		"IpDisplay":        "s",
		"LedTheme":         "y",
		"LedIntensity":     "y",
		"LedSpeed":         "y",
	}
	require.Len(t, values, len(signatures))
	for name, sig := range signatures {
		v, ok := values[name]
		require.True(t, ok, name)
		assert.Equal(t, sig, dbus.SignatureOf(v).String(), name)
	}
	assert.Equal(t, "portrait", values["Orientation"])
	assert.Equal(t, uint32(2000), values["RefreshInterval"])
	assert.Equal(t, byte(1), values["LedTheme"])

	m := propertyMap(values)
	require.Contains(t, m, Interface)
	for name, p := range m[Interface] {
		assert.False(t, p.Writable, name)
		assert.Equal(t, prop.EmitTrue, p.Emit, name)
	}
}

func TestQuit(t *testing.T) {
	obj, _, quit := newObject(t)
	require.Nil(t, obj.Quit())
	assert.True(t, *quit)

	obj.quit = nil
	assert.NotNil(t, obj.Quit())
}

func TestErrorRoundTrip(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{device.Invalid("led speed", "9 out of range"), device.ErrValidation},
		{fmt.Errorf("write: %w", device.ErrTimeout), device.ErrTimeout},
		{context.DeadlineExceeded, device.ErrTimeout},
		{device.ErrNotConnected, device.ErrNotConnected},
		{panel.ErrNoFrame, panel.ErrNoFrame},
		{device.ErrUnsupported, device.ErrUnsupported},
	}
	for _, tt := range tests {
		derr := toDBusError(tt.err)
		require.NotNil(t, derr)

		// Remote errors arrive as values, local ones as pointers.
		assert.ErrorIs(t, fromDBusError(*derr), tt.want, derr.Name)
		assert.ErrorIs(t, fromDBusError(derr), tt.want, derr.Name)
	}

	assert.Nil(t, toDBusError(nil))
	unknown := dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}
	assert.ErrorIs(t, fromDBusError(unknown), device.ErrNotConnected)
}

func TestDecodeSignal(t *testing.T) {
	st := device.State{Version: 7, LCD: device.LcdState{Theme: "clock"}}
	raw, err := json.Marshal(st)
	require.NoError(t, err)

	got, ok := decodeSignal(&dbus.Signal{Name: SignalStateChanged, Body: []any{string(raw)}})
	require.True(t, ok)
	assert.Equal(t, uint64(7), got.Version)
	assert.Equal(t, "clock", got.LCD.Theme)

	_, ok = decodeSignal(&dbus.Signal{Name: "org.example.Other", Body: []any{string(raw)}})
	assert.False(t, ok)
	_, ok = decodeSignal(&dbus.Signal{Name: SignalStateChanged, Body: []any{42}})
	assert.False(t, ok)
}
