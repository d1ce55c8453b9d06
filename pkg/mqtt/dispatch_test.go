package mqtt

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/device/schema"
	"github.com/urmzd/ht32-panel/pkg/panel"
	"github.com/urmzd/ht32-panel/pkg/state"
	"github.com/urmzd/ht32-panel/pkg/theme"
)

type anyKey struct{}

func (anyKey) Has(string) bool { return true }

func newPanel(t *testing.T) (panel.Controller, *state.Store) {
	t.Helper()
	themes, err := theme.NewStore(anyKey{}, nil)
	require.NoError(t, err)
	store, err := state.New(device.State{
		LCD: device.LcdState{Orientation: device.Landscape, Theme: theme.DefaultID, RefreshMs: 1600},
		LED: device.LedState{Theme: device.LedBreathing, Intensity: 3, Speed: 3},
	}, themes)
	require.NoError(t, err)
	return panel.NewLocal(store, themes, nil), store
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "ht32panel"}
	assert.Equal(t, "ht32panel/state", topics.State())
	assert.Equal(t, "ht32panel/status", topics.Status())
	assert.Equal(t, "ht32panel/set/+", topics.AllSets())

	name, ok := topics.Command(topics.Set(CommandLed))
	assert.True(t, ok)
	assert.Equal(t, CommandLed, name)

	for _, topic := range []string{"ht32panel/state", "other/set/led", "ht32panel/set/", "ht32panel/set/a/b"} {
		_, ok := topics.Command(topic)
		assert.False(t, ok, topic)
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		command string
		payload string
		check   func(t *testing.T, st device.State)
	}{
		{"bare orientation", CommandOrientation, "portrait", func(t *testing.T, st device.State) {
			assert.Equal(t, device.Portrait, st.LCD.Orientation)
		}},
		{"json orientation", CommandOrientation, `{"orientation":"landscape_upside_down"}`, func(t *testing.T, st device.State) {
			assert.Equal(t, device.LandscapeUpsideDown, st.LCD.Orientation)
		}},
		{"quoted theme", CommandTheme, `"clock"`, func(t *testing.T, st device.State) {
			assert.Equal(t, "clock", st.LCD.Theme)
		}},
		{"numeric refresh", CommandRefresh, `{"refresh_ms":2500}`, func(t *testing.T, st device.State) {
			assert.Equal(t, 2500, st.LCD.RefreshMs)
		}},
		{"bare refresh", CommandRefresh, "3000", func(t *testing.T, st device.State) {
			assert.Equal(t, 3000, st.LCD.RefreshMs)
		}},
		{"led", CommandLed, `{"theme":"auto","intensity":1,"speed":5}`, func(t *testing.T, st device.State) {
			assert.Equal(t, device.LedAuto, st.LED.Theme)
			assert.Equal(t, 5, st.LED.Speed)
		}},
		{"led off", CommandLedOff, "", func(t *testing.T, st device.State) {
			assert.Equal(t, device.LedOff, st.LED.Theme)
		}},
		{"ip display", CommandIPDisplay, `{"ip_display":"ipv6_ula"}`, func(t *testing.T, st device.State) {
			assert.Equal(t, device.IPv6ULA, st.LCD.IPDisplay)
		}},
		{"automatic network", CommandNetwork, "", func(t *testing.T, st device.State) {
			assert.Equal(t, device.AutoDetect, st.LCD.NetworkInterface)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, store := newPanel(t)
			st, err := Dispatch(context.Background(), p, schema.NewValidator(), tt.command, []byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, store.Snapshot(), st)
			tt.check(t, st)
		})
	}
}

func TestDispatchRejects(t *testing.T) {
	tests := []struct {
		command string
		payload string
	}{
		{CommandOrientation, ""},
		{CommandOrientation, "sideways"},
		{CommandOrientation, `{"theme":"x"}`},
		{CommandTheme, "unknown"},
		{CommandRefresh, "fast"},
		{CommandLed, "rainbow"},
		{CommandLed, `{"theme":"rainbow","intensity":3}`},
		{CommandLed, `{"theme":"rainbow","intensity":0,"speed":3}`},
		{CommandIPDisplay, "ipv9"},
		{CommandNetwork, "eth7"},
		{CommandClear, "purple"},
		{CommandClear, ""},
		{"reboot", ""},
	}
	for _, tt := range tests {
		p, store := newPanel(t)
		before := store.Snapshot()
		_, err := Dispatch(context.Background(), p, schema.NewValidator(), tt.command, []byte(tt.payload))
		assert.ErrorIs(t, err, device.ErrValidation, "%s %q", tt.command, tt.payload)
		assert.Equal(t, before, store.Snapshot())
	}
}

type fakeDisplay struct{ cleared []color.RGBA }

func (d *fakeDisplay) Clear(ctx context.Context, c color.RGBA) error {
	d.cleared = append(d.cleared, c)
	return nil
}

func TestDispatchClear(t *testing.T) {
	p, store := newPanel(t)
	ctx := context.Background()

	_, err := Dispatch(ctx, p, nil, CommandClear, []byte("#102030"))
	assert.ErrorIs(t, err, device.ErrUnsupported)

	d := &fakeDisplay{}
	p.(*panel.Local).WithDisplay(d)
	st, err := Dispatch(ctx, p, nil, CommandClear, []byte(`{"color":"#102030"}`))
	require.NoError(t, err)
	assert.Equal(t, store.Snapshot(), st)
	assert.Equal(t, []color.RGBA{{R: 0x10, G: 0x20, B: 0x30, A: 0xFF}}, d.cleared)
}
