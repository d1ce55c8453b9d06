// Package panel is the command surface every control adapter translates
// into. Local serves it in-process from the state store; the D-Bus client
// serves it from another process.
package panel

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strings"

	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/render"
	"github.com/urmzd/ht32-panel/pkg/state"
	"github.com/urmzd/ht32-panel/pkg/theme"
)

// ErrNoFrame is returned by Screenshot before the first frame is rendered.
var ErrNoFrame = errors.New("no frame rendered yet")

// Controller is the daemon's command surface.
type Controller interface {
	State(ctx context.Context) (device.State, error)
	SetOrientation(ctx context.Context, value string) (device.State, error)
	SetTheme(ctx context.Context, id string) (device.State, error)
	Themes(ctx context.Context) ([]ThemeInfo, error)
	SetRefreshInterval(ctx context.Context, ms int) (device.State, error)
	SetLed(ctx context.Context, theme device.LedTheme, intensity, speed int) (device.State, error)
	LedOff(ctx context.Context) (device.State, error)
	Screenshot(ctx context.Context) ([]byte, error)

	// ClearDisplay fills the LCD with a "#RRGGBB" colour until the next
	// refresh.
	ClearDisplay(ctx context.Context, color string) error
	NetworkInterfaces(ctx context.Context) ([]string, error)
	SetNetworkInterface(ctx context.Context, name string) (device.State, error)
	SetIPDisplay(ctx context.Context, value string) (device.State, error)
}

// Display performs one-off writes to the LCD.
type Display interface {
	Clear(ctx context.Context, c color.RGBA) error
}

// InterfaceLister lists the network interfaces that may be selected.
type InterfaceLister func() ([]string, error)

// ThemeInfo summarises a loaded theme.
type ThemeInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Widgets     int    `json:"widgets"`
}

// ThemeCatalog lists loaded themes.
type ThemeCatalog interface {
	List() []string
	Get(id string) (*theme.Theme, bool)
}

// Local serves Controller from the in-process store.
type Local struct {
	store      *state.Store
	themes     ThemeCatalog
	screen     *render.Screen
	display    Display
	interfaces InterfaceLister
}

// NewLocal creates a Local controller. screen may be nil when no preview
// is available.
func NewLocal(store *state.Store, themes ThemeCatalog, screen *render.Screen) *Local {
	return &Local{store: store, themes: themes, screen: screen}
}

// WithDisplay enables ClearDisplay.
func (l *Local) WithDisplay(d Display) *Local {
	l.display = d
	return l
}

// WithInterfaces sets how selectable interfaces are found. Without one
// only automatic selection is accepted.
func (l *Local) WithInterfaces(list InterfaceLister) *Local {
	l.interfaces = list
	return l
}

func (l *Local) State(ctx context.Context) (device.State, error) {
	return l.store.Snapshot(), nil
}

func (l *Local) SetOrientation(ctx context.Context, value string) (device.State, error) {
	return l.store.SetLcdOrientation(ctx, value)
}

func (l *Local) SetTheme(ctx context.Context, id string) (device.State, error) {
	return l.store.SetLcdTheme(ctx, id)
}

func (l *Local) Themes(ctx context.Context) ([]ThemeInfo, error) {
	ids := l.themes.List()
	out := make([]ThemeInfo, 0, len(ids))
	for _, id := range ids {
		th, ok := l.themes.Get(id)
		if !ok {
			continue
		}
		out = append(out, ThemeInfo{ID: th.ID, Name: th.Name, Description: th.Description, Widgets: len(th.Widgets)})
	}
	return out, nil
}

func (l *Local) SetRefreshInterval(ctx context.Context, ms int) (device.State, error) {
	return l.store.SetRefreshInterval(ctx, ms)
}

func (l *Local) SetLed(ctx context.Context, theme device.LedTheme, intensity, speed int) (device.State, error) {
	return l.store.SetLed(ctx, theme, intensity, speed)
}

func (l *Local) LedOff(ctx context.Context) (device.State, error) {
	return l.store.LedOff(ctx)
}

// Screenshot encodes the most recently rendered frame as PNG.
func (l *Local) Screenshot(ctx context.Context) ([]byte, error) {
	if l.screen == nil {
		return nil, ErrNoFrame
	}
	c := l.screen.Load()
	if c == nil {
		return nil, ErrNoFrame
	}
	return c.PNG()
}

func (l *Local) ClearDisplay(ctx context.Context, hex string) error {
	c, err := theme.ParseColor(hex)
	if err != nil {
		return device.Invalid("color", "%v", err)
	}
	if l.display == nil {
		return fmt.Errorf("display: %w", device.ErrUnsupported)
	}
	return l.display.Clear(ctx, c)
}

func (l *Local) NetworkInterfaces(ctx context.Context) ([]string, error) {
	if l.interfaces == nil {
		return []string{}, nil
	}
	return l.interfaces()
}

// SetNetworkInterface accepts "auto", an empty name, or a listed interface.
func (l *Local) SetNetworkInterface(ctx context.Context, name string) (device.State, error) {
	name = strings.TrimSpace(name)
	if name != "" && !strings.EqualFold(name, device.AutoDetect) {
		available, err := l.NetworkInterfaces(ctx)
		if err != nil {
			return l.store.Snapshot(), err
		}
		if !slices.Contains(available, name) {
			return l.store.Snapshot(), device.Invalid("network interface", "unknown interface %q (available: %s)", name, strings.Join(available, ", "))
		}
	}
	return l.store.SetNetworkInterface(ctx, name)
}

func (l *Local) SetIPDisplay(ctx context.Context, value string) (device.State, error) {
	return l.store.SetIPDisplay(ctx, value)
}
