package mqtt

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/device/schema"
	"github.com/urmzd/ht32-panel/pkg/panel"
)

type ledCommand struct {
	Theme     device.LedTheme `json:"theme"`
	Intensity int             `json:"intensity"`
	Speed     int             `json:"speed"`
}

// Dispatch applies one command message. Scalar commands accept either a
// bare value or a JSON object keyed like the HTTP request bodies.
func Dispatch(ctx context.Context, p panel.Controller, validator *schema.Validator, name string, payload []byte) (device.State, error) {
	switch name {
	case CommandOrientation:
		v, err := scalar(payload, "orientation")
		if err != nil {
			return device.State{}, err
		}
		return p.SetOrientation(ctx, v)

	case CommandTheme:
		v, err := scalar(payload, "theme")
		if err != nil {
			return device.State{}, err
		}
		return p.SetTheme(ctx, v)

	case CommandRefresh:
		v, err := scalar(payload, "refresh_ms")
		if err != nil {
			return device.State{}, err
		}
		ms, err := strconv.Atoi(v)
		if err != nil {
			return device.State{}, device.Invalid("refresh interval", "%q is not an integer", v)
		}
		return p.SetRefreshInterval(ctx, ms)

	case CommandLed:
		var raw map[string]any
		if err := json.Unmarshal(payload, &raw); err != nil {
			return device.State{}, device.Invalid("led", "payload is not a JSON object")
		}
		if validator != nil {
			if err := validator.Validate(schema.LedCommandSchema, raw); err != nil {
				return device.State{}, device.Invalid("led", "%v", err)
			}
		}
		var cmd ledCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return device.State{}, device.Invalid("led", "%v", err)
		}
		return p.SetLed(ctx, cmd.Theme, cmd.Intensity, cmd.Speed)

	case CommandLedOff:
		return p.LedOff(ctx)

	case CommandNetwork:
		// An empty payload selects automatically.
		if strings.TrimSpace(string(payload)) == "" {
			return p.SetNetworkInterface(ctx, device.AutoDetect)
		}
		v, err := scalar(payload, "interface")
		if err != nil {
			return device.State{}, err
		}
		return p.SetNetworkInterface(ctx, v)

	case CommandIPDisplay:
		v, err := scalar(payload, "ip_display")
		if err != nil {
			return device.State{}, err
		}
		return p.SetIPDisplay(ctx, v)

	case CommandClear:
		v, err := scalar(payload, "color")
		if err != nil {
			return device.State{}, err
		}
		if err := p.ClearDisplay(ctx, v); err != nil {
			return device.State{}, err
		}
		return p.State(ctx)

	default:
		return device.State{}, device.Invalid("command", "unknown command %q", name)
	}
}

// scalar reads a bare value, a JSON string or number, or {key: value}.
func scalar(payload []byte, key string) (string, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return "", device.Invalid(key, "empty payload")
	}
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, `"`) {
		return text, nil
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return "", device.Invalid(key, "malformed JSON payload")
	}
	if obj, ok := v.(map[string]any); ok {
		v, ok = obj[key]
		if !ok {
			return "", device.Invalid(key, "missing %q", key)
		}
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", device.Invalid(key, "unsupported value %v", v)
	}
}
