package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/urmzd/ht32-panel/pkg/device"
)

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.panel.State(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get state: %s", err)), nil
	}

	status := "healthy"
	if !st.LCD.Connected || !st.LED.Connected {
		status = "degraded"
	}

	out := GetHealthOutput{
		Status:    status,
		LCD:       connection(st.LCD.Connected),
		LED:       connection(st.LED.Connected),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.panel.State(ctx)
	return stateResult(st, err, "get state")
}

func (s *Server) handleSetOrientation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orientation, err := requiredString(request, "orientation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := s.panel.SetOrientation(ctx, orientation)
	return stateResult(st, err, "set orientation")
}

func (s *Server) handleListThemes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.panel.State(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get state: %s", err)), nil
	}
	themes, err := s.panel.Themes(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list themes: %s", err)), nil
	}

	out := ListThemesOutput{
		Themes: themes,
		Active: st.LCD.Theme,
		Count:  len(themes),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSetTheme(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "theme")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := s.panel.SetTheme(ctx, id)
	return stateResult(st, err, "set theme")
}

func (s *Server) handleSetRefreshInterval(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ms, err := requiredInt(request, "refresh_ms")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := s.panel.SetRefreshInterval(ctx, ms)
	return stateResult(st, err, "set refresh interval")
}

func (s *Server) handleSetLed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	theme, err := ledTheme(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	intensity, err := requiredInt(request, "intensity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	speed, err := requiredInt(request, "speed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := s.panel.SetLed(ctx, theme, intensity, speed)
	return stateResult(st, err, "set led")
}

func (s *Server) handleLedOff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.panel.LedOff(ctx)
	return stateResult(st, err, "turn led off")
}

func (s *Server) handleListNetworkInterfaces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.panel.NetworkInterfaces(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list interfaces: %s", err)), nil
	}
	st, err := s.panel.State(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get state: %s", err)), nil
	}

	out := ListInterfacesOutput{
		Interfaces: names,
		Active:     st.LCD.NetworkInterface,
		Count:      len(names),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSetNetworkInterface(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := optionalString(request, "interface", device.AutoDetect)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := s.panel.SetNetworkInterface(ctx, name)
	return stateResult(st, err, "set network interface")
}

func (s *Server) handleSetIPDisplay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value, err := requiredString(request, "ip_display")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := s.panel.SetIPDisplay(ctx, value)
	return stateResult(st, err, "set ip display")
}

func (s *Server) handleClearDisplay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hex, err := optionalString(request, "color", "#000000")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.panel.ClearDisplay(ctx, hex); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear display: %s", err)), nil
	}
	st, err := s.panel.State(ctx)
	return stateResult(st, err, "get state")
}

func (s *Server) handleGetScreenshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	png, err := s.panel.Screenshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get screenshot: %s", err)), nil
	}
	return mcp.NewToolResultImage("Current LCD frame", base64.StdEncoding.EncodeToString(png), "image/png"), nil
}

// --- helpers ---

func stateResult(st device.State, err error, action string) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %s", action, err)), nil
	}
	return mcp.NewToolResultText(formatJSON(StateOutput{State: st})), nil
}

func connection(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

// optionalString returns def when key is absent or empty.
func optionalString(request mcp.CallToolRequest, key, def string) (string, error) {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", key)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// requiredInt accepts a JSON number with no fractional part.
func requiredInt(request mcp.CallToolRequest, key string) (int, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("required parameter %q is missing", key)
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("parameter %q must be an integer", key)
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("parameter %q must be a number", key)
	}
}

// ledTheme accepts a mode name or its number.
func ledTheme(request mcp.CallToolRequest) (device.LedTheme, error) {
	v, ok := request.GetArguments()["theme"]
	if !ok || v == nil {
		return 0, fmt.Errorf("required parameter %q is missing", "theme")
	}
	switch t := v.(type) {
	case string:
		return device.ParseLedTheme(t)
	case float64:
		return device.ParseLedTheme(fmt.Sprint(int(t)))
	default:
		return 0, fmt.Errorf("parameter %q must be a mode name", "theme")
	}
}

func formatJSON(v any) string {
	b, err := encodeJSON(v)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}

func encodeJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
