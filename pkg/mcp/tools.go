package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/state"
)

func ipDisplayNames() []string {
	names := make([]string, len(device.IPDisplays))
	for i, d := range device.IPDisplays {
		names[i] = string(d)
	}
	return names
}

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	// Health check
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check whether the LCD and LED strip are connected"),
		),
		s.handleGetHealth,
	)

	// Full state
	s.mcpServer.AddTool(
		mcp.NewTool("get_state",
			mcp.WithDescription("Get the current LCD and LED configuration and connection status"),
		),
		s.handleGetState,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_orientation",
			mcp.WithDescription("Rotate the LCD output"),
			mcp.WithString("orientation",
				mcp.Required(),
				mcp.Description("New orientation"),
				mcp.Enum("landscape", "portrait", "landscape-upside-down", "portrait-upside-down"),
			),
		),
		s.handleSetOrientation,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_themes",
			mcp.WithDescription("List the loaded LCD themes and the active one"),
		),
		s.handleListThemes,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_theme",
			mcp.WithDescription("Switch the LCD to a loaded theme"),
			mcp.WithString("theme",
				mcp.Required(),
				mcp.Description("Theme id as returned by list_themes"),
			),
		),
		s.handleSetTheme,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_refresh_interval",
			mcp.WithDescription("Set how often a new frame is pushed to the LCD"),
			mcp.WithNumber("refresh_ms",
				mcp.Required(),
				mcp.Description("Interval in milliseconds; clamped to the supported range"),
				mcp.Min(state.MinRefreshMs),
				mcp.Max(state.MaxRefreshMs),
			),
		),
		s.handleSetRefreshInterval,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_network_interfaces",
			mcp.WithDescription("List the network interfaces the LCD network widgets can follow"),
		),
		s.handleListNetworkInterfaces,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_network_interface",
			mcp.WithDescription("Pin the network widgets to one interface"),
			mcp.WithString("interface",
				mcp.Description("Interface name from list_network_interfaces; omit or use auto to follow the default route"),
			),
		),
		s.handleSetNetworkInterface,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_ip_display",
			mcp.WithDescription("Choose which address the LCD shows for the monitored interface"),
			mcp.WithString("ip_display",
				mcp.Required(),
				mcp.Enum(ipDisplayNames()...),
			),
		),
		s.handleSetIPDisplay,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("clear_display",
			mcp.WithDescription("Fill the LCD with one color until the next refresh"),
			mcp.WithString("color",
				mcp.Description("Hex color such as #000000; defaults to black"),
			),
		),
		s.handleClearDisplay,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_led",
			mcp.WithDescription("Set the LED strip animation"),
			mcp.WithString("theme",
				mcp.Required(),
				mcp.Description("Animation mode"),
				mcp.Enum("rainbow", "breathing", "colors", "off", "auto"),
			),
			mcp.WithNumber("intensity",
				mcp.Required(),
				mcp.Description("Brightness from 1 to 5"),
				mcp.Min(1),
				mcp.Max(5),
			),
			mcp.WithNumber("speed",
				mcp.Required(),
				mcp.Description("Animation speed from 1 to 5"),
				mcp.Min(1),
				mcp.Max(5),
			),
		),
		s.handleSetLed,
	)

	// Turn off (convenience)
	s.mcpServer.AddTool(
		mcp.NewTool("led_off",
			mcp.WithDescription("Turn the LED strip off, keeping intensity and speed"),
		),
		s.handleLedOff,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_screenshot",
			mcp.WithDescription("Get the most recently rendered LCD frame as a PNG image"),
		),
		s.handleGetScreenshot,
	)
}
