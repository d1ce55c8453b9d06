package mcp

import (
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/panel"
)

// --- Health Tool ---

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status    string `json:"status" jsonschema:"description=Overall health status (healthy or degraded)"`
	LCD       string `json:"lcd" jsonschema:"description=LCD connection status"`
	LED       string `json:"led" jsonschema:"description=LED strip connection status"`
	Timestamp string `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// --- State Tools ---

// StateOutput is the output for get_state and every command tool
type StateOutput struct {
	State device.State `json:"state" jsonschema:"description=Panel state after the call"`
}

// --- Theme Tools ---

// ListThemesOutput is the output for the list_themes tool
type ListThemesOutput struct {
	Themes []panel.ThemeInfo `json:"themes" jsonschema:"description=Loaded themes"`
	Active string            `json:"active" jsonschema:"description=Active theme id"`
	Count  int               `json:"count" jsonschema:"description=Number of loaded themes"`
}

// --- Network Tools ---

// ListInterfacesOutput is the output for the list_network_interfaces tool
type ListInterfacesOutput struct {
	Interfaces []string `json:"interfaces" jsonschema:"description=Selectable interface names"`
	Active     string   `json:"active" jsonschema:"description=Selected interface or auto"`
	Count      int      `json:"count" jsonschema:"description=Number of interfaces"`
}
