package types

import (
	"time"

	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/scheduler"
)

// --- Request DTOs ---

// OrientationRequest is the request body for PUT /lcd/orientation
type OrientationRequest struct {
	Orientation string `json:"orientation"`
}

// ThemeRequest is the request body for PUT /lcd/theme
type ThemeRequest struct {
	Theme string `json:"theme"`
}

// RefreshIntervalRequest is the request body for PUT /lcd/refresh-interval
type RefreshIntervalRequest struct {
	RefreshMs int `json:"refresh_ms"`
}

// NetworkInterfaceRequest is the request body for PUT /lcd/network-interface.
// An empty name or "auto" follows the default route.
type NetworkInterfaceRequest struct {
	NetworkInterface string `json:"network_interface" example:"eth0"`
}

// IPDisplayRequest is the request body for PUT /lcd/ip-display
type IPDisplayRequest struct {
	IPDisplay string `json:"ip_display" example:"ipv4"`
}

// ClearRequest is the request body for POST /lcd/clear
type ClearRequest struct {
	Color string `json:"color" example:"#000000"`
}

// LedRequest is the request body for PUT /led. Theme accepts a name or 1-5.
type LedRequest struct {
	Theme     device.LedTheme `json:"theme" swaggertype:"string" example:"breathing"`
	Intensity int             `json:"intensity" example:"3"`
	Speed     int             `json:"speed" example:"3"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string           `json:"status"`
	LCD       string           `json:"lcd"`
	LED       string           `json:"led"`
	Version   string           `json:"version,omitempty"`
	Stats     *scheduler.Stats `json:"stats,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// StateResponse is returned from GET /state and every mutating endpoint
type StateResponse struct {
	State     device.State `json:"state"`
	Timestamp time.Time    `json:"timestamp"`
}

// ThemeInfo describes one loaded LCD theme
type ThemeInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Widgets     int    `json:"widgets"`
	Active      bool   `json:"active"`
}

// ThemesResponse is returned from GET /themes
type ThemesResponse struct {
	Themes []ThemeInfo `json:"themes"`
	Active string      `json:"active"`
	Count  int         `json:"count"`
}

// InterfacesResponse is returned from GET /network/interfaces
type InterfacesResponse struct {
	Interfaces []string `json:"interfaces"`
	Active     string   `json:"active"`
	Count      int      `json:"count"`
}

// LedFrameResponse is returned from GET /led/frame
type LedFrameResponse struct {
	Tick   uint64  `json:"tick"`
	Theme  string  `json:"theme"`
	Phase  float64 `json:"phase"`
	Level  float64 `json:"level"`
	Color  string  `json:"color"`
	Packet string  `json:"packet"`
}
