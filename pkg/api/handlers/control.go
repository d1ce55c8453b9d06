package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/ht32-panel/pkg/api/types"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/device/schema"
	"github.com/urmzd/ht32-panel/pkg/panel"
)

// ControlHandler handles LCD and LED command endpoints
type ControlHandler struct {
	panel     panel.Controller
	validator *schema.Validator
}

// NewControlHandler creates a new control handler
func NewControlHandler(p panel.Controller, validator *schema.Validator) *ControlHandler {
	return &ControlHandler{panel: p, validator: validator}
}

func (h *ControlHandler) respond(c *gin.Context, st device.State, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.StateResponse{
		State:     st,
		Timestamp: time.Now(),
	})
}

// GetState handles GET /state
// @Summary      Get panel state
// @Description  Returns the current configuration and connection status of both peripherals
// @Tags         state
// @Produce      json
// @Success      200  {object}  types.StateResponse
// @Router       /state [get]
func (h *ControlHandler) GetState(c *gin.Context) {
	st, err := h.panel.State(c.Request.Context())
	h.respond(c, st, err)
}

// SetOrientation handles PUT /lcd/orientation
// @Summary      Set LCD orientation
// @Description  Rotates the rendered frame; the next frame is pushed immediately
// @Tags         lcd
// @Accept       json
// @Produce      json
// @Param        request  body      types.OrientationRequest  true  "Orientation"
// @Success      200      {object}  types.StateResponse
// @Failure      400      {object}  types.ErrorResponse  "Unknown orientation"
// @Failure      504      {object}  types.ErrorResponse  "Request timed out"
// @Router       /lcd/orientation [put]
func (h *ControlHandler) SetOrientation(c *gin.Context) {
	var req types.OrientationRequest
	if !bindCommand(c, h.validator, schema.LcdCommandSchema, &req) {
		return
	}
	st, err := h.panel.SetOrientation(c.Request.Context(), req.Orientation)
	h.respond(c, st, err)
}

// SetTheme handles PUT /lcd/theme
// @Summary      Set LCD theme
// @Description  Switches the active theme to one of the loaded theme ids
// @Tags         lcd
// @Accept       json
// @Produce      json
// @Param        request  body      types.ThemeRequest  true  "Theme id"
// @Success      200      {object}  types.StateResponse
// @Failure      400      {object}  types.ErrorResponse  "Unknown theme"
// @Failure      504      {object}  types.ErrorResponse  "Request timed out"
// @Router       /lcd/theme [put]
func (h *ControlHandler) SetTheme(c *gin.Context) {
	var req types.ThemeRequest
	if !bindCommand(c, h.validator, schema.LcdCommandSchema, &req) {
		return
	}
	st, err := h.panel.SetTheme(c.Request.Context(), req.Theme)
	h.respond(c, st, err)
}

// SetRefreshInterval handles PUT /lcd/refresh-interval
// @Summary      Set LCD refresh interval
// @Description  Sets the frame push interval; values are clamped to [1500, 10000] ms
// @Tags         lcd
// @Accept       json
// @Produce      json
// @Param        request  body      types.RefreshIntervalRequest  true  "Interval in milliseconds"
// @Success      200      {object}  types.StateResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid interval"
// @Router       /lcd/refresh-interval [put]
func (h *ControlHandler) SetRefreshInterval(c *gin.Context) {
	var req types.RefreshIntervalRequest
	if !bindCommand(c, h.validator, schema.LcdCommandSchema, &req) {
		return
	}
	st, err := h.panel.SetRefreshInterval(c.Request.Context(), req.RefreshMs)
	h.respond(c, st, err)
}

// ListThemes handles GET /themes
// @Summary      List LCD themes
// @Description  Returns every loaded theme and marks the active one
// @Tags         lcd
// @Produce      json
// @Success      200  {object}  types.ThemesResponse
// @Router       /themes [get]
func (h *ControlHandler) ListThemes(c *gin.Context) {
	ctx := c.Request.Context()

	st, err := h.panel.State(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	infos, err := h.panel.Themes(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	themes := make([]types.ThemeInfo, 0, len(infos))
	for _, info := range infos {
		themes = append(themes, types.ThemeInfo{
			ID:          info.ID,
			Name:        info.Name,
			Description: info.Description,
			Widgets:     info.Widgets,
			Active:      info.ID == st.LCD.Theme,
		})
	}

	c.JSON(http.StatusOK, types.ThemesResponse{
		Themes: themes,
		Active: st.LCD.Theme,
		Count:  len(themes),
	})
}

// SetLed handles PUT /led
// @Summary      Set LED animation
// @Description  Sets theme, intensity and speed together; each is validated against [1, 5]
// @Tags         led
// @Accept       json
// @Produce      json
// @Param        request  body      types.LedRequest  true  "LED setting"
// @Success      200      {object}  types.StateResponse
// @Failure      400      {object}  types.ErrorResponse  "Out of range"
// @Failure      504      {object}  types.ErrorResponse  "Request timed out"
// @Router       /led [put]
func (h *ControlHandler) SetLed(c *gin.Context) {
	var req types.LedRequest
	if !bindCommand(c, h.validator, schema.LedCommandSchema, &req) {
		return
	}
	st, err := h.panel.SetLed(c.Request.Context(), req.Theme, req.Intensity, req.Speed)
	h.respond(c, st, err)
}

// LedOff handles POST /led/off
// @Summary      Turn the LED strip off
// @Tags         led
// @Produce      json
// @Success      200  {object}  types.StateResponse
// @Failure      504  {object}  types.ErrorResponse  "Request timed out"
// @Router       /led/off [post]
func (h *ControlHandler) LedOff(c *gin.Context) {
	st, err := h.panel.LedOff(c.Request.Context())
	h.respond(c, st, err)
}

// ListNetworkInterfaces handles GET /network/interfaces
// @Summary      List network interfaces
// @Description  Returns the interfaces the network widgets can follow
// @Tags         lcd
// @Produce      json
// @Success      200  {object}  types.InterfacesResponse
// @Router       /network/interfaces [get]
func (h *ControlHandler) ListNetworkInterfaces(c *gin.Context) {
	ctx := c.Request.Context()

	names, err := h.panel.NetworkInterfaces(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	st, err := h.panel.State(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.InterfacesResponse{
		Interfaces: names,
		Active:     st.LCD.NetworkInterface,
		Count:      len(names),
	})
}

// SetNetworkInterface handles PUT /lcd/network-interface
// @Summary      Select the monitored network interface
// @Description  Pins the network widgets to one interface; "auto" or an empty name follows the default route
// @Tags         lcd
// @Accept       json
// @Produce      json
// @Param        request  body      types.NetworkInterfaceRequest  true  "Interface name"
// @Success      200      {object}  types.StateResponse
// @Failure      400      {object}  types.ErrorResponse  "Unknown interface"
// @Router       /lcd/network-interface [put]
func (h *ControlHandler) SetNetworkInterface(c *gin.Context) {
	var req types.NetworkInterfaceRequest
	if !bindCommand(c, h.validator, schema.LcdCommandSchema, &req) {
		return
	}
	st, err := h.panel.SetNetworkInterface(c.Request.Context(), req.NetworkInterface)
	h.respond(c, st, err)
}

// SetIPDisplay handles PUT /lcd/ip-display
// @Summary      Set the displayed address family
// @Description  One of ipv6-gua, ipv6-lla, ipv6-ula or ipv4
// @Tags         lcd
// @Accept       json
// @Produce      json
// @Param        request  body      types.IPDisplayRequest  true  "Address preference"
// @Success      200      {object}  types.StateResponse
// @Failure      400      {object}  types.ErrorResponse  "Unknown preference"
// @Router       /lcd/ip-display [put]
func (h *ControlHandler) SetIPDisplay(c *gin.Context) {
	var req types.IPDisplayRequest
	if !bindCommand(c, h.validator, schema.LcdCommandSchema, &req) {
		return
	}
	st, err := h.panel.SetIPDisplay(c.Request.Context(), req.IPDisplay)
	h.respond(c, st, err)
}

// ClearDisplay handles POST /lcd/clear
// @Summary      Fill the LCD with one color
// @Description  The fill stays on screen until the next scheduled refresh
// @Tags         lcd
// @Accept       json
// @Produce      json
// @Param        request  body      types.ClearRequest  true  "Fill color"
// @Success      200      {object}  types.StateResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid color"
// @Failure      501      {object}  types.ErrorResponse  "No display attached"
// @Failure      503      {object}  types.ErrorResponse  "LCD disconnected"
// @Router       /lcd/clear [post]
func (h *ControlHandler) ClearDisplay(c *gin.Context) {
	var req types.ClearRequest
	if !bindCommand(c, h.validator, schema.LcdCommandSchema, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := h.panel.ClearDisplay(ctx, req.Color); err != nil {
		writeError(c, err)
		return
	}
	st, err := h.panel.State(ctx)
	h.respond(c, st, err)
}
