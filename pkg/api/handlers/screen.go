package handlers

import (
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/ht32-panel/pkg/animator"
	"github.com/urmzd/ht32-panel/pkg/api/types"
	"github.com/urmzd/ht32-panel/pkg/panel"
	"github.com/urmzd/ht32-panel/pkg/render"
)

// LedFrames exposes the most recent LED animation frame.
type LedFrames interface {
	LedFrame() (animator.Frame, bool)
}

// ScreenHandler serves the rendered LCD frame and the LED animation state
type ScreenHandler struct {
	screen *render.Screen
	frames LedFrames
}

// NewScreenHandler creates a new screen handler. Either source may be nil.
func NewScreenHandler(screen *render.Screen, frames LedFrames) *ScreenHandler {
	return &ScreenHandler{screen: screen, frames: frames}
}

// LcdPNG handles GET /lcd.png
// @Summary      LCD preview
// @Description  Returns the most recently rendered frame as PNG in its logical orientation
// @Tags         lcd
// @Produce      png
// @Success      200  {file}    binary
// @Success      304  {string}  string  "Frame unchanged"
// @Failure      503  {object}  types.ErrorResponse  "No frame rendered yet"
// @Router       /lcd.png [get]
func (h *ScreenHandler) LcdPNG(c *gin.Context) {
	var canvas *render.Canvas
	if h.screen != nil {
		canvas = h.screen.Load()
	}
	if canvas == nil {
		writeError(c, panel.ErrNoFrame)
		return
	}

	etag := fmt.Sprintf("%q", canvas.Digest())
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	png, err := canvas.PNG()
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// LedFrame handles GET /led/frame
// @Summary      LED animation frame
// @Description  Returns the phase, level and colour of the last LED tick
// @Tags         led
// @Produce      json
// @Success      200  {object}  types.LedFrameResponse
// @Failure      503  {object}  types.ErrorResponse  "No tick yet"
// @Router       /led/frame [get]
func (h *ScreenHandler) LedFrame(c *gin.Context) {
	var (
		f  animator.Frame
		ok bool
	)
	if h.frames != nil {
		f, ok = h.frames.LedFrame()
	}
	if !ok {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "no_frame",
			Message: "LED animation has not ticked yet",
		})
		return
	}

	c.JSON(http.StatusOK, types.LedFrameResponse{
		Tick:   f.Tick,
		Theme:  f.Theme.String(),
		Phase:  f.Phase,
		Level:  f.Level,
		Color:  fmt.Sprintf("#%02x%02x%02x", f.Color.R, f.Color.G, f.Color.B),
		Packet: hex.EncodeToString(f.Packet[:]),
	})
}
