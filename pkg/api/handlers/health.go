package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/ht32-panel/pkg/api/types"
	"github.com/urmzd/ht32-panel/pkg/scheduler"
	"github.com/urmzd/ht32-panel/pkg/state"
)

// StatsSource reports scheduler counters.
type StatsSource interface {
	Stats() scheduler.Stats
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store   *state.Store
	stats   StatsSource
	version string
}

// NewHealthHandler creates a new health handler. stats may be nil.
func NewHealthHandler(store *state.Store, stats StatsSource, version string) *HealthHandler {
	return &HealthHandler{store: store, stats: stats, version: version}
}

func connection(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}

// Health handles GET /health
// @Summary      Health check
// @Description  Reports peripheral connectivity and scheduler counters
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Both peripherals connected"
// @Failure      503  {object}  types.HealthResponse  "A peripheral is disconnected"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	st := h.store.Snapshot()

	status := "healthy"
	httpStatus := http.StatusOK
	if !st.LCD.Connected || !st.LED.Connected {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	resp := types.HealthResponse{
		Status:    status,
		LCD:       connection(st.LCD.Connected),
		LED:       connection(st.LED.Connected),
		Version:   h.version,
		Timestamp: time.Now(),
	}
	if h.stats != nil {
		stats := h.stats.Stats()
		resp.Stats = &stats
	}

	c.JSON(httpStatus, resp)
}
