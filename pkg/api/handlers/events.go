package handlers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/ht32-panel/pkg/state"
)

// sseHeartbeat is how often an idle event stream is kept alive.
const sseHeartbeat = 30 * time.Second

// EventsHandler streams state changes
type EventsHandler struct {
	store  *state.Store
	buffer int
}

// NewEventsHandler creates a new events handler. Each client gets its own
// subscription of the given buffer size.
func NewEventsHandler(store *state.Store, buffer int) *EventsHandler {
	return &EventsHandler{store: store, buffer: buffer}
}

// Events handles GET /events (SSE stream)
// @Summary      Subscribe to state changes
// @Description  Server-Sent Events stream. The first event carries the current state; each later "state" event carries the changed fields and the new snapshot. Slow clients lose the oldest pending changes.
// @Tags         state
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /events [get]
func (h *EventsHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sub := h.store.Subscribe(h.buffer)
	defer sub.Close()

	sendSSEEvent(c.Writer, "connected", map[string]any{
		"timestamp": time.Now(),
		"state":     h.store.Snapshot(),
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case change, ok := <-sub.C():
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, "state", map[string]any{
				"version": change.Version,
				"fields":  change.Fields,
				"state":   change.State,
				"dropped": sub.Dropped(),
			})
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

// sendSSEEvent writes an SSE event to the response
func sendSSEEvent(w io.Writer, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	io.WriteString(w, "event: "+eventType+"\n")
	io.WriteString(w, "data: "+string(jsonData)+"\n\n")
}
