package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/panel"
	"github.com/urmzd/ht32-panel/pkg/state"
)

// WebSocket message types.
const (
	WSTypePing               = "ping"
	WSTypePong               = "pong"
	WSTypeGetState           = "get_state"
	WSTypeSetOrientation     = "set_orientation"
	WSTypeSetTheme           = "set_theme"
	WSTypeSetRefreshInterval = "set_refresh_interval"
	WSTypeSetLed             = "set_led"
	WSTypeLedOff             = "led_off"
	WSTypeSetNetwork         = "set_network_interface"
	WSTypeSetIPDisplay       = "set_ip_display"
	WSTypeClearDisplay       = "clear_display"
	WSTypeState              = "state"
	WSTypeResponse           = "response"
	WSTypeError              = "error"
)

const (
	wsSendBufferSize = 64
	wsMaxMessageSize = 4096
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 60 * time.Second
	wsWriteWait      = 10 * time.Second
	wsCommandTimeout = 5 * time.Second
)

// WSMessage is a message sent to or from a WebSocket client.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	// Dropped counts state changes this client missed. Only set on
	// "state" pushes once the client has fallen behind.
	Dropped uint64 `json:"dropped,omitempty"`
}

// wsCommand carries the union of every command's parameters.
type wsCommand struct {
	Orientation string          `json:"orientation"`
	Theme       json.RawMessage `json:"theme"`
	RefreshMs   int             `json:"refresh_ms"`
	Intensity   int             `json:"intensity"`
	Speed       int             `json:"speed"`
	Interface   string          `json:"network_interface"`
	IPDisplay   string          `json:"ip_display"`
	Color       string          `json:"color"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// WebSocketHandler streams state changes and accepts commands over one
// connection.
type WebSocketHandler struct {
	panel  panel.Controller
	store  *state.Store
	buffer int
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(p panel.Controller, store *state.Store, buffer int) *WebSocketHandler {
	return &WebSocketHandler{panel: p, store: store, buffer: buffer}
}

type wsClient struct {
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	sub   *state.Subscription
	panel panel.Controller
}

// Serve handles GET /ws
// @Summary      WebSocket control channel
// @Description  Pushes a "state" message on every change and accepts command messages (set_orientation, set_theme, set_refresh_interval, set_led, led_off, set_network_interface, set_ip_display, clear_display, get_state, ping)
// @Tags         state
// @Success      101  {string}  string  "Switching protocols"
// @Router       /ws [get]
func (h *WebSocketHandler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:  conn,
		send:  make(chan []byte, wsSendBufferSize),
		done:  make(chan struct{}),
		sub:   h.store.Subscribe(h.buffer),
		panel: h.panel,
	}
	log.Debug().Str("subscriber", client.sub.ID).Msg("WebSocket client connected")

	ctx := c.Request.Context()
	client.push(WSTypeState, "", h.store.Snapshot())
	go client.writePump()
	go client.closeOnShutdown(ctx)
	client.readPump(ctx)
	log.Debug().Str("subscriber", client.sub.ID).Msg("WebSocket client disconnected")
}

// readPump reads commands until the connection fails.
func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		close(c.done)
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		c.handleMessage(ctx, message)
	}
}

// closeOnShutdown ends the session when the server stops. Hijacked
// connections are not tracked by http.Server.Shutdown.
func (c *wsClient) closeOnShutdown(ctx context.Context) {
	select {
	case <-c.done:
	case <-ctx.Done():
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.conn.Close()
	}
}

// writePump is the connection's only writer of data frames.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var message []byte
		select {
		case <-c.done:
			return
		case message = <-c.send:
		case change, ok := <-c.sub.C():
			if !ok {
				return
			}
			data, err := encodeState(change.State, c.sub.Dropped())
			if err != nil {
				log.Warn().Err(err).Msg("WebSocket state encode failed")
				continue
			}
			message = data
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (c *wsClient) handleMessage(ctx context.Context, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.push(WSTypeError, "", map[string]string{"error": "invalid JSON message"})
		return
	}
	if msg.Type == WSTypePing {
		c.push(WSTypePong, msg.ID, nil)
		return
	}

	var cmd wsCommand
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
			c.push(WSTypeError, msg.ID, map[string]string{"error": "invalid payload"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(ctx, wsCommandTimeout)
	defer cancel()

	var (
		st  device.State
		err error
	)
	switch msg.Type {
	case WSTypeGetState:
		st, err = c.panel.State(ctx)
	case WSTypeSetOrientation:
		st, err = c.panel.SetOrientation(ctx, cmd.Orientation)
	case WSTypeSetTheme:
		var id string
		if err = json.Unmarshal(cmd.Theme, &id); err != nil {
			err = device.Invalid("theme", "expected a theme id")
			break
		}
		st, err = c.panel.SetTheme(ctx, id)
	case WSTypeSetRefreshInterval:
		st, err = c.panel.SetRefreshInterval(ctx, cmd.RefreshMs)
	case WSTypeSetLed:
		var t device.LedTheme
		if err = t.UnmarshalJSON(cmd.Theme); err != nil {
			break
		}
		st, err = c.panel.SetLed(ctx, t, cmd.Intensity, cmd.Speed)
	case WSTypeLedOff:
		st, err = c.panel.LedOff(ctx)
	case WSTypeSetNetwork:
		st, err = c.panel.SetNetworkInterface(ctx, cmd.Interface)
	case WSTypeSetIPDisplay:
		st, err = c.panel.SetIPDisplay(ctx, cmd.IPDisplay)
	case WSTypeClearDisplay:
		if err = c.panel.ClearDisplay(ctx, cmd.Color); err == nil {
			st, err = c.panel.State(ctx)
		}
	default:
		c.push(WSTypeError, msg.ID, map[string]string{"error": "unknown message type: " + msg.Type})
		return
	}

	if err != nil {
		c.push(WSTypeError, msg.ID, map[string]string{"error": err.Error()})
		return
	}
	c.push(WSTypeResponse, msg.ID, st)
}

func encodeState(st device.State, dropped uint64) ([]byte, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{
		Type:      WSTypeState,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   raw,
		Dropped:   dropped,
	})
}

func encodeWS(msgType, id string, payload any) ([]byte, error) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}
	return json.Marshal(msg)
}

// push queues a message, dropping it when the client is gone or its
// buffer is full.
func (c *wsClient) push(msgType, id string, payload any) {
	data, err := encodeWS(msgType, id, payload)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
	}
}
