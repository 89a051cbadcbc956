package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/hydrogate/internal/infrastructure/config"
	"github.com/nerrad567/hydrogate/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypePing  = "ping"
	WSTypePong  = "pong"
	WSTypeEvent = "event"
	WSTypeError = "error"

	// EventControlsUpdated is broadcast after a dispense amount changes.
	EventControlsUpdated = "controls.updated"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 64
)

// Fallbacks for zero WebSocket settings.
const (
	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30 // seconds
	defaultWSPongTimeout    = 10 // seconds
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// ControlsUpdatedPayload is the payload of a controls.updated event.
type ControlsUpdatedPayload struct {
	ComponentName  string   `json:"component_name"`
	DispenseAmount *float64 `json:"dispense_amount"`
	RowsAffected   int64    `json:"rows_affected"`
}

// Hub tracks connected dashboard clients and fans events out to them.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub. Zero settings fall back to defaults.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultWSMaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultWSPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultWSPongTimeout
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that removes the client from the map closes its send
// channel, so shutdown and disconnect cannot double-close.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast sends an event to every connected client.
// Slow clients with a full buffer miss the event rather than block the caller.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
	if len(clients) > 0 {
		h.logger.Debug("broadcast sent", "event_type", eventType, "recipients", len(clients))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestID(r.Context()))
		return
	}

	client := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// readPump reads client messages until the connection closes.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		c.handleMessage(message)
	}
}

// writePump writes queued messages and keepalive pings.
func (c *WSClient) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers application-level pings. Clients are receive-only
// otherwise.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend queues data for the client. A closed channel (client disconnected
// mid-broadcast) or a full buffer drops the message.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}
