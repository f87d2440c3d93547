package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-valve/internal/auth"
	"github.com/nerrad567/gray-logic-valve/internal/controller"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/logging"
)

// Frame types on the event stream.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameEvent       = "event"
	FrameResponse    = "response"
	FrameError       = "error"

	// clientQueueSize bounds the frames waiting for a slow client.
	clientQueueSize = 256
)

// Frame is one JSON message on the event stream, in either direction.
// Event frames carry their channel in EventType.
type Frame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ChannelsPayload is the payload of subscribe and unsubscribe frames.
type ChannelsPayload struct {
	Channels []string `json:"channels"`
}

// eventChannels are the channels the controller broadcasts on.
var eventChannels = map[string]bool{
	controller.EventCommand: true,
	controller.EventState:   true,
}

var _ controller.Broadcaster = (*Hub)(nil)

// Hub fans controller events out to websocket clients by channel.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// wsClient is one connection. Its queue is closed exactly once, by close.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn

	mu       sync.RWMutex
	queue    chan []byte
	closed   bool
	channels map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The CORS middleware decides which origins get this far.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub returns an empty hub. Run must be started for clients to be
// released on shutdown.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// Broadcast implements controller.Broadcaster. Frames for a client whose
// queue is full are dropped.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeFrame(FrameEvent, "", channel, payload)
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients {
		if c.subscribed(channel) && c.enqueue(data) {
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "recipients", delivered)
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// handleWebSocket upgrades the connection. With a configured secret the
// token query parameter must carry a token with read scope.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.cfg.JWTSecret != "" {
		token := r.URL.Query().Get("token")
		if token == "" {
			writeUnauthorized(w, "token query parameter is required")
			return
		}
		if _, err := s.authorize(token, auth.ScopeRead); err != nil {
			writeUnauthorized(w, "invalid or expired token")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		queue:    make(chan []byte, clientQueueSize),
		channels: make(map[string]struct{}),
	}
	s.hub.add(c)

	go c.writeLoop(s.wsCfg)
	go c.readLoop(s.wsCfg)
}

// readLoop handles client frames until the connection fails or goes quiet
// for longer than a ping interval plus the pong timeout.
func (c *wsClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	quiet := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(quiet))
	}

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend("") //nolint:errcheck // failure surfaces on the next read
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		extend("") //nolint:errcheck // failure surfaces on the next read
		c.handle(data)
	}
}

// writeLoop drains the queue and pings the client. A closed queue ends the
// connection with a close frame.
func (c *wsClient) writeLoop(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	wait := time.Duration(cfg.PongTimeout) * time.Second
	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(wait)) //nolint:errcheck // failure surfaces on the write
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // connection is closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handle(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch f.Type {
	case FrameSubscribe, FrameUnsubscribe:
		c.handleChannels(f)
	case FramePing:
		c.reply(FramePong, f.ID, nil)
	default:
		c.replyError(f.ID, "unknown message type: "+f.Type)
	}
}

// handleChannels applies a subscribe or unsubscribe frame. One unknown
// channel rejects the whole frame.
func (c *wsClient) handleChannels(f Frame) {
	var p ChannelsPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil || len(p.Channels) == 0 {
		c.replyError(f.ID, "payload must list channels")
		return
	}
	for _, ch := range p.Channels {
		if !eventChannels[ch] {
			c.replyError(f.ID, "unknown channel: "+ch)
			return
		}
	}

	subscribe := f.Type == FrameSubscribe
	c.mu.Lock()
	for _, ch := range p.Channels {
		if subscribe {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket channels changed", "frame", f.Type, "channels", p.Channels)

	key := "unsubscribed"
	if subscribe {
		key = "subscribed"
	}
	c.reply(FrameResponse, f.ID, map[string][]string{key: p.Channels})
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// enqueue reports whether data was queued. It never blocks.
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

func (c *wsClient) reply(frameType, id string, payload any) {
	data, err := encodeFrame(frameType, id, "", payload)
	if err != nil {
		c.hub.logger.Error("encoding websocket reply", "frame", frameType, "error", err)
		return
	}
	c.enqueue(data)
}

func (c *wsClient) replyError(id, message string) {
	c.reply(FrameError, id, map[string]string{"message": message})
}

func encodeFrame(frameType, id, eventType string, payload any) ([]byte, error) {
	f := Frame{
		Type:      frameType,
		ID:        id,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		f.Payload = raw
	}
	return json.Marshal(f)
}
