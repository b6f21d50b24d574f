// Package ws bridges arbitrage events from the signal bus to WebSocket
// clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 256
)

// DefaultChannel is the signal bus channel carrying check events.
const DefaultChannel = "arb"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client represents a single WebSocket connection. An empty symbols set means
// the client receives every event.
type client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once

	mu      sync.RWMutex
	symbols map[string]bool
}

// filterMsg is the JSON message a client sends to narrow or widen the events
// it receives, e.g. {"action":"subscribe","symbols":["BTCUSDT"]}.
type filterMsg struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// Config captures runtime metadata sent to clients on connect.
type Config struct {
	Mode      string
	Channel   string
	Exchanges []domain.ExchangeID
	StartedAt time.Time
}

// Hub manages the connected WebSocket clients and fans out every message
// received on the signal bus channel to them.
type Hub struct {
	bus       domain.SignalBus
	channel   string
	mode      string
	exchanges []domain.ExchangeID
	startedAt time.Time
	logger    *slog.Logger

	mu      sync.RWMutex
	clients map[*client]bool
	closed  bool
}

// NewHub creates a hub reading from bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.TrimSpace(strings.ToLower(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		bus:       bus,
		channel:   channel,
		mode:      mode,
		exchanges: cfg.Exchanges,
		startedAt: startedAt,
		logger:    logger.With(slog.String("component", "ws")),
		clients:   make(map[*client]bool),
	}
}

// Run subscribes to the bus and broadcasts until ctx is cancelled. Every
// client is disconnected when Run returns.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()

	msgs, err := h.bus.Subscribe(ctx, h.channel)
	if err != nil {
		return err
	}
	h.logger.Info("ws: subscribed", slog.String("channel", h.channel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				h.logger.Warn("ws: subscription closed", slog.String("channel", h.channel))
				return nil
			}
			h.Broadcast(data)
		}
	}
}

// Broadcast delivers data to every client whose filter matches the symbol of
// the event. Slow clients drop messages rather than block the hub.
func (h *Hub) Broadcast(data []byte) {
	symbol := eventSymbol(data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(symbol) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws: dropping message for slow client")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades an HTTP request to a WebSocket connection.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		symbols: make(map[string]bool),
	}
	for _, s := range r.URL.Query()["symbol"] {
		c.setFilter("subscribe", strings.Split(s, ","))
	}

	c.sendStatus()
	if !h.add(c) {
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client connected", slog.Int("total_clients", n))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.close()
		h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]bool)
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

// eventSymbol extracts check.symbol from a published event, or "".
func eventSymbol(data []byte) string {
	var ev struct {
		Check struct {
			Symbol string `json:"symbol"`
		} `json:"check"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ""
	}
	return ev.Check.Symbol
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *client) wants(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols) == 0 || c.symbols[symbol]
}

func (c *client) setFilter(action string, symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		switch action {
		case "subscribe":
			c.symbols[s] = true
		case "unsubscribe":
			delete(c.symbols, s)
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
		var msg filterMsg
		if err := json.Unmarshal(message, &msg); err == nil && msg.Action != "" {
			c.setFilter(msg.Action, msg.Symbols)
		}
	}
}

// sendStatus pushes a status envelope so clients can mark the connection
// healthy before any event arrives.
func (c *client) sendStatus() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	msg, err := json.Marshal(map[string]any{
		"type": "status",
		"payload": map[string]any{
			"mode":           c.hub.mode,
			"channel":        c.hub.channel,
			"exchanges":      c.hub.exchanges,
			"uptime_seconds": uptime,
		},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
