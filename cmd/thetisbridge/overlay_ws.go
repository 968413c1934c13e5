package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Overlay WebSocket: hub + per-client pumps
// ============================================================================
//
// The overlay feedback sink. Overlay clients (cmd/thetis-overlay) connect and
// receive:
//
//	{"type":"notify","ts":...,"data":{"message":"Step tune 50Hz","duration_ms":4000}}
//	{"type":"show_menu","ts":...,"data":{"options":["VFO A Control",...],"selected":0}}
//
// and may send back:
//
//	{"type":"menu_selected","data":{"index":1}}
//
// which is delivered to the selection callback registered at construction.
// Slow clients are disconnected when their send buffer fills.
//
// ============================================================================

type wsNotifyData struct {
	Message    string `json:"message"`
	DurationMS int64  `json:"duration_ms"`
}

type wsShowMenuData struct {
	Options  []string `json:"options"`
	Selected int      `json:"selected"`
}

type wsMenuSelectedData struct {
	Index int `json:"index"`
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size. Zero selects 32.
	SendBuf int
	// BroadcastBuf is the hub inbound broadcast queue size. Zero selects 128.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("overlay hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("overlay hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("overlay client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send signals writePump to exit.
		safeCloseChan(c.send)

		h.logger.Info("overlay client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("overlay broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger

	// onMessage receives every inbound text frame.
	onMessage func(c *Client, msg []byte)
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// closeStatus extracts a human-readable websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump, kind string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("overlay "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("overlay "+pump+" exiting ("+kind+" error)", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed: hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", "write", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", "ping", err)
				return
			}
		}
	}
}

// readPump delivers inbound frames to onMessage. It exits on read error,
// then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		mt, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.logExit("readPump", "read", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
		// Any inbound frame proves liveness.
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt == websocket.TextMessage && c.onMessage != nil {
			c.onMessage(c, msg)
		}
	}
}

// ============================================================================
// Overlay server: FeedbackSink over the hub
// ============================================================================

// OverlayServer is the websocket feedback sink.
type OverlayServer struct {
	logger *slog.Logger
	hub    *Hub

	notifyTime time.Duration
	onSelect   func(index int)
}

// NewOverlayServer constructs the sink. onSelect is called from client read
// pumps for every menu selection and must not block for long.
func NewOverlayServer(logger *slog.Logger, cfg HubConfig, onSelect func(index int)) *OverlayServer {
	return &OverlayServer{
		logger:     logger,
		hub:        NewHub(logger, cfg),
		notifyTime: overlayNotifyTime,
		onSelect:   onSelect,
	}
}

func (s *OverlayServer) Hub() *Hub { return s.hub }

// Register registers the WS handler on the provided mux.
func (s *OverlayServer) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleOverlayWS)
}

var upgrader = websocket.Upgrader{
	// The listener is loopback-only by default.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *OverlayServer) handleOverlayWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("overlay upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)
	client.onMessage = s.handleInbound

	s.hub.register <- client

	// Pumps outlive the HTTP handler; the hub and websocket errors end them.
	go client.writePump(context.Background())
	go client.readPump(context.Background())
}

func (s *OverlayServer) handleInbound(c *Client, msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		s.logger.Warn("overlay message invalid", "remote_addr", c.remoteAddr, "error", err)
		return
	}
	switch env.Type {
	case "menu_selected":
		var d wsMenuSelectedData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			s.logger.Warn("overlay menu_selected invalid", "remote_addr", c.remoteAddr, "error", err)
			return
		}
		if s.onSelect != nil {
			s.onSelect(d.Index)
		}
	default:
		s.logger.Debug("overlay message ignored", "remote_addr", c.remoteAddr, "type", env.Type)
	}
}

func (s *OverlayServer) broadcast(typ string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("overlay marshal failed", "error", err, "type", typ)
		return
	}
	now := time.Now().UTC()
	msg, err := json.Marshal(envelope{Type: typ, Ts: &now, Data: raw})
	if err != nil {
		s.logger.Warn("overlay marshal failed", "error", err, "type", typ)
		return
	}
	s.hub.BroadcastBytes(msg)
}

// Notify shows message on every overlay for the notification period.
func (s *OverlayServer) Notify(message string) {
	s.broadcast("notify", wsNotifyData{
		Message:    message,
		DurationMS: s.notifyTime.Milliseconds(),
	})
}

// ShowMenu opens the selection menu on every overlay.
func (s *OverlayServer) ShowMenu(options []string, selected int) {
	s.broadcast("show_menu", wsShowMenuData{
		Options:  options,
		Selected: selected,
	})
}
