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
// Level Monitor: hub + per-client pumps + broadcaster
// ============================================================================
//
// A read-only websocket feed of the meter for dashboards and debugging.
//
//   - The control loop calls Publish, which never blocks (drop on full).
//   - A broadcaster goroutine marshals samples and fans them out via the Hub.
//   - Each client has its own write pump so one slow client doesn't block
//     others; clients that can't keep up are disconnected.
//
// Messages are JSON text frames with an envelope: {type, ts, data}.
// The first message on connect is "level_init" with the latest sample,
// followed by one "level" message per tick.
// ============================================================================

// wsLevelData is the JSON `data` payload for "level" and "level_init".
type wsLevelData struct {
	Percent    int   `json:"percent"`
	Output     int   `json:"output"`
	Level      int   `json:"level"`
	Loudness   int64 `json:"loudness"`
	Suppressed bool  `json:"suppressed"`
	Playing    bool  `json:"playing"`
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalSample(msgType string, s Sample) ([]byte, error) {
	ts := s.At.UTC()
	if s.At.IsZero() {
		ts = time.Now().UTC()
	}
	return json.Marshal(envelope{
		Type: msgType,
		Ts:   &ts,
		Data: wsLevelData{
			Percent:    s.Percent,
			Output:     s.Output,
			Level:      s.Level,
			Loudness:   s.Loudness,
			Suppressed: s.Suppressed,
			Playing:    s.Playing,
		},
	})
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
	// SendBuf is the per-client outbound queue size.
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size.
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
		bcastBuf = 64
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("monitor client connected", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients first, remove them after unlocking.
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

// ClientCount returns the number of connected clients.
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

		h.logger.Info("monitor client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// BroadcastBytes enqueues a pre-serialized frame. It never blocks; if the
// hub queue is full the frame is dropped (the next tick supersedes it).
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Debug("monitor broadcast queue full, dropping frame", "bytes", len(msg))
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

// closeStatus extracts a websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Debug("monitor "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Debug("monitor "+pump+" exiting", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes queued frames to the websocket.
// It exits on write error or when send is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump discards incoming messages; the feed is read-only. It only
// exists to process control frames and notice disconnects.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// Monitor: HTTP handler + broadcaster
// ============================================================================

type Monitor struct {
	logger *slog.Logger
	hub    *Hub

	samples chan Sample

	mu   sync.Mutex
	last []byte // latest sample encoded as level_init
}

func NewMonitor(logger *slog.Logger, cfg HubConfig) *Monitor {
	return &Monitor{
		logger:  logger,
		hub:     NewHub(logger, cfg),
		samples: make(chan Sample, 8),
	}
}

func (m *Monitor) Hub() *Hub { return m.hub }

// Publish hands a sample to the broadcaster. It never blocks the caller.
func (m *Monitor) Publish(s Sample) {
	select {
	case m.samples <- s:
	default:
	}
}

// Register registers the WS handler on the provided mux.
func (m *Monitor) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, m.handleLevelWS)
}

// Run starts the hub and broadcasts published samples until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	go m.hub.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-m.samples:
			msg, err := marshalSample("level", s)
			if err != nil {
				m.logger.Warn("monitor marshal failed", "error", err)
				continue
			}
			if initMsg, err := marshalSample("level_init", s); err == nil {
				m.mu.Lock()
				m.last = initMsg
				m.mu.Unlock()
			}
			m.hub.BroadcastBytes(msg)
		}
	}
}

var upgrader = websocket.Upgrader{
	// Read-only feed on a LAN device; any origin may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLevelWS upgrades and registers a client, then sends level_init.
func (m *Monitor) handleLevelWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("monitor upgrade failed", "error", err)
		return
	}

	client := NewClient(m.hub, conn, r.RemoteAddr, m.logger)

	// Queue the init frame before registering so it is the first message.
	m.mu.Lock()
	initMsg := m.last
	m.mu.Unlock()
	if initMsg != nil {
		client.send <- initMsg
	}

	m.hub.register <- client

	// Pumps must outlive the request context, which net/http cancels as
	// soon as this handler returns.
	go client.writePump()
	go client.readPump()
}

// runMonitorServer serves handler on addr and shuts down gracefully when ctx
// is canceled.
func runMonitorServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	logger.Info("monitor listening", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		// ListenAndServe returns http.ErrServerClosed on Shutdown.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
