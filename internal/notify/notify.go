// Package notify speaks the LiveReload protocol (version 7) to browser
// extensions and injected livereload.js clients over a websocket.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/livereload/internal/idgen"
	"github.com/hazyhaar/livereload/internal/sink"
	"github.com/hazyhaar/livereload/reloader"
)

// ProtocolV7 is the protocol URL clients must offer in their hello.
const ProtocolV7 = "http://livereload.com/protocols/official-7"

// ServerName is announced in the server hello.
const ServerName = "livereload-go"

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
	sendQueue = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// Message is any frame exchanged on the socket. Fields that do not apply
// to a command are omitted.
type Message struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`

	Path         string `json:"path,omitempty"`
	LiveCSS      *bool  `json:"liveCSS,omitempty"`
	LiveImg      *bool  `json:"liveImg,omitempty"`
	OriginalPath string `json:"originalPath,omitempty"`
	OverrideURL  string `json:"overrideURL,omitempty"`
	ServerURL    string `json:"serverURL,omitempty"`

	URL     string          `json:"url,omitempty"`
	Plugins json.RawMessage `json:"plugins,omitempty"`
}

// ReloadMessage builds the reload frame for a change.
func ReloadMessage(c reloader.Change) Message {
	return Message{
		Command:     "reload",
		Path:        c.Path,
		LiveCSS:     &c.Options.LiveCSS,
		LiveImg:     &c.Options.LiveImg,
		OverrideURL: c.Options.OverrideURL,
		ServerURL:   c.Options.ServerURL,
	}
}

// Config configures a Hub.
type Config struct {
	// OnClients is called with the number of handshaken clients whenever it
	// changes.
	OnClients func(n int)
	Logger    *slog.Logger
}

// Hub tracks connected clients and pushes changes to them.
type Hub struct {
	logger    *slog.Logger
	onClients func(int)
	newID     idgen.Generator

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

type client struct {
	id     string
	send   chan Message
	cancel context.CancelFunc
	ready  bool
}

// NewHub creates an empty hub.
func NewHub(cfg Config) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Hub{
		logger:    cfg.Logger,
		onClients: cfg.OnClients,
		newID:     idgen.Prefixed("ws_", idgen.Short(8)),
		clients:   make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and serves one client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("notify: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{id: h.newID(), send: make(chan Message, sendQueue), cancel: cancel}
	if !h.add(c) {
		return
	}
	defer h.remove(c)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, c)
	}()

	h.readLoop(conn, c)
	cancel()
	<-writerDone
}

func (h *Hub) readLoop(conn *websocket.Conn, c *client) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("notify: read failed", "client", c.id, "error", err)
			}
			return
		}
		switch msg.Command {
		case "hello":
			if !slices.Contains(msg.Protocols, ProtocolV7) {
				h.logger.Warn("notify: client lacks protocol 7", "client", c.id, "protocols", msg.Protocols)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseProtocolError, "protocol 7 required"),
					time.Now().Add(writeWait))
				return
			}
			h.ready(c)
			h.enqueue(c, Message{Command: "hello", Protocols: []string{ProtocolV7}, ServerName: ServerName})
		case "info":
			h.logger.Info("notify: client info", "client", c.id, "url", msg.URL)
		default:
			h.logger.Debug("notify: unknown command", "client", c.id, "command", msg.Command)
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("notify: write failed", "client", c.id, "error", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	h.logger.Debug("notify: client connected", "client", c.id)
	return true
}

func (h *Hub) ready(c *client) {
	h.mu.Lock()
	if c.ready {
		h.mu.Unlock()
		return
	}
	c.ready = true
	n := h.countLocked()
	h.mu.Unlock()
	h.notifyClients(n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	wasReady := c.ready
	n := h.countLocked()
	h.mu.Unlock()
	h.logger.Debug("notify: client disconnected", "client", c.id)
	if wasReady {
		h.notifyClients(n)
	}
}

func (h *Hub) notifyClients(n int) {
	if h.onClients != nil {
		h.onClients(n)
	}
}

func (h *Hub) countLocked() int {
	n := 0
	for _, c := range h.clients {
		if c.ready {
			n++
		}
	}
	return n
}

func (h *Hub) enqueue(c *client, msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		h.logger.Warn("notify: client queue full, dropping message", "client", c.id, "command", msg.Command)
		return false
	}
}

// Clients returns the number of clients that completed the handshake.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.countLocked()
}

// Send pushes a reload frame to every handshaken client.
func (h *Hub) Send(_ context.Context, change reloader.Change) (sink.Report, error) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.ready {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	msg := ReloadMessage(change)
	var rep sink.Report
	for _, c := range targets {
		if h.enqueue(c, msg) {
			rep.Recipients++
		}
	}
	return rep, nil
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	for _, c := range h.clients {
		c.cancel()
	}
	h.mu.Unlock()
	return nil
}

var _ sink.Sink = (*Hub)(nil)
