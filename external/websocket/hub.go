package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/jimakun/internal/caption"
	gws "github.com/gorilla/websocket"
)

const (
	sendBuffer      = 64
	writeWait       = 5 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
	shutdownTimeout = 5 * time.Second
)

type transcriptMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	StopReason string `json:"stop_reason"`
	Filename   string `json:"filename"`
	Segments   int    `json:"segments"`
	Transcript string `json:"transcript"`
}

// Hub pushes caption updates to connected websocket viewers. A viewer that
// cannot keep up is disconnected instead of slowing the others down.
type Hub struct {
	upgrader gws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
}

// NewHub accepts viewers without an Origin header, from the same host, or
// from one of allowedOrigins. "*" allows any origin.
func NewHub(allowedOrigins ...string) *Hub {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return &Hub{
		upgrader: gws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return originAllowed(r, allowed) },
		},
		clients: make(map[*client]struct{}),
	}
}

func originAllowed(r *http.Request, allowed map[string]struct{}) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := allowed["*"]; ok {
		return true
	}
	if _, ok := allowed[strings.ToLower(origin)]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	slog.Warn("caption viewer rejected: origin not allowed", "origin", origin)
	return false
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/captions", h.handleCaptions)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ListenAndServe blocks until ctx is done or the server fails.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	slog.Info("caption websocket listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	h.Close()
	return err
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) PublishCaption(_ context.Context, u caption.Update) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	h.broadcast(b, u.Type == caption.UpdateCaption)
	return nil
}

func (h *Hub) PublishTranscript(_ context.Context, t caption.Transcript) error {
	b, err := json.Marshal(transcriptMessage{
		Type:       "transcript",
		SessionID:  t.SessionID,
		StopReason: t.StopReason,
		Filename:   t.Filename,
		Segments:   len(t.Segments),
		Transcript: t.Payload.Transcript,
	})
	if err != nil {
		return err
	}
	h.broadcast(b, false)
	return nil
}

func (h *Hub) broadcast(msg []byte, remember bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if remember {
		h.last = msg
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slog.Warn("caption viewer too slow; disconnecting", "remote_addr", c.remoteAddr)
			h.removeLocked(c)
		}
	}
}

func (h *Hub) handleCaptions(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	c := &client{
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		remoteAddr: r.RemoteAddr,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	count := len(h.clients)
	h.mu.Unlock()
	slog.Info("caption viewer connected", "remote_addr", c.remoteAddr, "viewers", count)

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
	slog.Info("caption viewer disconnected", "remote_addr", c.remoteAddr)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

type client struct {
	conn       *gws.Conn
	send       chan []byte
	remoteAddr string
}

// readPump discards viewer input; it only exists to observe pongs and close.
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
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
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(gws.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
