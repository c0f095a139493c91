package display

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"locationagent/internal/logger"
)

const wsWriteTimeout = 5 * time.Second

// WebSocketDisplay serves the status artifact over HTTP. GET /status returns
// the current snapshot and /ws pushes every change to connected clients.
type WebSocketDisplay struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	current Status
	closed  bool

	srv       *http.Server
	ln        net.Listener
	serveDone chan struct{}
	wg        sync.WaitGroup
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newWebSocketHub() *WebSocketDisplay {
	return &WebSocketDisplay{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// NewWebSocketDisplay listens on addr and starts serving.
func NewWebSocketDisplay(addr string) (*WebSocketDisplay, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	d := newWebSocketHub()
	d.ln = ln
	d.srv = &http.Server{Handler: d.Handler(), ReadHeaderTimeout: 10 * time.Second}
	d.serveDone = make(chan struct{})

	log := logger.WithComponent("status-ws")
	go func() {
		defer close(d.serveDone)
		if err := d.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Status server stopped")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("Status server listening")
	return d, nil
}

// Addr returns the listening address, or "" when not listening.
func (d *WebSocketDisplay) Addr() string {
	if d.ln == nil {
		return ""
	}
	return d.ln.Addr().String()
}

// Handler returns the HTTP handler serving /status and /ws.
func (d *WebSocketDisplay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", d.handleStatus)
	mux.HandleFunc("/ws", d.handleWS)
	return mux
}

func (d *WebSocketDisplay) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	d.mu.RLock()
	st := d.current
	d.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

func (d *WebSocketDisplay) handleWS(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("status-ws")

	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 16),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		conn.Close()
		return
	}
	d.clients[client] = struct{}{}
	n := len(d.clients)
	// Send the current snapshot first.
	if data, err := json.Marshal(d.current); err == nil {
		client.send <- data
	}
	d.wg.Add(2)
	d.mu.Unlock()

	log.Debug().Int("clients", n).Msg("Status client connected")

	// Writer
	go func() {
		defer d.wg.Done()
		defer conn.Close()
		for msg := range client.send {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader: only detects disconnects.
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.clients, client)
			close(client.send)
			d.mu.Unlock()
			log.Debug().Msg("Status client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast sends st to every client. Slow clients miss the update.
func (d *WebSocketDisplay) broadcast(st Status) {
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for c := range d.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (d *WebSocketDisplay) Publish(_ context.Context, title, text string) (ID, error) {
	st := Status{
		ID:     nextID("ws"),
		Title:  title,
		Text:   text,
		Active: true,
		Stamp:  time.Now(),
	}
	d.mu.Lock()
	d.current = st
	d.mu.Unlock()

	d.broadcast(st)
	return st.ID, nil
}

func (d *WebSocketDisplay) Update(_ context.Context, id ID, text string) error {
	d.mu.Lock()
	if !d.current.Active || d.current.ID != id {
		d.mu.Unlock()
		return ErrUnknownStatus
	}
	d.current.Text = text
	d.current.Stamp = time.Now()
	st := d.current
	d.mu.Unlock()

	d.broadcast(st)
	return nil
}

func (d *WebSocketDisplay) Retract(_ context.Context, id ID) error {
	d.mu.Lock()
	if !d.current.Active || d.current.ID != id {
		d.mu.Unlock()
		return nil
	}
	d.current.Active = false
	d.current.Stamp = time.Now()
	st := d.current
	d.mu.Unlock()

	d.broadcast(st)
	return nil
}

// Close stops the server and disconnects all clients.
func (d *WebSocketDisplay) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for c := range d.clients {
		c.conn.Close()
	}
	d.mu.Unlock()

	var err error
	if d.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = d.srv.Shutdown(ctx)
		<-d.serveDone
	}
	d.wg.Wait()
	return err
}
