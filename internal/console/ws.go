// internal/console/ws.go
package console

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local monitoring only
	},
}

// Hub mirrors console output to websocket clients.
// It is an io.Writer; slow clients lose output rather than stall the writer.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	msgCh   chan []byte
	log     *zap.Logger
	done    chan struct{}
}

// NewHub creates a hub. Call Run in its own goroutine.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		msgCh:   make(chan []byte, 256),
		log:     log,
		done:    make(chan struct{}),
	}
}

// Write queues a copy of p for broadcast. It never blocks.
func (h *Hub) Write(p []byte) (int, error) {
	msg := make([]byte, len(p))
	copy(msg, p)
	select {
	case h.msgCh <- msg:
	default:
		// drop if channel full (clients too slow)
	}
	return len(p), nil
}

// Run broadcasts queued output until Close.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		case msg := <-h.msgCh:
			h.broadcast(msg)
		}
	}
}

// Close stops Run and disconnects all clients.
func (h *Hub) Close() {
	close(h.done)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("websocket client dropped", zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ServeHTTP upgrades the request and keeps the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop discards client messages; it exits on disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
