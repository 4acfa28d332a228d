package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer; clients only send pings
	maxMessageSize = 4096
)

// Hub fans session-status updates out to connected dashboard clients.
// Clients are write-mostly: the read side only services pongs and
// detects closure.
type Hub struct {
	snapshot func() interface{}
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]bool
	closed  bool
}

type hubClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan interface{}
	closeOnce sync.Once
}

// NewHub creates a hub. snapshot produces the payload pushed to each
// client on connect so the dashboard renders current state immediately.
func NewHub(snapshot func() interface{}, log *zap.SugaredLogger) *Hub {
	return &Hub{
		snapshot: snapshot,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]bool),
	}
}

// HandleWebSocket upgrades the connection and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	c := &hubClient{hub: h, conn: conn, send: make(chan interface{}, 16)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = true
	c.send <- h.snapshot()
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

// Broadcast queues a payload for every connected client. Slow clients
// drop updates rather than blocking the caller.
func (h *Hub) Broadcast(payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warnw("Client send channel full, dropping status update")
		}
	}
}

// ClientCount reports the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*hubClient]bool)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (c *hubClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump discards inbound frames; it exists to service pong handling
// and observe the close.
func (c *hubClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump writes queued payloads and keepalive pings.
func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(payload); err != nil {
				c.hub.log.Debugw("Status write error", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
