// Package stream pushes routing outcomes to connected WebSocket
// clients so a UI can watch deliveries happen live.
package stream

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"courier/internal/events"
)

// Hub fans routing events out to every connected client. Clients that
// cannot keep up are dropped rather than allowed to stall the rest.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan events.Event
}

// NewHub creates a hub and subscribes it to the event bus.
func NewHub(bus *events.Bus, log zerolog.Logger) *Hub {
	h := &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*client]struct{}),
	}
	bus.Subscribe(h.broadcast)
	return h
}

// HandleConnection upgrades the request and streams events until the
// client disconnects.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan events.Event, 64)}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.log.Debug().Int("clients", n).Msg("stream client connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards inbound frames; its job is noticing disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for e := range c.send {
		if err := c.conn.WriteJSON(e); err != nil {
			h.drop(c)
			return
		}
	}
}

// broadcast queues an event on every client, dropping clients whose
// buffers are full.
func (h *Hub) broadcast(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		select {
		case c.send <- e:
		default:
			h.log.Debug().Msg("stream client too slow, dropping")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	close(c.send)
	c.conn.Close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
