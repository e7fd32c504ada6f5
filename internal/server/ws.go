package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/nritya/internal/engine"
	"github.com/ayusman/nritya/internal/skeleton"
)

const (
	// clientBuffer is how many events may wait for a slow client before
	// further events are dropped for it.
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Event is one message on the /api/events feed.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Event types.
const (
	EventUpdate     = "update"
	EventProcessing = "processing"
	EventPlayer     = "player"
)

type updateData struct {
	Player  skeleton.PlayerID `json:"player"`
	Gesture string            `json:"gesture"`
}

type playerData struct {
	Player skeleton.PlayerID   `json:"player"`
	Action engine.PlayerAction `json:"action"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub broadcasts engine events to WebSocket clients.
type EventHub struct {
	clients map[*client]bool
	mu      sync.RWMutex
	closed  bool
}

// NewEventHub creates a hub subscribed to the dispatcher's update,
// processing and player events.
func NewEventHub(d *engine.Dispatcher) *EventHub {
	h := &EventHub{clients: make(map[*client]bool)}

	d.OnUpdate(func(player skeleton.PlayerID, gesture string) {
		h.broadcast(EventUpdate, updateData{Player: player, Gesture: gesture})
	})
	d.OnProcessing(func(ev engine.ProcessingEvent) {
		h.broadcast(EventProcessing, ev)
	})
	d.OnPlayer(func(player skeleton.PlayerID, action engine.PlayerAction) {
		h.broadcast(EventPlayer, playerData{Player: player, Action: action})
	})
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[c] = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
	<-done
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

func (h *EventHub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast queues an event for every client. It never blocks the engine:
// a client whose buffer is full misses the event.
func (h *EventHub) broadcast(kind string, data interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(Event{Type: kind, Timestamp: time.Now(), Data: data})
	if err != nil {
		log.Printf("failed to encode %s event: %v", kind, err)
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}
