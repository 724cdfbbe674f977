package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// Event is the envelope pushed to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// client is one websocket connection of a user. A user can be connected from
// several devices at once.
type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub tracks connected users and pushes events to them. Implements the
// message service's Notifier.
type Hub struct {
	mutex   sync.RWMutex
	clients map[utils.SixID]map[*client]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[utils.SixID]map[*client]bool),
	}
}

// Register attaches a websocket connection for a user and services it until
// the connection drops. Blocks; call from the connection's handler goroutine.
func (h *Hub) Register(userID utils.SixID, conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan Event, sendBufferSize),
	}

	h.mutex.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]bool)
	}
	h.clients[userID][c] = true
	h.mutex.Unlock()

	defer func() {
		h.mutex.Lock()
		delete(h.clients[userID], c)
		if len(h.clients[userID]) == 0 {
			delete(h.clients, userID)
		}
		h.mutex.Unlock()
		conn.Close()
	}()

	go c.writePump()
	c.readPump()
}

// Notify pushes an event to every connection of a user. Never blocks: slow
// clients have their event dropped rather than stalling the sender.
func (h *Hub) Notify(userID utils.SixID, event string, payload interface{}) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- Event{Type: event, Payload: payload}:
		default:
			log.Printf("Dropping %s event for user %s: send buffer full", event, userID.String())
		}
	}
}

// ConnectedUsers returns the number of distinct users currently connected.
func (h *Hub) ConnectedUsers() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump consumes (and discards) inbound frames so pings/pongs and close
// frames are processed. The protocol is push-only; clients talk to the REST API.
func (c *client) readPump() {
	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump serialises outbound events and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Failed to marshal websocket event %s: %v", event.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
