package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Hub pushes alerts to the websocket connections of the addressed user.
// Users without an open connection when an alert is written miss it here
// and rely on the other notifiers.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]string
	onConnect func(userID string)

	now      func() time.Time
	deferred timerSet
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]string),
		now:     time.Now,
	}
}

// OnConnect registers a callback run whenever a user opens a connection.
func (h *Hub) OnConnect(fn func(userID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = fn
}

// Register adds a connection for userID.
func (h *Hub) Register(conn *websocket.Conn, userID string) {
	h.mu.Lock()
	h.clients[conn] = userID
	total := len(h.clients)
	fn := h.onConnect
	h.mu.Unlock()

	log.Printf("WebSocket client for user %s connected. Total: %d", userID, total)
	if fn != nil {
		fn(userID)
	}
}

// Unregister removes and closes a connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		log.Printf("WebSocket client disconnected. Total: %d", len(h.clients))
	}
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Pending reports how many scheduled alerts are waiting to be written.
func (h *Hub) Pending() int {
	return h.deferred.len()
}

// Stop drops every scheduled alert that has not been written yet.
func (h *Hub) Stop() {
	h.deferred.stop()
}

// Notify writes n to every connection of its user. An alert scheduled for
// the future is held until then and written to the connections open at
// that moment.
func (h *Hub) Notify(ctx context.Context, n Notification) error {
	message, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	if delay := delayUntil(n, h.now()); delay > 0 {
		if h.deferred.after(n.ID, delay, func() { h.broadcast(n.UserID, message) }) {
			log.Printf("Holding %s alert for booking %s until %s", n.Kind, n.BookingID, n.ScheduledAt.Format(time.RFC3339))
		}
		return nil
	}

	h.broadcast(n.UserID, message)
	return nil
}

// broadcast writes under the hub lock since a websocket connection allows
// one writer.
func (h *Hub) broadcast(target string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, userID := range h.clients {
		if userID != target {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Error writing to WebSocket client of user %s: %v", userID, err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
