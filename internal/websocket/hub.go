package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/metrics"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"
)

// Message defines the generic structure for WS communication
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// snapshotTimeout bounds the snapshot build for a new subscriber so a
// slow store cannot stall the run loop indefinitely.
const snapshotTimeout = 5 * time.Second

// SnapshotFunc produces the summary (count + recent open alerts) pushed
// to a freshly connected subscriber.
type SnapshotFunc func(ctx context.Context) (interface{}, error)

// Hub exclusively owns the subscriber set. Registration, removal and
// broadcast all funnel through its run loop; nothing outside this
// package mutates the set.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	snapshot   SnapshotFunc
	log        *logger.Logger
	mu         sync.RWMutex
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log,
	}
}

// SetSnapshotProvider wires the snapshot source. Must be called before
// Run; the alert service is constructed after the hub, hence the setter.
func (h *Hub) SetSnapshotProvider(fn SnapshotFunc) {
	h.snapshot = fn
}

// Run starts the hub logic. It listens for context cancellation for
// clean shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("WebSocket hub started")
	for {
		select {
		case <-ctx.Done():
			h.log.Info("WebSocket hub shutting down...")
			h.closeAll()
			return
		case client := <-h.register:
			h.addSubscriber(ctx, client)
		case client := <-h.unregister:
			h.removeSubscriber(client)
		case message := <-h.broadcast:
			h.publish(message)
		}
	}
}

func (h *Hub) addSubscriber(ctx context.Context, client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(total))
	h.log.Info("Subscriber %s connected. Total: %d", client.id, total)

	// Snapshot goes to the new subscriber only, so it catches up on open
	// alerts it missed while disconnected.
	if h.snapshot == nil {
		return
	}
	snapCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	payload, err := h.snapshot(snapCtx)
	if err != nil {
		h.log.Error("Failed to build snapshot for subscriber %s: %v", client.id, err)
		return
	}
	select {
	case client.send <- Message{Type: "SNAPSHOT", Payload: payload}:
	default:
		h.log.Warn("Subscriber %s send buffer full on snapshot", client.id)
	}
}

// removeSubscriber is idempotent: deregistering an unknown client is a
// no-op.
func (h *Hub) removeSubscriber(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(total))
}

// publish writes the event to a stable snapshot of the subscriber set.
// A subscriber that cannot keep up is dropped; delivery to the others
// continues.
func (h *Hub) publish(message Message) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	var dropped []*Client
	for _, client := range targets {
		select {
		case client.send <- message:
		default:
			dropped = append(dropped, client)
		}
	}

	for _, client := range dropped {
		h.log.Warn("Subscriber %s not keeping up, removing", client.id)
		h.removeSubscriber(client)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	metrics.Subscribers.Set(0)
}

// Publish fans an alert event out to every registered subscriber.
// Realtime delivery is best-effort end to end: when the broadcast queue
// is full the event is dropped here rather than blocking the caller, the
// same way a subscriber with a full send buffer is dropped on delivery.
func (h *Hub) Publish(alert *models.Alert) {
	select {
	case h.broadcast <- Message{Type: "ALERT", Payload: alert}:
	default:
		h.log.Warn("Broadcast queue full, alert %d not sent to realtime subscribers", alert.ID)
	}
}

// ClientCount returns the number of registered subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
