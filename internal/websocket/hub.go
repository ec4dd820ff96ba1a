package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// notificationDelivery targets a payload at one user's open connections.
type notificationDelivery struct {
	TargetUserID uuid.UUID
	Payload      []byte
}

// Hub maintains the set of active clients and pushes notification payloads
// to them. A user may hold several connections (multiple tabs), so clients
// are keyed by user ID into a connection set.
type Hub struct {
	Clients map[uuid.UUID]map[*Client]bool

	deliver chan *notificationDelivery

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		deliver:    make(chan *notificationDelivery),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Clients:    make(map[uuid.UUID]map[*Client]bool),
	}
}

// Run starts the hub's processing loop.
func (h *Hub) Run() {
	log.Println("WebSocket Hub started.")
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.Clients[client.UserID]; !ok {
				h.Clients[client.UserID] = make(map[*Client]bool)
			}
			h.Clients[client.UserID][client] = true
			log.Printf("WebSocket client registered for user %s (%d connections)", client.UserID, len(h.Clients[client.UserID]))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if userClients, ok := h.Clients[client.UserID]; ok {
				if _, clientOk := userClients[client]; clientOk {
					delete(userClients, client)
					if len(userClients) == 0 {
						delete(h.Clients, client.UserID)
					}
					log.Printf("WebSocket client unregistered for user %s (%d connections remain)", client.UserID, len(userClients))
				}
			}
			h.mu.Unlock()

		case delivery := <-h.deliver:
			h.mu.RLock()
			for client := range h.Clients[delivery.TargetUserID] {
				select {
				case client.Send <- delivery.Payload:
				default:
					log.Printf("Send channel full for client of user %s, payload dropped", client.UserID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Push queues a payload for all of a user's connections. Offline users are
// skipped silently; they pick the notification up from the store instead.
func (h *Hub) Push(targetUserID uuid.UUID, payload []byte) {
	select {
	case h.deliver <- &notificationDelivery{TargetUserID: targetUserID, Payload: payload}:
	case <-time.After(1 * time.Second):
		log.Printf("Timeout queuing notification for user %s, hub busy", targetUserID)
	}
}
