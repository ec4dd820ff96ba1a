// internal/engine/actors/notifier.go
package actors

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"perch/internal/database"
	"perch/internal/models"
	"perch/internal/websocket"

	"github.com/google/uuid"
)

// Notifier records activity notifications and pushes them to connected
// clients. Delivery is best-effort: a failed insert or push is logged and
// never fails the operation that produced it.
type Notifier struct {
	store database.Store
	hub   *websocket.Hub
}

// NewNotifier creates a Notifier. The hub may be nil, in which case
// notifications are persisted but not pushed.
func NewNotifier(store database.Store, hub *websocket.Hub) *Notifier {
	return &Notifier{store: store, hub: hub}
}

// notificationEvent is the payload pushed over the websocket.
type notificationEvent struct {
	Event string               `json:"event"`
	Data  *models.Notification `json:"data"`
}

// Notify persists a notification for recipientID and pushes it if the user
// has an open connection. Self-directed activity produces no notification.
func (n *Notifier) Notify(ctx context.Context, recipientID, actorID uuid.UUID, typ models.NotificationType, targetID uuid.UUID, message string) {
	if recipientID == actorID {
		return
	}

	notification := &models.Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		ActorID:     actorID,
		Type:        typ,
		TargetID:    targetID,
		Message:     message,
		CreatedAt:   time.Now(),
	}

	if err := n.store.InsertNotification(ctx, notification); err != nil {
		log.Printf("Failed to store %s notification for user %s: %v", typ, recipientID, err)
		return
	}

	if n.hub == nil {
		return
	}
	payload, err := json.Marshal(&notificationEvent{Event: "notification", Data: notification})
	if err != nil {
		log.Printf("Failed to encode notification payload: %v", err)
		return
	}
	n.hub.Push(recipientID, payload)
}
