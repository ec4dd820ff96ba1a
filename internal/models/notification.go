package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies what kind of activity produced a notification.
type NotificationType string

const (
	NotifyFollow  NotificationType = "follow"
	NotifyLike    NotificationType = "like"
	NotifyComment NotificationType = "comment"
)

type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID uuid.UUID        `json:"recipientId"`
	ActorID     uuid.UUID        `json:"actorId"`
	Type        NotificationType `json:"type"`
	TargetID    uuid.UUID        `json:"targetId"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"isRead"`
	CreatedAt   time.Time        `json:"createdAt"`
}
