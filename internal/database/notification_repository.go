// internal/database/notification_repository.go
package database

import (
	"context"
	"fmt"
	"time"

	"perch/internal/models"
	"perch/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationDocument struct {
	ID          string    `bson:"_id"`
	RecipientID string    `bson:"recipientId"`
	ActorID     string    `bson:"actorId"`
	Type        string    `bson:"type"`
	TargetID    string    `bson:"targetId"`
	Message     string    `bson:"message"`
	IsRead      bool      `bson:"isRead"`
	CreatedAt   time.Time `bson:"createdAt"`
}

func (m *MongoDB) InsertNotification(ctx context.Context, n *models.Notification) error {
	doc := NotificationDocument{
		ID:          n.ID.String(),
		RecipientID: n.RecipientID.String(),
		ActorID:     n.ActorID.String(),
		Type:        string(n.Type),
		TargetID:    n.TargetID.String(),
		Message:     n.Message,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
	_, err := m.Notifications.InsertOne(ctx, doc)
	return err
}

func (m *MongoDB) GetNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]*models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.Notifications.Find(ctx, bson.M{"recipientId": recipientID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %v", err)
	}
	defer cursor.Close(ctx)

	var notifications []*models.Notification
	for cursor.Next(ctx) {
		var doc NotificationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %v", err)
		}

		id, err := uuid.Parse(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid notification ID: %v", err)
		}
		recipient, err := uuid.Parse(doc.RecipientID)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient ID: %v", err)
		}
		actor, err := uuid.Parse(doc.ActorID)
		if err != nil {
			return nil, fmt.Errorf("invalid actor ID: %v", err)
		}
		target, err := uuid.Parse(doc.TargetID)
		if err != nil {
			return nil, fmt.Errorf("invalid target ID: %v", err)
		}

		notifications = append(notifications, &models.Notification{
			ID:          id,
			RecipientID: recipient,
			ActorID:     actor,
			Type:        models.NotificationType(doc.Type),
			TargetID:    target,
			Message:     doc.Message,
			IsRead:      doc.IsRead,
			CreatedAt:   doc.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration failed: %v", err)
	}

	return notifications, nil
}

// MarkNotificationRead flips isRead; the recipient filter keeps users from
// acknowledging someone else's notifications.
func (m *MongoDB) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) error {
	result, err := m.Notifications.UpdateOne(ctx,
		bson.M{"_id": id.String(), "recipientId": recipientID.String()},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Notification not found", nil)
	}
	return nil
}

// DeleteNotificationsForUser removes notifications sent to or by the user.
func (m *MongoDB) DeleteNotificationsForUser(ctx context.Context, userID uuid.UUID) error {
	id := userID.String()
	_, err := m.Notifications.DeleteMany(ctx, bson.M{"$or": []bson.M{
		{"recipientId": id},
		{"actorId": id},
	}})
	return err
}
