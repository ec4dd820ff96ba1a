package models

import (
	"time"

	"github.com/google/uuid"
)

// Like records that a user liked a post. At most one Like exists per
// (UserID, PostID) pair; the database enforces this with a unique index.
type Like struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	PostID    uuid.UUID `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}
