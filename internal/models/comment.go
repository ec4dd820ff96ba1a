package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a top-level comment on a post, or a reply when ParentID is set.
// A reply always carries the same PostID as its parent.
type Comment struct {
	ID             uuid.UUID   `json:"id"`
	PostID         uuid.UUID   `json:"postId"`
	AuthorID       uuid.UUID   `json:"authorId"`
	AuthorUsername string      `json:"authorUsername,omitempty"`
	ParentID       *uuid.UUID  `json:"parentCommentId,omitempty"`
	Body           string      `json:"body"`
	ReplyIDs       []uuid.UUID `json:"replies"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}
