package models

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID             uuid.UUID   `json:"id"`
	AuthorID       uuid.UUID   `json:"authorId"`
	AuthorUsername string      `json:"authorUsername,omitempty"`
	Content        string      `json:"content"`
	Image          string      `json:"image,omitempty"`
	LikeIDs        []uuid.UUID `json:"likes"`
	LikesCount     int         `json:"likesCount"`
	CommentIDs     []uuid.UUID `json:"comments"`
	CommentsCount  int         `json:"commentsCount"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}
