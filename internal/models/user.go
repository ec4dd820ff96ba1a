package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultProfileImage is used for accounts that never uploaded a picture.
const DefaultProfileImage = "https://i.pinimg.com/236x/2c/47/d5/2c47d5dd5b532f83bb55c4cd6f5bd1ef.jpg"

type User struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Username       string      `json:"username"`
	Bio            string      `json:"bio,omitempty"`
	Location       string      `json:"location,omitempty"`
	MobileNo       string      `json:"mobileNo"`
	HashedPassword string      `json:"-"`
	ProfileImage   string      `json:"profileImage"`
	Followers      []uuid.UUID `json:"followers"`
	Following      []uuid.UUID `json:"following"`
	SavedPosts     []uuid.UUID `json:"savedPosts"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// IsFollowing reports whether targetID is in the user's following list.
func (u *User) IsFollowing(targetID uuid.UUID) bool {
	for _, id := range u.Following {
		if id == targetID {
			return true
		}
	}
	return false
}

// HasSaved reports whether postID is in the user's saved posts.
func (u *User) HasSaved(postID uuid.UUID) bool {
	for _, id := range u.SavedPosts {
		if id == postID {
			return true
		}
	}
	return false
}
