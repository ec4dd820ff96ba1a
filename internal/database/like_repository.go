// internal/database/like_repository.go
package database

import (
	"context"
	"time"

	"perch/internal/models"
	"perch/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// LikeDocument represents the MongoDB schema for a like record.
type LikeDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	PostID    string    `bson:"postId"`
	CreatedAt time.Time `bson:"createdAt"`
}

// InsertLike is the insert-if-absent primitive for likes: the unique
// (userId, postId) index turns a duplicate into ErrAlreadyLiked.
func (m *MongoDB) InsertLike(ctx context.Context, like *models.Like) error {
	doc := LikeDocument{
		ID:        like.ID.String(),
		UserID:    like.UserID.String(),
		PostID:    like.PostID.String(),
		CreatedAt: like.CreatedAt,
	}

	_, err := m.Likes.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return utils.NewAppError(utils.ErrAlreadyLiked, "Post already liked", err)
	}
	return err
}

// GetLike looks up the like for a (user, post) pair.
func (m *MongoDB) GetLike(ctx context.Context, userID, postID uuid.UUID) (*models.Like, error) {
	var doc LikeDocument
	err := m.Likes.FindOne(ctx, bson.M{
		"userId": userID.String(),
		"postId": postID.String(),
	}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotLiked, "Post not liked", err)
	}
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, err
	}
	uid, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(doc.PostID)
	if err != nil {
		return nil, err
	}

	return &models.Like{
		ID:        id,
		UserID:    uid,
		PostID:    pid,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// GetLikesByUser lists every like a user has placed. The account-deletion
// cascade walks them to decrement likesCount on other users' posts.
func (m *MongoDB) GetLikesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Like, error) {
	cursor, err := m.Likes.Find(ctx, bson.M{"userId": userID.String()})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var likes []*models.Like
	for cursor.Next(ctx) {
		var doc LikeDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			return nil, err
		}
		uid, err := uuid.Parse(doc.UserID)
		if err != nil {
			return nil, err
		}
		pid, err := uuid.Parse(doc.PostID)
		if err != nil {
			return nil, err
		}
		likes = append(likes, &models.Like{
			ID:        id,
			UserID:    uid,
			PostID:    pid,
			CreatedAt: doc.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return likes, nil
}

func (m *MongoDB) DeleteLike(ctx context.Context, id uuid.UUID) error {
	result, err := m.Likes.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Like not found", nil)
	}
	return nil
}

func (m *MongoDB) DeleteLikesByPostIDs(ctx context.Context, postIDs []uuid.UUID) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := m.Likes.DeleteMany(ctx, bson.M{"postId": bson.M{"$in": uuidStrings(postIDs)}})
	return err
}

func (m *MongoDB) DeleteLikesByAuthor(ctx context.Context, userID uuid.UUID) error {
	_, err := m.Likes.DeleteMany(ctx, bson.M{"userId": userID.String()})
	return err
}
