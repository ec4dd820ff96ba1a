// internal/database/post_repository.go
package database

import (
	"context"
	"fmt"
	"time"

	"perch/internal/models"
	"perch/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostDocument represents the MongoDB schema for a post.
type PostDocument struct {
	ID             string    `bson:"_id"`
	AuthorID       string    `bson:"authorId"`
	AuthorUsername string    `bson:"authorUsername"`
	Content        string    `bson:"content"`
	Image          string    `bson:"image,omitempty"`
	LikeIDs        []string  `bson:"likeIds"`
	LikesCount     int       `bson:"likesCount"`
	CommentIDs     []string  `bson:"commentIds"`
	CommentsCount  int       `bson:"commentsCount"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

func postModelToDocument(post *models.Post) *PostDocument {
	return &PostDocument{
		ID:             post.ID.String(),
		AuthorID:       post.AuthorID.String(),
		AuthorUsername: post.AuthorUsername,
		Content:        post.Content,
		Image:          post.Image,
		LikeIDs:        uuidStrings(post.LikeIDs),
		LikesCount:     post.LikesCount,
		CommentIDs:     uuidStrings(post.CommentIDs),
		CommentsCount:  post.CommentsCount,
		CreatedAt:      post.CreatedAt,
		UpdatedAt:      post.UpdatedAt,
	}
}

func postDocumentToModel(doc *PostDocument) (*models.Post, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID: %v", err)
	}
	authorID, err := uuid.Parse(doc.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("invalid author ID: %v", err)
	}
	likeIDs, err := parseUUIDs(doc.LikeIDs, "like")
	if err != nil {
		return nil, err
	}
	commentIDs, err := parseUUIDs(doc.CommentIDs, "comment")
	if err != nil {
		return nil, err
	}

	return &models.Post{
		ID:             id,
		AuthorID:       authorID,
		AuthorUsername: doc.AuthorUsername,
		Content:        doc.Content,
		Image:          doc.Image,
		LikeIDs:        likeIDs,
		LikesCount:     doc.LikesCount,
		CommentIDs:     commentIDs,
		CommentsCount:  doc.CommentsCount,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

func (m *MongoDB) InsertPost(ctx context.Context, post *models.Post) error {
	_, err := m.Posts.InsertOne(ctx, postModelToDocument(post))
	return err
}

// GetPost retrieves a post by its ID.
func (m *MongoDB) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var doc PostDocument

	err := m.Posts.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Post not found", err)
	}
	if err != nil {
		return nil, err
	}

	return postDocumentToModel(&doc)
}

// GetPosts retrieves all posts, newest first.
func (m *MongoDB) GetPosts(ctx context.Context) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := m.Posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %v", err)
	}
	defer cursor.Close(ctx)

	return decodePosts(ctx, cursor)
}

func (m *MongoDB) GetPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := m.Posts.Find(ctx, bson.M{"authorId": authorID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %v", err)
	}
	defer cursor.Close(ctx)

	return decodePosts(ctx, cursor)
}

// GetPostsByIDs fetches a batch of posts. Missing ids are skipped and the
// result order is unspecified; callers that care reorder by id.
func (m *MongoDB) GetPostsByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := m.Posts.Find(ctx, bson.M{"_id": bson.M{"$in": uuidStrings(ids)}})
	if err != nil {
		return nil, fmt.Errorf("database query failed: %v", err)
	}
	defer cursor.Close(ctx)

	return decodePosts(ctx, cursor)
}

func decodePosts(ctx context.Context, cursor *mongo.Cursor) ([]*models.Post, error) {
	var posts []*models.Post
	for cursor.Next(ctx) {
		var doc PostDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode post: %v", err)
		}
		post, err := postDocumentToModel(&doc)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration failed: %v", err)
	}
	return posts, nil
}

// UpdatePostContent replaces the post body and image, returning the result.
func (m *MongoDB) UpdatePostContent(ctx context.Context, id uuid.UUID, content, image string) (*models.Post, error) {
	set := bson.M{
		"content":   content,
		"updatedAt": time.Now(),
	}
	if image != "" {
		set["image"] = image
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc PostDocument
	err := m.Posts.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Post not found", err)
	}
	if err != nil {
		return nil, err
	}
	return postDocumentToModel(&doc)
}

// AttachLike prepends the like id and bumps likesCount in one atomic
// document update, so likesCount == |likeIds| holds at every point.
func (m *MongoDB) AttachLike(ctx context.Context, postID, likeID uuid.UUID) error {
	return m.updatePostArrays(ctx, postID, bson.M{
		"$push": bson.M{"likeIds": bson.M{
			"$each":     []string{likeID.String()},
			"$position": 0,
		}},
		"$inc": bson.M{"likesCount": 1},
	})
}

// DetachLike removes the like id and decrements likesCount atomically. The
// filter requires membership, so a detach that lost a race with another
// remover matches nothing and leaves the counter equal to |likeIds|.
func (m *MongoDB) DetachLike(ctx context.Context, postID, likeID uuid.UUID) error {
	return m.detachFromPost(ctx,
		bson.M{"_id": postID.String(), "likeIds": likeID.String()},
		bson.M{
			"$pull": bson.M{"likeIds": likeID.String()},
			"$inc":  bson.M{"likesCount": -1},
		})
}

// AttachComment prepends a top-level comment id and bumps commentsCount.
// Replies are attached to their parent comment instead and never touch
// the post's counter.
func (m *MongoDB) AttachComment(ctx context.Context, postID, commentID uuid.UUID) error {
	return m.updatePostArrays(ctx, postID, bson.M{
		"$push": bson.M{"commentIds": bson.M{
			"$each":     []string{commentID.String()},
			"$position": 0,
		}},
		"$inc": bson.M{"commentsCount": 1},
	})
}

func (m *MongoDB) DetachComment(ctx context.Context, postID, commentID uuid.UUID) error {
	return m.detachFromPost(ctx,
		bson.M{"_id": postID.String(), "commentIds": commentID.String()},
		bson.M{
			"$pull": bson.M{"commentIds": commentID.String()},
			"$inc":  bson.M{"commentsCount": -1},
		})
}

// detachFromPost applies a pull+decrement only when the filter still matches;
// a stale detach (id already gone, or post deleted) is a no-op.
func (m *MongoDB) detachFromPost(ctx context.Context, filter, update bson.M) error {
	update["$set"] = bson.M{"updatedAt": time.Now()}
	_, err := m.Posts.UpdateOne(ctx, filter, update)
	return err
}

func (m *MongoDB) updatePostArrays(ctx context.Context, postID uuid.UUID, update bson.M) error {
	update["$set"] = bson.M{"updatedAt": time.Now()}
	result, err := m.Posts.UpdateOne(ctx, bson.M{"_id": postID.String()}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	return nil
}

func (m *MongoDB) DeletePost(ctx context.Context, id uuid.UUID) error {
	result, err := m.Posts.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	return nil
}

func (m *MongoDB) DeletePostsByAuthor(ctx context.Context, authorID uuid.UUID) error {
	_, err := m.Posts.DeleteMany(ctx, bson.M{"authorId": authorID.String()})
	return err
}
