// internal/database/comment_repository.go
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

// CommentDocument represents comment data in MongoDB
type CommentDocument struct {
	ID             string    `bson:"_id"`
	PostID         string    `bson:"postId"`
	AuthorID       string    `bson:"authorId"`
	AuthorUsername string    `bson:"authorUsername,omitempty"`
	ParentID       *string   `bson:"parentCommentId,omitempty"`
	Body           string    `bson:"body"`
	ReplyIDs       []string  `bson:"replyIds"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

func commentModelToDocument(comment *models.Comment) *CommentDocument {
	doc := &CommentDocument{
		ID:             comment.ID.String(),
		PostID:         comment.PostID.String(),
		AuthorID:       comment.AuthorID.String(),
		AuthorUsername: comment.AuthorUsername,
		Body:           comment.Body,
		ReplyIDs:       uuidStrings(comment.ReplyIDs),
		CreatedAt:      comment.CreatedAt,
		UpdatedAt:      comment.UpdatedAt,
	}
	if comment.ParentID != nil {
		parentIDStr := comment.ParentID.String()
		doc.ParentID = &parentIDStr
	}
	return doc
}

func commentDocumentToModel(doc *CommentDocument) (*models.Comment, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid comment ID: %v", err)
	}
	postID, err := uuid.Parse(doc.PostID)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID: %v", err)
	}
	authorID, err := uuid.Parse(doc.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("invalid author ID: %v", err)
	}

	var parentID *uuid.UUID
	if doc.ParentID != nil {
		parsed, err := uuid.Parse(*doc.ParentID)
		if err != nil {
			return nil, fmt.Errorf("invalid parent comment ID: %v", err)
		}
		parentID = &parsed
	}

	replyIDs, err := parseUUIDs(doc.ReplyIDs, "reply")
	if err != nil {
		return nil, err
	}

	return &models.Comment{
		ID:             id,
		PostID:         postID,
		AuthorID:       authorID,
		AuthorUsername: doc.AuthorUsername,
		ParentID:       parentID,
		Body:           doc.Body,
		ReplyIDs:       replyIDs,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

func (m *MongoDB) InsertComment(ctx context.Context, comment *models.Comment) error {
	_, err := m.Comments.InsertOne(ctx, commentModelToDocument(comment))
	if err != nil {
		return fmt.Errorf("failed to save comment: %v", err)
	}
	return nil
}

// GetComment retrieves a comment by ID
func (m *MongoDB) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var doc CommentDocument

	err := m.Comments.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Comment not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %v", err)
	}

	return commentDocumentToModel(&doc)
}

// GetPostComments retrieves all comments for a post, newest first.
func (m *MongoDB) GetPostComments(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := m.Comments.Find(ctx, bson.M{"postId": postID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get post comments: %v", err)
	}
	defer cursor.Close(ctx)

	var comments []*models.Comment
	for cursor.Next(ctx) {
		var doc CommentDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode comment: %v", err)
		}
		comment, err := commentDocumentToModel(&doc)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration failed: %v", err)
	}

	return comments, nil
}

// GetCommentsByAuthor lists every comment a user has written, across posts.
// The account-deletion cascade uses it to detach each comment from its post
// or parent before the batch delete.
func (m *MongoDB) GetCommentsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Comment, error) {
	cursor, err := m.Comments.Find(ctx, bson.M{"authorId": authorID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to get comments by author: %v", err)
	}
	defer cursor.Close(ctx)

	var comments []*models.Comment
	for cursor.Next(ctx) {
		var doc CommentDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode comment: %v", err)
		}
		comment, err := commentDocumentToModel(&doc)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration failed: %v", err)
	}

	return comments, nil
}

// UpdateCommentBody replaces the comment text and returns the updated comment.
func (m *MongoDB) UpdateCommentBody(ctx context.Context, id uuid.UUID, body string) (*models.Comment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc CommentDocument
	err := m.Comments.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"body": body, "updatedAt": time.Now()}},
		opts,
	).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Comment not found", err)
	}
	if err != nil {
		return nil, err
	}
	return commentDocumentToModel(&doc)
}

// AttachReply prepends the reply id to the parent's replyIds array.
func (m *MongoDB) AttachReply(ctx context.Context, parentID, replyID uuid.UUID) error {
	return m.updateCommentArrays(ctx, parentID, bson.M{
		"$push": bson.M{"replyIds": bson.M{
			"$each":     []string{replyID.String()},
			"$position": 0,
		}},
	})
}

func (m *MongoDB) DetachReply(ctx context.Context, parentID, replyID uuid.UUID) error {
	return m.updateCommentArrays(ctx, parentID, bson.M{
		"$pull": bson.M{"replyIds": replyID.String()},
	})
}

func (m *MongoDB) updateCommentArrays(ctx context.Context, commentID uuid.UUID, update bson.M) error {
	update["$set"] = bson.M{"updatedAt": time.Now()}
	result, err := m.Comments.UpdateOne(ctx, bson.M{"_id": commentID.String()}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Comment not found", nil)
	}
	return nil
}

// DeleteComments removes a batch of comments by id. Used by the reply
// cascade, which collects the transitive reply set first.
func (m *MongoDB) DeleteComments(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := m.Comments.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": uuidStrings(ids)}})
	return err
}

func (m *MongoDB) DeleteCommentsByPostIDs(ctx context.Context, postIDs []uuid.UUID) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := m.Comments.DeleteMany(ctx, bson.M{"postId": bson.M{"$in": uuidStrings(postIDs)}})
	return err
}

func (m *MongoDB) DeleteCommentsByAuthor(ctx context.Context, authorID uuid.UUID) error {
	_, err := m.Comments.DeleteMany(ctx, bson.M{"authorId": authorID.String()})
	return err
}
