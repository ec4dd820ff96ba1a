// internal/database/database.go
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"perch/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProfileUpdate carries the optional profile fields of an update request.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name         *string
	Username     *string
	Bio          *string
	Location     *string
	ProfileImage *string
}

// Store is the persistence boundary of the social graph. Every method is a
// single bounded sequence of document operations; multi-document consistency
// is the caller's responsibility. Implemented by MongoDB and by the
// in-process Memory backend used in tests.
type Store interface {
	// Users
	InsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUsers(ctx context.Context) ([]*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]*models.User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, update *ProfileUpdate) (*models.User, error)
	AddFollowing(ctx context.Context, userID, targetID uuid.UUID) error
	RemoveFollowing(ctx context.Context, userID, targetID uuid.UUID) error
	AddFollower(ctx context.Context, userID, followerID uuid.UUID) error
	RemoveFollower(ctx context.Context, userID, followerID uuid.UUID) error
	SavePostForUser(ctx context.Context, userID, postID uuid.UUID) error
	UnsavePostForUser(ctx context.Context, userID, postID uuid.UUID) error
	RemoveUserFromGraph(ctx context.Context, userID uuid.UUID) error
	RemovePostsFromSavedLists(ctx context.Context, postIDs []uuid.UUID) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	// Posts
	InsertPost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetPosts(ctx context.Context) ([]*models.Post, error)
	GetPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Post, error)
	UpdatePostContent(ctx context.Context, id uuid.UUID, content, image string) (*models.Post, error)
	AttachLike(ctx context.Context, postID, likeID uuid.UUID) error
	DetachLike(ctx context.Context, postID, likeID uuid.UUID) error
	AttachComment(ctx context.Context, postID, commentID uuid.UUID) error
	DetachComment(ctx context.Context, postID, commentID uuid.UUID) error
	DeletePost(ctx context.Context, id uuid.UUID) error
	DeletePostsByAuthor(ctx context.Context, authorID uuid.UUID) error

	// Comments
	InsertComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	GetPostComments(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error)
	GetCommentsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Comment, error)
	UpdateCommentBody(ctx context.Context, id uuid.UUID, body string) (*models.Comment, error)
	AttachReply(ctx context.Context, parentID, replyID uuid.UUID) error
	DetachReply(ctx context.Context, parentID, replyID uuid.UUID) error
	DeleteComments(ctx context.Context, ids []uuid.UUID) error
	DeleteCommentsByPostIDs(ctx context.Context, postIDs []uuid.UUID) error
	DeleteCommentsByAuthor(ctx context.Context, authorID uuid.UUID) error

	// Likes
	InsertLike(ctx context.Context, like *models.Like) error
	GetLike(ctx context.Context, userID, postID uuid.UUID) (*models.Like, error)
	GetLikesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Like, error)
	DeleteLike(ctx context.Context, id uuid.UUID) error
	DeleteLikesByPostIDs(ctx context.Context, postIDs []uuid.UUID) error
	DeleteLikesByAuthor(ctx context.Context, userID uuid.UUID) error

	// Notifications
	InsertNotification(ctx context.Context, n *models.Notification) error
	GetNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) error
	DeleteNotificationsForUser(ctx context.Context, userID uuid.UUID) error
}

type MongoDB struct {
	Client        *mongo.Client
	Users         *mongo.Collection
	Posts         *mongo.Collection
	Comments      *mongo.Collection
	Likes         *mongo.Collection
	Notifications *mongo.Collection
}

var _ Store = (*MongoDB)(nil)

func NewMongoDB(uri, dbName string) (*MongoDB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	log.Println("Successfully connected to MongoDB!")

	db := client.Database(dbName)
	m := &MongoDB{
		Client:        client,
		Users:         db.Collection("users"),
		Posts:         db.Collection("posts"),
		Comments:      db.Collection("comments"),
		Likes:         db.Collection("likes"),
		Notifications: db.Collection("notifications"),
	}

	if err := m.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureIndexes creates the unique and lookup indexes the graph relies on:
// username and mobile uniqueness, the one-like-per-(user,post) constraint,
// and the filters used by cascade deletes.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := m.Users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "mobileNo", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %v", err)
	}

	_, err = m.Likes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "postId", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "postId", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create like indexes: %v", err)
	}

	_, err = m.Comments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "postId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "authorId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "parentCommentId", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create comment indexes: %v", err)
	}

	_, err = m.Posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "authorId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create post indexes: %v", err)
	}

	_, err = m.Notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipientId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create notification indexes: %v", err)
	}

	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// uuidStrings converts a UUID slice to its string form for bson filters.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// parseUUIDs converts stored string ids back to UUIDs, failing on corrupt data.
func parseUUIDs(raw []string, kind string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s ID in database: %v", kind, err)
		}
		out[i] = id
	}
	return out, nil
}
