// internal/database/user_repository.go
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"perch/internal/models"
	"perch/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserDocument represents the MongoDB schema for a user
type UserDocument struct {
	ID             string    `bson:"_id"`
	Name           string    `bson:"name"`
	Username       string    `bson:"username"`
	Bio            string    `bson:"bio,omitempty"`
	Location       string    `bson:"location,omitempty"`
	MobileNo       string    `bson:"mobileNo"`
	HashedPassword string    `bson:"hashedPassword"`
	ProfileImage   string    `bson:"profileImage"`
	Followers      []string  `bson:"followers"`
	Following      []string  `bson:"following"`
	SavedPosts     []string  `bson:"savedPosts"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

func userModelToDocument(user *models.User) *UserDocument {
	return &UserDocument{
		ID:             user.ID.String(),
		Name:           user.Name,
		Username:       user.Username,
		Bio:            user.Bio,
		Location:       user.Location,
		MobileNo:       user.MobileNo,
		HashedPassword: user.HashedPassword,
		ProfileImage:   user.ProfileImage,
		Followers:      uuidStrings(user.Followers),
		Following:      uuidStrings(user.Following),
		SavedPosts:     uuidStrings(user.SavedPosts),
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

func userDocumentToModel(doc *UserDocument) (*models.User, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in database: %v", err)
	}

	followers, err := parseUUIDs(doc.Followers, "follower")
	if err != nil {
		return nil, err
	}
	following, err := parseUUIDs(doc.Following, "following")
	if err != nil {
		return nil, err
	}
	savedPosts, err := parseUUIDs(doc.SavedPosts, "saved post")
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:             id,
		Name:           doc.Name,
		Username:       doc.Username,
		Bio:            doc.Bio,
		Location:       doc.Location,
		MobileNo:       doc.MobileNo,
		HashedPassword: doc.HashedPassword,
		ProfileImage:   doc.ProfileImage,
		Followers:      followers,
		Following:      following,
		SavedPosts:     savedPosts,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

// InsertUser creates a new user. Username and mobile number uniqueness is
// enforced by the unique indexes; a duplicate maps to ErrDuplicate.
func (m *MongoDB) InsertUser(ctx context.Context, user *models.User) error {
	_, err := m.Users.InsertOne(ctx, userModelToDocument(user))
	if mongo.IsDuplicateKeyError(err) {
		return utils.NewAppError(utils.ErrDuplicate, "Username or mobile number already registered", err)
	}
	return err
}

// GetUser retrieves a user from MongoDB by their ID
func (m *MongoDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc UserDocument

	err := m.Users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "User not found", err)
	}
	if err != nil {
		return nil, err
	}

	return userDocumentToModel(&doc)
}

// GetUserByUsername retrieves a user by username (stored lowercased).
func (m *MongoDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var doc UserDocument

	err := m.Users.FindOne(ctx, bson.M{"username": strings.ToLower(username)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "User not found", err)
	}
	if err != nil {
		return nil, err
	}

	return userDocumentToModel(&doc)
}

func (m *MongoDB) GetUsers(ctx context.Context) ([]*models.User, error) {
	cursor, err := m.Users.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("database query failed: %v", err)
	}
	defer cursor.Close(ctx)

	return decodeUsers(ctx, cursor)
}

func (m *MongoDB) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	cursor, err := m.Users.Find(ctx, bson.M{"_id": bson.M{"$in": uuidStrings(ids)}})
	if err != nil {
		return nil, fmt.Errorf("database query failed: %v", err)
	}
	defer cursor.Close(ctx)

	return decodeUsers(ctx, cursor)
}

// SearchUsers matches the query case-insensitively against username and name.
func (m *MongoDB) SearchUsers(ctx context.Context, query string, limit int) ([]*models.User, error) {
	pattern := primitive.Regex{Pattern: query, Options: "i"}
	filter := bson.M{"$or": []bson.M{
		{"username": pattern},
		{"name": pattern},
	}}

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.Users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %v", err)
	}
	defer cursor.Close(ctx)

	return decodeUsers(ctx, cursor)
}

func decodeUsers(ctx context.Context, cursor *mongo.Cursor) ([]*models.User, error) {
	var users []*models.User
	for cursor.Next(ctx) {
		var doc UserDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode user: %v", err)
		}
		user, err := userDocumentToModel(&doc)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration failed: %v", err)
	}
	return users, nil
}

// UpdateUserProfile applies the non-nil fields and returns the updated user.
func (m *MongoDB) UpdateUserProfile(ctx context.Context, id uuid.UUID, update *ProfileUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Username != nil {
		set["username"] = *update.Username
	}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}
	if update.Location != nil {
		set["location"] = *update.Location
	}
	if update.ProfileImage != nil {
		set["profileImage"] = *update.ProfileImage
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc UserDocument
	err := m.Users.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "User not found", err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, utils.NewAppError(utils.ErrDuplicate, "Username already taken", err)
	}
	if err != nil {
		return nil, err
	}

	return userDocumentToModel(&doc)
}

// AddFollowing appends targetID to the user's following set.
func (m *MongoDB) AddFollowing(ctx context.Context, userID, targetID uuid.UUID) error {
	return m.updateMembership(ctx, userID, bson.M{"$addToSet": bson.M{"following": targetID.String()}})
}

func (m *MongoDB) RemoveFollowing(ctx context.Context, userID, targetID uuid.UUID) error {
	return m.updateMembership(ctx, userID, bson.M{"$pull": bson.M{"following": targetID.String()}})
}

// AddFollower appends followerID to the user's followers set.
func (m *MongoDB) AddFollower(ctx context.Context, userID, followerID uuid.UUID) error {
	return m.updateMembership(ctx, userID, bson.M{"$addToSet": bson.M{"followers": followerID.String()}})
}

func (m *MongoDB) RemoveFollower(ctx context.Context, userID, followerID uuid.UUID) error {
	return m.updateMembership(ctx, userID, bson.M{"$pull": bson.M{"followers": followerID.String()}})
}

// SavePostForUser prepends the post to the user's saved list, newest first.
func (m *MongoDB) SavePostForUser(ctx context.Context, userID, postID uuid.UUID) error {
	return m.updateMembership(ctx, userID, bson.M{
		"$push": bson.M{"savedPosts": bson.M{
			"$each":     []string{postID.String()},
			"$position": 0,
		}},
	})
}

func (m *MongoDB) UnsavePostForUser(ctx context.Context, userID, postID uuid.UUID) error {
	return m.updateMembership(ctx, userID, bson.M{"$pull": bson.M{"savedPosts": postID.String()}})
}

func (m *MongoDB) updateMembership(ctx context.Context, userID uuid.UUID, update bson.M) error {
	result, err := m.Users.UpdateOne(ctx, bson.M{"_id": userID.String()}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "User not found", nil)
	}
	return nil
}

// RemoveUserFromGraph pulls the user out of every other user's followers and
// following arrays. Used by account deletion.
func (m *MongoDB) RemoveUserFromGraph(ctx context.Context, userID uuid.UUID) error {
	id := userID.String()
	_, err := m.Users.UpdateMany(ctx,
		bson.M{"$or": []bson.M{
			{"followers": id},
			{"following": id},
		}},
		bson.M{"$pull": bson.M{
			"followers": id,
			"following": id,
		}},
	)
	return err
}

// RemovePostsFromSavedLists pulls the given post ids out of every user's
// savedPosts array so deleted posts leave no dangling references.
func (m *MongoDB) RemovePostsFromSavedLists(ctx context.Context, postIDs []uuid.UUID) error {
	if len(postIDs) == 0 {
		return nil
	}
	ids := uuidStrings(postIDs)
	_, err := m.Users.UpdateMany(ctx,
		bson.M{"savedPosts": bson.M{"$in": ids}},
		bson.M{"$pull": bson.M{"savedPosts": bson.M{"$in": ids}}},
	)
	return err
}

func (m *MongoDB) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := m.Users.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "User not found", nil)
	}
	return nil
}
