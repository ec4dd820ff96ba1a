package actors

import (
	"context"
	"testing"

	"perch/internal/database"
	"perch/internal/models"
	"perch/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	rig := newTestRig()

	user := rig.registerUser(t, "heron", "9000000001")
	assert.Equal(t, "heron", user.Username)
	assert.Equal(t, models.DefaultProfileImage, user.ProfileImage)
	assert.Empty(t, user.Followers)
	assert.Empty(t, user.Following)
	assert.NotEqual(t, "secret123", user.HashedPassword)

	// Duplicate username is rejected by the store.
	rig.requestError(t, rig.userPID, &RegisterUserMsg{
		Name:     "Other",
		Username: "heron",
		MobileNo: "9000000002",
		Password: "secret123",
	}, utils.ErrDuplicate)

	result := rig.request(t, rig.userPID, &LoginMsg{Username: "heron", Password: "secret123"})
	loggedIn, ok := result.(*models.User)
	require.True(t, ok)
	assert.Equal(t, user.ID, loggedIn.ID)

	rig.requestError(t, rig.userPID, &LoginMsg{Username: "heron", Password: "wrong"},
		utils.ErrInvalidCredentials)
	rig.requestError(t, rig.userPID, &LoginMsg{Username: "nobody", Password: "secret123"},
		utils.ErrInvalidCredentials)
}

func TestFollowLifecycle(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	alice := rig.registerUser(t, "alice", "9000000001")
	bob := rig.registerUser(t, "bob", "9000000002")

	result := rig.request(t, rig.userPID, &FollowUserMsg{FollowerID: alice.ID, TargetID: bob.ID})
	status, ok := result.(*models.StatusResponse)
	require.True(t, ok, "got %#v", result)
	assert.True(t, status.Success)

	// Both sides of the edge exist.
	aliceNow, err := rig.store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	bobNow, err := rig.store.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{bob.ID}, aliceNow.Following)
	assert.Equal(t, []uuid.UUID{alice.ID}, bobNow.Followers)
	assert.Empty(t, aliceNow.Followers)
	assert.Empty(t, bobNow.Following)

	// Following produced a notification for bob.
	notifications, err := rig.store.GetNotifications(ctx, bob.ID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotifyFollow, notifications[0].Type)
	assert.Equal(t, alice.ID, notifications[0].ActorID)

	rig.requestError(t, rig.userPID, &FollowUserMsg{FollowerID: alice.ID, TargetID: bob.ID},
		utils.ErrAlreadyFollowing)

	result = rig.request(t, rig.userPID, &UnfollowUserMsg{FollowerID: alice.ID, TargetID: bob.ID})
	status, ok = result.(*models.StatusResponse)
	require.True(t, ok)
	assert.True(t, status.Success)

	aliceNow, err = rig.store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	bobNow, err = rig.store.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, aliceNow.Following)
	assert.Empty(t, bobNow.Followers)

	rig.requestError(t, rig.userPID, &UnfollowUserMsg{FollowerID: alice.ID, TargetID: bob.ID},
		utils.ErrNotFollowing)
}

func TestSelfFollowRejectedWithoutMutation(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	alice := rig.registerUser(t, "alice", "9000000001")

	rig.requestError(t, rig.userPID, &FollowUserMsg{FollowerID: alice.ID, TargetID: alice.ID},
		utils.ErrSelfReference)

	aliceNow, err := rig.store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, aliceNow.Following)
	assert.Empty(t, aliceNow.Followers)
}

func TestSaveAndUnsavePost(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	alice := rig.registerUser(t, "alice", "9000000001")
	bob := rig.registerUser(t, "bob", "9000000002")
	first := rig.createPost(t, bob, "first")
	second := rig.createPost(t, bob, "second")

	rig.request(t, rig.userPID, &SavePostMsg{UserID: alice.ID, PostID: first.ID})
	rig.request(t, rig.userPID, &SavePostMsg{UserID: alice.ID, PostID: second.ID})

	// Most recent save first.
	aliceNow, err := rig.store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceNow.SavedPosts, 2)
	assert.Equal(t, second.ID, aliceNow.SavedPosts[0])
	assert.Equal(t, first.ID, aliceNow.SavedPosts[1])

	rig.requestError(t, rig.userPID, &SavePostMsg{UserID: alice.ID, PostID: first.ID},
		utils.ErrAlreadySaved)

	rig.request(t, rig.userPID, &UnsavePostMsg{UserID: alice.ID, PostID: first.ID})
	rig.requestError(t, rig.userPID, &UnsavePostMsg{UserID: alice.ID, PostID: first.ID},
		utils.ErrNotSaved)

	// Saving a post that does not exist fails before any mutation.
	rig.requestError(t, rig.userPID, &SavePostMsg{UserID: alice.ID, PostID: newID()},
		utils.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	rig := newTestRig()

	alice := rig.registerUser(t, "alice", "9000000001")
	rig.registerUser(t, "bob", "9000000002")

	bio := "Birdwatcher by trade"
	result := rig.request(t, rig.userPID, &UpdateProfileMsg{
		UserID: alice.ID,
		Update: &database.ProfileUpdate{Bio: &bio},
	})
	updated, ok := result.(*models.User)
	require.True(t, ok)
	assert.Equal(t, bio, updated.Bio)
	assert.Equal(t, "alice", updated.Username)

	// Taking another user's username is a conflict.
	taken := "bob"
	rig.requestError(t, rig.userPID, &UpdateProfileMsg{
		UserID: alice.ID,
		Update: &database.ProfileUpdate{Username: &taken},
	}, utils.ErrDuplicate)
}

// TestDeleteAccountCascade builds a two-user graph where alice and bob
// reference each other from every collection, deletes alice, and scans the
// store for anything still pointing at her.
func TestDeleteAccountCascade(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	alice := rig.registerUser(t, "alice", "9000000001")
	bob := rig.registerUser(t, "bob", "9000000002")

	alicePost := rig.createPost(t, alice, "alice's post")
	bobPost := rig.createPost(t, bob, "bob's post")

	// Cross-references in both directions.
	rig.request(t, rig.userPID, &FollowUserMsg{FollowerID: alice.ID, TargetID: bob.ID})
	rig.request(t, rig.userPID, &FollowUserMsg{FollowerID: bob.ID, TargetID: alice.ID})
	rig.request(t, rig.postPID, &LikePostMsg{PostID: alicePost.ID, UserID: bob.ID})
	rig.request(t, rig.postPID, &LikePostMsg{PostID: bobPost.ID, UserID: alice.ID})
	rig.addComment(t, alicePost, bob, "bob on alice's post")
	aliceComment := rig.addComment(t, bobPost, alice, "alice on bob's post")
	reply := rig.request(t, rig.postPID, &AddReplyMsg{
		ParentCommentID: aliceComment.ID,
		AuthorID:        bob.ID,
		Body:            "bob replying to alice",
	})
	bobReply, ok := reply.(*models.Comment)
	require.True(t, ok)
	rig.request(t, rig.userPID, &SavePostMsg{UserID: bob.ID, PostID: alicePost.ID})
	rig.request(t, rig.userPID, &SavePostMsg{UserID: alice.ID, PostID: bobPost.ID})

	result := rig.request(t, rig.userPID, &DeleteAccountMsg{UserID: alice.ID})
	status, ok := result.(*models.StatusResponse)
	require.True(t, ok, "got %#v", result)
	assert.True(t, status.Success)

	// Alice and her post are gone.
	_, err := rig.store.GetUser(ctx, alice.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	_, err = rig.store.GetPost(ctx, alicePost.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))

	// Bob's post survives with alice's like and comment thread detached.
	bobPostNow, err := rig.store.GetPost(ctx, bobPost.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, bobPostNow.LikesCount)
	assert.Empty(t, bobPostNow.LikeIDs)
	assert.Equal(t, 0, bobPostNow.CommentsCount)
	assert.Empty(t, bobPostNow.CommentIDs)

	// Bob's reply went down with alice's comment.
	_, err = rig.store.GetComment(ctx, aliceComment.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	_, err = rig.store.GetComment(ctx, bobReply.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))

	// Bob no longer references alice anywhere.
	bobNow, err := rig.store.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobNow.Followers)
	assert.Empty(t, bobNow.Following)
	assert.Empty(t, bobNow.SavedPosts)

	// Alice's likes are gone from the like collection.
	_, err = rig.store.GetLike(ctx, alice.ID, bobPost.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotLiked))

	// Notifications sent to or by alice are gone; bob keeps none that
	// mention her.
	bobNotifications, err := rig.store.GetNotifications(ctx, bob.ID, 50)
	require.NoError(t, err)
	for _, n := range bobNotifications {
		assert.NotEqual(t, alice.ID, n.ActorID)
	}
}

func TestDeleteUnknownAccount(t *testing.T) {
	rig := newTestRig()
	rig.requestError(t, rig.userPID, &DeleteAccountMsg{UserID: newID()}, utils.ErrNotFound)
}
