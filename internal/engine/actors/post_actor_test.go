package actors

import (
	"context"
	"sync"
	"testing"
	"time"

	"perch/internal/models"
	"perch/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost(t *testing.T) {
	rig := newTestRig()

	alice := rig.registerUser(t, "alice", "9000000001")
	post := rig.createPost(t, alice, "hello world")

	assert.Equal(t, alice.ID, post.AuthorID)
	assert.Equal(t, "alice", post.AuthorUsername)
	assert.Equal(t, 0, post.LikesCount)
	assert.Empty(t, post.LikeIDs)
	assert.Equal(t, 0, post.CommentsCount)

	rig.requestError(t, rig.postPID, &CreatePostMsg{AuthorID: newID(), Content: "ghost"},
		utils.ErrNotFound)
}

func TestLikeAndUnlike(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	alice := rig.registerUser(t, "alice", "9000000001")
	bob := rig.registerUser(t, "bob", "9000000002")
	post := rig.createPost(t, alice, "like me")

	result := rig.request(t, rig.postPID, &LikePostMsg{PostID: post.ID, UserID: bob.ID})
	liked, ok := result.(*models.Post)
	require.True(t, ok, "got %#v", result)
	assert.Equal(t, 1, liked.LikesCount)
	require.Len(t, liked.LikeIDs, 1)

	// The like document exists and matches the post's array entry.
	like, err := rig.store.GetLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, like.ID, liked.LikeIDs[0])

	// Liking a post twice is a conflict and leaves the counter alone.
	rig.requestError(t, rig.postPID, &LikePostMsg{PostID: post.ID, UserID: bob.ID},
		utils.ErrAlreadyLiked)
	postNow, err := rig.store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, postNow.LikesCount)

	// Alice liking her own post works but produces no notification.
	rig.request(t, rig.postPID, &LikePostMsg{PostID: post.ID, UserID: alice.ID})
	notifications, err := rig.store.GetNotifications(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, bob.ID, notifications[0].ActorID)

	result = rig.request(t, rig.postPID, &UnlikePostMsg{PostID: post.ID, UserID: bob.ID})
	unliked, ok := result.(*models.Post)
	require.True(t, ok)
	assert.Equal(t, 1, unliked.LikesCount)
	assert.Len(t, unliked.LikeIDs, 1)

	rig.requestError(t, rig.postPID, &UnlikePostMsg{PostID: post.ID, UserID: bob.ID},
		utils.ErrNotLiked)
}

// TestConcurrentLikes hammers one post from many users at once; the
// per-post actor serializes them so no update is lost.
func TestConcurrentLikes(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	author := rig.registerUser(t, "author", "9000000000")
	post := rig.createPost(t, author, "popular")

	const likers = 20
	users := make([]*models.User, likers)
	for i := 0; i < likers; i++ {
		users[i] = rig.registerUser(t,
			"liker"+string(rune('a'+i)),
			"90000001"+string(rune('0'+i/10))+string(rune('0'+i%10)))
	}

	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		go func(userID interface{}) {
			defer wg.Done()
			future := rig.system.Root.RequestFuture(rig.postPID, &LikePostMsg{
				PostID: post.ID,
				UserID: userID.(*models.User).ID,
			}, 10*time.Second)
			_, err := future.Result()
			assert.NoError(t, err)
		}(user)
	}
	wg.Wait()

	postNow, err := rig.store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, likers, postNow.LikesCount)
	assert.Len(t, postNow.LikeIDs, likers)
}

func TestCommentsAndReplies(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	alice := rig.registerUser(t, "alice", "9000000001")
	bob := rig.registerUser(t, "bob", "9000000002")
	post := rig.createPost(t, alice, "discuss")

	comment := rig.addComment(t, post, bob, "first!")
	assert.Nil(t, comment.ParentID)
	assert.Equal(t, "bob", comment.AuthorUsername)

	postNow, err := rig.store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, postNow.CommentsCount)
	assert.Equal(t, []string{comment.ID.String()}, idStrings(postNow.CommentIDs))

	// A reply hangs off the parent comment and leaves the post counter
	// untouched.
	result := rig.request(t, rig.postPID, &AddReplyMsg{
		ParentCommentID: comment.ID,
		AuthorID:        alice.ID,
		Body:            "welcome",
	})
	reply, ok := result.(*models.Comment)
	require.True(t, ok, "got %#v", result)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, comment.ID, *reply.ParentID)
	assert.Equal(t, post.ID, reply.PostID)

	postNow, err = rig.store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, postNow.CommentsCount)
	assert.Len(t, postNow.CommentIDs, 1)

	parentNow, err := rig.store.GetComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{reply.ID.String()}, idStrings(parentNow.ReplyIDs))

	// Bob got a notification for the reply to his comment.
	notifications, err := rig.store.GetNotifications(ctx, bob.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, notifications)
	assert.Equal(t, models.NotifyComment, notifications[0].Type)

	rig.requestError(t, rig.postPID, &AddReplyMsg{
		ParentCommentID: newID(),
		AuthorID:        alice.ID,
		Body:            "lost",
	}, utils.ErrNotFound)
}

func TestUpdateComment(t *testing.T) {
	rig := newTestRig()

	alice := rig.registerUser(t, "alice", "9000000001")
	bob := rig.registerUser(t, "bob", "9000000002")
	post := rig.createPost(t, alice, "post")
	comment := rig.addComment(t, post, bob, "typo")

	result := rig.request(t, rig.postPID, &UpdateCommentMsg{
		CommentID: comment.ID,
		EditorID:  bob.ID,
		Body:      "fixed",
	})
	updated, ok := result.(*models.Comment)
	require.True(t, ok)
	assert.Equal(t, "fixed", updated.Body)

	// Not even the post author may edit someone else's comment.
	rig.requestError(t, rig.postPID, &UpdateCommentMsg{
		CommentID: comment.ID,
		EditorID:  alice.ID,
		Body:      "hijacked",
	}, utils.ErrForbidden)
}

// TestDeleteCommentCascade deletes a top-level comment with a two-level
// reply chain and verifies nothing keeps referencing any of them.
func TestDeleteCommentCascade(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	alice := rig.registerUser(t, "alice", "9000000001")
	bob := rig.registerUser(t, "bob", "9000000002")
	post := rig.createPost(t, alice, "thread")

	comment := rig.addComment(t, post, bob, "root")
	reply := rig.request(t, rig.postPID, &AddReplyMsg{
		ParentCommentID: comment.ID, AuthorID: alice.ID, Body: "level 1",
	}).(*models.Comment)
	nested := rig.request(t, rig.postPID, &AddReplyMsg{
		ParentCommentID: reply.ID, AuthorID: bob.ID, Body: "level 2",
	}).(*models.Comment)

	// A stranger cannot delete the comment.
	carol := rig.registerUser(t, "carol", "9000000003")
	rig.requestError(t, rig.postPID, &DeleteCommentMsg{
		CommentID: comment.ID, RequesterID: carol.ID,
	}, utils.ErrForbidden)

	// The post author can.
	result := rig.request(t, rig.postPID, &DeleteCommentMsg{
		CommentID: comment.ID, RequesterID: alice.ID,
	})
	status, ok := result.(*models.StatusResponse)
	require.True(t, ok, "got %#v", result)
	assert.True(t, status.Success)

	_, err := rig.store.GetComment(ctx, comment.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	_, err = rig.store.GetComment(ctx, reply.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	_, err = rig.store.GetComment(ctx, nested.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))

	postNow, err := rig.store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, postNow.CommentsCount)
	assert.Empty(t, postNow.CommentIDs)
}

// TestDeleteReplyOnly removes a mid-chain reply and checks the parent
// keeps its place in the thread while the subtree disappears.
func TestDeleteReplyOnly(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	alice := rig.registerUser(t, "alice", "9000000001")
	post := rig.createPost(t, alice, "thread")
	comment := rig.addComment(t, post, alice, "root")
	reply := rig.request(t, rig.postPID, &AddReplyMsg{
		ParentCommentID: comment.ID, AuthorID: alice.ID, Body: "reply",
	}).(*models.Comment)

	rig.request(t, rig.postPID, &DeleteCommentMsg{CommentID: reply.ID, RequesterID: alice.ID})

	parentNow, err := rig.store.GetComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Empty(t, parentNow.ReplyIDs)

	// Deleting a reply never touches the post's top-level counter.
	postNow, err := rig.store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, postNow.CommentsCount)
}

func TestUpdatePost(t *testing.T) {
	rig := newTestRig()

	alice := rig.registerUser(t, "alice", "9000000001")
	bob := rig.registerUser(t, "bob", "9000000002")
	post := rig.createPost(t, alice, "draft")

	result := rig.request(t, rig.postPID, &UpdatePostMsg{
		PostID: post.ID, EditorID: alice.ID, Content: "final",
	})
	updated, ok := result.(*models.Post)
	require.True(t, ok)
	assert.Equal(t, "final", updated.Content)

	rig.requestError(t, rig.postPID, &UpdatePostMsg{
		PostID: post.ID, EditorID: bob.ID, Content: "vandalism",
	}, utils.ErrForbidden)
}

// TestDeletePostCascade verifies that deleting a post removes its likes,
// its whole comment thread and every bookmark of it.
func TestDeletePostCascade(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	alice := rig.registerUser(t, "alice", "9000000001")
	bob := rig.registerUser(t, "bob", "9000000002")
	post := rig.createPost(t, alice, "ephemeral")

	rig.request(t, rig.postPID, &LikePostMsg{PostID: post.ID, UserID: bob.ID})
	comment := rig.addComment(t, post, bob, "nice")
	rig.request(t, rig.userPID, &SavePostMsg{UserID: bob.ID, PostID: post.ID})

	// Only the author may delete.
	rig.requestError(t, rig.postPID, &DeletePostMsg{PostID: post.ID, RequesterID: bob.ID},
		utils.ErrForbidden)

	result := rig.request(t, rig.postPID, &DeletePostMsg{PostID: post.ID, RequesterID: alice.ID})
	status, ok := result.(*models.StatusResponse)
	require.True(t, ok, "got %#v", result)
	assert.True(t, status.Success)

	_, err := rig.store.GetPost(ctx, post.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	_, err = rig.store.GetLike(ctx, bob.ID, post.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotLiked))
	_, err = rig.store.GetComment(ctx, comment.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))

	bobNow, err := rig.store.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobNow.SavedPosts)

	// Operations against the deleted post now fail cleanly.
	rig.requestError(t, rig.postPID, &LikePostMsg{PostID: post.ID, UserID: bob.ID},
		utils.ErrNotFound)
}
