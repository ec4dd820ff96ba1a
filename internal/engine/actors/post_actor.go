package actors

import (
	"fmt"
	"log"
	"sync"
	"time"

	"perch/internal/database"
	"perch/internal/models"
	"perch/internal/utils"

	stdctx "context"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for post, like and comment operations
type (
	CreatePostMsg struct {
		AuthorID uuid.UUID
		Content  string
		Image    string
	}

	UpdatePostMsg struct {
		PostID   uuid.UUID
		EditorID uuid.UUID
		Content  string
		Image    string
	}

	DeletePostMsg struct {
		PostID      uuid.UUID
		RequesterID uuid.UUID
	}

	LikePostMsg struct {
		PostID uuid.UUID
		UserID uuid.UUID
	}

	UnlikePostMsg struct {
		PostID uuid.UUID
		UserID uuid.UUID
	}

	AddCommentMsg struct {
		PostID   uuid.UUID
		AuthorID uuid.UUID
		Body     string
	}

	AddReplyMsg struct {
		ParentCommentID uuid.UUID
		AuthorID        uuid.UUID
		Body            string
	}

	UpdateCommentMsg struct {
		CommentID uuid.UUID
		EditorID  uuid.UUID
		Body      string
	}

	DeleteCommentMsg struct {
		CommentID   uuid.UUID
		RequesterID uuid.UUID
	}
)

// PostSupervisor owns one actor per post. Every mutation of a post's
// document or of the comments and likes hanging off it goes through that
// actor, so two likes racing on the same post are applied in sequence.
// Comment-addressed messages are resolved to their post id here before
// routing.
type PostSupervisor struct {
	postActors map[uuid.UUID]*actor.PID
	mu         sync.RWMutex
	store      database.Store
	notifier   *Notifier
	metrics    *utils.MetricsCollector
}

func NewPostSupervisor(store database.Store, notifier *Notifier, metrics *utils.MetricsCollector) actor.Actor {
	return &PostSupervisor{
		postActors: make(map[uuid.UUID]*actor.PID),
		store:      store,
		notifier:   notifier,
		metrics:    metrics,
	}
}

func (s *PostSupervisor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *CreatePostMsg:
		s.handleCreatePost(context, msg)

	case *UpdatePostMsg:
		s.routeToPost(context, msg.PostID, msg)

	case *DeletePostMsg:
		s.handleDeletePost(context, msg)

	case *LikePostMsg:
		s.routeToPost(context, msg.PostID, msg)

	case *UnlikePostMsg:
		s.routeToPost(context, msg.PostID, msg)

	case *AddCommentMsg:
		s.routeToPost(context, msg.PostID, msg)

	case *AddReplyMsg:
		s.routeByComment(context, msg.ParentCommentID, msg)

	case *UpdateCommentMsg:
		s.routeByComment(context, msg.CommentID, msg)

	case *DeleteCommentMsg:
		s.routeByComment(context, msg.CommentID, msg)
	}
}

func (s *PostSupervisor) handleCreatePost(context actor.Context, msg *CreatePostMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	author, err := s.store.GetUser(ctx, msg.AuthorID)
	if err != nil {
		context.Respond(asAppError(err, "Author not found"))
		return
	}

	now := time.Now()
	post := &models.Post{
		ID:             uuid.New(),
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		Content:        msg.Content,
		Image:          msg.Image,
		LikeIDs:        []uuid.UUID{},
		CommentIDs:     []uuid.UUID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.InsertPost(ctx, post); err != nil {
		context.Respond(asAppError(err, "Failed to create post"))
		return
	}

	log.Printf("Created post %s by %s", post.ID, author.Username)
	s.metrics.AddOperationLatency("create_post", time.Since(startTime))
	context.Respond(post)
}

// handleDeletePost routes through the post's actor and tears it down once
// the post is gone.
func (s *PostSupervisor) handleDeletePost(context actor.Context, msg *DeletePostMsg) {
	pid, err := s.getOrCreatePostActor(context, msg.PostID)
	if err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}

	future := context.RequestFuture(pid, msg, 10*time.Second)
	result, err := future.Result()
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrActorTimeout, "Post deletion failed", err))
		return
	}

	if status, ok := result.(*models.StatusResponse); ok && status.Success {
		s.mu.Lock()
		delete(s.postActors, msg.PostID)
		s.mu.Unlock()
		context.Stop(pid)
	}
	context.Respond(result)
}

func (s *PostSupervisor) routeToPost(context actor.Context, postID uuid.UUID, msg interface{}) {
	pid, err := s.getOrCreatePostActor(context, postID)
	if err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}

	future := context.RequestFuture(pid, msg, 5*time.Second)
	result, err := future.Result()
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrActorTimeout, "Operation timed out", err))
		return
	}
	context.Respond(result)
}

// routeByComment resolves a comment id to its post so the message lands on
// the actor that serializes that post's thread.
func (s *PostSupervisor) routeByComment(context actor.Context, commentID uuid.UUID, msg interface{}) {
	ctx := stdctx.Background()
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		context.Respond(asAppError(err, "Comment not found"))
		return
	}
	s.routeToPost(context, comment.PostID, msg)
}

func (s *PostSupervisor) getOrCreatePostActor(context actor.Context, postID uuid.UUID) (*actor.PID, error) {
	s.mu.RLock()
	pid, exists := s.postActors[postID]
	s.mu.RUnlock()

	if exists {
		return pid, nil
	}

	ctx := stdctx.Background()
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewPostActor(postID, s.store, s.notifier, s.metrics)
	})
	pid = context.Spawn(props)

	s.mu.Lock()
	s.postActors[postID] = pid
	s.mu.Unlock()

	return pid, nil
}

// PostActor serializes all mutations of one post and its comment thread.
type PostActor struct {
	id       uuid.UUID
	store    database.Store
	notifier *Notifier
	metrics  *utils.MetricsCollector
}

func NewPostActor(id uuid.UUID, store database.Store, notifier *Notifier, metrics *utils.MetricsCollector) *PostActor {
	return &PostActor{
		id:       id,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
	}
}

func (a *PostActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *UpdatePostMsg:
		a.handleUpdatePost(context, msg)

	case *DeletePostMsg:
		a.handleDeletePost(context, msg)

	case *LikePostMsg:
		a.handleLike(context, msg)

	case *UnlikePostMsg:
		a.handleUnlike(context, msg)

	case *AddCommentMsg:
		a.handleAddComment(context, msg)

	case *AddReplyMsg:
		a.handleAddReply(context, msg)

	case *UpdateCommentMsg:
		a.handleUpdateComment(context, msg)

	case *DeleteCommentMsg:
		a.handleDeleteComment(context, msg)
	}
}

func (a *PostActor) handleUpdatePost(context actor.Context, msg *UpdatePostMsg) {
	ctx := stdctx.Background()

	post, err := a.store.GetPost(ctx, msg.PostID)
	if err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}
	if post.AuthorID != msg.EditorID {
		context.Respond(utils.NewAppError(utils.ErrForbidden, "Only the author can edit this post", nil))
		return
	}

	updated, err := a.store.UpdatePostContent(ctx, msg.PostID, msg.Content, msg.Image)
	if err != nil {
		context.Respond(asAppError(err, "Failed to update post"))
		return
	}
	context.Respond(updated)
}

// handleDeletePost removes the post and everything hanging off it: like
// documents, the whole comment thread, and saved-post references in user
// documents. References go first so a crash mid-way cannot leave ids
// pointing at a deleted post.
func (a *PostActor) handleDeletePost(context actor.Context, msg *DeletePostMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	post, err := a.store.GetPost(ctx, msg.PostID)
	if err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}
	if post.AuthorID != msg.RequesterID {
		context.Respond(utils.NewAppError(utils.ErrForbidden, "Only the author can delete this post", nil))
		return
	}

	postIDs := []uuid.UUID{post.ID}
	if err := a.store.DeleteLikesByPostIDs(ctx, postIDs); err != nil {
		context.Respond(asAppError(err, "Failed to delete likes"))
		return
	}
	if err := a.store.DeleteCommentsByPostIDs(ctx, postIDs); err != nil {
		context.Respond(asAppError(err, "Failed to delete comments"))
		return
	}
	if err := a.store.RemovePostsFromSavedLists(ctx, postIDs); err != nil {
		context.Respond(asAppError(err, "Failed to clean saved lists"))
		return
	}
	if err := a.store.DeletePost(ctx, post.ID); err != nil {
		context.Respond(asAppError(err, "Failed to delete post"))
		return
	}

	log.Printf("Deleted post %s (%d likes, %d comments)", post.ID, post.LikesCount, post.CommentsCount)
	a.metrics.AddOperationLatency("delete_post", time.Since(startTime))
	context.Respond(&models.StatusResponse{Success: true, Message: "Post deleted"})
}

func (a *PostActor) handleLike(context actor.Context, msg *LikePostMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	post, err := a.store.GetPost(ctx, msg.PostID)
	if err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}
	liker, err := a.store.GetUser(ctx, msg.UserID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}

	// The like document is the source of truth; the unique (user, post)
	// index makes the insert the conflict check. The post's likeIds and
	// counter follow in one atomic update.
	like := &models.Like{
		ID:        uuid.New(),
		UserID:    liker.ID,
		PostID:    post.ID,
		CreatedAt: time.Now(),
	}
	if err := a.store.InsertLike(ctx, like); err != nil {
		context.Respond(asAppError(err, "Failed to like post"))
		return
	}
	if err := a.store.AttachLike(ctx, post.ID, like.ID); err != nil {
		context.Respond(asAppError(err, "Failed to like post"))
		return
	}

	a.notifier.Notify(ctx, post.AuthorID, liker.ID, models.NotifyLike, post.ID,
		fmt.Sprintf("%s liked your post", liker.Username))

	updated, err := a.store.GetPost(ctx, post.ID)
	if err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}
	a.metrics.AddOperationLatency("like_post", time.Since(startTime))
	context.Respond(updated)
}

func (a *PostActor) handleUnlike(context actor.Context, msg *UnlikePostMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	if _, err := a.store.GetPost(ctx, msg.PostID); err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}

	like, err := a.store.GetLike(ctx, msg.UserID, msg.PostID)
	if err != nil {
		context.Respond(asAppError(err, "Post not liked"))
		return
	}

	// Mirror of like: remove the like document first, then the reference
	// and counter together.
	if err := a.store.DeleteLike(ctx, like.ID); err != nil {
		context.Respond(asAppError(err, "Failed to unlike post"))
		return
	}
	if err := a.store.DetachLike(ctx, msg.PostID, like.ID); err != nil {
		context.Respond(asAppError(err, "Failed to unlike post"))
		return
	}

	updated, err := a.store.GetPost(ctx, msg.PostID)
	if err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}
	a.metrics.AddOperationLatency("unlike_post", time.Since(startTime))
	context.Respond(updated)
}

func (a *PostActor) handleAddComment(context actor.Context, msg *AddCommentMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	post, err := a.store.GetPost(ctx, msg.PostID)
	if err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}
	author, err := a.store.GetUser(ctx, msg.AuthorID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}

	now := time.Now()
	comment := &models.Comment{
		ID:             uuid.New(),
		PostID:         post.ID,
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		Body:           msg.Body,
		ReplyIDs:       []uuid.UUID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.InsertComment(ctx, comment); err != nil {
		context.Respond(asAppError(err, "Failed to add comment"))
		return
	}
	if err := a.store.AttachComment(ctx, post.ID, comment.ID); err != nil {
		context.Respond(asAppError(err, "Failed to add comment"))
		return
	}

	a.notifier.Notify(ctx, post.AuthorID, author.ID, models.NotifyComment, post.ID,
		fmt.Sprintf("%s commented on your post", author.Username))

	a.metrics.AddOperationLatency("add_comment", time.Since(startTime))
	context.Respond(comment)
}

// handleAddReply attaches a nested comment to its parent. Replies live in
// the parent's replyIds and never touch the post's commentsCount, which
// only tracks top-level comments.
func (a *PostActor) handleAddReply(context actor.Context, msg *AddReplyMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	parent, err := a.store.GetComment(ctx, msg.ParentCommentID)
	if err != nil {
		context.Respond(asAppError(err, "Comment not found"))
		return
	}
	author, err := a.store.GetUser(ctx, msg.AuthorID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}

	parentID := parent.ID
	now := time.Now()
	reply := &models.Comment{
		ID:             uuid.New(),
		PostID:         parent.PostID,
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		ParentID:       &parentID,
		Body:           msg.Body,
		ReplyIDs:       []uuid.UUID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.InsertComment(ctx, reply); err != nil {
		context.Respond(asAppError(err, "Failed to add reply"))
		return
	}
	if err := a.store.AttachReply(ctx, parent.ID, reply.ID); err != nil {
		context.Respond(asAppError(err, "Failed to add reply"))
		return
	}

	a.notifier.Notify(ctx, parent.AuthorID, author.ID, models.NotifyComment, parent.PostID,
		fmt.Sprintf("%s replied to your comment", author.Username))

	a.metrics.AddOperationLatency("add_reply", time.Since(startTime))
	context.Respond(reply)
}

func (a *PostActor) handleUpdateComment(context actor.Context, msg *UpdateCommentMsg) {
	ctx := stdctx.Background()

	comment, err := a.store.GetComment(ctx, msg.CommentID)
	if err != nil {
		context.Respond(asAppError(err, "Comment not found"))
		return
	}
	if comment.AuthorID != msg.EditorID {
		context.Respond(utils.NewAppError(utils.ErrForbidden, "Only the author can edit this comment", nil))
		return
	}

	updated, err := a.store.UpdateCommentBody(ctx, msg.CommentID, msg.Body)
	if err != nil {
		context.Respond(asAppError(err, "Failed to update comment"))
		return
	}
	context.Respond(updated)
}

// handleDeleteComment removes a comment and its transitive replies. The
// comment author and the post author may both delete. Detaching from the
// parent document happens before the batch delete, so no surviving document
// ever references a deleted comment.
func (a *PostActor) handleDeleteComment(context actor.Context, msg *DeleteCommentMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	comment, err := a.store.GetComment(ctx, msg.CommentID)
	if err != nil {
		context.Respond(asAppError(err, "Comment not found"))
		return
	}
	post, err := a.store.GetPost(ctx, comment.PostID)
	if err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}
	if comment.AuthorID != msg.RequesterID && post.AuthorID != msg.RequesterID {
		context.Respond(utils.NewAppError(utils.ErrForbidden, "Not allowed to delete this comment", nil))
		return
	}

	if comment.ParentID != nil {
		if err := a.store.DetachReply(ctx, *comment.ParentID, comment.ID); err != nil && !utils.IsErrorCode(err, utils.ErrNotFound) {
			context.Respond(asAppError(err, "Failed to detach reply"))
			return
		}
	} else {
		if err := a.store.DetachComment(ctx, post.ID, comment.ID); err != nil {
			context.Respond(asAppError(err, "Failed to detach comment"))
			return
		}
	}

	ids, err := collectReplyTrees(ctx, a.store, []*models.Comment{comment})
	if err != nil {
		context.Respond(asAppError(err, "Failed to collect replies"))
		return
	}
	if err := a.store.DeleteComments(ctx, ids); err != nil {
		context.Respond(asAppError(err, "Failed to delete comments"))
		return
	}

	log.Printf("Deleted comment %s and %d replies from post %s", comment.ID, len(ids)-1, post.ID)
	a.metrics.AddOperationLatency("delete_comment", time.Since(startTime))
	context.Respond(&models.StatusResponse{Success: true, Message: "Comment deleted"})
}
