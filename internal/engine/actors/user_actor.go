package actors

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"perch/internal/database"
	"perch/internal/models"
	"perch/internal/utils"

	stdctx "context"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Message types for user operations
type (
	RegisterUserMsg struct {
		Name     string
		Username string
		MobileNo string
		Password string
	}

	LoginMsg struct {
		Username string
		Password string
	}

	UpdateProfileMsg struct {
		UserID uuid.UUID
		Update *database.ProfileUpdate
	}

	FollowUserMsg struct {
		FollowerID uuid.UUID
		TargetID   uuid.UUID
	}

	UnfollowUserMsg struct {
		FollowerID uuid.UUID
		TargetID   uuid.UUID
	}

	SavePostMsg struct {
		UserID uuid.UUID
		PostID uuid.UUID
	}

	UnsavePostMsg struct {
		UserID uuid.UUID
		PostID uuid.UUID
	}

	DeleteAccountMsg struct {
		UserID uuid.UUID
	}
)

// UserSupervisor owns one actor per user and routes every mutation of a
// user's document through it, so concurrent follows, saves and profile
// updates for the same user are applied one at a time. Registration and
// login never touch an existing document and are handled here directly.
type UserSupervisor struct {
	userActors map[uuid.UUID]*actor.PID
	mu         sync.RWMutex
	store      database.Store
	notifier   *Notifier
	metrics    *utils.MetricsCollector
}

func NewUserSupervisor(store database.Store, notifier *Notifier, metrics *utils.MetricsCollector) actor.Actor {
	return &UserSupervisor{
		userActors: make(map[uuid.UUID]*actor.PID),
		store:      store,
		notifier:   notifier,
		metrics:    metrics,
	}
}

func (s *UserSupervisor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *RegisterUserMsg:
		s.handleRegister(context, msg)

	case *LoginMsg:
		s.handleLogin(context, msg)

	case *UpdateProfileMsg:
		s.routeToUser(context, msg.UserID, msg)

	case *FollowUserMsg:
		// Serialized on the follower's actor; the target side of the edge
		// is an idempotent $addToSet so it tolerates interleaving.
		s.routeToUser(context, msg.FollowerID, msg)

	case *UnfollowUserMsg:
		s.routeToUser(context, msg.FollowerID, msg)

	case *SavePostMsg:
		s.routeToUser(context, msg.UserID, msg)

	case *UnsavePostMsg:
		s.routeToUser(context, msg.UserID, msg)

	case *DeleteAccountMsg:
		s.handleDeleteAccount(context, msg)
	}
}

func (s *UserSupervisor) handleRegister(context actor.Context, msg *RegisterUserMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(msg.Password), bcrypt.DefaultCost)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Failed to hash password", err))
		return
	}

	now := time.Now()
	user := &models.User{
		ID:             uuid.New(),
		Name:           msg.Name,
		Username:       strings.ToLower(msg.Username),
		MobileNo:       msg.MobileNo,
		HashedPassword: string(hashedPassword),
		ProfileImage:   models.DefaultProfileImage,
		Followers:      []uuid.UUID{},
		Following:      []uuid.UUID{},
		SavedPosts:     []uuid.UUID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// The unique indexes on username and mobileNo reject duplicates here.
	if err := s.store.InsertUser(ctx, user); err != nil {
		context.Respond(asAppError(err, "Failed to create user"))
		return
	}

	log.Printf("Registered user %s (%s)", user.Username, user.ID)
	s.metrics.AddOperationLatency("register_user", time.Since(startTime))
	context.Respond(user)
}

func (s *UserSupervisor) handleLogin(context actor.Context, msg *LoginMsg) {
	ctx := stdctx.Background()

	user, err := s.store.GetUserByUsername(ctx, msg.Username)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidCredentials, "Invalid credentials", nil))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(msg.Password)); err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidCredentials, "Invalid credentials", nil))
		return
	}

	log.Printf("Login successful for user %s", user.Username)
	context.Respond(user)
}

func (s *UserSupervisor) handleDeleteAccount(context actor.Context, msg *DeleteAccountMsg) {
	pid, err := s.getOrCreateUserActor(context, msg.UserID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}

	future := context.RequestFuture(pid, msg, 30*time.Second)
	result, err := future.Result()
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrActorTimeout, "Account deletion failed", err))
		return
	}

	// The user's actor is done once the account is gone.
	if status, ok := result.(*models.StatusResponse); ok && status.Success {
		s.mu.Lock()
		delete(s.userActors, msg.UserID)
		s.mu.Unlock()
		context.Stop(pid)
	}
	context.Respond(result)
}

func (s *UserSupervisor) routeToUser(context actor.Context, userID uuid.UUID, msg interface{}) {
	pid, err := s.getOrCreateUserActor(context, userID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
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

func (s *UserSupervisor) getOrCreateUserActor(context actor.Context, userID uuid.UUID) (*actor.PID, error) {
	s.mu.RLock()
	pid, exists := s.userActors[userID]
	s.mu.RUnlock()

	if exists {
		return pid, nil
	}

	// Verify the user exists before spawning an actor for it.
	ctx := stdctx.Background()
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewUserActor(userID, s.store, s.notifier, s.metrics)
	})
	pid = context.Spawn(props)

	s.mu.Lock()
	s.userActors[userID] = pid
	s.mu.Unlock()

	return pid, nil
}

// UserActor applies mutations of one user's document sequentially. It keeps
// no cached state: every operation re-reads the document so conflict checks
// see the latest arrays.
type UserActor struct {
	id       uuid.UUID
	store    database.Store
	notifier *Notifier
	metrics  *utils.MetricsCollector
}

func NewUserActor(id uuid.UUID, store database.Store, notifier *Notifier, metrics *utils.MetricsCollector) *UserActor {
	return &UserActor{
		id:       id,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
	}
}

func (a *UserActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *UpdateProfileMsg:
		ctx := stdctx.Background()
		if msg.Update.Username != nil {
			lowered := strings.ToLower(*msg.Update.Username)
			msg.Update.Username = &lowered
		}
		user, err := a.store.UpdateUserProfile(ctx, msg.UserID, msg.Update)
		if err != nil {
			context.Respond(asAppError(err, "Failed to update profile"))
			return
		}
		context.Respond(user)

	case *FollowUserMsg:
		a.handleFollow(context, msg)

	case *UnfollowUserMsg:
		a.handleUnfollow(context, msg)

	case *SavePostMsg:
		a.handleSave(context, msg)

	case *UnsavePostMsg:
		a.handleUnsave(context, msg)

	case *DeleteAccountMsg:
		a.handleDeleteAccount(context, msg)
	}
}

func (a *UserActor) handleFollow(context actor.Context, msg *FollowUserMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	if msg.FollowerID == msg.TargetID {
		context.Respond(utils.NewAppError(utils.ErrSelfReference, "Cannot follow yourself", nil))
		return
	}

	follower, err := a.store.GetUser(ctx, msg.FollowerID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}
	target, err := a.store.GetUser(ctx, msg.TargetID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}

	if follower.IsFollowing(target.ID) {
		context.Respond(utils.NewAppError(utils.ErrAlreadyFollowing, "Already following this user", nil))
		return
	}

	// Two single-document updates keep the edge symmetric: the follower's
	// following list first, then the target's followers list.
	if err := a.store.AddFollowing(ctx, follower.ID, target.ID); err != nil {
		context.Respond(asAppError(err, "Failed to follow user"))
		return
	}
	if err := a.store.AddFollower(ctx, target.ID, follower.ID); err != nil {
		log.Printf("Follow edge %s -> %s is one-sided: %v", follower.ID, target.ID, err)
		context.Respond(asAppError(err, "Failed to follow user"))
		return
	}

	a.notifier.Notify(ctx, target.ID, follower.ID, models.NotifyFollow, follower.ID,
		fmt.Sprintf("%s started following you", follower.Username))

	a.metrics.AddOperationLatency("follow_user", time.Since(startTime))
	context.Respond(&models.StatusResponse{Success: true, Message: "Followed successfully"})
}

func (a *UserActor) handleUnfollow(context actor.Context, msg *UnfollowUserMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	if msg.FollowerID == msg.TargetID {
		context.Respond(utils.NewAppError(utils.ErrSelfReference, "Cannot unfollow yourself", nil))
		return
	}

	follower, err := a.store.GetUser(ctx, msg.FollowerID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}
	target, err := a.store.GetUser(ctx, msg.TargetID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}

	if !follower.IsFollowing(target.ID) {
		context.Respond(utils.NewAppError(utils.ErrNotFollowing, "Not following this user", nil))
		return
	}

	if err := a.store.RemoveFollowing(ctx, follower.ID, target.ID); err != nil {
		context.Respond(asAppError(err, "Failed to unfollow user"))
		return
	}
	if err := a.store.RemoveFollower(ctx, target.ID, follower.ID); err != nil {
		log.Printf("Unfollow edge %s -> %s is one-sided: %v", follower.ID, target.ID, err)
		context.Respond(asAppError(err, "Failed to unfollow user"))
		return
	}

	a.metrics.AddOperationLatency("unfollow_user", time.Since(startTime))
	context.Respond(&models.StatusResponse{Success: true, Message: "Unfollowed successfully"})
}

func (a *UserActor) handleSave(context actor.Context, msg *SavePostMsg) {
	ctx := stdctx.Background()

	user, err := a.store.GetUser(ctx, msg.UserID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}
	if _, err := a.store.GetPost(ctx, msg.PostID); err != nil {
		context.Respond(asAppError(err, "Post not found"))
		return
	}

	if user.HasSaved(msg.PostID) {
		context.Respond(utils.NewAppError(utils.ErrAlreadySaved, "Post already saved", nil))
		return
	}

	if err := a.store.SavePostForUser(ctx, msg.UserID, msg.PostID); err != nil {
		context.Respond(asAppError(err, "Failed to save post"))
		return
	}
	context.Respond(&models.StatusResponse{Success: true, Message: "Post saved"})
}

func (a *UserActor) handleUnsave(context actor.Context, msg *UnsavePostMsg) {
	ctx := stdctx.Background()

	user, err := a.store.GetUser(ctx, msg.UserID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}

	if !user.HasSaved(msg.PostID) {
		context.Respond(utils.NewAppError(utils.ErrNotSaved, "Post not saved", nil))
		return
	}

	if err := a.store.UnsavePostForUser(ctx, msg.UserID, msg.PostID); err != nil {
		context.Respond(asAppError(err, "Failed to unsave post"))
		return
	}
	context.Respond(&models.StatusResponse{Success: true, Message: "Post unsaved"})
}

// handleDeleteAccount removes the user and every reference the rest of the
// graph holds to them. The ordering works outward from the user's own
// content so a crash mid-way leaves no dangling ids pointing at deleted
// documents, only orphaned documents that a later retry can remove:
//
//  1. likes and comments on the user's posts, and saved-post references
//     to them, then the posts themselves
//  2. the user's likes on other posts, detaching each from its post counter
//  3. the user's comments on other posts, with their reply subtrees
//  4. follow edges in both directions, then notifications, then the user
func (a *UserActor) handleDeleteAccount(context actor.Context, msg *DeleteAccountMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	user, err := a.store.GetUser(ctx, msg.UserID)
	if err != nil {
		context.Respond(asAppError(err, "User not found"))
		return
	}

	posts, err := a.store.GetPostsByAuthor(ctx, user.ID)
	if err != nil {
		context.Respond(asAppError(err, "Failed to load posts"))
		return
	}
	postIDs := make([]uuid.UUID, len(posts))
	for i, post := range posts {
		postIDs[i] = post.ID
	}

	if len(postIDs) > 0 {
		if err := a.store.DeleteLikesByPostIDs(ctx, postIDs); err != nil {
			context.Respond(asAppError(err, "Failed to delete likes on posts"))
			return
		}
		if err := a.store.DeleteCommentsByPostIDs(ctx, postIDs); err != nil {
			context.Respond(asAppError(err, "Failed to delete comments on posts"))
			return
		}
		if err := a.store.RemovePostsFromSavedLists(ctx, postIDs); err != nil {
			context.Respond(asAppError(err, "Failed to clean saved lists"))
			return
		}
		if err := a.store.DeletePostsByAuthor(ctx, user.ID); err != nil {
			context.Respond(asAppError(err, "Failed to delete posts"))
			return
		}
	}

	// Remaining likes are on other users' posts; each must come off its
	// post's likeIds and counter before the like document goes.
	likes, err := a.store.GetLikesByUser(ctx, user.ID)
	if err != nil {
		context.Respond(asAppError(err, "Failed to load likes"))
		return
	}
	for _, like := range likes {
		if err := a.store.DetachLike(ctx, like.PostID, like.ID); err != nil && !utils.IsErrorCode(err, utils.ErrNotFound) {
			context.Respond(asAppError(err, "Failed to detach like"))
			return
		}
	}
	if err := a.store.DeleteLikesByAuthor(ctx, user.ID); err != nil {
		context.Respond(asAppError(err, "Failed to delete likes"))
		return
	}

	// Remaining comments are on other users' posts. Detach each from its
	// post or parent, and take its reply subtree down with it.
	comments, err := a.store.GetCommentsByAuthor(ctx, user.ID)
	if err != nil {
		context.Respond(asAppError(err, "Failed to load comments"))
		return
	}
	doomed := make(map[uuid.UUID]bool)
	for _, comment := range comments {
		doomed[comment.ID] = true
	}
	for _, comment := range comments {
		if comment.ParentID != nil {
			if !doomed[*comment.ParentID] {
				if err := a.store.DetachReply(ctx, *comment.ParentID, comment.ID); err != nil && !utils.IsErrorCode(err, utils.ErrNotFound) {
					context.Respond(asAppError(err, "Failed to detach reply"))
					return
				}
			}
		} else {
			if err := a.store.DetachComment(ctx, comment.PostID, comment.ID); err != nil && !utils.IsErrorCode(err, utils.ErrNotFound) {
				context.Respond(asAppError(err, "Failed to detach comment"))
				return
			}
		}
	}
	subtree, err := collectReplyTrees(ctx, a.store, comments)
	if err != nil {
		context.Respond(asAppError(err, "Failed to collect replies"))
		return
	}
	if err := a.store.DeleteComments(ctx, subtree); err != nil {
		context.Respond(asAppError(err, "Failed to delete comments"))
		return
	}

	if err := a.store.RemoveUserFromGraph(ctx, user.ID); err != nil {
		context.Respond(asAppError(err, "Failed to remove follow edges"))
		return
	}
	if err := a.store.DeleteNotificationsForUser(ctx, user.ID); err != nil {
		log.Printf("Failed to delete notifications for user %s: %v", user.ID, err)
	}
	if err := a.store.DeleteUser(ctx, user.ID); err != nil {
		context.Respond(asAppError(err, "Failed to delete user"))
		return
	}

	log.Printf("Deleted account %s (%s): %d posts, %d likes, %d comments",
		user.Username, user.ID, len(postIDs), len(likes), len(subtree))
	a.metrics.AddOperationLatency("delete_account", time.Since(startTime))
	context.Respond(&models.StatusResponse{Success: true, Message: "Account deleted"})
}

// collectReplyTrees expands a set of comments to include every transitive
// reply, using a worklist instead of recursion. Replies already deleted by
// an earlier step are skipped.
func collectReplyTrees(ctx stdctx.Context, store database.Store, roots []*models.Comment) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	var queue []uuid.UUID

	for _, root := range roots {
		if !seen[root.ID] {
			seen[root.ID] = true
			ids = append(ids, root.ID)
			queue = append(queue, root.ReplyIDs...)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		comment, err := store.GetComment(ctx, id)
		if err != nil {
			if utils.IsErrorCode(err, utils.ErrNotFound) {
				continue
			}
			return nil, err
		}
		ids = append(ids, comment.ID)
		queue = append(queue, comment.ReplyIDs...)
	}
	return ids, nil
}

// asAppError passes AppErrors through untouched and wraps anything else as
// a database failure.
func asAppError(err error, message string) *utils.AppError {
	if appErr, ok := err.(*utils.AppError); ok {
		return appErr
	}
	return utils.NewAppError(utils.ErrDatabase, message, err)
}
