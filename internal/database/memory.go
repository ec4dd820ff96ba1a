// internal/database/memory.go
package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"perch/internal/models"
	"perch/internal/utils"

	"github.com/google/uuid"
)

// Memory is an in-process Store with the same per-document atomicity
// guarantees as the MongoDB backend: every method takes the store lock for
// its whole duration, so a single array-push-plus-counter update is atomic,
// while sequences of calls are not. Tests and the simulator's offline mode
// run against it.
type Memory struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	posts         map[uuid.UUID]*models.Post
	comments      map[uuid.UUID]*models.Comment
	likes         map[uuid.UUID]*models.Like
	likesByPair   map[[2]uuid.UUID]uuid.UUID // (userID, postID) -> like id
	notifications map[uuid.UUID]*models.Notification
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[uuid.UUID]*models.User),
		posts:         make(map[uuid.UUID]*models.Post),
		comments:      make(map[uuid.UUID]*models.Comment),
		likes:         make(map[uuid.UUID]*models.Like),
		likesByPair:   make(map[[2]uuid.UUID]uuid.UUID),
		notifications: make(map[uuid.UUID]*models.Notification),
	}
}

func copyIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Followers = copyIDs(u.Followers)
	c.Following = copyIDs(u.Following)
	c.SavedPosts = copyIDs(u.SavedPosts)
	return &c
}

func copyPost(p *models.Post) *models.Post {
	c := *p
	c.LikeIDs = copyIDs(p.LikeIDs)
	c.CommentIDs = copyIDs(p.CommentIDs)
	return &c
}

func copyComment(cm *models.Comment) *models.Comment {
	c := *cm
	c.ReplyIDs = copyIDs(cm.ReplyIDs)
	if cm.ParentID != nil {
		parent := *cm.ParentID
		c.ParentID = &parent
	}
	return &c
}

func removeID(ids []uuid.UUID, target uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func prependID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	return append([]uuid.UUID{id}, ids...)
}

func containsID(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// Users

func (s *Memory) InsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username || existing.MobileNo == user.MobileNo {
			return utils.NewAppError(utils.ErrDuplicate, "Username or mobile number already registered", nil)
		}
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Memory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getUserLocked(id)
}

func (s *Memory) getUserLocked(id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "User not found", nil)
	}
	return copyUser(user), nil
}

func (s *Memory) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(username)
	for _, user := range s.users {
		if user.Username == username {
			return copyUser(user), nil
		}
	}
	return nil, utils.NewAppError(utils.ErrNotFound, "User not found", nil)
}

func (s *Memory) GetUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, copyUser(user))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *Memory) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []*models.User
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			users = append(users, copyUser(user))
		}
	}
	return users, nil
}

func (s *Memory) SearchUsers(ctx context.Context, query string, limit int) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	var users []*models.User
	for _, user := range s.users {
		if strings.Contains(strings.ToLower(user.Username), q) ||
			strings.Contains(strings.ToLower(user.Name), q) {
			users = append(users, copyUser(user))
			if limit > 0 && len(users) >= limit {
				break
			}
		}
	}
	return users, nil
}

func (s *Memory) UpdateUserProfile(ctx context.Context, id uuid.UUID, update *ProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "User not found", nil)
	}
	if update.Username != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Username == *update.Username {
				return nil, utils.NewAppError(utils.ErrDuplicate, "Username already taken", nil)
			}
		}
		user.Username = *update.Username
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.Location != nil {
		user.Location = *update.Location
	}
	if update.ProfileImage != nil {
		user.ProfileImage = *update.ProfileImage
	}
	user.UpdatedAt = time.Now()
	return copyUser(user), nil
}

func (s *Memory) AddFollowing(ctx context.Context, userID, targetID uuid.UUID) error {
	return s.mutateUser(userID, func(u *models.User) {
		if !containsID(u.Following, targetID) {
			u.Following = append(u.Following, targetID)
		}
	})
}

func (s *Memory) RemoveFollowing(ctx context.Context, userID, targetID uuid.UUID) error {
	return s.mutateUser(userID, func(u *models.User) {
		u.Following = removeID(u.Following, targetID)
	})
}

func (s *Memory) AddFollower(ctx context.Context, userID, followerID uuid.UUID) error {
	return s.mutateUser(userID, func(u *models.User) {
		if !containsID(u.Followers, followerID) {
			u.Followers = append(u.Followers, followerID)
		}
	})
}

func (s *Memory) RemoveFollower(ctx context.Context, userID, followerID uuid.UUID) error {
	return s.mutateUser(userID, func(u *models.User) {
		u.Followers = removeID(u.Followers, followerID)
	})
}

func (s *Memory) SavePostForUser(ctx context.Context, userID, postID uuid.UUID) error {
	return s.mutateUser(userID, func(u *models.User) {
		if !containsID(u.SavedPosts, postID) {
			u.SavedPosts = prependID(u.SavedPosts, postID)
		}
	})
}

func (s *Memory) UnsavePostForUser(ctx context.Context, userID, postID uuid.UUID) error {
	return s.mutateUser(userID, func(u *models.User) {
		u.SavedPosts = removeID(u.SavedPosts, postID)
	})
}

func (s *Memory) mutateUser(userID uuid.UUID, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "User not found", nil)
	}
	fn(user)
	user.UpdatedAt = time.Now()
	return nil
}

func (s *Memory) RemoveUserFromGraph(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		user.Followers = removeID(user.Followers, userID)
		user.Following = removeID(user.Following, userID)
	}
	return nil
}

func (s *Memory) RemovePostsFromSavedLists(ctx context.Context, postIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		for _, postID := range postIDs {
			user.SavedPosts = removeID(user.SavedPosts, postID)
		}
	}
	return nil
}

func (s *Memory) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return utils.NewAppError(utils.ErrNotFound, "User not found", nil)
	}
	delete(s.users, id)
	return nil
}

// Posts

func (s *Memory) InsertPost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.ID] = copyPost(post)
	return nil
}

func (s *Memory) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	return copyPost(post), nil
}

func (s *Memory) GetPosts(ctx context.Context) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts := make([]*models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		posts = append(posts, copyPost(post))
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (s *Memory) GetPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posts []*models.Post
	for _, post := range s.posts {
		if post.AuthorID == authorID {
			posts = append(posts, copyPost(post))
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (s *Memory) GetPostsByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posts []*models.Post
	for _, id := range ids {
		if post, ok := s.posts[id]; ok {
			posts = append(posts, copyPost(post))
		}
	}
	return posts, nil
}

func (s *Memory) UpdatePostContent(ctx context.Context, id uuid.UUID, content, image string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	post.Content = content
	if image != "" {
		post.Image = image
	}
	post.UpdatedAt = time.Now()
	return copyPost(post), nil
}

func (s *Memory) AttachLike(ctx context.Context, postID, likeID uuid.UUID) error {
	return s.mutatePost(postID, func(p *models.Post) {
		p.LikeIDs = prependID(p.LikeIDs, likeID)
		p.LikesCount++
	})
}

// DetachLike is conditional on membership: a stale detach that lost a race
// with another remover is a no-op, keeping likesCount equal to |likeIDs|.
func (s *Memory) DetachLike(ctx context.Context, postID, likeID uuid.UUID) error {
	return s.detachFromPost(postID, func(p *models.Post) {
		if !containsID(p.LikeIDs, likeID) {
			return
		}
		p.LikeIDs = removeID(p.LikeIDs, likeID)
		p.LikesCount--
	})
}

func (s *Memory) AttachComment(ctx context.Context, postID, commentID uuid.UUID) error {
	return s.mutatePost(postID, func(p *models.Post) {
		p.CommentIDs = prependID(p.CommentIDs, commentID)
		p.CommentsCount++
	})
}

func (s *Memory) DetachComment(ctx context.Context, postID, commentID uuid.UUID) error {
	return s.detachFromPost(postID, func(p *models.Post) {
		if !containsID(p.CommentIDs, commentID) {
			return
		}
		p.CommentIDs = removeID(p.CommentIDs, commentID)
		p.CommentsCount--
	})
}

// detachFromPost mutates the post if it still exists; a detach against a
// deleted post is a no-op, mirroring the conditional update in the MongoDB
// backend.
func (s *Memory) detachFromPost(postID uuid.UUID, fn func(*models.Post)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return nil
	}
	fn(post)
	post.UpdatedAt = time.Now()
	return nil
}

func (s *Memory) mutatePost(postID uuid.UUID, fn func(*models.Post)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	fn(post)
	post.UpdatedAt = time.Now()
	return nil
}

func (s *Memory) DeletePost(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	delete(s.posts, id)
	return nil
}

func (s *Memory) DeletePostsByAuthor(ctx context.Context, authorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, post := range s.posts {
		if post.AuthorID == authorID {
			delete(s.posts, id)
		}
	}
	return nil
}

// Comments

func (s *Memory) InsertComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.ID] = copyComment(comment)
	return nil
}

func (s *Memory) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "Comment not found", nil)
	}
	return copyComment(comment), nil
}

func (s *Memory) GetPostComments(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var comments []*models.Comment
	for _, comment := range s.comments {
		if comment.PostID == postID {
			comments = append(comments, copyComment(comment))
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.After(comments[j].CreatedAt) })
	return comments, nil
}

func (s *Memory) GetCommentsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var comments []*models.Comment
	for _, comment := range s.comments {
		if comment.AuthorID == authorID {
			comments = append(comments, copyComment(comment))
		}
	}
	return comments, nil
}

func (s *Memory) UpdateCommentBody(ctx context.Context, id uuid.UUID, body string) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "Comment not found", nil)
	}
	comment.Body = body
	comment.UpdatedAt = time.Now()
	return copyComment(comment), nil
}

func (s *Memory) AttachReply(ctx context.Context, parentID, replyID uuid.UUID) error {
	return s.mutateComment(parentID, func(c *models.Comment) {
		c.ReplyIDs = prependID(c.ReplyIDs, replyID)
	})
}

func (s *Memory) DetachReply(ctx context.Context, parentID, replyID uuid.UUID) error {
	return s.mutateComment(parentID, func(c *models.Comment) {
		c.ReplyIDs = removeID(c.ReplyIDs, replyID)
	})
}

func (s *Memory) mutateComment(commentID uuid.UUID, fn func(*models.Comment)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[commentID]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "Comment not found", nil)
	}
	fn(comment)
	comment.UpdatedAt = time.Now()
	return nil
}

func (s *Memory) DeleteComments(ctx context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.comments, id)
	}
	return nil
}

func (s *Memory) DeleteCommentsByPostIDs(ctx context.Context, postIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, comment := range s.comments {
		if containsID(postIDs, comment.PostID) {
			delete(s.comments, id)
		}
	}
	return nil
}

func (s *Memory) DeleteCommentsByAuthor(ctx context.Context, authorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, comment := range s.comments {
		if comment.AuthorID == authorID {
			delete(s.comments, id)
		}
	}
	return nil
}

// Likes

func (s *Memory) InsertLike(ctx context.Context, like *models.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := [2]uuid.UUID{like.UserID, like.PostID}
	if _, exists := s.likesByPair[pair]; exists {
		return utils.NewAppError(utils.ErrAlreadyLiked, "Post already liked", nil)
	}
	c := *like
	s.likes[like.ID] = &c
	s.likesByPair[pair] = like.ID
	return nil
}

func (s *Memory) GetLike(ctx context.Context, userID, postID uuid.UUID) (*models.Like, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.likesByPair[[2]uuid.UUID{userID, postID}]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotLiked, "Post not liked", nil)
	}
	c := *s.likes[id]
	return &c, nil
}

func (s *Memory) GetLikesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Like, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var likes []*models.Like
	for _, like := range s.likes {
		if like.UserID == userID {
			c := *like
			likes = append(likes, &c)
		}
	}
	return likes, nil
}

func (s *Memory) DeleteLike(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	like, ok := s.likes[id]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "Like not found", nil)
	}
	delete(s.likesByPair, [2]uuid.UUID{like.UserID, like.PostID})
	delete(s.likes, id)
	return nil
}

func (s *Memory) DeleteLikesByPostIDs(ctx context.Context, postIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, like := range s.likes {
		if containsID(postIDs, like.PostID) {
			delete(s.likesByPair, [2]uuid.UUID{like.UserID, like.PostID})
			delete(s.likes, id)
		}
	}
	return nil
}

func (s *Memory) DeleteLikesByAuthor(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, like := range s.likes {
		if like.UserID == userID {
			delete(s.likesByPair, [2]uuid.UUID{like.UserID, like.PostID})
			delete(s.likes, id)
		}
	}
	return nil
}

// Notifications

func (s *Memory) InsertNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *n
	s.notifications[n.ID] = &c
	return nil
}

func (s *Memory) GetNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var notifications []*models.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			c := *n
			notifications = append(notifications, &c)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	if limit > 0 && len(notifications) > limit {
		notifications = notifications[:limit]
	}
	return notifications, nil
}

func (s *Memory) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return utils.NewAppError(utils.ErrNotFound, "Notification not found", nil)
	}
	n.IsRead = true
	return nil
}

func (s *Memory) DeleteNotificationsForUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range s.notifications {
		if n.RecipientID == userID || n.ActorID == userID {
			delete(s.notifications, id)
		}
	}
	return nil
}
