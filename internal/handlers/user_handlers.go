package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"perch/internal/database"
	"perch/internal/engine/actors"
	"perch/internal/media"
	"perch/internal/models"
	"perch/internal/utils"

	"github.com/google/uuid"
)

const maxProfileImageBytes = 5 << 20 // 5 MiB

// HandleGetUsers lists all users.
func (s *Server) HandleGetUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := s.Store.GetUsers(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, users)
	}
}

// HandleGetUser returns one user by id.
func (s *Server) HandleGetUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		user, err := s.Store.GetUser(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, user)
	}
}

// UserProfileResponse bundles a user with their posts for profile pages.
type UserProfileResponse struct {
	User  *models.User   `json:"user"`
	Posts []*models.Post `json:"posts"`
}

// HandleGetUserByUsername returns a user's profile with their posts.
func (s *Server) HandleGetUserByUsername() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.PathValue("username")
		if username == "" {
			respondBadRequest(w, "username is required")
			return
		}

		user, err := s.Store.GetUserByUsername(r.Context(), username)
		if err != nil {
			respondError(w, err)
			return
		}
		posts, err := s.Store.GetPostsByAuthor(r.Context(), user.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, &UserProfileResponse{User: user, Posts: posts})
	}
}

// HandleGetUsersByIDs resolves a batch of user ids, used by the frontend to
// render follower and following lists.
func (s *Server) HandleGetUsersByIDs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []uuid.UUID `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "Invalid request body")
			return
		}

		users, err := s.Store.GetUsersByIDs(r.Context(), req.IDs)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, users)
	}
}

// HandleSearchUsers matches usernames and display names case-insensitively.
func (s *Server) HandleSearchUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			respondBadRequest(w, "q is required")
			return
		}
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		users, err := s.Store.SearchUsers(r.Context(), query, limit)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, users)
	}
}

// HandleUpdateProfile updates the caller's profile. The request is
// multipart form data so a new profile image can ride along; when one does,
// it is uploaded to the image host and the previous asset is removed
// best-effort after the document update succeeds.
func (s *Server) HandleUpdateProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		if err := r.ParseMultipartForm(maxProfileImageBytes); err != nil {
			respondBadRequest(w, "Invalid multipart form")
			return
		}

		update := &database.ProfileUpdate{}
		if v, set := formValue(r, "name"); set {
			update.Name = &v
		}
		if v, set := formValue(r, "username"); set {
			update.Username = &v
		}
		if v, set := formValue(r, "bio"); set {
			update.Bio = &v
		}
		if v, set := formValue(r, "location"); set {
			update.Location = &v
		}

		previous, err := s.Store.GetUser(r.Context(), userID)
		if err != nil {
			respondError(w, err)
			return
		}

		file, header, err := r.FormFile("profileImage")
		if err == nil {
			defer file.Close()
			if s.Media == nil {
				respondError(w, utils.NewAppError(utils.ErrUpstream, "Image uploads are not configured", nil))
				return
			}
			uploaded, err := s.Media.Upload(r.Context(), file, header.Filename)
			if err != nil {
				respondError(w, err)
				return
			}
			update.ProfileImage = &uploaded.URL
		}

		result, err := s.Engine.RequestUser(&actors.UpdateProfileMsg{
			UserID: userID,
			Update: update,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		if update.ProfileImage != nil {
			s.deleteOldProfileImage(r.Context(), previous.ProfileImage)
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleDeleteAccount removes the caller's account and all of its content.
func (s *Server) HandleDeleteAccount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		user, err := s.Store.GetUser(r.Context(), userID)
		if err != nil {
			respondError(w, err)
			return
		}
		s.deleteAccount(w, r, user)
	}
}

// HandleDeleteAccountByIdentifier removes the account named by the path,
// resolved by id or username. Only the owner may delete it.
func (s *Server) HandleDeleteAccountByIdentifier() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		user, err := s.resolveUser(r.Context(), r.PathValue("identifier"))
		if err != nil {
			respondError(w, err)
			return
		}
		if user.ID != userID {
			respondError(w, utils.NewAppError(utils.ErrForbidden, "Cannot delete another user's account", nil))
			return
		}
		s.deleteAccount(w, r, user)
	}
}

// resolveUser looks a user up by uuid when the identifier parses as one,
// by username otherwise.
func (s *Server) resolveUser(ctx context.Context, identifier string) (*models.User, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		return s.Store.GetUser(ctx, id)
	}
	return s.Store.GetUserByUsername(ctx, identifier)
}

// deleteAccount runs the cascade, cleans up the profile image, and ends the
// session by expiring the token cookie.
func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request, user *models.User) {
	result, err := s.Engine.RequestUser(&actors.DeleteAccountMsg{UserID: user.ID})
	if err != nil {
		respondError(w, err)
		return
	}

	s.deleteOldProfileImage(r.Context(), user.ProfileImage)
	s.clearAuthCookie(w)
	respondJSON(w, http.StatusOK, result)
}

// HandleFollow makes the caller follow the user in the path.
func (s *Server) HandleFollow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		targetID, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		result, err := s.Engine.RequestUser(&actors.FollowUserMsg{
			FollowerID: userID,
			TargetID:   targetID,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleUnfollow makes the caller unfollow the user in the path.
func (s *Server) HandleUnfollow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		targetID, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		result, err := s.Engine.RequestUser(&actors.UnfollowUserMsg{
			FollowerID: userID,
			TargetID:   targetID,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleSavePost bookmarks a post for the caller.
func (s *Server) HandleSavePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		postID, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		result, err := s.Engine.RequestUser(&actors.SavePostMsg{UserID: userID, PostID: postID})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleUnsavePost removes a bookmark.
func (s *Server) HandleUnsavePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		postID, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		result, err := s.Engine.RequestUser(&actors.UnsavePostMsg{UserID: userID, PostID: postID})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleGetSavedPosts lists the caller's saved posts, newest save first.
func (s *Server) HandleGetSavedPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		user, err := s.Store.GetUser(r.Context(), userID)
		if err != nil {
			respondError(w, err)
			return
		}
		posts, err := s.Store.GetPostsByIDs(r.Context(), user.SavedPosts)
		if err != nil {
			respondError(w, err)
			return
		}

		// Preserve the saved-list order; the batch fetch has none.
		byID := make(map[uuid.UUID]*models.Post, len(posts))
		for _, post := range posts {
			byID[post.ID] = post
		}
		ordered := make([]*models.Post, 0, len(posts))
		for _, id := range user.SavedPosts {
			if post, exists := byID[id]; exists {
				ordered = append(ordered, post)
			}
		}
		respondJSON(w, http.StatusOK, ordered)
	}
}

// formValue returns a trimmed form field and whether it was present.
func formValue(r *http.Request, name string) (string, bool) {
	values, ok := r.MultipartForm.Value[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

// deleteOldProfileImage removes a replaced or orphaned profile image from
// the image host. Failures are logged, never surfaced: the document update
// already succeeded and the orphaned asset costs only storage.
func (s *Server) deleteOldProfileImage(ctx context.Context, imageURL string) {
	if s.Media == nil || imageURL == "" || imageURL == models.DefaultProfileImage {
		return
	}
	publicID := media.PublicIDFromURL(imageURL)
	if publicID == "" {
		return
	}
	if err := s.Media.Delete(ctx, publicID); err != nil {
		log.Printf("Failed to delete old profile image %s: %v", publicID, err)
	}
}
