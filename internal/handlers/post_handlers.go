package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"perch/internal/engine/actors"
)

// CreatePostRequest represents a request to create a post.
type CreatePostRequest struct {
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

// UpdatePostRequest represents a request to edit a post.
type UpdatePostRequest struct {
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

// HandleCreatePost creates a post authored by the caller.
func (s *Server) HandleCreatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req CreatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "Invalid request body")
			return
		}
		req.Content = strings.TrimSpace(req.Content)
		if req.Content == "" && req.Image == "" {
			respondBadRequest(w, "content or image is required")
			return
		}

		result, err := s.Engine.RequestPost(&actors.CreatePostMsg{
			AuthorID: userID,
			Content:  req.Content,
			Image:    req.Image,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, result)
	}
}

// HandleGetPosts returns the global feed, newest first.
func (s *Server) HandleGetPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := s.Store.GetPosts(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, posts)
	}
}

// HandleGetPost returns one post by id.
func (s *Server) HandleGetPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		post, err := s.Store.GetPost(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, post)
	}
}

// HandleGetUserPosts returns one user's posts, newest first.
func (s *Server) HandleGetUserPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorID, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		posts, err := s.Store.GetPostsByAuthor(r.Context(), authorID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, posts)
	}
}

// HandleUpdatePost edits a post; only its author may.
func (s *Server) HandleUpdatePost() http.HandlerFunc {
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

		var req UpdatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "Invalid request body")
			return
		}
		req.Content = strings.TrimSpace(req.Content)
		if req.Content == "" && req.Image == "" {
			respondBadRequest(w, "content or image is required")
			return
		}

		result, err := s.Engine.RequestPost(&actors.UpdatePostMsg{
			PostID:   postID,
			EditorID: userID,
			Content:  req.Content,
			Image:    req.Image,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleDeletePost deletes a post and its likes, comments and bookmarks.
func (s *Server) HandleDeletePost() http.HandlerFunc {
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

		result, err := s.Engine.RequestPost(&actors.DeletePostMsg{
			PostID:      postID,
			RequesterID: userID,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}
