package handlers

import (
	"net/http"

	"perch/internal/engine/actors"
	"perch/internal/utils"
)

// HandleLikePost likes the post in the path on behalf of the caller.
func (s *Server) HandleLikePost() http.HandlerFunc {
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

		result, err := s.Engine.RequestPost(&actors.LikePostMsg{PostID: postID, UserID: userID})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleUnlikePost removes the caller's like from the post.
func (s *Server) HandleUnlikePost() http.HandlerFunc {
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

		result, err := s.Engine.RequestPost(&actors.UnlikePostMsg{PostID: postID, UserID: userID})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleCheckLike reports whether the caller has liked the post.
func (s *Server) HandleCheckLike() http.HandlerFunc {
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

		_, err = s.Store.GetLike(r.Context(), userID, postID)
		if err != nil {
			if utils.IsErrorCode(err, utils.ErrNotLiked) {
				respondJSON(w, http.StatusOK, map[string]bool{"liked": false})
				return
			}
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"liked": true})
	}
}
