package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"perch/internal/engine/actors"
	"perch/internal/models"
)

// CommentRequest carries the text of a new or edited comment.
type CommentRequest struct {
	Body string `json:"body"`
}

// CommentThread is a comment with its replies resolved, as returned by the
// thread listing.
type CommentThread struct {
	*models.Comment
	Replies []*CommentThread `json:"replies"`
}

// HandleAddComment adds a top-level comment to a post.
func (s *Server) HandleAddComment() http.HandlerFunc {
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

		var req CommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "Invalid request body")
			return
		}
		req.Body = strings.TrimSpace(req.Body)
		if req.Body == "" {
			respondBadRequest(w, "body is required")
			return
		}

		result, err := s.Engine.RequestPost(&actors.AddCommentMsg{
			PostID:   postID,
			AuthorID: userID,
			Body:     req.Body,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, result)
	}
}

// HandleAddReply adds a nested reply to an existing comment.
func (s *Server) HandleAddReply() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		parentID, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		var req CommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "Invalid request body")
			return
		}
		req.Body = strings.TrimSpace(req.Body)
		if req.Body == "" {
			respondBadRequest(w, "body is required")
			return
		}

		result, err := s.Engine.RequestPost(&actors.AddReplyMsg{
			ParentCommentID: parentID,
			AuthorID:        userID,
			Body:            req.Body,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, result)
	}
}

// HandleGetPostComments returns a post's comment thread: top-level comments
// newest first, each with its reply tree nested in replyIds order.
func (s *Server) HandleGetPostComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		if _, err := s.Store.GetPost(r.Context(), postID); err != nil {
			respondError(w, err)
			return
		}
		comments, err := s.Store.GetPostComments(r.Context(), postID)
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, buildThreads(comments))
	}
}

// HandleUpdateComment edits a comment's text; only its author may.
func (s *Server) HandleUpdateComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		commentID, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		var req CommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "Invalid request body")
			return
		}
		req.Body = strings.TrimSpace(req.Body)
		if req.Body == "" {
			respondBadRequest(w, "body is required")
			return
		}

		result, err := s.Engine.RequestPost(&actors.UpdateCommentMsg{
			CommentID: commentID,
			EditorID:  userID,
			Body:      req.Body,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleDeleteComment deletes a comment and its replies. The comment author
// and the post author may both delete.
func (s *Server) HandleDeleteComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		commentID, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		result, err := s.Engine.RequestPost(&actors.DeleteCommentMsg{
			CommentID:   commentID,
			RequesterID: userID,
		})
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// buildThreads nests a flat comment list into reply trees. Top-level
// comments keep their input order; replies follow the parent's replyIds.
func buildThreads(comments []*models.Comment) []*CommentThread {
	nodes := make(map[string]*CommentThread, len(comments))
	for _, comment := range comments {
		nodes[comment.ID.String()] = &CommentThread{Comment: comment, Replies: []*CommentThread{}}
	}

	var roots []*CommentThread
	for _, comment := range comments {
		if comment.ParentID == nil {
			node := nodes[comment.ID.String()]
			for _, replyID := range comment.ReplyIDs {
				attachReplies(node, replyID.String(), nodes)
			}
			roots = append(roots, node)
		}
	}
	if roots == nil {
		roots = []*CommentThread{}
	}
	return roots
}

func attachReplies(parent *CommentThread, id string, nodes map[string]*CommentThread) {
	node, ok := nodes[id]
	if !ok {
		return
	}
	parent.Replies = append(parent.Replies, node)
	for _, replyID := range node.ReplyIDs {
		attachReplies(node, replyID.String(), nodes)
	}
}
