package handlers

import (
	"net/http"
	"strconv"
)

// HandleGetNotifications lists the caller's notifications, newest first.
func (s *Server) HandleGetNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}

		notifications, err := s.Store.GetNotifications(r.Context(), userID, limit)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, notifications)
	}
}

// HandleMarkNotificationRead acknowledges one of the caller's notifications.
func (s *Server) HandleMarkNotificationRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		notificationID, err := pathID(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}

		if err := s.Store.MarkNotificationRead(r.Context(), notificationID, userID); err != nil {
			respondError(w, err)
			return
		}
		respondMessage(w, http.StatusOK, "Notification marked read")
	}
}
