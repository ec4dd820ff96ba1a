package handlers

import (
	"log"
	"net/http"

	"perch/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin policy is enforced by the CORS middleware; the
		// upgrade itself accepts any origin.
		return true
	},
}

// HandleWebSocket upgrades a connection for notification push. Browsers
// cannot set the Authorization header on websocket upgrades, so the token
// rides in a query parameter.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		claims, err := s.Auth.ValidateToken(tokenString)
		if err != nil {
			log.Printf("WebSocket connection rejected: %v", err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		if claims.UserID == uuid.Nil {
			http.Error(w, "Invalid user ID in token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for user %s: %v", claims.UserID, err)
			return
		}

		client := &websocket.Client{
			Hub:    s.Hub,
			UserID: claims.UserID,
			Conn:   conn,
			Send:   make(chan []byte, 256),
		}
		client.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
