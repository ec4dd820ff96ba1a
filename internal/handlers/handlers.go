package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"perch/internal/database"
	"perch/internal/engine"
	"perch/internal/media"
	"perch/internal/middleware"
	"perch/internal/utils"
	"perch/internal/websocket"

	"github.com/google/uuid"
)

// Server holds all server dependencies.
type Server struct {
	Engine  *engine.Engine
	Store   database.Store
	Auth    *middleware.Auth
	Media   media.Host
	Hub     *websocket.Hub
	Metrics *utils.MetricsCollector
	Started time.Time
}

// NewServer creates a new Server instance with the given components.
// Media may be nil when no image host is configured; profile image uploads
// are rejected in that case.
func NewServer(eng *engine.Engine, store database.Store, auth *middleware.Auth, host media.Host, hub *websocket.Hub, metrics *utils.MetricsCollector) *Server {
	return &Server{
		Engine:  eng,
		Store:   store,
		Auth:    auth,
		Media:   host,
		Hub:     hub,
		Metrics: metrics,
		Started: time.Now(),
	}
}

// successEnvelope wraps every successful response body.
type successEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(&successEnvelope{Success: true, Data: data}); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&successEnvelope{Success: true, Message: message})
}

// respondError maps AppError codes to HTTP statuses; anything else is a 500.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	if appErr, ok := err.(*utils.AppError); ok {
		status = utils.AppErrorToHTTPStatus(appErr.Code)
		message = appErr.Message
	} else if err != nil {
		log.Printf("Unhandled error: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&errorEnvelope{Success: false, Message: message})
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondError(w, utils.NewAppError(utils.ErrInvalidInput, message, nil))
}

// pathID parses the named path parameter as a UUID.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, utils.NewAppError(utils.ErrInvalidInput, "Invalid id in path", err)
	}
	return id, nil
}

// requireUser pulls the authenticated user's id out of the request context.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, utils.NewAppError(utils.ErrUnauthorized, "Authentication required", nil))
		return uuid.Nil, false
	}
	return userID, true
}

// HandleHealth reports liveness and a snapshot of operation latencies.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"uptime":  time.Since(s.Started).String(),
			"metrics": s.Metrics.Snapshot(),
		})
	}
}
