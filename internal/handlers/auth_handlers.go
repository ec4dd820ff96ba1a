package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"perch/internal/engine/actors"
	"perch/internal/middleware"
	"perch/internal/models"
)

// RegisterRequest represents a request to register a new user
type RegisterRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	MobileNo string `json:"mobileNo"`
	Password string `json:"password"`
}

// LoginRequest represents a request to log in a user
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse carries the token and the authenticated user.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// HandleRegister handles requests to register a new user.
func (s *Server) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		req.Username = strings.TrimSpace(req.Username)
		req.MobileNo = strings.TrimSpace(req.MobileNo)
		if req.Name == "" || req.Username == "" || req.MobileNo == "" || req.Password == "" {
			respondBadRequest(w, "name, username, mobileNo and password are required")
			return
		}

		result, err := s.Engine.RequestUser(&actors.RegisterUserMsg{
			Name:     req.Name,
			Username: req.Username,
			MobileNo: req.MobileNo,
			Password: req.Password,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		user := result.(*models.User)
		token, err := s.Auth.GenerateToken(user.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		s.setAuthCookie(w, token)

		respondJSON(w, http.StatusCreated, &AuthResponse{Token: token, User: user})
	}
}

// HandleLogin handles requests to log in a user.
func (s *Server) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "Invalid request body")
			return
		}

		result, err := s.Engine.RequestUser(&actors.LoginMsg{
			Username: strings.TrimSpace(req.Username),
			Password: req.Password,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		user := result.(*models.User)
		token, err := s.Auth.GenerateToken(user.ID)
		if err != nil {
			log.Printf("Failed to generate token for %s: %v", user.Username, err)
			respondError(w, err)
			return
		}
		s.setAuthCookie(w, token)

		respondJSON(w, http.StatusOK, &AuthResponse{Token: token, User: user})
	}
}

// HandleLogout clears the auth cookie.
func (s *Server) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.clearAuthCookie(w)
		respondMessage(w, http.StatusOK, "Logged out")
	}
}

// HandleMe returns the authenticated user's own document.
func (s *Server) HandleMe() http.HandlerFunc {
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
		respondJSON(w, http.StatusOK, user)
	}
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.Auth.TokenExpiry().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookie expires the session cookie. Used on logout and after
// account deletion, where the token's subject no longer exists.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
