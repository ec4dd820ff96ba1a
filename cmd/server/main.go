package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"perch/internal/config"
	"perch/internal/database"
	"perch/internal/engine"
	"perch/internal/handlers"
	"perch/internal/media"
	"perch/internal/middleware"
	"perch/internal/utils"
	"perch/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := database.NewMongoDB(cfg.Database.URI, cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			log.Printf("Error closing MongoDB connection: %v", err)
		}
	}()

	metrics := utils.NewMetricsCollector()

	hub := websocket.NewHub()
	go hub.Run()

	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, store, hub, metrics)

	auth := middleware.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)

	var host media.Host
	if cfg.Media.CloudName != "" && cfg.Media.APIKey != "" && cfg.Media.APISecret != "" {
		host = media.NewCloudinary(cfg.Media.CloudName, cfg.Media.APIKey, cfg.Media.APISecret, cfg.Media.Folder)
	} else {
		log.Println("Image host not configured, profile image uploads disabled")
	}

	server := handlers.NewServer(eng, store, auth, host, hub, metrics)

	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", server.HandleHealth())
	mux.HandleFunc("POST /api/auth/register", server.HandleRegister())
	mux.HandleFunc("POST /api/auth/login", server.HandleLogin())
	mux.HandleFunc("POST /api/auth/logout", server.HandleLogout())

	// Users
	mux.HandleFunc("GET /api/auth/me", auth.RequireAuth(server.HandleMe()))
	mux.HandleFunc("GET /api/users", server.HandleGetUsers())
	mux.HandleFunc("GET /api/users/search", server.HandleSearchUsers())
	mux.HandleFunc("GET /api/users/{id}", server.HandleGetUser())
	mux.HandleFunc("GET /api/users/username/{username}", server.HandleGetUserByUsername())
	mux.HandleFunc("POST /api/users/batch", server.HandleGetUsersByIDs())
	mux.HandleFunc("PUT /api/users/me", auth.RequireAuth(server.HandleUpdateProfile()))
	mux.HandleFunc("DELETE /api/users/me", auth.RequireAuth(server.HandleDeleteAccount()))
	mux.HandleFunc("DELETE /api/users/{identifier}", auth.RequireAuth(server.HandleDeleteAccountByIdentifier()))
	mux.HandleFunc("POST /api/users/{id}/follow", auth.RequireAuth(server.HandleFollow()))
	mux.HandleFunc("POST /api/users/{id}/unfollow", auth.RequireAuth(server.HandleUnfollow()))
	mux.HandleFunc("GET /api/users/me/saved", auth.RequireAuth(server.HandleGetSavedPosts()))
	mux.HandleFunc("GET /api/users/{id}/posts", server.HandleGetUserPosts())

	// Posts
	mux.HandleFunc("POST /api/posts", auth.RequireAuth(server.HandleCreatePost()))
	mux.HandleFunc("GET /api/posts", server.HandleGetPosts())
	mux.HandleFunc("GET /api/posts/{id}", server.HandleGetPost())
	mux.HandleFunc("PUT /api/posts/{id}", auth.RequireAuth(server.HandleUpdatePost()))
	mux.HandleFunc("DELETE /api/posts/{id}", auth.RequireAuth(server.HandleDeletePost()))
	mux.HandleFunc("POST /api/posts/{id}/save", auth.RequireAuth(server.HandleSavePost()))
	mux.HandleFunc("POST /api/posts/{id}/unsave", auth.RequireAuth(server.HandleUnsavePost()))

	// Likes
	mux.HandleFunc("POST /api/posts/{id}/like", auth.RequireAuth(server.HandleLikePost()))
	mux.HandleFunc("POST /api/posts/{id}/unlike", auth.RequireAuth(server.HandleUnlikePost()))
	mux.HandleFunc("GET /api/posts/{id}/like", auth.RequireAuth(server.HandleCheckLike()))

	// Comments
	mux.HandleFunc("POST /api/posts/{id}/comments", auth.RequireAuth(server.HandleAddComment()))
	mux.HandleFunc("GET /api/posts/{id}/comments", server.HandleGetPostComments())
	mux.HandleFunc("POST /api/comments/{id}/replies", auth.RequireAuth(server.HandleAddReply()))
	mux.HandleFunc("PUT /api/comments/{id}", auth.RequireAuth(server.HandleUpdateComment()))
	mux.HandleFunc("DELETE /api/comments/{id}", auth.RequireAuth(server.HandleDeleteComment()))

	// Notifications
	mux.HandleFunc("GET /api/notifications", auth.RequireAuth(server.HandleGetNotifications()))
	mux.HandleFunc("POST /api/notifications/{id}/read", auth.RequireAuth(server.HandleMarkNotificationRead()))

	// WebSocket push
	mux.HandleFunc("GET /ws", server.HandleWebSocket())

	corsConfig := middleware.DefaultCORSConfig(cfg.AllowedOrigins)
	handler := middleware.CORSMiddleware(corsConfig)(mux)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, handler); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
