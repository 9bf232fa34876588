package handlers

import (
	"net/http"

	"lingo-core/internal/backend"
	"lingo-core/internal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every HTTP route of the dev backend
func NewRouter(service *backend.Service, hub *Hub) http.Handler {
	sessionHandler := NewSessionHandler(service)
	socialHandler := NewSocialHandler(service)
	profileHandler := NewProfileHandler(service)
	wsHandler := NewWebSocketHandler(service, hub)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/status", sessionHandler.GetStatus)
		r.Post("/sessions", sessionHandler.CreateSession)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(service.Tokens()))
			r.Get("/session", sessionHandler.GetSession)
			r.Delete("/session", sessionHandler.DeleteSession)
			r.Put("/preferences", sessionHandler.UpdatePreferences)
			r.Get("/progress", socialHandler.GetProgress)
			r.Get("/friends", socialHandler.GetFriends)
			r.Post("/friends", socialHandler.AddFriend)
			r.Get("/feed", socialHandler.GetFeed)
			r.Get("/threads", socialHandler.GetThreads)
			r.Post("/messages", socialHandler.SendMessage)
			r.Put("/devices", profileHandler.RegisterDevice)
			r.Post("/avatar/upload", profileHandler.RequestAvatarUpload)
			r.Put("/avatar", profileHandler.ConfirmAvatar)
		})
	})

	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
