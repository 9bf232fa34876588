package handlers

import (
	"encoding/json"
	"net/http"

	"lingo-core/internal/backend"
	"lingo-core/internal/middleware"

	"github.com/rs/zerolog/log"
)

// SocialHandler handles progress, friends, feed and messaging requests
type SocialHandler struct {
	service *backend.Service
}

// NewSocialHandler creates a new social handler
func NewSocialHandler(service *backend.Service) *SocialHandler {
	return &SocialHandler{service: service}
}

// AddFriendRequest represents the request body for adding a friend
type AddFriendRequest struct {
	Email string `json:"email"`
}

// SendMessageRequest represents the request body for sending a direct message
type SendMessageRequest struct {
	FriendID string `json:"friend_id"`
	Content  string `json:"content"`
}

// GetProgress handles GET /api/v1/progress. Responds 204 when nothing was recorded yet.
func (h *SocialHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	progress, err := h.service.Progress(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to get progress")
		respondServiceError(w, err, "Failed to get progress")
		return
	}
	if progress == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondJSON(w, http.StatusOK, progress)
}

// GetFriends handles GET /api/v1/friends
func (h *SocialHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	friends, err := h.service.Friends(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to get friends")
		respondServiceError(w, err, "Failed to get friends")
		return
	}

	respondJSON(w, http.StatusOK, friends)
}

// AddFriend handles POST /api/v1/friends
func (h *SocialHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req AddFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		respondError(w, "email is required", http.StatusBadRequest)
		return
	}

	friend, err := h.service.AddFriend(ctx, userID, req.Email)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to add friend")
		respondServiceError(w, err, "Failed to add friend")
		return
	}

	respondJSON(w, http.StatusCreated, friend)
}

// GetFeed handles GET /api/v1/feed
func (h *SocialHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	feed, err := h.service.Feed(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to get feed")
		respondServiceError(w, err, "Failed to get feed")
		return
	}

	respondJSON(w, http.StatusOK, feed)
}

// GetThreads handles GET /api/v1/threads
func (h *SocialHandler) GetThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	threads, err := h.service.Threads(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to get threads")
		respondServiceError(w, err, "Failed to get threads")
		return
	}

	respondJSON(w, http.StatusOK, threads)
}

// SendMessage handles POST /api/v1/messages
func (h *SocialHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FriendID == "" {
		respondError(w, "friend_id is required", http.StatusBadRequest)
		return
	}

	message, err := h.service.SendMessage(ctx, userID, req.FriendID, req.Content)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("friend_id", req.FriendID).
			Msg("Failed to send message")
		respondServiceError(w, err, "Failed to send message")
		return
	}

	respondJSON(w, http.StatusCreated, message)
}
