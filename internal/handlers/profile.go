package handlers

import (
	"encoding/json"
	"net/http"

	"lingo-core/internal/backend"
	"lingo-core/internal/middleware"

	"github.com/rs/zerolog/log"
)

// ProfileHandler handles device registration and avatar uploads
type ProfileHandler struct {
	service *backend.Service
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(service *backend.Service) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// RegisterDeviceRequest represents the request body for registering a push token
type RegisterDeviceRequest struct {
	PushToken string `json:"push_token"`
}

// AvatarUploadRequest represents the request body for an avatar upload URL
type AvatarUploadRequest struct {
	ContentType string `json:"content_type"`
}

// ConfirmAvatarRequest represents the request body for confirming an upload
type ConfirmAvatarRequest struct {
	AvatarURL string `json:"avatar_url"`
}

// RegisterDevice handles PUT /api/v1/devices
func (h *ProfileHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.RegisterPushToken(ctx, userID, req.PushToken); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to register device")
		respondServiceError(w, err, "Failed to register device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestAvatarUpload handles POST /api/v1/avatar/upload
func (h *ProfileHandler) RequestAvatarUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req AvatarUploadRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	upload, err := h.service.RequestAvatarUpload(ctx, userID, req.ContentType)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create avatar upload")
		respondServiceError(w, err, "Failed to create avatar upload")
		return
	}

	respondJSON(w, http.StatusOK, upload)
}

// ConfirmAvatar handles PUT /api/v1/avatar
func (h *ProfileHandler) ConfirmAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req ConfirmAvatarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.service.ConfirmAvatar(ctx, userID, req.AvatarURL)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to confirm avatar")
		respondServiceError(w, err, "Failed to confirm avatar")
		return
	}

	respondJSON(w, http.StatusOK, profile)
}
