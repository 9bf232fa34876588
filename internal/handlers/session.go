package handlers

import (
	"encoding/json"
	"net/http"

	"lingo-core/internal/backend"
	"lingo-core/internal/middleware"
	"lingo-core/internal/models"

	"github.com/rs/zerolog/log"
)

// SessionHandler handles status and authentication requests
type SessionHandler struct {
	service *backend.Service
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(service *backend.Service) *SessionHandler {
	return &SessionHandler{service: service}
}

// GetStatus handles GET /api/v1/status
func (h *SessionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Status(r.Context()))
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var creds models.AuthCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.service.SignIn(r.Context(), creds)
	if err != nil {
		log.Warn().
			Err(err).
			Str("provider", string(creds.Provider)).
			Msg("Sign-in rejected")
		respondServiceError(w, err, "Failed to sign in")
		return
	}

	respondJSON(w, http.StatusOK, session)
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	profile, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load profile")
		respondServiceError(w, err, "Failed to load profile")
		return
	}

	respondJSON(w, http.StatusOK, models.AuthSession{
		User:        *profile,
		AccessToken: middleware.BearerToken(r.Header.Get("Authorization")),
	})
}

// DeleteSession handles DELETE /api/v1/session. Tokens are stateless so this
// only records the sign-out.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	log.Info().
		Str("user_id", middleware.GetUserID(r.Context())).
		Msg("User signed out")
	w.WriteHeader(http.StatusNoContent)
}

// UpdatePreferences handles PUT /api/v1/preferences
func (h *SessionHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var prefs models.UserPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdatePreferences(ctx, userID, prefs)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update preferences")
		respondServiceError(w, err, "Failed to update preferences")
		return
	}

	respondJSON(w, http.StatusOK, updated)
}
