package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"relationship-app-backend/internal/apperrors"
	"relationship-app-backend/internal/middleware"
	"relationship-app-backend/internal/services"
)

// UserHandler handles profile and account HTTP requests
type UserHandler struct {
	userService    *services.UserService
	pairingService *services.PairingService
	wsHub          *services.WSHub
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, pairingService *services.PairingService, wsHub *services.WSHub) *UserHandler {
	return &UserHandler{
		userService:    userService,
		pairingService: pairingService,
		wsHub:          wsHub,
	}
}

// GetMe handles GET /api/v1/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to get user")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// UpdateProfile handles PATCH /api/v1/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req services.ProfileFields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdateProfile(r.Context(), userID, req); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update profile")
		respondServiceError(w, err)
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// PushTokenRequest represents the request body for a push token update
type PushTokenRequest struct {
	PushToken *string `json:"push_token"`
}

// UpdatePushToken handles PUT /api/v1/me/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdatePushToken(r.Context(), userID, req.PushToken); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update push token")
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount handles DELETE /api/v1/me
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	// Resolve the partner before the account and couple disappear.
	partnerID, err := h.pairingService.PartnerID(ctx, userID)
	if err != nil && !errors.Is(err, apperrors.ErrNotPaired) && !apperrors.IsNotFound(err) {
		respondServiceError(w, err)
		return
	}

	if err := h.userService.DeleteAccount(ctx, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to delete account")
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Msg("Account deleted")

	if partnerID != "" {
		h.wsHub.NotifyUnlinked(partnerID)
	}

	w.WriteHeader(http.StatusNoContent)
}
