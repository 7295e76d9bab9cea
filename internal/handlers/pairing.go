package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"relationship-app-backend/internal/middleware"
	"relationship-app-backend/internal/services"
)

// PairingHandler handles couple state-machine HTTP requests
type PairingHandler struct {
	pairingService *services.PairingService
	userService    *services.UserService
	wsHub          *services.WSHub
	push           *services.PushNotifier
}

// NewPairingHandler creates a new pairing handler
func NewPairingHandler(pairingService *services.PairingService, userService *services.UserService, wsHub *services.WSHub, push *services.PushNotifier) *PairingHandler {
	return &PairingHandler{
		pairingService: pairingService,
		userService:    userService,
		wsHub:          wsHub,
		push:           push,
	}
}

// OnboardRequest represents the request body for creator onboarding
type OnboardRequest struct {
	Profile          services.ProfileFields `json:"profile"`
	RelationshipType string                 `json:"relationship_type"`
}

// Onboard handles POST /api/v1/couple/onboard
func (h *PairingHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req OnboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RelationshipType == "" {
		respondError(w, "relationship_type is required", http.StatusBadRequest)
		return
	}

	result, err := h.pairingService.OnboardCreator(ctx, userID, req.Profile, req.RelationshipType)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to onboard creator")
		respondServiceError(w, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Int64("couple_id", result.CoupleID).
		Str("invite_code", result.InviteCode).
		Msg("Invite created")

	respondJSON(w, http.StatusCreated, result)
}

// Preview handles GET /api/v1/invites/{code} (public)
func (h *PairingHandler) Preview(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	preview, err := h.pairingService.PreviewInvite(r.Context(), code)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, preview)
}

// GetInvite handles GET /api/v1/couple/invite
func (h *PairingHandler) GetInvite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	result, err := h.pairingService.InviteDetails(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// PairRequest represents the request body for redeeming an invite code
type PairRequest struct {
	InviteCode string                 `json:"invite_code"`
	Profile    services.ProfileFields `json:"profile"`
}

// Pair handles POST /api/v1/couple/pair
func (h *PairingHandler) Pair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.InviteCode == "" {
		respondError(w, "invite_code is required", http.StatusBadRequest)
		return
	}

	result, err := h.pairingService.Pair(ctx, userID, req.InviteCode, req.Profile)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("invite_code", req.InviteCode).
			Msg("Failed to pair")
		respondServiceError(w, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Int64("couple_id", result.CoupleID).
		Msg("Couple paired")

	// The transaction has committed; notify the creator over whatever
	// channels they have. Delivery failures are not the client's
	// problem anymore.
	h.wsHub.NotifyPaired(result.CreatorID, result.CoupleID, result.RelationshipType)
	h.wsHub.NotifyPaired(userID, result.CoupleID, result.RelationshipType)
	if joiner, err := h.userService.GetByID(ctx, userID); err == nil {
		h.push.NotifyPartnerJoined(ctx, result.CreatorID, joiner.Nickname)
	}

	respondJSON(w, http.StatusOK, result)
}

// Unlink handles POST /api/v1/couple/unlink
func (h *PairingHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	partnerID, err := h.pairingService.Unlink(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to unlink")
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Msg("Couple unlinked")

	h.wsHub.NotifyUnlinked(userID)
	if partnerID != "" {
		h.wsHub.NotifyUnlinked(partnerID)
		h.push.NotifyUnlinked(ctx, partnerID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/v1/couple/status
func (h *PairingHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	status, err := h.pairingService.Status(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to get status")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// AnswersRequest represents the request body for welcome answers
type AnswersRequest struct {
	Answers json.RawMessage `json:"answers"`
}

// SubmitAnswers handles PUT /api/v1/couple/answers
func (h *PairingHandler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req AnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.pairingService.SubmitAnswers(ctx, userID, req.Answers); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to submit answers")
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
