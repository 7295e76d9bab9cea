package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"relationship-app-backend/internal/apperrors"
	"relationship-app-backend/internal/middleware"
	"relationship-app-backend/internal/services"
)

// 10 MB cap on the uploaded image.
const maxPictureSize = 10 << 20

// PictureHandler handles shared-picture HTTP requests
type PictureHandler struct {
	pictureService *services.PictureService
	pairingService *services.PairingService
	wsHub          *services.WSHub
}

// NewPictureHandler creates a new picture handler
func NewPictureHandler(pictureService *services.PictureService, pairingService *services.PairingService, wsHub *services.WSHub) *PictureHandler {
	return &PictureHandler{
		pictureService: pictureService,
		pairingService: pairingService,
		wsHub:          wsHub,
	}
}

// Upsert handles PUT /api/v1/couple/picture (multipart)
func (h *PictureHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := r.ParseMultipartForm(maxPictureSize); err != nil {
		respondError(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("picture")
	if err != nil {
		respondError(w, "picture file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	url, err := h.pictureService.UpsertSharedPicture(ctx, userID, file, contentType, header.Size)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to upsert shared picture")
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Str("url", url).Msg("Shared picture updated")

	h.notifyPartner(r, userID, url)

	respondJSON(w, http.StatusOK, map[string]string{"shared_image_url": url})
}

// Delete handles DELETE /api/v1/couple/picture
func (h *PictureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := h.pictureService.DeleteSharedPicture(ctx, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to delete shared picture")
		respondServiceError(w, err)
		return
	}

	h.notifyPartner(r, userID, "")

	w.WriteHeader(http.StatusNoContent)
}

func (h *PictureHandler) notifyPartner(r *http.Request, userID, url string) {
	partnerID, err := h.pairingService.PartnerID(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotPaired) && !apperrors.IsNotFound(err) {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve partner for notification")
		}
		return
	}
	h.wsHub.NotifyPictureUpdated(partnerID, url)
}
