package handlers

import (
	"encoding/json"
	"net/http"

	"relationship-app-backend/internal/apperrors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondServiceError maps a service error to its HTTP status with a
// sanitized message. Every handler goes through this, so the error
// shape is uniform.
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, apperrors.Message(err), apperrors.HTTPStatus(err))
}

// respondJSON writes a JSON payload.
func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
