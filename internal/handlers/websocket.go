package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"relationship-app-backend/internal/apperrors"
	"relationship-app-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub            *services.WSHub
	userService    *services.UserService
	pairingService *services.PairingService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, userService *services.UserService, pairingService *services.PairingService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		userService:    userService,
		pairingService: pairingService,
	}
}

// HandleWebSocket handles GET /ws?token=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID)

	partnerID := h.partnerOf(r, userID)
	if partnerID != "" {
		h.hub.NotifyPartnerStatus(partnerID, true)
		defer h.hub.NotifyPartnerStatus(partnerID, false)
	}

	// The hub only pushes server-side events; the read loop exists to
	// notice disconnects and answer pings.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user_id", userID).Msg("WebSocket read error")
			}
			return
		}
	}
}

func (h *WebSocketHandler) partnerOf(r *http.Request, userID string) string {
	partnerID, err := h.pairingService.PartnerID(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotPaired) && !apperrors.IsNotFound(err) {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve partner")
		}
		return ""
	}
	return partnerID
}
