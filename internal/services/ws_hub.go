package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket event pushed to a client
type WSMessage struct {
	Type   string      `json:"type"`
	Online *bool       `json:"online,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and pushes pairing lifecycle
// events (paired, unlinked, picture updated, partner presence) to
// online users.
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*websocket.Conn
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*websocket.Conn),
	}
}

// Register registers a new WebSocket connection for a user
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existing, exists := h.connections[userID]; exists {
		existing.Close()
	}
	h.connections[userID] = conn

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a WebSocket connection for a user
func (h *WSHub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[userID]; exists {
		conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	conn, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.Unregister(userID)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// NotifyPaired tells a user their couple just became full.
func (h *WSHub) NotifyPaired(userID string, coupleID int64, relationshipType string) {
	h.notify(userID, WSMessage{
		Type: "paired",
		Data: map[string]interface{}{
			"couple_id":         coupleID,
			"relationship_type": relationshipType,
		},
	})
}

// NotifyUnlinked tells a user their couple was torn down.
func (h *WSHub) NotifyUnlinked(userID string) {
	h.notify(userID, WSMessage{Type: "unlinked"})
}

// NotifyPictureUpdated tells a user the shared picture changed. An
// empty url means it was deleted.
func (h *WSHub) NotifyPictureUpdated(userID string, url string) {
	h.notify(userID, WSMessage{
		Type: "picture_updated",
		Data: map[string]interface{}{"shared_image_url": url},
	})
}

// NotifyPartnerStatus notifies a user about their partner's presence.
func (h *WSHub) NotifyPartnerStatus(userID string, online bool) {
	h.notify(userID, WSMessage{Type: "partner_status", Online: &online})
}

func (h *WSHub) notify(userID string, message WSMessage) {
	if !h.IsOnline(userID) {
		return
	}
	if err := h.SendToUser(userID, message); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("type", message.Type).
			Msg("Failed to push event")
	}
}
