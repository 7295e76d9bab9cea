package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"relationship-app-backend/internal/config"
)

// PushNotifier delivers APNs pushes for pairing events. A nil client
// (no key configured) turns every send into a no-op.
type PushNotifier struct {
	users  UserStore
	client *apns2.Client
	topic  string
}

// NewPushNotifier creates a new push notifier. Push is disabled when
// no signing key is configured.
func NewPushNotifier(users UserStore, cfg config.APNsConfig) (*PushNotifier, error) {
	n := &PushNotifier{users: users, topic: cfg.Topic}
	if cfg.KeyPath == "" {
		return n, nil
	}

	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}
	n.client = client
	return n, nil
}

// NotifyPartnerJoined pushes a "partner joined" alert to the user, if
// they registered a device token. Delivery problems are logged, never
// returned: the pairing already committed.
func (n *PushNotifier) NotifyPartnerJoined(ctx context.Context, userID, partnerNickname string) {
	n.push(ctx, userID, fmt.Sprintf("%s just joined you!", nonEmpty(partnerNickname, "Your partner")))
}

// NotifyUnlinked pushes an "unlinked" alert to the former partner.
func (n *PushNotifier) NotifyUnlinked(ctx context.Context, userID string) {
	n.push(ctx, userID, "Your partner ended the pairing.")
}

func (n *PushNotifier) push(ctx context.Context, userID, alert string) {
	if n.client == nil {
		return
	}

	user, err := n.users.GetByID(ctx, userID)
	if err != nil || user.PushToken == nil || *user.PushToken == "" {
		return
	}

	res, err := n.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: *user.PushToken,
		Topic:       n.topic,
		Payload:     payload.NewPayload().Alert(alert).Sound("default"),
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("APNs push failed")
		return
	}
	if !res.Sent() {
		log.Warn().
			Str("user_id", userID).
			Str("reason", res.Reason).
			Int("status", res.StatusCode).
			Msg("APNs push rejected")
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
