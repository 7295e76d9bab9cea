package models

import (
	"encoding/json"
	"time"
)

// CoupleStatus is the lifecycle state of a couple.
type CoupleStatus string

const (
	// CoupleWaiting means only the creator is attached and the invite
	// code is still redeemable.
	CoupleWaiting CoupleStatus = "waiting"
	// CoupleFull means both slots are filled.
	CoupleFull CoupleStatus = "full"
)

// Auth providers for a user account.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// User represents a registered user.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Provider     string     `json:"provider"`
	DisplayName  string     `json:"display_name"`
	Nickname     string     `json:"nickname"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	Gender       *string    `json:"gender,omitempty"`
	CoupleID     *int64     `json:"couple_id,omitempty"`
	WelcomeDone  bool       `json:"welcome_done"`
	PushToken    *string    `json:"-"`
	ResetCode    *string    `json:"-"`
	ResetExpires *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Couple represents the shared pairing record joining two users.
type Couple struct {
	ID               int64           `json:"id"`
	InviteCode       string          `json:"invite_code"`
	Status           CoupleStatus    `json:"status"`
	CreatorID        string          `json:"creator_id"`
	PartnerID        *string         `json:"partner_id,omitempty"`
	RelationshipType string          `json:"relationship_type"`
	Answers          json.RawMessage `json:"answers,omitempty"`
	SharedImageURL   *string         `json:"shared_image_url,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
