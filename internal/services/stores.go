package services

import (
	"context"
	"encoding/json"
	"time"

	"relationship-app-backend/internal/models"
)

// UserStore is the user persistence surface the services depend on.
// Implemented by repository.UserRepository; substituted in tests.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, nickname, avatarURL, gender *string) error
	SetCouple(ctx context.Context, userID string, coupleID *int64) error
	ClearCoupleRefs(ctx context.Context, coupleID int64) error
	GetPartner(ctx context.Context, coupleID int64, selfID string) (*models.User, error)
	SetWelcomeDone(ctx context.Context, userID string) error
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
	SetResetCode(ctx context.Context, userID string, code string, expires time.Time) error
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
	Delete(ctx context.Context, userID string) error
}

// CoupleStore is the couple persistence surface the services depend on.
type CoupleStore interface {
	Create(ctx context.Context, couple *models.Couple) error
	GetByID(ctx context.Context, id int64) (*models.Couple, error)
	GetWaitingByCode(ctx context.Context, code string) (*models.Couple, error)
	GetWaitingByCodeForUpdate(ctx context.Context, code string) (*models.Couple, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	SetPartner(ctx context.Context, coupleID int64, partnerID string) error
	MergeAnswers(ctx context.Context, coupleID int64, userID string, answers json.RawMessage) error
	SetSharedImage(ctx context.Context, coupleID int64, url *string) error
	Delete(ctx context.Context, id int64) error
}

// TxRunner wraps multi-statement mutations in a database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
