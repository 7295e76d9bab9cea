package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"relationship-app-backend/internal/apperrors"
	"relationship-app-backend/internal/models"
)

const userColumns = `id, email, password_hash, provider, display_name, nickname,
		avatar_url, gender, couple_id, welcome_done, push_token,
		reset_code, reset_code_expires, created_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Provider,
		&user.DisplayName, &user.Nickname, &user.AvatarURL, &user.Gender,
		&user.CoupleID, &user.WelcomeDone, &user.PushToken,
		&user.ResetCode, &user.ResetExpires, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, provider, display_name, nickname, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := querier(ctx, r.db).Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Provider,
		user.DisplayName, user.Nickname, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return apperrors.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(querier(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if nf := notFound(err, "user"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByIDForUpdate retrieves a user by ID with a row lock. Must run
// inside a transaction.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(querier(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if nf := notFound(err, "user"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(querier(ctx, r.db).QueryRow(ctx, query, email))
	if err != nil {
		if nf := notFound(err, "user"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// UpdateProfile applies non-nil profile fields to the user row.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, nickname *string, avatarURL *string, gender *string) error {
	query := `
		UPDATE users SET
			nickname   = COALESCE($1, nickname),
			avatar_url = COALESCE($2, avatar_url),
			gender     = COALESCE($3, gender)
		WHERE id = $4
	`
	result, err := querier(ctx, r.db).Exec(ctx, query, nickname, avatarURL, gender, userID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	return nil
}

// SetCouple points the user at a couple, or clears the link when
// coupleID is nil.
func (r *UserRepository) SetCouple(ctx context.Context, userID string, coupleID *int64) error {
	query := `UPDATE users SET couple_id = $1 WHERE id = $2`
	result, err := querier(ctx, r.db).Exec(ctx, query, coupleID, userID)
	if err != nil {
		return fmt.Errorf("failed to set couple: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	return nil
}

// ClearCoupleRefs nulls couple_id on every user attached to the couple.
func (r *UserRepository) ClearCoupleRefs(ctx context.Context, coupleID int64) error {
	query := `UPDATE users SET couple_id = NULL WHERE couple_id = $1`
	_, err := querier(ctx, r.db).Exec(ctx, query, coupleID)
	if err != nil {
		return fmt.Errorf("failed to clear couple refs: %w", err)
	}
	return nil
}

// GetPartner retrieves the other member of a couple.
func (r *UserRepository) GetPartner(ctx context.Context, coupleID int64, selfID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE couple_id = $1 AND id <> $2 LIMIT 1`
	user, err := scanUser(querier(ctx, r.db).QueryRow(ctx, query, coupleID, selfID))
	if err != nil {
		if nf := notFound(err, "partner"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}
	return user, nil
}

// SetWelcomeDone marks the welcome-questions step as completed.
func (r *UserRepository) SetWelcomeDone(ctx context.Context, userID string) error {
	query := `UPDATE users SET welcome_done = TRUE WHERE id = $1`
	result, err := querier(ctx, r.db).Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to set welcome flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	_, err := querier(ctx, r.db).Exec(ctx, query, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// SetResetCode stores the emailed password-reset code and its expiry.
func (r *UserRepository) SetResetCode(ctx context.Context, userID string, code string, expires time.Time) error {
	query := `UPDATE users SET reset_code = $1, reset_code_expires = $2 WHERE id = $3`
	_, err := querier(ctx, r.db).Exec(ctx, query, code, expires, userID)
	if err != nil {
		return fmt.Errorf("failed to set reset code: %w", err)
	}
	return nil
}

// UpdatePassword replaces the credential hash and clears any pending
// reset code.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	query := `
		UPDATE users SET password_hash = $1, reset_code = NULL, reset_code_expires = NULL
		WHERE id = $2
	`
	result, err := querier(ctx, r.db).Exec(ctx, query, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	return nil
}

// Delete removes the user row.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM users WHERE id = $1`
	result, err := querier(ctx, r.db).Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	return nil
}
