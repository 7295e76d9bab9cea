package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"relationship-app-backend/internal/apperrors"
	"relationship-app-backend/internal/models"
)

const coupleColumns = `id, invite_code, status, creator_id, partner_id,
		relationship_type, answers, shared_image_url, created_at`

// CoupleRepository handles database operations for couples
type CoupleRepository struct {
	db *pgxpool.Pool
}

// NewCoupleRepository creates a new couple repository
func NewCoupleRepository(db *pgxpool.Pool) *CoupleRepository {
	return &CoupleRepository{db: db}
}

func scanCouple(row pgx.Row) (*models.Couple, error) {
	var couple models.Couple
	err := row.Scan(
		&couple.ID, &couple.InviteCode, &couple.Status, &couple.CreatorID,
		&couple.PartnerID, &couple.RelationshipType, &couple.Answers,
		&couple.SharedImageURL, &couple.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &couple, nil
}

// Create inserts a waiting couple and fills in its generated id. A
// collision on the waiting-codes unique index comes back as
// ErrDuplicate so the caller can retry with a fresh code.
func (r *CoupleRepository) Create(ctx context.Context, couple *models.Couple) error {
	query := `
		INSERT INTO couples (invite_code, status, creator_id, relationship_type, answers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	answers := couple.Answers
	if answers == nil {
		answers = json.RawMessage(`{}`)
	}
	err := querier(ctx, r.db).QueryRow(ctx, query,
		couple.InviteCode, couple.Status, couple.CreatorID,
		couple.RelationshipType, answers, couple.CreatedAt,
	).Scan(&couple.ID)
	if err != nil {
		if isUniqueViolation(err, "couples_waiting_code_idx") {
			return fmt.Errorf("invite code %q: %w", couple.InviteCode, apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to create couple: %w", err)
	}
	return nil
}

// GetByID retrieves a couple by ID
func (r *CoupleRepository) GetByID(ctx context.Context, id int64) (*models.Couple, error) {
	query := `SELECT ` + coupleColumns + ` FROM couples WHERE id = $1`
	couple, err := scanCouple(querier(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if nf := notFound(err, "couple"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get couple: %w", err)
	}
	return couple, nil
}

// GetWaitingByCode looks up the waiting couple holding the code. The
// code must already be normalized by the caller.
func (r *CoupleRepository) GetWaitingByCode(ctx context.Context, code string) (*models.Couple, error) {
	query := `SELECT ` + coupleColumns + ` FROM couples WHERE invite_code = $1 AND status = 'waiting'`
	couple, err := scanCouple(querier(ctx, r.db).QueryRow(ctx, query, code))
	if err != nil {
		if nf := notFound(err, "waiting couple"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get couple by code: %w", err)
	}
	return couple, nil
}

// GetWaitingByCodeForUpdate is GetWaitingByCode with a row lock, so
// the waiting predicate holds until the surrounding transaction
// commits. Must run inside a transaction.
func (r *CoupleRepository) GetWaitingByCodeForUpdate(ctx context.Context, code string) (*models.Couple, error) {
	query := `SELECT ` + coupleColumns + ` FROM couples WHERE invite_code = $1 AND status = 'waiting' FOR UPDATE`
	couple, err := scanCouple(querier(ctx, r.db).QueryRow(ctx, query, code))
	if err != nil {
		if nf := notFound(err, "waiting couple"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to lock couple by code: %w", err)
	}
	return couple, nil
}

// CodeExists reports whether any couple, of any status, holds the code.
func (r *CoupleRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM couples WHERE invite_code = $1)`
	var exists bool
	err := querier(ctx, r.db).QueryRow(ctx, query, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// SetPartner fills the partner slot and flips the couple to full.
func (r *CoupleRepository) SetPartner(ctx context.Context, coupleID int64, partnerID string) error {
	query := `UPDATE couples SET partner_id = $1, status = 'full' WHERE id = $2 AND status = 'waiting'`
	result, err := querier(ctx, r.db).Exec(ctx, query, partnerID, coupleID)
	if err != nil {
		return fmt.Errorf("failed to set partner: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("waiting couple: %w", apperrors.ErrNotFound)
	}
	return nil
}

// MergeAnswers merges one user's onboarding answers into the couple's
// answers map under that user's id.
func (r *CoupleRepository) MergeAnswers(ctx context.Context, coupleID int64, userID string, answers json.RawMessage) error {
	query := `
		UPDATE couples SET answers = answers || jsonb_build_object($1::text, $2::jsonb)
		WHERE id = $3
	`
	result, err := querier(ctx, r.db).Exec(ctx, query, userID, answers, coupleID)
	if err != nil {
		return fmt.Errorf("failed to merge answers: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("couple: %w", apperrors.ErrNotFound)
	}
	return nil
}

// SetSharedImage sets or clears the shared-image reference.
func (r *CoupleRepository) SetSharedImage(ctx context.Context, coupleID int64, url *string) error {
	query := `UPDATE couples SET shared_image_url = $1 WHERE id = $2`
	result, err := querier(ctx, r.db).Exec(ctx, query, url, coupleID)
	if err != nil {
		return fmt.Errorf("failed to set shared image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("couple: %w", apperrors.ErrNotFound)
	}
	return nil
}

// Delete deletes a couple by ID
func (r *CoupleRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM couples WHERE id = $1`
	result, err := querier(ctx, r.db).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete couple: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("couple: %w", apperrors.ErrNotFound)
	}
	return nil
}
