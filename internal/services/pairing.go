package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"relationship-app-backend/internal/apperrors"
	"relationship-app-backend/internal/models"
)

const (
	inviteCodeLength = 6
	inviteCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Attempts at inserting a fresh invite code before giving up. The
	// waiting-codes unique index is the authority on collisions; every
	// retry restarts the whole transaction.
	inviteCodeAttempts = 3
)

// PairingService orchestrates the couple state machine: a user is solo,
// waiting as the creator of an invite, or paired into a full couple.
// Every transition runs as one transaction.
type PairingService struct {
	users    UserStore
	couples  CoupleStore
	tx       TxRunner
	linkBase string
}

// NewPairingService creates a new pairing service
func NewPairingService(users UserStore, couples CoupleStore, tx TxRunner, linkBase string) *PairingService {
	return &PairingService{
		users:    users,
		couples:  couples,
		tx:       tx,
		linkBase: linkBase,
	}
}

// ProfileFields are the optional profile values applied during
// onboarding and pairing. Nil fields are left untouched.
type ProfileFields struct {
	Nickname  *string `json:"nickname"`
	AvatarURL *string `json:"avatar_url"`
	Gender    *string `json:"gender"`
}

// InviteResult is the outcome of creator onboarding.
type InviteResult struct {
	CoupleID   int64  `json:"couple_id"`
	InviteCode string `json:"invite_code"`
	InviteLink string `json:"invite_link"`
}

// InvitePreview describes a waiting invite to an unauthenticated
// visitor following an invite link.
type InvitePreview struct {
	CreatorNickname  string  `json:"creator_nickname"`
	CreatorAvatarURL *string `json:"creator_avatar_url,omitempty"`
	RelationshipType string  `json:"relationship_type"`
}

// PairResult is the outcome of redeeming an invite code.
type PairResult struct {
	CoupleID         int64  `json:"couple_id"`
	RelationshipType string `json:"relationship_type"`
	CreatorID        string `json:"-"`
}

// PartnerInfo is the partner's public profile inside a status view.
type PartnerInfo struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Nickname    string  `json:"nickname"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Gender      *string `json:"gender,omitempty"`
}

// StatusResult is the derived pairing status of a user. Mode is one of
// "solo", "waiting" or "couple".
type StatusResult struct {
	Mode             string          `json:"mode"`
	InviteCode       string          `json:"invite_code,omitempty"`
	InviteLink       string          `json:"invite_link,omitempty"`
	RelationshipType string          `json:"relationship_type,omitempty"`
	Partner          *PartnerInfo    `json:"partner,omitempty"`
	Answers          json.RawMessage `json:"answers,omitempty"`
	SharedImageURL   *string         `json:"shared_image_url,omitempty"`
}

// NormalizeInviteCode trims whitespace and uppercases a code so that
// lookups are case-insensitive.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// generateInviteCode generates a random invite code
func generateInviteCode() string {
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(inviteCodeChars))))
		code[i] = inviteCodeChars[n.Int64()]
	}
	return string(code)
}

// complementGender returns the opposite of a stored binary gender, or
// nil for anything else. Kept for client backward compatibility; it
// only ever fills a gap, never overrides explicit input.
func complementGender(creator *string) *string {
	if creator == nil {
		return nil
	}
	var opposite string
	switch *creator {
	case "male":
		opposite = "female"
	case "female":
		opposite = "male"
	default:
		return nil
	}
	return &opposite
}

func (s *PairingService) inviteLink(code string) string {
	if s.linkBase == "" {
		return ""
	}
	return strings.TrimRight(s.linkBase, "/") + "/" + code
}

// OnboardCreator applies the creator's profile fields, creates a
// waiting couple with a fresh invite code and attaches the creator to
// it, all in one transaction. A creator who is already waiting gets
// their previous invite replaced; a paired user is rejected.
func (s *PairingService) OnboardCreator(ctx context.Context, userID string, profile ProfileFields, relationshipType string) (*InviteResult, error) {
	var result *InviteResult

	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code := generateInviteCode()

		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			user, err := s.users.GetByIDForUpdate(ctx, userID)
			if err != nil {
				return err
			}

			if user.CoupleID != nil {
				prev, err := s.couples.GetByID(ctx, *user.CoupleID)
				if err != nil && !apperrors.IsNotFound(err) {
					return err
				}
				if prev != nil {
					if prev.Status == models.CoupleFull {
						return apperrors.ErrAlreadyPaired
					}
					// Abandoned invite from an earlier onboarding:
					// replace it.
					if err := s.users.SetCouple(ctx, userID, nil); err != nil {
						return err
					}
					if err := s.couples.Delete(ctx, prev.ID); err != nil {
						return err
					}
				}
			}

			if err := s.users.UpdateProfile(ctx, userID, profile.Nickname, profile.AvatarURL, profile.Gender); err != nil {
				return err
			}

			couple := &models.Couple{
				InviteCode:       code,
				Status:           models.CoupleWaiting,
				CreatorID:        userID,
				RelationshipType: relationshipType,
				CreatedAt:        time.Now(),
			}
			if err := s.couples.Create(ctx, couple); err != nil {
				return err
			}

			if err := s.users.SetCouple(ctx, userID, &couple.ID); err != nil {
				return err
			}

			result = &InviteResult{
				CoupleID:   couple.ID,
				InviteCode: couple.InviteCode,
				InviteLink: s.inviteLink(couple.InviteCode),
			}
			return nil
		})

		if errors.Is(err, apperrors.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, fmt.Errorf("failed to generate unique invite code after %d attempts", inviteCodeAttempts)
}

// PreviewInvite resolves an invite code for an unauthenticated caller.
// An unknown code and a code whose couple is no longer waiting are
// distinct failures so the client can render the right message.
func (s *PairingService) PreviewInvite(ctx context.Context, code string) (*InvitePreview, error) {
	code = NormalizeInviteCode(code)
	if code == "" {
		return nil, fmt.Errorf("invite code is required: %w", apperrors.ErrInvalidInput)
	}

	couple, err := s.couples.GetWaitingByCode(ctx, code)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, s.classifyMissingCode(ctx, code)
		}
		return nil, err
	}

	creator, err := s.users.GetByID(ctx, couple.CreatorID)
	if err != nil {
		return nil, err
	}

	return &InvitePreview{
		CreatorNickname:  creator.Nickname,
		CreatorAvatarURL: creator.AvatarURL,
		RelationshipType: couple.RelationshipType,
	}, nil
}

// classifyMissingCode tells an unknown code apart from one whose
// couple has already transitioned out of waiting.
func (s *PairingService) classifyMissingCode(ctx context.Context, code string) error {
	exists, err := s.couples.CodeExists(ctx, code)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.ErrInviteUsed
	}
	return apperrors.ErrInviteNotFound
}

// Pair redeems an invite code for the joiner: locks the waiting couple,
// rejects self-pairing, cleans up any waiting couple the joiner had
// created themselves, applies the joiner's profile fields and fills the
// partner slot. All of it commits or none of it does.
func (s *PairingService) Pair(ctx context.Context, joinerID, code string, profile ProfileFields) (*PairResult, error) {
	code = NormalizeInviteCode(code)
	if code == "" {
		return nil, fmt.Errorf("invite code is required: %w", apperrors.ErrInvalidInput)
	}

	var result *PairResult

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		couple, err := s.couples.GetWaitingByCodeForUpdate(ctx, code)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return s.classifyMissingCode(ctx, code)
			}
			return err
		}

		if couple.CreatorID == joinerID {
			return apperrors.ErrSelfPair
		}

		joiner, err := s.users.GetByIDForUpdate(ctx, joinerID)
		if err != nil {
			return err
		}

		if joiner.CoupleID != nil {
			prev, err := s.couples.GetByID(ctx, *joiner.CoupleID)
			if err != nil && !apperrors.IsNotFound(err) {
				return err
			}
			if prev != nil {
				if prev.Status == models.CoupleFull {
					return apperrors.ErrAlreadyPaired
				}
				// Ghost couple: the joiner had started their own
				// onboarding and never got paired.
				if err := s.users.SetCouple(ctx, joinerID, nil); err != nil {
					return err
				}
				if err := s.couples.Delete(ctx, prev.ID); err != nil {
					return err
				}
			}
		}

		if profile.Gender == nil {
			creator, err := s.users.GetByID(ctx, couple.CreatorID)
			if err != nil {
				return err
			}
			profile.Gender = complementGender(creator.Gender)
		}

		if err := s.users.UpdateProfile(ctx, joinerID, profile.Nickname, profile.AvatarURL, profile.Gender); err != nil {
			return err
		}
		if err := s.users.SetCouple(ctx, joinerID, &couple.ID); err != nil {
			return err
		}
		if err := s.couples.SetPartner(ctx, couple.ID, joinerID); err != nil {
			return err
		}

		result = &PairResult{
			CoupleID:         couple.ID,
			RelationshipType: couple.RelationshipType,
			CreatorID:        couple.CreatorID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Unlink severs the caller's couple: clears couple_id on every member
// and hard-deletes the couple row with its shared state. Profile
// fields survive. Returns the former partner's id, if any, so the
// caller can notify them.
func (s *PairingService) Unlink(ctx context.Context, userID string) (string, error) {
	var partnerID string

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user.CoupleID == nil {
			return apperrors.ErrNotPaired
		}
		coupleID := *user.CoupleID

		partner, err := s.users.GetPartner(ctx, coupleID, userID)
		if err != nil && !apperrors.IsNotFound(err) {
			return err
		}
		if partner != nil {
			partnerID = partner.ID
		}

		if err := s.users.ClearCoupleRefs(ctx, coupleID); err != nil {
			return err
		}
		return s.couples.Delete(ctx, coupleID)
	})
	if err != nil {
		return "", err
	}

	return partnerID, nil
}

// Status computes the caller's pairing state. Nothing is stored: solo
// means no couple reference, waiting means the couple is still open,
// couple means both slots are filled.
func (s *PairingService) Status(ctx context.Context, userID string) (*StatusResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.CoupleID == nil {
		return &StatusResult{Mode: "solo"}, nil
	}

	couple, err := s.couples.GetByID(ctx, *user.CoupleID)
	if err != nil {
		return nil, err
	}

	if couple.Status == models.CoupleWaiting {
		return &StatusResult{
			Mode:             "waiting",
			InviteCode:       couple.InviteCode,
			InviteLink:       s.inviteLink(couple.InviteCode),
			RelationshipType: couple.RelationshipType,
		}, nil
	}

	// Resolve the other member by couple id rather than by creator or
	// partner slot, so the caller's own role does not matter.
	partner, err := s.users.GetPartner(ctx, couple.ID, userID)
	if err != nil {
		return nil, err
	}

	return &StatusResult{
		Mode:             "couple",
		RelationshipType: couple.RelationshipType,
		Partner: &PartnerInfo{
			ID:          partner.ID,
			DisplayName: partner.DisplayName,
			Nickname:    partner.Nickname,
			AvatarURL:   partner.AvatarURL,
			Gender:      partner.Gender,
		},
		Answers:        couple.Answers,
		SharedImageURL: couple.SharedImageURL,
	}, nil
}

// InviteDetails returns the caller's own open invite.
func (s *PairingService) InviteDetails(ctx context.Context, userID string) (*InviteResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.CoupleID == nil {
		return nil, apperrors.ErrNotPaired
	}

	couple, err := s.couples.GetByID(ctx, *user.CoupleID)
	if err != nil {
		return nil, err
	}
	if couple.Status != models.CoupleWaiting {
		return nil, apperrors.ErrAlreadyPaired
	}

	return &InviteResult{
		CoupleID:   couple.ID,
		InviteCode: couple.InviteCode,
		InviteLink: s.inviteLink(couple.InviteCode),
	}, nil
}

// SubmitAnswers merges the caller's welcome answers into the couple's
// answers map and marks the welcome step done, in one transaction.
func (s *PairingService) SubmitAnswers(ctx context.Context, userID string, answers json.RawMessage) error {
	if len(answers) == 0 || !json.Valid(answers) {
		return fmt.Errorf("answers must be a valid JSON document: %w", apperrors.ErrInvalidInput)
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.CoupleID == nil {
			return apperrors.ErrNotPaired
		}
		if err := s.couples.MergeAnswers(ctx, *user.CoupleID, userID, answers); err != nil {
			return err
		}
		return s.users.SetWelcomeDone(ctx, userID)
	})
}

// PartnerID resolves the current partner of a user, if one exists.
// Used by the event hub and the push notifier after a transition has
// already committed.
func (s *PairingService) PartnerID(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.CoupleID == nil {
		return "", apperrors.ErrNotPaired
	}
	partner, err := s.users.GetPartner(ctx, *user.CoupleID, userID)
	if err != nil {
		return "", err
	}
	return partner.ID, nil
}
