package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"relationship-app-backend/internal/apperrors"
	"relationship-app-backend/internal/models"
)

const (
	jwtExpDays = 365

	resetCodeLength = 6
	resetCodeTTL    = 15 * time.Minute
)

// GoogleVerifier verifies a federated ID token and returns the
// asserted identity.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// GoogleIdentity is the identity asserted by a verified Google ID
// token.
type GoogleIdentity struct {
	Email string
	Name  string
}

// Mailer delivers transactional mail. Failures surface to the caller
// but never touch database state.
type Mailer interface {
	SendPasswordReset(to, code string) error
}

// UserService handles accounts, credentials and sessions.
type UserService struct {
	users     UserStore
	couples   CoupleStore
	tx        TxRunner
	google    GoogleVerifier
	mailer    Mailer
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(users UserStore, couples CoupleStore, tx TxRunner, google GoogleVerifier, mailer Mailer, jwtSecret string) *UserService {
	return &UserService{
		users:     users,
		couples:   couples,
		tx:        tx,
		google:    google,
		mailer:    mailer,
		jwtSecret: jwtSecret,
	}
}

// AuthResult is a freshly authenticated user plus their session token.
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// GenerateJWT generates a session token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a session token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", apperrors.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperrors.ErrUnauthorized
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", apperrors.ErrUnauthorized
	}

	return userID, nil
}

// Register creates a local account and issues a session token.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required: %w", apperrors.ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters: %w", apperrors.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Provider:     models.ProviderLocal,
		DisplayName:  displayName,
		CreatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Login authenticates a local account.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// LoginWithGoogle verifies a Google ID token and signs the user in,
// creating the account on first sight.
func (s *UserService) LoginWithGoogle(ctx context.Context, idToken string) (*AuthResult, error) {
	if idToken == "" {
		return nil, fmt.Errorf("id_token is required: %w", apperrors.ErrInvalidInput)
	}

	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("google token rejected: %w", apperrors.ErrUnauthorized)
	}

	user, err := s.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
		user = &models.User{
			ID:          uuid.New().String(),
			Email:       identity.Email,
			Provider:    models.ProviderGoogle,
			DisplayName: identity.Name,
			CreatedAt:   time.Now(),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// GetByID returns the user record.
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile applies the given profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, profile ProfileFields) error {
	return s.users.UpdateProfile(ctx, userID, profile.Nickname, profile.AvatarURL, profile.Gender)
}

// UpdatePushToken stores or clears the device push token.
func (s *UserService) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	return s.users.UpdatePushToken(ctx, userID, pushToken)
}

// generateResetCode generates a numeric reset code
func generateResetCode() string {
	code := make([]byte, resetCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		code[i] = byte('0' + n.Int64())
	}
	return string(code)
}

// RequestPasswordReset emails a short-lived reset code to the account.
// The mail goes out only after the code is stored.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user.Provider != models.ProviderLocal {
		return fmt.Errorf("account has no password: %w", apperrors.ErrInvalidInput)
	}

	code := generateResetCode()
	if err := s.users.SetResetCode(ctx, user.ID, code, time.Now().Add(resetCodeTTL)); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(user.Email, code); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// VerifyResetCode checks an emailed reset code without consuming it.
func (s *UserService) VerifyResetCode(ctx context.Context, email, code string) error {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user.ResetCode == nil || user.ResetExpires == nil ||
		*user.ResetCode != code || time.Now().After(*user.ResetExpires) {
		return fmt.Errorf("invalid or expired reset code: %w", apperrors.ErrUnauthorized)
	}
	return nil
}

// ResetPassword consumes a valid reset code and replaces the password.
func (s *UserService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", apperrors.ErrInvalidInput)
	}
	if err := s.VerifyResetCode(ctx, email, code); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, user.ID, string(hash))
}

// DeleteAccount removes the account. If the user is paired or waiting,
// the couple is torn down first inside the same transaction so no
// dangling references survive.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if user.CoupleID != nil {
			coupleID := *user.CoupleID
			if err := s.users.ClearCoupleRefs(ctx, coupleID); err != nil {
				return err
			}
			if err := s.couples.Delete(ctx, coupleID); err != nil && !apperrors.IsNotFound(err) {
				return err
			}
		}

		return s.users.Delete(ctx, userID)
	})
}
