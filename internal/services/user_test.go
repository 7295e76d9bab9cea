package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relationship-app-backend/internal/apperrors"
	"relationship-app-backend/internal/models"
)

type fakeGoogleVerifier struct {
	identity *GoogleIdentity
	err      error
}

func (v *fakeGoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	return v.identity, v.err
}

type fakeMailer struct {
	to       string
	lastCode string
	err      error
}

func (m *fakeMailer) SendPasswordReset(to, code string) error {
	if m.err != nil {
		return m.err
	}
	m.to = to
	m.lastCode = code
	return nil
}

func newUserService(env *testEnv, google GoogleVerifier, mailer Mailer) *UserService {
	if google == nil {
		google = &fakeGoogleVerifier{err: errors.New("no identity")}
	}
	if mailer == nil {
		mailer = &fakeMailer{}
	}
	return NewUserService(env.users, env.couples, env.tx, google, mailer, "test-secret")
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv()
	svc := newUserService(env, nil, nil)
	ctx := context.Background()

	result, err := svc.Register(ctx, "Alice@Example.com ", "hunter2hunter2", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Equal(t, models.ProviderLocal, result.User.Provider)
	assert.NotEqual(t, "hunter2hunter2", result.User.PasswordHash)

	userID, err := svc.ValidateJWT(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, userID)

	login, err := svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv()
	svc := newUserService(env, nil, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "hunter2hunter2", "X")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Register(ctx, "a@b.com", "short", "X")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Register(ctx, "a@b.com", "hunter2hunter2", "X")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "A@B.com", "hunter2hunter2", "Y")
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
}

func TestValidateJWTRejectsGarbage(t *testing.T) {
	env := newTestEnv()
	svc := newUserService(env, nil, nil)

	_, err := svc.ValidateJWT("not.a.token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	other := NewUserService(env.users, env.couples, env.tx, &fakeGoogleVerifier{}, &fakeMailer{}, "other-secret")
	token, err := other.GenerateJWT("u1")
	require.NoError(t, err)
	_, err = svc.ValidateJWT(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGoogleLogin(t *testing.T) {
	env := newTestEnv()
	verifier := &fakeGoogleVerifier{identity: &GoogleIdentity{Email: "alice@example.com", Name: "Alice"}}
	svc := newUserService(env, verifier, nil)
	ctx := context.Background()

	result, err := svc.LoginWithGoogle(ctx, "google-id-token")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, result.User.Provider)
	assert.Equal(t, "Alice", result.User.DisplayName)

	// Second login finds the same account.
	again, err := svc.LoginWithGoogle(ctx, "google-id-token")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, again.User.ID)
	assert.Len(t, env.db.users, 1)

	_, err = svc.LoginWithGoogle(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	rejecting := newUserService(env, &fakeGoogleVerifier{err: errors.New("bad token")}, nil)
	_, err = rejecting.LoginWithGoogle(ctx, "whatever")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv()
	mailer := &fakeMailer{}
	svc := newUserService(env, nil, mailer)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@example.com", "hunter2hunter2", "Alice")
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "alice@example.com"))
	assert.Equal(t, "alice@example.com", mailer.to)
	require.Len(t, mailer.lastCode, resetCodeLength)

	assert.NoError(t, svc.VerifyResetCode(ctx, "alice@example.com", mailer.lastCode))
	assert.ErrorIs(t, svc.VerifyResetCode(ctx, "alice@example.com", "000000x"), apperrors.ErrUnauthorized)

	require.NoError(t, svc.ResetPassword(ctx, "alice@example.com", mailer.lastCode, "new-password-1"))

	// The code is consumed and the new password works.
	assert.ErrorIs(t, svc.VerifyResetCode(ctx, "alice@example.com", mailer.lastCode), apperrors.ErrUnauthorized)
	login, err := svc.Login(ctx, "alice@example.com", "new-password-1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
	_, err = svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestPasswordResetExpiredCode(t *testing.T) {
	env := newTestEnv()
	mailer := &fakeMailer{}
	svc := newUserService(env, nil, mailer)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@example.com", "hunter2hunter2", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.RequestPasswordReset(ctx, "alice@example.com"))

	u := env.db.users[reg.User.ID]
	expired := time.Now().Add(-time.Minute)
	u.ResetExpires = &expired
	env.db.users[reg.User.ID] = u

	assert.ErrorIs(t, svc.VerifyResetCode(ctx, "alice@example.com", mailer.lastCode), apperrors.ErrUnauthorized)
}

func TestPasswordResetRejectsFederatedAccount(t *testing.T) {
	env := newTestEnv()
	verifier := &fakeGoogleVerifier{identity: &GoogleIdentity{Email: "alice@example.com", Name: "Alice"}}
	svc := newUserService(env, verifier, nil)
	ctx := context.Background()

	_, err := svc.LoginWithGoogle(ctx, "token")
	require.NoError(t, err)

	err = svc.RequestPasswordReset(ctx, "alice@example.com")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDeleteAccountTearsDownCouple(t *testing.T) {
	env := newTestEnv()
	svc := newUserService(env, nil, nil)
	ctx := context.Background()

	env.addUser("u1", "alice@example.com")
	env.addUser("u2", "bob@example.com")
	invite := onboard(t, env, "u1", "Ali", "", "partner")
	_, err := env.pairing.Pair(ctx, "u2", invite.InviteCode, ProfileFields{})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(ctx, "u1"))

	_, exists := env.db.users["u1"]
	assert.False(t, exists)
	_, exists = env.db.couples[invite.CoupleID]
	assert.False(t, exists, "couple should be gone with the account")
	assert.Nil(t, env.db.users["u2"].CoupleID, "partner keeps the account, loses the link")
}

func TestDeleteAccountSolo(t *testing.T) {
	env := newTestEnv()
	svc := newUserService(env, nil, nil)

	env.addUser("u1", "alice@example.com")
	require.NoError(t, svc.DeleteAccount(context.Background(), "u1"))
	assert.Empty(t, env.db.users)
}
