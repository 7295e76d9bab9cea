package apperrors

import (
	"errors"
	"net/http"
)

// Sentinel errors shared across services and handlers. Handlers map
// them to HTTP statuses through HTTPStatus instead of matching error
// strings.
var (
	// ErrInvalidInput is returned for malformed or missing input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned for missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller is authenticated but not
	// allowed to act on the target resource.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is the generic record-not-found error.
	ErrNotFound = errors.New("not found")

	// ErrInviteNotFound means no couple, of any status, holds the code.
	ErrInviteNotFound = errors.New("invite code not found")

	// ErrInviteUsed means the code exists but its couple is no longer
	// waiting.
	ErrInviteUsed = errors.New("invite code already used")

	// ErrSelfPair means a user tried to redeem their own invite code.
	ErrSelfPair = errors.New("cannot pair with yourself")

	// ErrAlreadyPaired means the user already belongs to a full couple.
	ErrAlreadyPaired = errors.New("already paired")

	// ErrNotPaired means the operation requires a couple membership the
	// user does not have.
	ErrNotPaired = errors.New("not paired")

	// ErrEmailTaken means the email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrDuplicate is the generic unique-constraint violation.
	ErrDuplicate = errors.New("duplicate record")
)

// HTTPStatus maps an error to the HTTP status code returned to the
// client. Unknown errors are treated as internal failures.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInviteNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInviteUsed),
		errors.Is(err, ErrSelfPair),
		errors.Is(err, ErrAlreadyPaired),
		errors.Is(err, ErrNotPaired),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the sanitized client-facing message for an error.
// Internal failures never leak their cause.
func Message(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInviteNotFound)
}
