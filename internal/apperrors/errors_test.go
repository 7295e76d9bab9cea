package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrInviteNotFound, http.StatusNotFound},
		{ErrInviteUsed, http.StatusConflict},
		{ErrSelfPair, http.StatusConflict},
		{ErrAlreadyPaired, http.StatusConflict},
		{ErrNotPaired, http.StatusConflict},
		{ErrEmailTaken, http.StatusConflict},
		{ErrDuplicate, http.StatusConflict},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "error: %v", tt.err)
		// Wrapping must not change the classification.
		assert.Equal(t, tt.want, HTTPStatus(fmt.Errorf("context: %w", tt.err)))
	}
}

func TestMessageSanitizesInternalErrors(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New(`pq: duplicate key value violates unique constraint "users_pkey"`)))
	assert.Equal(t, "invite code already used", Message(ErrInviteUsed))
	assert.Equal(t, "user: not found", Message(fmt.Errorf("user: %w", ErrNotFound)))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("couple: %w", ErrNotFound)))
	assert.True(t, IsNotFound(ErrInviteNotFound))
	assert.False(t, IsNotFound(ErrInviteUsed))
	assert.False(t, IsNotFound(nil))
}
