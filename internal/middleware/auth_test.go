package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubVerifier struct {
	userID string
	err    error
}

func (v *stubVerifier) ValidateJWT(token string) (string, error) {
	return v.userID, v.err
}

func authedHandler(t *testing.T, gotUserID *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	var gotUserID string
	handler := AuthMiddleware(&stubVerifier{userID: "u1"})(authedHandler(t, &gotUserID))

	tests := []struct {
		name       string
		header     string
		verifier   *stubVerifier
		wantStatus int
	}{
		{"missing header", "", nil, http.StatusUnauthorized},
		{"not bearer", "Basic abc", nil, http.StatusUnauthorized},
		{"malformed", "Bearer", nil, http.StatusUnauthorized},
		{"invalid token", "Bearer bad", &stubVerifier{err: errors.New("bad token")}, http.StatusUnauthorized},
		{"valid", "Bearer good", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler
			if tt.verifier != nil {
				h = AuthMiddleware(tt.verifier)(authedHandler(t, &gotUserID))
			}

			gotUserID = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "u1", gotUserID)
			} else {
				assert.Empty(t, gotUserID)
				assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			}
		})
	}
}

func TestGetUserIDWithoutContextValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, GetUserID(req.Context()))
}
