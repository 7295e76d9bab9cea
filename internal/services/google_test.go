package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenInfoServer(t *testing.T, status int, info tokenInfoResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("id_token"))
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(info)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func futureExp() string {
	return strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)
}

func TestGoogleVerifierAccepts(t *testing.T) {
	srv := tokenInfoServer(t, http.StatusOK, tokenInfoResponse{
		Aud:           "client-1",
		Email:         "alice@example.com",
		EmailVerified: "true",
		Name:          "Alice",
		Exp:           futureExp(),
	})

	v := NewGoogleTokenVerifier("client-1")
	v.endpoint = srv.URL

	identity, err := v.Verify(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.Equal(t, "Alice", identity.Name)
}

func TestGoogleVerifierRejects(t *testing.T) {
	tests := []struct {
		name   string
		status int
		info   tokenInfoResponse
	}{
		{"bad status", http.StatusBadRequest, tokenInfoResponse{}},
		{"audience mismatch", http.StatusOK, tokenInfoResponse{
			Aud: "someone-else", Email: "a@b.com", EmailVerified: "true", Exp: futureExp(),
		}},
		{"unverified email", http.StatusOK, tokenInfoResponse{
			Aud: "client-1", Email: "a@b.com", EmailVerified: "false", Exp: futureExp(),
		}},
		{"expired", http.StatusOK, tokenInfoResponse{
			Aud: "client-1", Email: "a@b.com", EmailVerified: "true",
			Exp: strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tokenInfoServer(t, tt.status, tt.info)
			v := NewGoogleTokenVerifier("client-1")
			v.endpoint = srv.URL

			_, err := v.Verify(context.Background(), "some-token")
			assert.Error(t, err)
		})
	}
}
