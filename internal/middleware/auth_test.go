package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"assetdrop/internal/auth"
	"assetdrop/internal/domain"
	"assetdrop/internal/httputil"
)

// stubVerifier accepts exactly one token.
type stubVerifier struct {
	token  string
	userID string
}

func (v *stubVerifier) VerifyToken(token string) (*auth.SupabaseClaims, error) {
	if token != v.token {
		return nil, domain.ErrUnauthorized
	}
	return &auth.SupabaseClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: v.userID}, Role: "authenticated"}, nil
}

func (v *stubVerifier) Close() error { return nil }

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{name: "valid token", method: http.MethodGet, path: "/api/batches/b1", header: "Bearer good", wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "missing header", method: http.MethodGet, path: "/api/batches/b1", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", method: http.MethodGet, path: "/api/batches/b1", header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", method: http.MethodGet, path: "/api/batches/b1", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodPost, path: "/api/batches", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "health is public", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "metrics are public", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "stored objects are public", method: http.MethodGet, path: "/objects/projects/p/x.png", wantStatus: http.StatusOK},
		{name: "preflight passes", method: http.MethodOptions, path: "/api/batches", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = httputil.GetUserID(r)
				w.WriteHeader(http.StatusOK)
			})
			handler := AuthMiddleware(&stubVerifier{token: "good", userID: "user-1"})(next)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, gotUser)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			}
		})
	}
}
