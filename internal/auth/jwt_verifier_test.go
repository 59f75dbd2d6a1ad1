package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetdrop/internal/domain"
)

func testVerifier(t *testing.T) (*SupabaseJWTVerifier, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	kf := func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil }
	return newVerifier(kf, slog.New(slog.NewTextHandler(io.Discard, nil))), key
}

func sign(t *testing.T, key *ecdsa.PrivateKey, claims SupabaseClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestVerifyToken(t *testing.T) {
	verifier, key := testVerifier(t)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name    string
		claims  SupabaseClaims
		wantErr bool
	}{
		{
			name: "authenticated user",
			claims: SupabaseClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: future},
				Role:             "authenticated",
			},
		},
		{
			name: "anonymous role",
			claims: SupabaseClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: future},
				Role:             "anon",
			},
			wantErr: true,
		},
		{
			name: "missing subject",
			claims: SupabaseClaims{
				RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future},
				Role:             "authenticated",
			},
			wantErr: true,
		},
		{
			name: "expired",
			claims: SupabaseClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: past},
				Role:             "authenticated",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := verifier.VerifyToken(sign(t, key, tt.claims))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", claims.GetUserID())
		})
	}
}

func TestVerifyToken_RejectsSymmetricAlgorithm(t *testing.T) {
	verifier, _ := testVerifier(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Role:             "authenticated",
	}).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifyToken_Garbage(t *testing.T) {
	verifier, _ := testVerifier(t)
	_, err := verifier.VerifyToken("not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
