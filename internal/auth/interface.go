package auth

// JWTVerifier validates bearer tokens.
type JWTVerifier interface {
	// VerifyToken returns the claims of a valid token, or domain.ErrUnauthorized.
	VerifyToken(tokenString string) (*SupabaseClaims, error)

	// Close releases resources held by the verifier.
	Close() error
}
