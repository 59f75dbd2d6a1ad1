package auth

import "github.com/golang-jwt/jwt/v5"

// SupabaseClaims is the JWT claims structure issued by Supabase Auth.
type SupabaseClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"` // "authenticated" or "anon"
	SessionID   string `json:"session_id"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// GetUserID returns the subject claim.
func (c *SupabaseClaims) GetUserID() string {
	return c.Subject
}
