package middleware

import (
	"net/http"
	"strings"

	"assetdrop/internal/auth"
	"assetdrop/internal/httputil"
)

// publicPaths skip authentication.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// publicPrefix serves locally stored objects, whose URLs end up in records.
const publicPrefix = "/objects/"

// AuthMiddleware verifies the bearer token and stores the user id in the request context.
func AuthMiddleware(verifier auth.JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || strings.HasPrefix(r.URL.Path, publicPrefix) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, claims.GetUserID()))
		})
	}
}
