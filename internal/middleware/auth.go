package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/washline/washsync/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// Sessions yields the claims of the signed-in staff user.
// Satisfied by *auth.Session.
type Sessions interface {
	Claims() (*auth.Claims, error)
}

// RequireSession rejects requests while no bearer token is cached, so the
// shell learns about a missing sign-in before any backend call is tried.
func RequireSession(s Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := s.Claims()
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": err.Error(),
					"code":  "auth_token_missing",
				})
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by RequireSession.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
