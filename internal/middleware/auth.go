// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/miplaza/backend/internal/auth"
)

// bearerPrefix is the expected Authorization scheme.
const bearerPrefix = "Bearer "

// tokenFromRequest extracts the bearer token, or "" when absent.
func tokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	ctx := SetErrorCode(r.Context(), "auth_failed")
	UpdateResponseContext(w, ctx)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": "auth_failed", "message": message},
	})
}

// resolveUserID validates an access token and returns the caller's id.
func resolveUserID(jwtService *auth.JWTService, token string) (int64, bool) {
	claims, err := jwtService.ValidateToken(token)
	if err != nil || claims.Type != auth.TokenTypeAccess {
		return 0, false
	}
	userID, err := claims.UserID()
	if err != nil {
		return 0, false
	}
	return userID, true
}

// RequireAuth rejects requests without a valid access token and stores the
// caller's user id in the context.
func RequireAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				writeAuthError(w, r, "Missing or malformed Authorization header")
				return
			}

			userID, ok := resolveUserID(jwtService, token)
			if !ok {
				writeAuthError(w, r, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth stores the caller's user id when a valid token is present and
// lets anonymous requests through untouched. Invalid tokens are treated as
// anonymous rather than rejected.
func OptionalAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := tokenFromRequest(r); token != "" {
				if userID, ok := resolveUserID(jwtService, token); ok {
					r = r.WithContext(SetUserID(r.Context(), userID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
