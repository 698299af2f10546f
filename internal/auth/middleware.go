package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ClaimsKey is the context key for session claims.
const ClaimsKey contextKey = "claims"

// ErrorResponse is the standardized error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ClaimsFromContext extracts the session claims from the request context.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// UsernameFromContext extracts the session username, empty when absent.
func UsernameFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Username
	}
	return ""
}

// AuthMiddleware validates the Bearer token and stores the claims on the
// request context.
func AuthMiddleware(manager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, "missing authorization header", "AUTH_MISSING")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeAuthError(w, "authorization header must be a Bearer token", "AUTH_MALFORMED")
				return
			}

			claims, err := manager.ValidateToken(parts[1])
			if err != nil {
				writeAuthError(w, "invalid or expired token", "AUTH_INVALID")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}
