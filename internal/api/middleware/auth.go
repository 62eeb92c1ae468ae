package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"Boardgate/internal/api/cookies"
	"Boardgate/internal/core/auth"
	"Boardgate/internal/core/tokens"
)

// Context keys for storing session information
type contextKey string

const (
	ClaimsKey      contextKey = "session_claims"
	CredentialsKey contextKey = "session_credentials"
)

// RequireCredentials rejects API requests that carry neither credential cookie.
// Requests with at least one credential continue with the pair in context; whether the
// access token is still usable is decided by the fetch wrapper downstream.
func RequireCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pair := cookies.ReadPair(r)
		if pair.AccessToken == "" && pair.RefreshToken == "" {
			slog.Debug("api request without credentials", "method", r.Method, "path", r.URL.Path)
			writeAuthError(w, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), CredentialsKey, pair)
		if claims, err := tokens.Decode(pair.AccessToken); err == nil {
			ctx = context.WithValue(ctx, ClaimsKey, claims)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims extracts the decoded access token claims from the request context
// Returns nil if the gate did not establish a session for this request
func GetClaims(r *http.Request) *tokens.Claims {
	claims, _ := r.Context().Value(ClaimsKey).(*tokens.Claims)
	return claims
}

// GetCredentials returns the credential pair placed in context by RequireCredentials,
// falling back to the request cookies
func GetCredentials(r *http.Request) auth.Pair {
	if pair, ok := r.Context().Value(CredentialsKey).(auth.Pair); ok {
		return pair
	}
	return cookies.ReadPair(r)
}

// WithClaims stores claims in ctx. Used by the gate and by tests.
func WithClaims(ctx context.Context, claims *tokens.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// writeAuthError writes a JSON error response for authentication failures
func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Warn("failed to write auth error response", "error", err)
	}
}
