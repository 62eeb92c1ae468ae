// Package session serves the routes that create, renew and end a browser session:
// sign-in, sign-up, refresh, logout and the current-user lookup.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"Boardgate/internal/api/cookies"
	"Boardgate/internal/api/handlers"
	"Boardgate/internal/core/auth"
	"Boardgate/internal/metrics"
	"Boardgate/internal/upstream"
)

// API is the part of the external API the session routes call.
type API interface {
	auth.Refresher
	SignIn(ctx context.Context, req upstream.SignInRequest) (auth.Pair, error)
	SignUp(ctx context.Context, req upstream.SignUpRequest) (auth.Pair, error)
	Logout(ctx context.Context, accessToken string) error
}

// Handler serves the session routes.
type Handler struct {
	api     API
	cookies *cookies.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewHandler creates a session handler.
func NewHandler(api API, store *cookies.Store, m *metrics.Metrics) *Handler {
	return &Handler{
		api:     api,
		cookies: store,
		metrics: m,
		now:     time.Now,
	}
}

// writeUpstreamError relays an external API rejection with its status and message unchanged.
// Anything else is a 500 with a generic message.
func writeUpstreamError(w http.ResponseWriter, operation string, err error, fallback string) {
	if apiErr, ok := upstream.AsAPIError(err); ok {
		message := apiErr.Message
		if message == "" {
			message = fallback
		}
		handlers.WriteError(w, apiErr.StatusCode, message)
		return
	}

	slog.Error("session route upstream call failed", "operation", operation, "error", err)
	handlers.WriteError(w, http.StatusInternalServerError, "A server error occurred.")
}
