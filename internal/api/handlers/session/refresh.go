package session

import (
	"errors"
	"log/slog"
	"net/http"

	"Boardgate/internal/api/cookies"
	"Boardgate/internal/api/handlers"
	"Boardgate/internal/core/auth"
)

// Refresh handles POST /api/auth/refresh
//
// A rejected refresh token clears both cookies and answers 401. Any other failure answers
// 503 and leaves the cookies alone so a later attempt can still succeed.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := cookies.ReadRefresh(r)
	if refreshToken == "" {
		h.metrics.Refresh("route", auth.Outcome(auth.ErrNoRefreshToken))
		handlers.WriteError(w, http.StatusUnauthorized, "No refresh token.")
		return
	}

	pair, err := h.api.Refresh(r.Context(), refreshToken)
	h.metrics.Refresh("route", auth.Outcome(err))
	switch {
	case err == nil:
		h.cookies.SetCredentials(w, pair)
		handlers.WriteJSON(w, http.StatusOK, map[string]string{"message": "Token refreshed."})

	case errors.Is(err, auth.ErrRefreshExpired):
		h.cookies.ClearCredentials(w)
		handlers.WriteError(w, http.StatusUnauthorized, "Refresh token has expired.")

	default:
		slog.Warn("refresh route failed transiently", "error", err)
		w.Header().Set("Retry-After", "5")
		handlers.WriteError(w, http.StatusServiceUnavailable, "Unable to refresh the session right now. Please try again.")
	}
}
