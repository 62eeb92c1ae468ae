package session

import (
	"log/slog"
	"net/http"

	"Boardgate/internal/api/cookies"
	"Boardgate/internal/api/handlers"
)

// Logout handles POST /api/auth/logout
// The API is told about the logout when an access token is present; its answer does not
// matter. Both cookies are cleared on every path.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if accessToken := cookies.ReadAccess(r); accessToken != "" {
		if err := h.api.Logout(r.Context(), accessToken); err != nil {
			slog.Info("upstream logout failed, clearing cookies anyway", "error", err)
		}
	}

	h.cookies.ClearCredentials(w)
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"message": "Signed out."})
}
