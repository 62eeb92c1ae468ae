package session

import (
	"net/http"

	"Boardgate/internal/api/cookies"
	"Boardgate/internal/api/handlers"
	"Boardgate/internal/core/tokens"
)

// MeResponse describes the signed-in user.
type MeResponse struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Me handles GET /api/auth/me
// It answers from the access token alone; the external API is not called.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	accessToken := cookies.ReadAccess(r)
	if accessToken == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "No access token.")
		return
	}

	claims, err := tokens.Decode(accessToken)
	if err != nil {
		handlers.WriteError(w, http.StatusUnauthorized, "Invalid access token.")
		return
	}
	if claims.ExpiredAt(h.now()) {
		handlers.WriteError(w, http.StatusUnauthorized, "Access token has expired.")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, MeResponse{
		Name:     claims.DisplayName(),
		Username: claims.Account(),
	})
}
