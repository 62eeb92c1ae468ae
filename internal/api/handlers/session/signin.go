package session

import (
	"net/http"

	"Boardgate/internal/api/handlers"
	"Boardgate/internal/upstream"
)

// SignIn handles POST /api/auth/signin
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req upstream.SignInRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}

	pair, err := h.api.SignIn(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, "signin", err, "Sign in failed.")
		return
	}
	if pair.AccessToken == "" {
		handlers.WriteError(w, http.StatusBadGateway, "Sign in did not return credentials.")
		return
	}

	h.cookies.SetCredentials(w, pair)
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"message": "Signed in."})
}

// SignUp handles POST /api/auth/signup
// The API may register the account without starting a session; cookies are only written
// when it returns credentials.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req upstream.SignUpRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}

	pair, err := h.api.SignUp(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, "signup", err, "Sign up failed.")
		return
	}

	h.cookies.SetCredentials(w, pair)
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "Sign up complete.",
		"signedIn": !pair.Empty(),
	})
}
