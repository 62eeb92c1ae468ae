package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// MaxBodyBytes caps JSON request bodies accepted by API handlers.
const MaxBodyBytes = 1 << 20

// RotatedRetryHeader marks the one retry a caller sends after a rotation-marked 401.
// The server must not refresh again while serving it.
const RotatedRetryHeader = "X-Credentials-Rotated"

// ErrorBody is the JSON shape of every API error.
//
// TokenRefreshed is set on a 401 whose credentials were rotated while serving the request.
// The new cookies are already in the response, so the caller retries once without refreshing.
type ErrorBody struct {
	Error          string `json:"error"`
	TokenRefreshed bool   `json:"tokenRefreshed,omitempty"`
}

// WriteError writes a standardized JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorBody{Error: message})
}

// WriteRotatedUnauthorized writes a 401 carrying the rotation marker
func WriteRotatedUnauthorized(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusUnauthorized, ErrorBody{Error: message, TokenRefreshed: true})
}

// WriteJSON writes v as a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// DecodeJSON reads a size-capped JSON body into dst.
// On failure it writes a 400 or 413 and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
