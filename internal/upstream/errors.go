package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx reply from the external API.
// Message is the API's own error text, passed through untranslated.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: external API returned %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: external API returned %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Unauthorized reports whether the API rejected the caller's credentials.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// newAPIError builds an APIError from a reply body of the form {"error": "..."} or {"message": "..."}.
func newAPIError(operation string, status int, body []byte) *APIError {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	apiErr := &APIError{Operation: operation, StatusCode: status}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}
	if msg, ok := payload.Error.(string); ok && msg != "" {
		apiErr.Message = msg
	} else {
		apiErr.Message = payload.Message
	}
	return apiErr
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
