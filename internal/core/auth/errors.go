// Package auth holds the credential types and failure taxonomy shared by the request gate,
// the authenticated fetch wrappers and the session routes.
package auth

import "errors"

var (
	// ErrRefreshExpired means the external API rejected the refresh token.
	// Terminal: callers clear both credentials and send the user to sign in.
	ErrRefreshExpired = errors.New("refresh token rejected")

	// ErrRefreshTransient means the refresh call failed for a reason unrelated to the token
	// (network error, timeout, 5xx, unusable reply). Credentials must be left in place.
	ErrRefreshTransient = errors.New("refresh temporarily unavailable")

	// ErrUpstreamUnauthorized means a protected call returned 401 and could not be recovered
	// by the single refresh-and-retry cycle.
	ErrUpstreamUnauthorized = errors.New("upstream rejected credentials")

	// ErrNoRefreshToken means a refresh was needed but no refresh token was available.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// MustReauthenticate reports whether err leaves the session unrecoverable without a new sign-in.
func MustReauthenticate(err error) bool {
	return errors.Is(err, ErrRefreshExpired) || errors.Is(err, ErrNoRefreshToken)
}

// Outcome names the result of a refresh for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRefreshExpired):
		return "expired"
	case errors.Is(err, ErrNoRefreshToken):
		return "no_refresh_token"
	default:
		return "transient"
	}
}
