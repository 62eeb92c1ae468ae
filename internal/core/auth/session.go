package auth

import (
	"context"
	"time"

	"Boardgate/internal/core/tokens"
)

// Pair is the credential pair issued by the external API.
// The two tokens travel and are stored separately; they are only grouped here so that
// they are always written or cleared together.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Empty reports whether the pair carries no access token.
func (p Pair) Empty() bool {
	return p.AccessToken == ""
}

// Refresher exchanges a refresh token for a new credential pair.
// Implementations make exactly one call to the external API per invocation and
// classify failures as ErrRefreshExpired or ErrRefreshTransient.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Pair, error)
}

// SessionState is the point-in-time reading of a caller's credentials.
type SessionState int

const (
	// StateNoCredential means neither token is present.
	StateNoCredential SessionState = iota
	// StateValid means the access token decodes and is outside the buffer window.
	StateValid
	// StateStaleWithRefresh means the access token is absent or expired and a refresh token is present.
	// Presence says a refresh is worth attempting, not that it will succeed.
	StateStaleWithRefresh
	// StateStaleNoRefresh means the access token is expired and there is no refresh token.
	StateStaleNoRefresh
)

func (s SessionState) String() string {
	switch s {
	case StateNoCredential:
		return "no_credential"
	case StateValid:
		return "valid"
	case StateStaleWithRefresh:
		return "stale_with_refresh"
	case StateStaleNoRefresh:
		return "stale_no_refresh"
	default:
		return "unknown"
	}
}

// Classify maps the raw cookie values onto a SessionState at now.
func Classify(accessToken, refreshToken string, now time.Time) SessionState {
	if accessToken != "" && !tokens.IsExpiredAt(accessToken, now) {
		return StateValid
	}
	if refreshToken != "" {
		return StateStaleWithRefresh
	}
	if accessToken == "" {
		return StateNoCredential
	}
	return StateStaleNoRefresh
}
