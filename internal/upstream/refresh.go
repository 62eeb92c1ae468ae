package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"Boardgate/internal/core/auth"
)

// Refresh exchanges refreshToken for a new credential pair with exactly one call to
// POST /auth/refresh, bounded by RefreshTimeout.
//
// A 401 reply is ErrRefreshExpired. Every other failure, including a timeout, a 5xx, or a
// 2xx reply without an access token, is ErrRefreshTransient. When the API does not rotate
// the refresh token, the returned pair carries the old one so it is preserved, not cleared.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.Pair, error) {
	if refreshToken == "" {
		return auth.Pair{}, auth.ErrNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(ctx, RefreshTimeout)
	defer cancel()

	payload := map[string]string{"refreshToken": refreshToken}
	status, body, err := c.postJSON(ctx, "refresh", "/auth/refresh", payload, "")
	if err != nil {
		slog.Warn("refresh call failed", "error", err)
		return auth.Pair{}, fmt.Errorf("%w: %w", auth.ErrRefreshTransient, err)
	}

	switch {
	case status == http.StatusUnauthorized:
		return auth.Pair{}, fmt.Errorf("%w: %w", auth.ErrRefreshExpired, newAPIError("refresh", status, body))
	case status < 200 || status >= 300:
		slog.Warn("refresh rejected with non-auth status", "status", status)
		return auth.Pair{}, fmt.Errorf("%w: %w", auth.ErrRefreshTransient, newAPIError("refresh", status, body))
	}

	var pair auth.Pair
	if err := json.Unmarshal(body, &pair); err != nil {
		return auth.Pair{}, fmt.Errorf("%w: decode refresh reply: %w", auth.ErrRefreshTransient, err)
	}
	if pair.AccessToken == "" {
		return auth.Pair{}, fmt.Errorf("%w: refresh reply carried no access token", auth.ErrRefreshTransient)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}
