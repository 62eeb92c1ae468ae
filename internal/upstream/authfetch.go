package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"Boardgate/internal/core/auth"
	"Boardgate/internal/core/tokens"
	"Boardgate/internal/metrics"
)

// RequestBuilder creates a fresh request for one attempt. It is called once per attempt,
// so request bodies must be rebuilt from buffered data rather than shared readers.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// FetchResult is the outcome of one authenticated call.
//
// Refreshed and ClearCredentials describe what must happen to the caller's stored credentials;
// the caller commits them to its cookie store before replying.
type FetchResult struct {
	// Response is the final upstream response. The caller closes its body.
	Response *http.Response

	// Refreshed is the new pair when a refresh succeeded during the call.
	Refreshed *auth.Pair

	// ClearCredentials is set when the refresh token was rejected or absent.
	ClearCredentials bool

	// RefreshErr is the classified refresh failure, if a refresh was attempted and failed.
	RefreshErr error
}

// Rotated reports whether the credentials changed during this call.
func (r *FetchResult) Rotated() bool {
	return r.Refreshed != nil
}

// Unauthorized returns an error wrapping auth.ErrUpstreamUnauthorized when the final response
// is a 401 the call could not recover from, joined with the refresh failure if there was one.
// It returns nil for any other response.
func (r *FetchResult) Unauthorized() error {
	if r.Response == nil || r.Response.StatusCode != http.StatusUnauthorized {
		return nil
	}
	if r.RefreshErr != nil {
		return fmt.Errorf("%w: %w", auth.ErrUpstreamUnauthorized, r.RefreshErr)
	}
	return auth.ErrUpstreamUnauthorized
}

// FetchOption adjusts a single call to Do.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	noRefresh bool
}

// WithoutRefresh sends the request once with the credential as given. The call never
// refreshes, so a caller retrying after a rotation earlier in the same logical call cannot
// start a second refresh cycle.
func WithoutRefresh() FetchOption {
	return func(o *fetchOptions) {
		o.noRefresh = true
	}
}

// doer is the subset of *Client the fetcher needs.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthFetcher sends bearer-authenticated requests and recovers from a stale credential with
// at most one refresh and at most one retry per call.
type AuthFetcher struct {
	client    doer
	refresher auth.Refresher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewAuthFetcher creates a fetcher that sends through client and refreshes through refresher.
func NewAuthFetcher(client *Client, refresher auth.Refresher, m *metrics.Metrics) *AuthFetcher {
	return &AuthFetcher{
		client:    client,
		refresher: refresher,
		metrics:   m,
		now:       time.Now,
	}
}

// Do performs one authenticated call with creds.
//
// A locally expired access token is refreshed before the first attempt; that refresh is the
// only one this call gets. Otherwise a 401 reply triggers one refresh and one retry.
// On error the result still reports credential changes that must be committed, but never
// carries a Response.
func (f *AuthFetcher) Do(ctx context.Context, creds auth.Pair, build RequestBuilder, opts ...FetchOption) (*FetchResult, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	result := &FetchResult{}
	access := creds.AccessToken
	refreshUsed := o.noRefresh

	if !refreshUsed && (access == "" || tokens.IsExpiredAt(access, f.now())) {
		if creds.RefreshToken == "" {
			result.ClearCredentials = access != ""
			return result, auth.ErrNoRefreshToken
		}

		pair, err := f.refresh(ctx, creds.RefreshToken, "proactive")
		refreshUsed = true
		if err != nil {
			result.RefreshErr = err
			result.ClearCredentials = errors.Is(err, auth.ErrRefreshExpired)
			return result, err
		}
		result.Refreshed = &pair
		access = pair.AccessToken
	}

	resp, err := f.send(ctx, build, access)
	if err != nil {
		return result, err
	}

	if resp.StatusCode != http.StatusUnauthorized || refreshUsed {
		result.Response = resp
		return result, nil
	}

	// The access token looked valid locally but the API rejected it (revoked, rotated elsewhere).
	if creds.RefreshToken == "" {
		result.Response = resp
		result.ClearCredentials = true
		return result, nil
	}

	pair, err := f.refresh(ctx, creds.RefreshToken, "unauthorized")
	if err != nil {
		result.Response = resp
		result.RefreshErr = err
		result.ClearCredentials = errors.Is(err, auth.ErrRefreshExpired)
		return result, nil
	}
	drain(resp)
	result.Refreshed = &pair

	f.metrics.FetchRetry("refreshed")
	resp, err = f.send(ctx, build, pair.AccessToken)
	if err != nil {
		return result, err
	}
	result.Response = resp
	return result, nil
}

func (f *AuthFetcher) refresh(ctx context.Context, refreshToken, reason string) (auth.Pair, error) {
	pair, err := f.refresher.Refresh(ctx, refreshToken)
	f.metrics.Refresh("fetch", auth.Outcome(err))
	if err != nil {
		slog.Info("authenticated fetch: refresh failed", "reason", reason, "outcome", auth.Outcome(err), "error", err)
	}
	return pair, err
}

func (f *AuthFetcher) send(ctx context.Context, build RequestBuilder, accessToken string) (*http.Response, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, err
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

// drain discards the rest of a response so its connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplyBytes))
	_ = resp.Body.Close()
}
