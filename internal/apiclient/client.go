// Package apiclient is a Go client for the /api surface of a running server. It keeps the
// session in a cookie jar the way a browser would and never reads the token values itself.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"Boardgate/internal/api/cookies"
	"Boardgate/internal/api/handlers"
	"Boardgate/internal/core/auth"
	"Boardgate/internal/metrics"
)

const (
	requestTimeout = 15 * time.Second
	maxErrorBytes  = 64 << 10
)

// RequestIDHeader is shared by a call and its retry.
const RequestIDHeader = "X-Request-ID"

// Client calls the server's /api routes with ambient cookie credentials.
type Client struct {
	base    *url.URL
	http    *http.Client
	metrics *metrics.Metrics
}

// New creates a client for the server at baseURL with an empty cookie jar.
func New(baseURL string, m *metrics.Metrics) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		base:    base,
		http:    &http.Client{Jar: jar, Timeout: requestTimeout},
		metrics: m,
	}, nil
}

// NewRequest builds a request for path on the server. A non-nil body is buffered so the
// request can be replayed once.
func (c *Client) NewRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// SignIn starts a session. Rejections are returned as *StatusError with the server's message.
func (c *Client) SignIn(ctx context.Context, username, password string) error {
	return c.postJSON(ctx, "/api/auth/signin", map[string]string{"username": username, "password": password})
}

// Logout ends the session. The server clears the cookies on every path.
func (c *Client) Logout(ctx context.Context) error {
	err := c.postJSON(ctx, "/api/auth/logout", struct{}{})
	c.ClearCredentials()
	return err
}

// Refresh asks the server to renew the session with the refresh cookie.
// A 401 is auth.ErrRefreshExpired; anything else that is not 200 is auth.ErrRefreshTransient.
func (c *Client) Refresh(ctx context.Context) error {
	req, err := c.NewRequest(ctx, http.MethodPost, "/api/auth/refresh", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", auth.ErrRefreshTransient, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", auth.ErrRefreshTransient, err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", auth.ErrRefreshExpired, readStatusError(resp))
	default:
		return fmt.Errorf("%w: %w", auth.ErrRefreshTransient, readStatusError(resp))
	}
}

// ClearCredentials removes both credential cookies from the jar.
func (c *Client) ClearCredentials() {
	c.http.Jar.SetCookies(c.base, []*http.Cookie{
		{Name: cookies.AccessTokenName, Path: "/", MaxAge: -1},
		{Name: cookies.RefreshTokenName, Path: "/", MaxAge: -1},
	})
}

// HasCredentials reports whether the jar holds an access or refresh cookie for the server.
func (c *Client) HasCredentials() bool {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == cookies.AccessTokenName || ck.Name == cookies.RefreshTokenName {
			return true
		}
	}
	return false
}

// FetchAuthenticated sends req and recovers from one 401.
//
// A 401 carrying the rotation marker is retried once, flagged with handlers.RotatedRetryHeader
// so the server does not refresh again. Any other 401 triggers one
// refresh; a successful refresh is followed by one retry. A rejected refresh clears the
// jar and the original 401 is returned, as it is for a transient refresh failure. req is
// never sent more than twice.
func (c *Client) FetchAuthenticated(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	original, marker, err := bufferUnauthorized(resp)
	if err != nil {
		return nil, err
	}

	if marker {
		c.metrics.FetchRetry("marker")
		slog.Debug("credentials rotated by server, retrying once", "request_id", req.Header.Get(RequestIDHeader))
		return c.retry(req, true)
	}

	refreshErr := c.Refresh(req.Context())
	c.metrics.Refresh("client", auth.Outcome(refreshErr))
	switch {
	case refreshErr == nil:
		c.metrics.FetchRetry("refreshed")
		return c.retry(req, false)
	case errors.Is(refreshErr, auth.ErrRefreshExpired):
		c.ClearCredentials()
	default:
		slog.Info("refresh failed transiently, returning original response", "error", refreshErr)
	}
	return original, nil
}

// retry sends req a second time. After a rotation marker the retry is flagged so the
// server spends no further refresh on it.
func (c *Client) retry(req *http.Request, afterRotation bool) (*http.Response, error) {
	again := req.Clone(req.Context())
	if afterRotation {
		again.Header.Set(handlers.RotatedRetryHeader, "1")
	}
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errors.New("request body cannot be replayed")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		again.Body = body
	}
	return c.http.Do(again)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := c.NewRequest(ctx, http.MethodPost, path, encoded)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return readStatusError(resp)
	}
	return nil
}

// bufferUnauthorized reads a 401 body, reports whether it carries the rotation marker and
// returns the response with its body restored.
func bufferUnauthorized(resp *http.Response) (*http.Response, bool, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	_ = resp.Body.Close()
	if err != nil {
		return nil, false, fmt.Errorf("read 401 body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	var body handlers.ErrorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return resp, false, nil
	}
	return resp, body.TokenRefreshed, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBytes))
	_ = resp.Body.Close()
}
