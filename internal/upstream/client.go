// Package upstream talks to the external board API: the session endpoints, the refresh
// operation, and bearer-authenticated resource calls with single refresh-and-retry recovery.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Boardgate/internal/core/auth"
	"Boardgate/internal/metrics"
)

// maxReplyBytes caps how much of an external API reply is buffered.
const maxReplyBytes = 4 << 20

// SignInRequest is the body of POST /auth/signin.
type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Client calls the external API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Ensure Client can serve as the refresh operation.
var _ auth.Refresher = (*Client)(nil)

// NewClient creates a client for the API rooted at baseURL.
// A nil httpClient uses NewHTTPClient.
func NewClient(baseURL string, httpClient *http.Client, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		metrics:    m,
	}
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SignIn exchanges a username and password for a credential pair.
// A rejected sign-in is returned as *APIError carrying the API's status and message.
func (c *Client) SignIn(ctx context.Context, req SignInRequest) (auth.Pair, error) {
	return c.credentialCall(ctx, "signin", "/auth/signin", req)
}

// SignUp registers an account. The API may or may not return credentials;
// an empty pair with a nil error means the account was created without a session.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (auth.Pair, error) {
	return c.credentialCall(ctx, "signup", "/auth/signup", req)
}

// Logout tells the API to invalidate the session behind accessToken.
// The call is bounded by LogoutTimeout; callers treat any error as non-fatal.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, LogoutTimeout)
	defer cancel()

	status, body, err := c.postJSON(ctx, "logout", "/auth/logout", struct{}{}, accessToken)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if status < 200 || status >= 300 {
		return newAPIError("logout", status, body)
	}
	return nil
}

// NewRequest builds a request for path relative to the API root.
// path may carry a query string.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Do sends req with the client's transport and records its latency.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveUpstream(operationName(req), statusClass(resp, err), time.Since(start))
	return resp, err
}

func (c *Client) credentialCall(ctx context.Context, operation, path string, payload any) (auth.Pair, error) {
	status, body, err := c.postJSON(ctx, operation, path, payload, "")
	if err != nil {
		return auth.Pair{}, fmt.Errorf("%s: %w", operation, err)
	}
	if status < 200 || status >= 300 {
		return auth.Pair{}, newAPIError(operation, status, body)
	}

	var pair auth.Pair
	if len(bytes.TrimSpace(body)) == 0 {
		return pair, nil
	}
	if err := json.Unmarshal(body, &pair); err != nil {
		return auth.Pair{}, fmt.Errorf("%s: decode reply: %w", operation, err)
	}
	return pair, nil
}

// postJSON sends payload as JSON and returns the status and buffered body.
func (c *Client) postJSON(ctx context.Context, operation, path string, payload any, bearer string) (int, []byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := c.NewRequest(ctx, http.MethodPost, path, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveUpstream(operation, statusClass(resp, err), time.Since(start))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read reply: %w", err)
	}
	return resp.StatusCode, body, nil
}

func statusClass(resp *http.Response, err error) string {
	if err != nil || resp == nil {
		return "error"
	}
	return strconv.Itoa(resp.StatusCode/100) + "xx"
}

// operationName labels proxied resource calls by their first path segment.
func operationName(req *http.Request) string {
	segment := strings.TrimPrefix(req.URL.Path, "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	if segment == "" {
		segment = "root"
	}
	return strings.ToLower(req.Method) + "_" + segment
}
