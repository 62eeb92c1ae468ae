// Package boards relays the /api/boards routes to the external API with the caller's
// session, committing any credential change back to the browser.
package boards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"Boardgate/internal/api/cookies"
	"Boardgate/internal/api/handlers"
	"Boardgate/internal/api/middleware"
	"Boardgate/internal/core/auth"
	"Boardgate/internal/upstream"
)

// maxUploadBytes caps relayed request bodies. Edits may carry multipart form data.
const maxUploadBytes = 10 << 20

const (
	msgAuthExpired  = "Authentication has expired. Please sign in again."
	msgRetryLater   = "Unable to verify your session right now. Please try again."
	msgUnreachable  = "A server error occurred."
	msgUnauthorized = "Authentication is required."
)

// Fetcher performs one authenticated call. Implemented by *upstream.AuthFetcher.
type Fetcher interface {
	Do(ctx context.Context, creds auth.Pair, build upstream.RequestBuilder, opts ...upstream.FetchOption) (*upstream.FetchResult, error)
}

// Handler relays board requests.
type Handler struct {
	fetcher Fetcher
	client  *upstream.Client
	cookies *cookies.Store
}

// NewHandler creates a board proxy handler.
func NewHandler(fetcher Fetcher, client *upstream.Client, store *cookies.Store) *Handler {
	return &Handler{
		fetcher: fetcher,
		client:  client,
		cookies: store,
	}
}

// List handles GET /api/boards?page=&size=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	q.Set("page", queryOr(r, "page", "0"))
	q.Set("size", queryOr(r, "size", "10"))
	h.relay(w, r, http.MethodGet, "/boards?"+q.Encode(), "Failed to load boards.")
}

// Create handles POST /api/boards
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodPost, "/boards", "Failed to create the post.")
}

// Categories handles GET /api/boards/categories
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodGet, "/boards/categories", "Failed to load categories.")
}

// Get handles GET /api/boards/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodGet, "/boards/"+url.PathEscape(chi.URLParam(r, "id")), "Failed to load the post.")
}

// Update handles PATCH /api/boards/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodPatch, "/boards/"+url.PathEscape(chi.URLParam(r, "id")), "Failed to update the post.")
}

// Delete handles DELETE /api/boards/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodDelete, "/boards/"+url.PathEscape(chi.URLParam(r, "id")), "Failed to delete the post.")
}

// relay sends one request through the fetcher and translates the outcome:
// credential changes are committed first, then the upstream reply is copied or mapped.
func (h *Handler) relay(w http.ResponseWriter, r *http.Request, method, path, fallback string) {
	var body []byte
	if r.Body != nil && method != http.MethodGet && method != http.MethodDelete {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
		if err != nil {
			handlers.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
	}
	contentType := r.Header.Get("Content-Type")

	build := func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := h.client.NewRequest(ctx, method, path, reader)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		} else if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}

	var opts []upstream.FetchOption
	if r.Header.Get(handlers.RotatedRetryHeader) != "" {
		// The caller already got one refresh for this call.
		opts = append(opts, upstream.WithoutRefresh())
	}

	result, err := h.fetcher.Do(r.Context(), middleware.GetCredentials(r), build, opts...)
	if result != nil {
		h.commit(w, result)
	}
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	defer result.Response.Body.Close()

	resp := result.Response
	unauthorized := result.Unauthorized()
	if unauthorized != nil {
		slog.Debug("board relay unauthorized", "path", r.URL.Path, "error", unauthorized)
	}
	switch {
	case unauthorized != nil && result.Rotated():
		handlers.WriteRotatedUnauthorized(w, upstreamMessage(resp, msgUnauthorized))
	case unauthorized != nil && result.ClearCredentials:
		handlers.WriteError(w, http.StatusUnauthorized, msgAuthExpired)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		handlers.WriteError(w, resp.StatusCode, upstreamMessage(resp, fallback))
	default:
		copyReply(w, resp)
	}
}

func (h *Handler) commit(w http.ResponseWriter, result *upstream.FetchResult) {
	switch {
	case result.Rotated():
		h.cookies.SetCredentials(w, *result.Refreshed)
	case result.ClearCredentials:
		h.cookies.ClearCredentials(w)
	}
}

func writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case auth.MustReauthenticate(err):
		handlers.WriteError(w, http.StatusUnauthorized, msgAuthExpired)
	case errors.Is(err, auth.ErrRefreshTransient):
		w.Header().Set("Retry-After", "5")
		handlers.WriteError(w, http.StatusServiceUnavailable, msgRetryLater)
	default:
		slog.Error("board relay failed", "path", r.URL.Path, "error", err)
		handlers.WriteError(w, http.StatusBadGateway, msgUnreachable)
	}
}

// upstreamMessage returns the API's error text, or fallback.
func upstreamMessage(resp *http.Response, fallback string) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fallback
	}
	var payload handlers.ErrorBody
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		return fallback
	}
	return payload.Error
}

// copyReply writes a successful upstream reply. An empty body becomes a short JSON ack.
func copyReply(w http.ResponseWriter, resp *http.Response) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		handlers.WriteError(w, http.StatusBadGateway, msgUnreachable)
		return
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		handlers.WriteJSON(w, resp.StatusCode, map[string]string{"message": "OK"})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(raw)
}

func queryOr(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}
