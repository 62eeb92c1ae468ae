package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Boardgate/internal/core/auth"
)

// stubRefresher returns a fixed outcome and counts calls.
type stubRefresher struct {
	pair  auth.Pair
	err   error
	calls int
}

func (s *stubRefresher) Refresh(_ context.Context, refreshToken string) (auth.Pair, error) {
	s.calls++
	if refreshToken == "" {
		return auth.Pair{}, auth.ErrNoRefreshToken
	}
	return s.pair, s.err
}

// boardsRequest builds a POST so body replay across attempts is exercised.
func boardsRequest(client *Client, body []byte) RequestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := client.NewRequest(ctx, http.MethodPost, "/boards", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
}

// acceptOnly replies 200 only for the given bearer token and echoes the request body.
func acceptOnly(t *testing.T, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func TestAuthFetcher_ValidTokenPassesThrough(t *testing.T) {
	api := newFakeAPI(t)
	valid := testToken(t, "alice", time.Hour)
	api.handle("/boards", acceptOnly(t, valid))

	client := NewClient(api.URL, nil, nil)
	refresher := &stubRefresher{}
	fetcher := NewAuthFetcher(client, refresher, nil)

	result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: valid, RefreshToken: "r"}, boardsRequest(client, []byte(`{"x":1}`)))
	require.NoError(t, err)
	defer result.Response.Body.Close()

	assert.Equal(t, http.StatusOK, result.Response.StatusCode)
	assert.False(t, result.Rotated())
	assert.False(t, result.ClearCredentials)
	assert.Zero(t, refresher.calls)
	assert.Equal(t, 1, api.count("/boards"))
}

// A token that looks valid locally but was revoked upstream gets exactly one refresh and one retry.
func TestAuthFetcher_RevokedTokenRefreshesOnceAndRetriesOnce(t *testing.T) {
	api := newFakeAPI(t)
	revoked := testToken(t, "alice", time.Hour)
	fresh := testToken(t, "alice", 2*time.Hour)
	api.handle("/boards", acceptOnly(t, fresh))

	client := NewClient(api.URL, nil, nil)
	refresher := &stubRefresher{pair: auth.Pair{AccessToken: fresh, RefreshToken: "r2"}}
	fetcher := NewAuthFetcher(client, refresher, nil)

	result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: revoked, RefreshToken: "r1"}, boardsRequest(client, []byte(`{"title":"hi"}`)))
	require.NoError(t, err)
	defer result.Response.Body.Close()

	assert.Equal(t, http.StatusOK, result.Response.StatusCode)
	body, _ := io.ReadAll(result.Response.Body)
	assert.JSONEq(t, `{"title":"hi"}`, string(body), "body must be replayed on retry")
	require.True(t, result.Rotated())
	assert.Equal(t, "r2", result.Refreshed.RefreshToken)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 2, api.count("/boards"))
}

func TestAuthFetcher_NeverRetriesTwice(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("/boards", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "nope"})
	})

	client := NewClient(api.URL, nil, nil)
	refresher := &stubRefresher{pair: auth.Pair{AccessToken: testToken(t, "alice", 2*time.Hour), RefreshToken: "r2"}}
	fetcher := NewAuthFetcher(client, refresher, nil)

	result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: testToken(t, "alice", time.Hour), RefreshToken: "r1"}, boardsRequest(client, nil))
	require.NoError(t, err)
	defer result.Response.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, result.Response.StatusCode)
	assert.True(t, result.Rotated(), "new credentials still need committing")
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 2, api.count("/boards"))
}

func TestAuthFetcher_ExpiredAccessRefreshesBeforeFirstAttempt(t *testing.T) {
	api := newFakeAPI(t)
	fresh := testToken(t, "alice", 2*time.Hour)
	api.handle("/boards", acceptOnly(t, fresh))

	client := NewClient(api.URL, nil, nil)
	refresher := &stubRefresher{pair: auth.Pair{AccessToken: fresh, RefreshToken: "r1"}}
	fetcher := NewAuthFetcher(client, refresher, nil)

	stale := testToken(t, "alice", time.Minute)
	result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: stale, RefreshToken: "r1"}, boardsRequest(client, nil))
	require.NoError(t, err)
	defer result.Response.Body.Close()

	assert.Equal(t, http.StatusOK, result.Response.StatusCode)
	assert.True(t, result.Rotated())
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 1, api.count("/boards"))
}

func TestAuthFetcher_ProactiveRefreshThen401DoesNotRefreshAgain(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("/boards", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := NewClient(api.URL, nil, nil)
	refresher := &stubRefresher{pair: auth.Pair{AccessToken: testToken(t, "alice", 2*time.Hour), RefreshToken: "r2"}}
	fetcher := NewAuthFetcher(client, refresher, nil)

	result, err := fetcher.Do(context.Background(), auth.Pair{RefreshToken: "r1"}, boardsRequest(client, nil))
	require.NoError(t, err)
	defer result.Response.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, result.Response.StatusCode)
	assert.True(t, result.Rotated())
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 1, api.count("/boards"))
}

func TestAuthFetcher_RefreshExpiredAfter401(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("/boards", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "revoked"})
	})

	client := NewClient(api.URL, nil, nil)
	refresher := &stubRefresher{err: fmt.Errorf("refresh: %w", auth.ErrRefreshExpired)}
	fetcher := NewAuthFetcher(client, refresher, nil)

	result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: testToken(t, "alice", time.Hour), RefreshToken: "r1"}, boardsRequest(client, nil))
	require.NoError(t, err)
	defer result.Response.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, result.Response.StatusCode, "original 401 is propagated")
	body, _ := io.ReadAll(result.Response.Body)
	assert.Contains(t, string(body), "revoked")
	assert.True(t, result.ClearCredentials)
	assert.False(t, result.Rotated())
	assert.ErrorIs(t, result.RefreshErr, auth.ErrRefreshExpired)
	assert.Equal(t, 1, api.count("/boards"))
}

func TestAuthFetcher_RefreshTransientAfter401KeepsCredentials(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("/boards", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := NewClient(api.URL, nil, nil)
	refresher := &stubRefresher{err: fmt.Errorf("refresh: %w", auth.ErrRefreshTransient)}
	fetcher := NewAuthFetcher(client, refresher, nil)

	result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: testToken(t, "alice", time.Hour), RefreshToken: "r1"}, boardsRequest(client, nil))
	require.NoError(t, err)
	defer result.Response.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, result.Response.StatusCode)
	assert.False(t, result.ClearCredentials)
	assert.ErrorIs(t, result.RefreshErr, auth.ErrRefreshTransient)
}

func TestAuthFetcher_ProactiveRefreshFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantClear bool
	}{
		{"expired clears", auth.ErrRefreshExpired, true},
		{"transient keeps", auth.ErrRefreshTransient, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			client := NewClient(api.URL, nil, nil)
			fetcher := NewAuthFetcher(client, &stubRefresher{err: tt.err}, nil)

			result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: testToken(t, "alice", time.Minute), RefreshToken: "r1"}, boardsRequest(client, nil))
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, result.Response)
			assert.Equal(t, tt.wantClear, result.ClearCredentials)
			assert.Zero(t, api.count("/boards"), "no resource call without a usable credential")
		})
	}
}

func TestAuthFetcher_NoRefreshToken(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("/boards", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client := NewClient(api.URL, nil, nil)
	refresher := &stubRefresher{}
	fetcher := NewAuthFetcher(client, refresher, nil)

	t.Run("stale access", func(t *testing.T) {
		result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: testToken(t, "alice", time.Minute)}, boardsRequest(client, nil))
		assert.ErrorIs(t, err, auth.ErrNoRefreshToken)
		assert.True(t, result.ClearCredentials)
	})

	t.Run("401 on valid-looking access", func(t *testing.T) {
		result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: testToken(t, "alice", time.Hour)}, boardsRequest(client, nil))
		require.NoError(t, err)
		defer result.Response.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, result.Response.StatusCode)
		assert.True(t, result.ClearCredentials)
	})

	assert.Zero(t, refresher.calls)
}

func TestAuthFetcher_WithoutRefreshSendsOnce(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("/boards", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "revoked"})
	})
	client := NewClient(api.URL, nil, nil)
	refresher := &stubRefresher{pair: auth.Pair{AccessToken: testToken(t, "alice", 2*time.Hour), RefreshToken: "r3"}}
	fetcher := NewAuthFetcher(client, refresher, nil)

	tests := []struct {
		name   string
		access string
	}{
		{"valid-looking access", testToken(t, "alice", time.Hour)},
		{"locally expired access", testToken(t, "alice", time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := api.count("/boards")
			result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: tt.access, RefreshToken: "r2"}, boardsRequest(client, nil), WithoutRefresh())
			require.NoError(t, err)
			defer result.Response.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, result.Response.StatusCode)
			assert.False(t, result.Rotated())
			assert.False(t, result.ClearCredentials)
			assert.ErrorIs(t, result.Unauthorized(), auth.ErrUpstreamUnauthorized)
			assert.Equal(t, before+1, api.count("/boards"))
		})
	}
	assert.Zero(t, refresher.calls)
}

func TestFetchResult_Unauthorized(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("/boards", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client := NewClient(api.URL, nil, nil)
	access := testToken(t, "alice", time.Hour)

	t.Run("transient refresh is joined", func(t *testing.T) {
		fetcher := NewAuthFetcher(client, &stubRefresher{err: auth.ErrRefreshTransient}, nil)
		result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: access, RefreshToken: "r1"}, boardsRequest(client, nil))
		require.NoError(t, err)
		defer result.Response.Body.Close()

		unauthorized := result.Unauthorized()
		assert.ErrorIs(t, unauthorized, auth.ErrUpstreamUnauthorized)
		assert.ErrorIs(t, unauthorized, auth.ErrRefreshTransient)
	})

	t.Run("success is nil", func(t *testing.T) {
		ok := newFakeAPI(t)
		ok.handle("/boards", acceptOnly(t, access))
		okClient := NewClient(ok.URL, nil, nil)
		fetcher := NewAuthFetcher(okClient, &stubRefresher{}, nil)
		result, err := fetcher.Do(context.Background(), auth.Pair{AccessToken: access}, boardsRequest(okClient, nil))
		require.NoError(t, err)
		defer result.Response.Body.Close()
		assert.NoError(t, result.Unauthorized())
	})
}
