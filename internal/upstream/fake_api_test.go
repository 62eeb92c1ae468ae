package upstream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// fakeAPI is a stand-in for the external board API that counts calls per path.
type fakeAPI struct {
	*httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]http.HandlerFunc
	lastAuth map[string]string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{
		calls:    make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
		lastAuth: make(map[string]string),
	}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.calls[r.URL.Path]++
		api.lastAuth[r.URL.Path] = r.Header.Get("Authorization")
		h := api.handlers[r.URL.Path]
		api.mu.Unlock()

		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(api.Close)
	return api
}

func (a *fakeAPI) handle(path string, h http.HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[path] = h
}

func (a *fakeAPI) count(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[path]
}

func (a *fakeAPI) authHeader(path string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAuth[path]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// testToken mints an unsigned token for sub expiring ttl from now.
func testToken(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":      sub,
		"username": sub + "@example.com",
		"exp":      time.Now().Add(ttl).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return s + "sig"
}
