package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"Boardgate/internal/api/cookies"
	"Boardgate/internal/core/auth"
	"Boardgate/internal/core/tokens"
	"Boardgate/internal/metrics"
)

// Page paths the gate routes between.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Gate actions, as recorded in metrics and logs.
const (
	actionPass            = "pass"
	actionRefreshed       = "refreshed"
	actionRedirectLogin   = "redirect_login"
	actionRedirectHome    = "redirect_home"
	actionRenderAuthPage  = "render_auth_page"
	actionRefreshedToHome = "refreshed_redirect_home"
)

type pageKind int

const (
	pagePublic pageKind = iota
	pageProtected
	pageAuthOnly
)

var authOnlyPages = map[string]bool{
	"/login":  true,
	"/signin": true,
	"/signup": true,
}

var skippedPrefixes = []string{"/api/", "/static/"}

var skippedPaths = map[string]bool{
	"/metrics":     true,
	"/health":      true,
	"/favicon.ico": true,
}

var imageExtensions = []string{".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp"}

// SessionGate decides, once per page navigation, whether to serve the page, refresh the
// session first, or redirect.
type SessionGate struct {
	refresher auth.Refresher
	store     *cookies.Store
	flashes   *cookies.Flashes
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewSessionGate creates a gate. flashes and m may be nil.
func NewSessionGate(refresher auth.Refresher, store *cookies.Store, flashes *cookies.Flashes, m *metrics.Metrics) *SessionGate {
	return &SessionGate{
		refresher: refresher,
		store:     store,
		flashes:   flashes,
		metrics:   m,
		now:       time.Now,
	}
}

// Handler wraps next with the gate. It must be mounted ahead of every page handler.
func (g *SessionGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !inScope(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		pair := cookies.ReadPair(r)
		state := auth.Classify(pair.AccessToken, pair.RefreshToken, g.now())

		switch kind := classifyPage(r.URL.Path); {
		case kind == pageProtected:
			g.protected(w, r, next, state, pair)
		case kind == pageAuthOnly && isNavigation(r):
			g.authOnly(w, r, next, state, pair)
		default:
			if state == auth.StateValid {
				r = g.withSession(r, pair.AccessToken)
			}
			next.ServeHTTP(w, r)
		}
	})
}

func (g *SessionGate) protected(w http.ResponseWriter, r *http.Request, next http.Handler, state auth.SessionState, pair auth.Pair) {
	switch state {
	case auth.StateValid:
		g.record(state, actionPass)
		next.ServeHTTP(w, g.withSession(r, pair.AccessToken))

	case auth.StateStaleWithRefresh:
		fresh, err := g.refresh(r, pair.RefreshToken)
		if err == nil {
			g.record(state, actionRefreshed)
			g.store.SetCredentials(w, fresh)
			cookies.AttachToRequest(r, fresh)
			next.ServeHTTP(w, g.withSession(r, fresh.AccessToken))
			return
		}

		if errors.Is(err, auth.ErrRefreshExpired) {
			g.store.ClearCredentials(w)
			g.flash(w, r, cookies.FlashSessionExpired)
		} else {
			// Fail safe: credentials stay, the page is not served.
			g.flash(w, r, cookies.FlashRefreshFailed)
		}
		g.record(state, actionRedirectLogin)
		http.Redirect(w, r, LoginPath, http.StatusTemporaryRedirect)

	default:
		g.record(state, actionRedirectLogin)
		http.Redirect(w, r, LoginPath, http.StatusTemporaryRedirect)
	}
}

// authOnly handles sign-in and sign-up pages. A user who already holds a usable session is
// sent home; when the refresh cannot be completed the page is rendered instead of
// redirecting, so an outage cannot bounce the browser between home and sign-in.
func (g *SessionGate) authOnly(w http.ResponseWriter, r *http.Request, next http.Handler, state auth.SessionState, pair auth.Pair) {
	switch state {
	case auth.StateValid:
		g.record(state, actionRedirectHome)
		http.Redirect(w, r, HomePath, http.StatusTemporaryRedirect)

	case auth.StateStaleWithRefresh:
		fresh, err := g.refresh(r, pair.RefreshToken)
		switch {
		case err == nil:
			g.record(state, actionRefreshedToHome)
			g.store.SetCredentials(w, fresh)
			http.Redirect(w, r, HomePath, http.StatusTemporaryRedirect)
			return
		case errors.Is(err, auth.ErrRefreshExpired):
			g.store.ClearCredentials(w)
			cookies.AttachToRequest(r, auth.Pair{})
		default:
			g.flash(w, r, cookies.FlashRefreshFailed)
		}
		g.record(state, actionRenderAuthPage)
		next.ServeHTTP(w, r)

	default:
		g.record(state, actionRenderAuthPage)
		next.ServeHTTP(w, r)
	}
}

func (g *SessionGate) refresh(r *http.Request, refreshToken string) (auth.Pair, error) {
	fresh, err := g.refresher.Refresh(r.Context(), refreshToken)
	g.metrics.Refresh("gate", auth.Outcome(err))
	if err != nil {
		slog.Info("session gate refresh failed",
			"path", r.URL.Path, "outcome", auth.Outcome(err), "error", err)
	}
	return fresh, err
}

func (g *SessionGate) withSession(r *http.Request, accessToken string) *http.Request {
	claims, err := tokens.Decode(accessToken)
	if err != nil {
		return r
	}
	return r.WithContext(WithClaims(r.Context(), claims))
}

func (g *SessionGate) flash(w http.ResponseWriter, r *http.Request, msg string) {
	g.flashes.Add(w, r, msg)
}

func (g *SessionGate) record(state auth.SessionState, action string) {
	g.metrics.GateDecision(state.String(), action)
	slog.Debug("session gate decision", "state", state.String(), "action", action)
}

// isNavigation is true for GET and HEAD. Form posts to sign-in pages go straight to their handler.
func isNavigation(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// inScope reports whether path is a page navigation the gate evaluates.
func inScope(path string) bool {
	if skippedPaths[path] {
		return false
	}
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	lower := strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	return true
}

func classifyPage(path string) pageKind {
	switch {
	case path == HomePath, path == "/boards", strings.HasPrefix(path, "/boards/"):
		return pageProtected
	case authOnlyPages[strings.TrimSuffix(path, "/")]:
		return pageAuthOnly
	default:
		return pagePublic
	}
}
