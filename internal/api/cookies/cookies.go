// Package cookies is the only writer of the credential cookies. Both values are always
// written together and cleared together.
package cookies

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"Boardgate/internal/core/auth"
)

// Cookie names and lifetimes (seconds).
const (
	AccessTokenName  = "accessToken"
	RefreshTokenName = "refreshToken"

	AccessTokenMaxAge  = 24 * 60 * 60
	RefreshTokenMaxAge = 7 * 24 * 60 * 60
)

// Store writes credential cookies with the deployment's transport-security setting.
type Store struct {
	secure bool
}

// NewStore creates a Store. secure is false only for local development over plain HTTP.
func NewStore(secure bool) *Store {
	return &Store{secure: secure}
}

// Secure reports whether cookies are marked Secure.
func (s *Store) Secure() bool {
	return s.secure
}

func (s *Store) options(maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetCredentials writes both credential cookies.
// A pair without an access token is ignored. A pair without a refresh token only happens
// when the API issued an access token alone; the existing refresh cookie is then left as is.
func (s *Store) SetCredentials(w http.ResponseWriter, pair auth.Pair) {
	if pair.AccessToken == "" {
		return
	}
	http.SetCookie(w, sessions.NewCookie(AccessTokenName, pair.AccessToken, s.options(AccessTokenMaxAge)))
	if pair.RefreshToken != "" {
		http.SetCookie(w, sessions.NewCookie(RefreshTokenName, pair.RefreshToken, s.options(RefreshTokenMaxAge)))
	}
}

// ClearCredentials expires both credential cookies.
func (s *Store) ClearCredentials(w http.ResponseWriter) {
	http.SetCookie(w, sessions.NewCookie(AccessTokenName, "", s.options(-1)))
	http.SetCookie(w, sessions.NewCookie(RefreshTokenName, "", s.options(-1)))
}

// ReadAccess returns the access token cookie, or "" when absent.
func ReadAccess(r *http.Request) string {
	return read(r, AccessTokenName)
}

// ReadRefresh returns the refresh token cookie, or "" when absent.
func ReadRefresh(r *http.Request) string {
	return read(r, RefreshTokenName)
}

// ReadPair returns both credential cookies.
func ReadPair(r *http.Request) auth.Pair {
	return auth.Pair{AccessToken: ReadAccess(r), RefreshToken: ReadRefresh(r)}
}

func read(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// AttachToRequest rewrites r's Cookie header so handlers further down the chain read pair
// instead of the credentials the browser sent. An empty pair removes both credentials.
// Other cookies are kept in their original order.
func AttachToRequest(r *http.Request, pair auth.Pair) {
	refresh := pair.RefreshToken
	if refresh == "" && pair.AccessToken != "" {
		refresh = ReadRefresh(r)
	}

	var parts []string
	for _, c := range r.Cookies() {
		if c.Name == AccessTokenName || c.Name == RefreshTokenName {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	if pair.AccessToken != "" {
		parts = append(parts, AccessTokenName+"="+pair.AccessToken)
		if refresh != "" {
			parts = append(parts, RefreshTokenName+"="+refresh)
		}
	}

	if len(parts) == 0 {
		r.Header.Del("Cookie")
		return
	}
	r.Header.Set("Cookie", strings.Join(parts, "; "))
}
