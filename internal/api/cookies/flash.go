package cookies

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

// MinSecretLength is the minimum flash cookie signing key length.
const MinSecretLength = 32

const flashSessionName = "boardgate_flash"

// Flash messages shown on the sign-in page.
const (
	FlashSessionExpired = "Your session has expired. Please sign in again."
	FlashRefreshFailed  = "We are temporarily unable to verify your session. Please try again."
	FlashSignedOut      = "You have been signed out."
)

// Flashes carries one-shot messages across a redirect in a signed cookie.
type Flashes struct {
	store *sessions.CookieStore
}

// NewFlashes creates a flash store signed with secret.
func NewFlashes(secret []byte, secure bool) (*Flashes, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Flashes{store: store}, nil
}

// Add queues msg for the next page that calls Pop. A message that is already pending is not
// queued twice. A nil *Flashes drops it.
func (f *Flashes) Add(w http.ResponseWriter, r *http.Request, msg string) {
	if f == nil {
		return
	}
	session, err := f.store.Get(r, flashSessionName)
	if err != nil {
		// A cookie signed with an old key decodes to a fresh session.
		slog.Debug("flash cookie unreadable, starting fresh", "error", err)
	}

	pending := false
	for _, v := range session.Flashes() {
		session.AddFlash(v)
		if v == msg {
			pending = true
		}
	}
	if pending {
		return
	}
	session.AddFlash(msg)
	if err := session.Save(r, w); err != nil {
		slog.Warn("failed to save flash message", "error", err)
	}
}

// Pop returns and clears the queued messages.
func (f *Flashes) Pop(w http.ResponseWriter, r *http.Request) []string {
	if f == nil {
		return nil
	}
	session, err := f.store.Get(r, flashSessionName)
	if err != nil {
		return nil
	}
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		slog.Warn("failed to clear flash messages", "error", err)
	}

	messages := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			messages = append(messages, s)
		}
	}
	return messages
}
