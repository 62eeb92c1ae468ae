package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"Boardgate/internal/api/cookies"
	"Boardgate/internal/api/middleware"
	"Boardgate/internal/core/auth"
	"Boardgate/internal/core/tokens"
	"Boardgate/internal/upstream"
)

const maxFormBytes = 64 << 10

// Fetcher performs one authenticated call. Implemented by *upstream.AuthFetcher.
type Fetcher interface {
	Do(ctx context.Context, creds auth.Pair, build upstream.RequestBuilder, opts ...upstream.FetchOption) (*upstream.FetchResult, error)
}

// SessionAPI is the part of the external API the sign-in and sign-up forms call.
type SessionAPI interface {
	SignIn(ctx context.Context, req upstream.SignInRequest) (auth.Pair, error)
	SignUp(ctx context.Context, req upstream.SignUpRequest) (auth.Pair, error)
	Logout(ctx context.Context, accessToken string) error
}

// Handlers provides HTTP handlers for the web interface.
type Handlers struct {
	templates *Templates
	fetcher   Fetcher
	client    *upstream.Client
	api       SessionAPI
	cookies   *cookies.Store
	flashes   *cookies.Flashes
}

// NewHandlers creates a new Handlers instance with the provided dependencies.
func NewHandlers(templates *Templates, fetcher Fetcher, client *upstream.Client, api SessionAPI, store *cookies.Store, flashes *cookies.Flashes) *Handlers {
	return &Handlers{
		templates: templates,
		fetcher:   fetcher,
		client:    client,
		api:       api,
		cookies:   store,
		flashes:   flashes,
	}
}

// Page holds the fields every template reads.
type Page struct {
	Title   string
	User    *tokens.Claims
	Flashes []string
}

// HomePageData holds data for the board list.
type HomePageData struct {
	Page
	Boards     []Board
	Error      string
	PageNumber int
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

// BoardPageData holds data for a single post.
type BoardPageData struct {
	Page
	Board *Board
	Error string
}

// FormPageData holds data for the sign-in and sign-up forms.
type FormPageData struct {
	Page
	Error    string
	Username string
	Name     string
}

// HomeHandler handles GET / and renders one page of posts.
func (h *Handlers) HomeHandler(w http.ResponseWriter, r *http.Request) {
	pageIndex, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || pageIndex < 0 {
		pageIndex = 0
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(pageIndex))
	q.Set("size", "10")

	var list BoardList
	res := h.load(w, r, "/boards?"+q.Encode(), &list)
	if res.handled {
		return
	}

	data := HomePageData{Page: h.page(w, r, "Boards"), Error: res.message}
	if res.message == "" {
		data.Boards = list.Content
		data.PageNumber = list.Number + 1
		data.TotalPages = list.TotalPages
		data.HasPrev = list.Number > 0
		data.HasNext = list.Number+1 < list.TotalPages
		data.PrevPage = list.Number - 1
		data.NextPage = list.Number + 1
	}

	if err := h.templates.RenderStatus(w, res.status, "home.html", data); err != nil {
		slog.Error("failed to render home page", "error", err)
	}
}

// BoardHandler handles GET /boards/{id}.
func (h *Handlers) BoardHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		http.NotFound(w, r)
		return
	}

	var board Board
	res := h.load(w, r, "/boards/"+id, &board)
	if res.handled {
		return
	}

	data := BoardPageData{Page: h.page(w, r, "Post"), Error: res.message}
	if res.message == "" {
		data.Board = &board
		data.Title = board.Title
	}

	if err := h.templates.RenderStatus(w, res.status, "board.html", data); err != nil {
		slog.Error("failed to render board page", "id", id, "error", err)
	}
}

// LoginPageHandler handles GET /login and GET /signin.
func (h *Handlers) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "login.html", FormPageData{Page: h.page(w, r, "Sign in")})
}

// LoginSubmitHandler handles POST /login.
func (h *Handlers) LoginSubmitHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, r, http.StatusBadRequest, "login.html", FormPageData{Page: h.page(w, r, "Sign in"), Error: "Invalid form submission."})
		return
	}

	req := upstream.SignInRequest{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	pair, err := h.api.SignIn(r.Context(), req)
	if err == nil && pair.Empty() {
		err = errors.New("sign in reply carried no access token")
	}
	if err != nil {
		status, message := formError(err, "Sign in failed.")
		data := FormPageData{Page: h.page(w, r, "Sign in"), Error: message, Username: req.Username}
		h.renderForm(w, r, status, "login.html", data)
		return
	}

	h.cookies.SetCredentials(w, pair)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SignupPageHandler handles GET /signup.
func (h *Handlers) SignupPageHandler(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "signup.html", FormPageData{Page: h.page(w, r, "Sign up")})
}

// SignupSubmitHandler handles POST /signup.
func (h *Handlers) SignupSubmitHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, r, http.StatusBadRequest, "signup.html", FormPageData{Page: h.page(w, r, "Sign up"), Error: "Invalid form submission."})
		return
	}

	req := upstream.SignUpRequest{
		Username:        r.PostFormValue("username"),
		Password:        r.PostFormValue("password"),
		Name:            r.PostFormValue("name"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	pair, err := h.api.SignUp(r.Context(), req)
	if err != nil {
		status, message := formError(err, "Sign up failed.")
		data := FormPageData{Page: h.page(w, r, "Sign up"), Error: message, Username: req.Username, Name: req.Name}
		h.renderForm(w, r, status, "signup.html", data)
		return
	}

	if pair.Empty() {
		h.flashes.Add(w, r, "Sign up complete. Please sign in.")
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
		return
	}
	h.cookies.SetCredentials(w, pair)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler handles POST /logout. Cookies are cleared whatever the API answers.
func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if accessToken := cookies.ReadAccess(r); accessToken != "" {
		if err := h.api.Logout(r.Context(), accessToken); err != nil {
			slog.Info("upstream logout failed, clearing cookies anyway", "error", err)
		}
	}
	h.cookies.ClearCredentials(w)
	h.flashes.Add(w, r, cookies.FlashSignedOut)
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

// loadResult says how a page should continue after load.
type loadResult struct {
	// handled means a redirect was written and the page must stop.
	handled bool
	status  int
	message string
}

// load fetches path with the caller's session and decodes a successful reply into dst.
// Credential changes are committed to the response before anything else is written.
func (h *Handlers) load(w http.ResponseWriter, r *http.Request, path string, dst any) loadResult {
	build := func(ctx context.Context) (*http.Request, error) {
		return h.client.NewRequest(ctx, http.MethodGet, path, nil)
	}

	result, err := h.fetcher.Do(r.Context(), cookies.ReadPair(r), build)
	if err != nil {
		h.commit(w, result)
		if auth.MustReauthenticate(err) {
			return h.toLogin(w, r, cookies.FlashSessionExpired)
		}
		if errors.Is(err, auth.ErrRefreshTransient) {
			return loadResult{status: http.StatusServiceUnavailable, message: cookies.FlashRefreshFailed}
		}
		slog.Error("page data fetch failed", "path", path, "error", err)
		return loadResult{status: http.StatusBadGateway, message: "The board service is unreachable. Please try again later."}
	}

	resp := result.Response
	defer resp.Body.Close()

	if unauthorized := result.Unauthorized(); unauthorized != nil {
		// A transient refresh failure leaves the session in place; redirecting would bounce
		// between this page and the sign-in page while the credential still looks valid.
		if errors.Is(unauthorized, auth.ErrRefreshTransient) {
			return loadResult{status: http.StatusServiceUnavailable, message: cookies.FlashRefreshFailed}
		}
		// Any pair rotated during the call is discarded with the rest of the session.
		h.cookies.ClearCredentials(w)
		return h.toLogin(w, r, cookies.FlashSessionExpired)
	}
	h.commit(w, result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return loadResult{status: resp.StatusCode, message: body.Error}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(dst); err != nil {
		slog.Warn("page data reply was not valid JSON", "path", path, "error", err)
		return loadResult{status: http.StatusBadGateway, message: "The board service returned an unexpected reply."}
	}
	return loadResult{status: http.StatusOK}
}

// commit writes the credential outcome of a fetch to the response cookies.
func (h *Handlers) commit(w http.ResponseWriter, result *upstream.FetchResult) {
	switch {
	case result.Rotated():
		h.cookies.SetCredentials(w, *result.Refreshed)
	case result.ClearCredentials:
		h.cookies.ClearCredentials(w)
	}
}

func (h *Handlers) toLogin(w http.ResponseWriter, r *http.Request, msg string) loadResult {
	h.flashes.Add(w, r, msg)
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
	return loadResult{handled: true}
}

func (h *Handlers) page(w http.ResponseWriter, r *http.Request, title string) Page {
	return Page{
		Title:   title,
		User:    middleware.GetClaims(r),
		Flashes: h.flashes.Pop(w, r),
	}
}

func (h *Handlers) renderForm(w http.ResponseWriter, r *http.Request, status int, name string, data FormPageData) {
	if err := h.templates.RenderStatus(w, status, name, data); err != nil {
		slog.Error("failed to render form", "template", name, "path", r.URL.Path, "error", err)
	}
}

// formError maps a sign-in or sign-up failure onto a status and the message to show.
// API rejections are shown as the API worded them.
func formError(err error, fallback string) (int, string) {
	if apiErr, ok := upstream.AsAPIError(err); ok {
		if apiErr.Message != "" {
			return apiErr.StatusCode, apiErr.Message
		}
		return apiErr.StatusCode, fallback
	}
	slog.Error("session form upstream call failed", "error", err)
	return http.StatusInternalServerError, "A server error occurred."
}
