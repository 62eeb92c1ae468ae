package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Boardgate/internal/api/cookies"
	"Boardgate/internal/api/handlers/boards"
	"Boardgate/internal/api/handlers/session"
	"Boardgate/internal/api/middleware"
	"Boardgate/internal/config"
	"Boardgate/internal/metrics"
	"Boardgate/internal/upstream"
	"Boardgate/internal/web"
)

// NewRouter assembles the full server: the session gate in front of the pages, the
// /api/auth and /api/boards routes, static assets, /metrics and /health.
// Collectors are registered on reg.
func NewRouter(cfg *config.Config, httpClient *http.Client, reg *prometheus.Registry) (http.Handler, error) {
	m := metrics.New(reg)

	client := upstream.NewClient(cfg.APIURL, httpClient, m)
	fetcher := upstream.NewAuthFetcher(client, client, m)

	store := cookies.NewStore(cfg.SecureCookies())
	flashes, err := cookies.NewFlashes(cfg.SessionSecret, store.Secure())
	if err != nil {
		return nil, fmt.Errorf("flash store: %w", err)
	}

	templates, err := web.NewTemplates()
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.NewSessionGate(client, store, flashes, m).Handler)

	RegisterAuthRoutes(r, session.NewHandler(client, store, m), cfg.AllowedOrigins, cfg.AuthRateLimit)
	RegisterBoardRoutes(r, boards.NewHandler(fetcher, client, store), cfg.AllowedOrigins)
	RegisterWebRoutes(r, web.NewHandlers(templates, fetcher, client, client, store, flashes), cfg.StaticDir)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r, nil
}
