package routes

import (
	"github.com/go-chi/chi/v5"

	"Boardgate/internal/api/handlers/boards"
	"Boardgate/internal/api/middleware"
)

// RegisterBoardRoutes registers the board proxy under /api/boards
// Every route needs at least one credential cookie; recovery from a stale access token
// happens inside the proxy
func RegisterBoardRoutes(r chi.Router, handler *boards.Handler, allowedOrigins []string) {
	r.Route("/api/boards", func(r chi.Router) {
		r.Use(corsMiddleware(allowedOrigins))
		r.Use(middleware.RequireCredentials)

		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Get("/categories", handler.Categories)
		r.Get("/{id}", handler.Get)
		r.Patch("/{id}", handler.Update)
		r.Delete("/{id}", handler.Delete)
	})
}
