package routes

import (
	"github.com/go-chi/chi/v5"

	"Boardgate/internal/web"
)

// RegisterWebRoutes registers the server-rendered pages and static assets.
// The session gate must already be installed on r.
func RegisterWebRoutes(r chi.Router, handlers *web.Handlers, staticDir string) {
	r.Get("/", handlers.HomeHandler)
	r.Get("/boards/{id}", handlers.BoardHandler)

	r.Get("/login", handlers.LoginPageHandler)
	r.Get("/signin", handlers.LoginPageHandler)
	r.Post("/login", handlers.LoginSubmitHandler)
	r.Post("/signin", handlers.LoginSubmitHandler)
	r.Get("/signup", handlers.SignupPageHandler)
	r.Post("/signup", handlers.SignupSubmitHandler)
	r.Post("/logout", handlers.LogoutHandler)

	r.Handle("/static/*", web.StaticFileServer(staticDir))
}
