package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"Boardgate/internal/api/handlers"
	"Boardgate/internal/api/handlers/session"
	"Boardgate/internal/api/middleware"
)

// RegisterAuthRoutes registers the session routes under /api/auth with dedicated rate limiting
// Sign-in and sign-up share one limiter per client (credential stuffing protection);
// refresh gets its own so a busy tab cannot lock its owner out of signing in
func RegisterAuthRoutes(r chi.Router, handler *session.Handler, allowedOrigins []string, perMinute int) {
	loginLimiter := middleware.NewRateLimiter(perMinute, time.Minute)
	refreshLimiter := middleware.NewRateLimiter(perMinute*2, time.Minute)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(corsMiddleware(allowedOrigins))

		r.With(loginLimiter.Middleware).Post("/signin", handler.SignIn)
		r.With(loginLimiter.Middleware).Post("/signup", handler.SignUp)
		r.With(refreshLimiter.Middleware).Post("/refresh", handler.Refresh)

		// Logout must always be able to clear cookies, so it is not rate limited
		r.Post("/logout", handler.Logout)
		r.Get("/me", handler.Me)
	})
}

// corsMiddleware creates a CORS middleware for the API with specific allowed origins
// Credentials are allowed because the session lives in cookies
func corsMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			handlers.RotatedRetryHeader,
		},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	})
}
