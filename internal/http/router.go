package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jerzsarto/Authentication/internal/auth"
	"github.com/jerzsarto/Authentication/internal/config"
)

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, authService *auth.Service, providers map[string]auth.Authenticator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSlogMiddleware(logger))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})

	authHandler := NewAuthHandler(authService, cfg.SessionTTL, cfg.IsDevelopment(), logger)
	oauthHandler := NewOAuthHandler(providers, authService, cfg.FrontendURL, cfg.SessionTTL, cfg.IsDevelopment(), logger)

	if len(providers) == 0 {
		logger.Warn("no OAuth providers configured; only local credentials are available")
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Get("/{provider}", oauthHandler.Initiate)
			r.Get("/{provider}/callback", oauthHandler.Callback)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", authHandler.Status)
			r.Delete("/", authHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(newAuthMiddleware(authService, logger))
			r.Get("/me", authHandler.Me)
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}
