package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"drivedesk/internal/config"
	"drivedesk/internal/platform/metrics"
	"drivedesk/internal/session"
)

// Dependencies are the collaborators the router wires into its handlers.
type Dependencies struct {
	Config    config.Config
	Logger    *slog.Logger
	Store     session.Store
	Provider  identityProvider
	Tokens    tokenEnsurer
	Resources resourceLister
	Renderer  pageRenderer
	Static    http.Handler
	Metrics   *metrics.Metrics
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger

	var observer requestObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSlogMiddleware(logger, observer))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	if deps.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", deps.Static))
	}

	oauthHandler := NewOAuthHandler(deps.Provider, deps.Store, cfg.Environment, cfg.SilentReauth, logger)
	pageHandler := NewPageHandler(deps.Renderer, logger)
	resourceHandler := NewResourceHandler(deps.Tokens, deps.Resources, deps.Store, deps.Renderer, logger)

	r.Group(func(r chi.Router) {
		r.Use(newSessionMiddleware(deps.Store, logger))

		r.Get("/", pageHandler.Home)
		r.Get("/profile", pageHandler.Profile)

		r.Get("/login", oauthHandler.Login)
		r.Get("/logout", oauthHandler.Logout)
		r.Get("/auth/callback", oauthHandler.Callback)

		r.Get("/drive", resourceHandler.Drive)
		r.Get("/contact", resourceHandler.Contacts)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, deps.Renderer, logger, nil, http.StatusNotFound, "The page you were looking for does not exist.")
	})

	return r
}
