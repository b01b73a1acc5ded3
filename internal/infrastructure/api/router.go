package api

import (
	"net/http"

	"archie-builder-credential-broker/internal/application"
	"archie-builder-credential-broker/internal/infrastructure/metrics"
	"archie-builder-credential-broker/internal/infrastructure/middleware"
	"archie-builder-credential-broker/internal/ports"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig carries everything the HTTP surface is wired to
type RouterConfig struct {
	Credentials *application.CredentialsService
	Tickets     *application.TicketService
	Plans       *application.PlanService
	Install     *application.InstallService
	Dispatcher  *application.WebhookDispatcher

	Sessions  ports.SessionRepository
	AdminAuth ports.AdminAuthenticator
	Webhooks  ports.WebhookAuthenticator
	OAuth     ports.OAuthClient

	APIKey      string
	SwaggerFile string
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Logger      zerolog.Logger
}

// NewRouter builds the broker's HTTP handler
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.InputValidationMiddleware(logger))
	r.Use(middleware.AuditLoggingMiddleware(logger, cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.SwaggerFile != "" {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
		r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			http.ServeFile(w, r, cfg.SwaggerFile)
		})
	}

	// Install flow
	r.Get("/auth", oauthInitHandler(cfg.Install, logger))
	r.Get("/auth/callback", oauthCallbackHandler(cfg.OAuth, cfg.Install, cfg.APIKey, logger))

	r.Post("/webhooks/shopify", webhookHandler(cfg.Webhooks, cfg.Dispatcher, logger))

	r.Route("/credential", func(r chi.Router) {
		// builder-facing, the key or ticket is the credential
		r.Post("/resolve", resolveHandler(cfg.Credentials, logger))
		r.Post("/ticket/exchange", exchangeTicketHandler(cfg.Tickets, logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuthMiddleware(cfg.AdminAuth, logger))
			r.Post("/configure", configureHandler(cfg.Credentials, logger))
			r.Post("/ticket/create", createTicketHandler(cfg.Tickets, logger))
			r.Get("/status", statusHandler(cfg.Plans, logger))
		})
	})

	r.Route("/billing", func(r chi.Router) {
		r.Get("/callback", billingCallbackHandler(cfg.Plans, cfg.Sessions, cfg.APIKey, logger))
		r.With(middleware.AdminAuthMiddleware(cfg.AdminAuth, logger)).
			Post("/upgrade-request", upgradeRequestHandler(cfg.Plans, logger))
	})

	return r
}
