package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries what NewRouter needs beyond the handlers.
type RouterConfig struct {
	AllowedOrigins []string
	Verifier       *JWTVerifier
	// Health reports whether backing stores are reachable. Nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter mounts the wallet API. Webhooks are public and authenticated by
// signature; wallet routes need a bearer token; admin routes need the admin role.
func NewRouter(logger *slog.Logger, cfg RouterConfig, wallet *WalletHandler, admin *AdminHandler, webhooks *WebhookHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(PrometheusMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health(ctx); err != nil {
				logger.WarnContext(r.Context(), "Health check failed", "error", err)
				jsonError(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhooks/payments", webhooks.HandlePaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier, logger))
		wallet.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(logger))
			admin.RegisterRoutes(r)
		})
	})

	return r
}
