// Package router assembles the HTTP surface: public webhook endpoints and the
// token-guarded admin routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/healthgpt/clinic-assistant/internal/http/handlers"
	httpmiddleware "github.com/healthgpt/clinic-assistant/internal/http/middleware"
	"github.com/healthgpt/clinic-assistant/internal/messaging"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger            *logging.Logger
	Webhook           *messaging.WebhookHandler
	AdminSlots        *handlers.AdminSlotsHandler
	AdminSessions     *handlers.AdminSessionsHandler
	AdminReservations *handlers.AdminReservationsHandler
	AdminToken        string
	MetricsHandler    http.Handler
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.Webhook.HealthCheck)
		public.Route("/webhooks/whatsapp", func(wh chi.Router) {
			wh.Get("/", cfg.Webhook.Verify)
			wh.Post("/", cfg.Webhook.Receive)
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Staff endpoints
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminAuth(cfg.AdminToken))
		if cfg.AdminSlots != nil {
			admin.Get("/slots", cfg.AdminSlots.List)
			admin.Post("/slots/generate", cfg.AdminSlots.Generate)
		}
		if cfg.AdminReservations != nil {
			admin.Delete("/slots/{slotID}/reservation", cfg.AdminReservations.Release)
		}
		if cfg.AdminSessions != nil {
			admin.Delete("/sessions/{correspondentID}", cfg.AdminSessions.Reset)
		}
	})

	return r
}
