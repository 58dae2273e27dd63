package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpmiddleware "github.com/wolfman30/callcrm-ai-platform/internal/http/middleware"
	"github.com/wolfman30/callcrm-ai-platform/internal/leads"
	"github.com/wolfman30/callcrm-ai-platform/internal/webhook"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

// ReadinessCheck reports whether a backing dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhook        *webhook.Handler
	LeadsHandler   *leads.Handler
	MetricsHandler http.Handler

	// AdminAuthSecret gates /admin, and /status when set.
	AdminAuthSecret string

	// WebhookRateLimit is requests per second per client; zero disables limiting.
	WebhookRateLimit int
	WebhookRateBurst int

	Readiness map[string]ReadinessCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", readyHandler(cfg.Readiness))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Webhook != nil {
		r.With(httpmiddleware.RateLimit(float64(cfg.WebhookRateLimit), cfg.WebhookRateBurst)).
			Post("/webhook", cfg.Webhook.HandleWebhook)
		r.With(httpmiddleware.OptionalAdminJWT(cfg.AdminAuthSecret)).
			Get("/status", cfg.Webhook.HandleStatus)
	}

	if cfg.AdminAuthSecret != "" && cfg.LeadsHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/orgs/{orgID}", func(org chi.Router) {
				org.Get("/leads", cfg.LeadsHandler.ListLeads)
				org.Get("/leads/{leadID}", cfg.LeadsHandler.GetLead)
			})
		})
	}

	return r
}

func readyHandler(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		writeJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": results})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
