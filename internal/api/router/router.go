package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/transcenda-leads/internal/followup"
	httpmiddleware "github.com/wolfman30/transcenda-leads/internal/http/middleware"
	"github.com/wolfman30/transcenda-leads/internal/leads"
	"github.com/wolfman30/transcenda-leads/internal/voice"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes unmounted.
type Config struct {
	Logger             *logging.Logger
	LeadsHandler       *leads.Handler
	VoiceWebhook       *voice.WebhookHandler
	VoiceActions       *voice.ActionHandler
	VoiceWidget        http.Handler
	FollowUpJobs       *followup.JobHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	RequestTimeout     time.Duration
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Browser-facing intake routes share the per-client limit.
	r.Group(func(intake chi.Router) {
		if cfg.RateLimiter != nil {
			intake.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		if cfg.LeadsHandler != nil {
			intake.Post("/submit-lead", cfg.LeadsHandler.SubmitLead)
			intake.Post("/ghl-webhook", cfg.LeadsHandler.SubmitFormWebhook)
		}
		if cfg.VoiceActions != nil {
			intake.Post("/vapi", cfg.VoiceActions.Handle)
		}
	})

	if cfg.VoiceWebhook != nil {
		r.Post("/vapi-webhook", cfg.VoiceWebhook.Handle)
	}
	if cfg.VoiceWidget != nil {
		r.Get("/voice/widget-config", cfg.VoiceWidget.ServeHTTP)
	}
	if cfg.FollowUpJobs != nil {
		r.Get("/followups/{jobID}", cfg.FollowUpJobs.GetJob)
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
