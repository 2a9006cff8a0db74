package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/transcenda-leads/cmd/mainconfig"
	"github.com/wolfman30/transcenda-leads/internal/api/router"
	"github.com/wolfman30/transcenda-leads/internal/app/bootstrap"
	appconfig "github.com/wolfman30/transcenda-leads/internal/config"
	"github.com/wolfman30/transcenda-leads/internal/crm"
	"github.com/wolfman30/transcenda-leads/internal/followup"
	httpmiddleware "github.com/wolfman30/transcenda-leads/internal/http/middleware"
	"github.com/wolfman30/transcenda-leads/internal/leads"
	"github.com/wolfman30/transcenda-leads/internal/observability/metrics"
	"github.com/wolfman30/transcenda-leads/internal/voice"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

func main() {
	if err := appconfig.LoadDotEnv(); err != nil {
		logging.Default().Warn("ignoring .env", "error", err)
	}
	cfg := appconfig.Load()

	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting transcenda-leads API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := checkStartupConfig(cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsHandler, leadMetrics := setupMetrics()

	crmClient, err := crm.NewClient(cfg.CRM, crm.WithLogger(logger), crm.WithObserver(leadMetrics))
	if err != nil {
		logger.Error("crm client not configured", "error", err)
		os.Exit(1)
	}

	voiceClient, err := voice.NewClient(cfg.Voice, voice.WithLogger(logger), voice.WithObserver(leadMetrics))
	if err != nil {
		logger.Error("voice client not configured", "error", err)
		os.Exit(1)
	}

	var (
		clients   bootstrap.FollowUpClients
		sesClient *sesv2.Client
	)
	if cfg.FollowUp.JobStore == bootstrap.JobStorePostgres {
		clients.PG = bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if clients.PG != nil {
			defer clients.PG.Close()
		}
	}
	if bootstrap.NeedsAWS(cfg) || cfg.SESFromEmail != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		clients = bootstrap.NewFollowUpClients(awsCfg, clients.PG)
		sesClient = sesv2.NewFromConfig(awsCfg)
	}

	fu, err := bootstrap.BuildFollowUp(cfg, clients, logger)
	if err != nil {
		logger.Error("failed to build follow-up queue", "error", err)
		os.Exit(1)
	}
	notifier := bootstrap.BuildOpsNotifier(cfg, sesClient, logger)
	publisher := followup.NewPublisher(fu.Queue, fu.Jobs, cfg.FollowUp.Delay, logger)

	processor, err := leads.NewProcessor(crmClient, publisher, leads.ProcessorConfig{
		Workflows:     cfg.CRM.Workflows,
		PipelineID:    cfg.CRM.PipelineID,
		PipelineStage: cfg.CRM.PipelineStage,
	}, logger,
		leads.WithNotifier(notifier),
		leads.WithMetrics(leadMetrics),
		leads.WithOpportunities(crmClient),
	)
	if err != nil {
		logger.Error("failed to build lead processor", "error", err)
		os.Exit(1)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	dedupe := bootstrap.BuildIdempotencyStore(cfg, redisClient, logger)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	routerCfg := &router.Config{
		Logger: logger,
		LeadsHandler: leads.NewHandler(processor, logger,
			leads.WithIdempotency(dedupe),
			leads.WithFormSubmitter(crmClient),
			leads.WithErrorDetails(!cfg.IsProduction()),
		),
		VoiceWebhook: voice.NewWebhookHandler(crmClient, cfg.CRM.WebhookURL, logger,
			voice.WithWebhookSecret(cfg.Voice.WebhookSecret),
			voice.WithDedupe(dedupe),
		),
		VoiceWidget: voice.WidgetConfigHandler(voice.WidgetConfig{
			PublicKey:   cfg.Voice.PublicKey,
			AssistantID: cfg.Voice.AssistantID,
		}),
		VoiceActions:       voice.NewActionHandler(voiceClient, logger),
		FollowUpJobs:       followup.NewJobHandler(fu.Jobs, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		RequestTimeout:     cfg.RequestTimeout,
	}

	worker := setupInlineWorker(ctx, cfg, fu, voiceClient, notifier, leadMetrics, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	waitForInlineWorker(worker, logger)

	logger.Info("server stopped")
}

// checkStartupConfig reports the first setting the API cannot serve without.
// High-value leads always schedule a call, so voice credentials are required
// alongside the CRM ones.
func checkStartupConfig(cfg *appconfig.Config) error {
	if err := cfg.CRM.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.CRM.WebhookURL) == "" {
		return &appconfig.MissingError{Key: "GHL_WEBHOOK_URL"}
	}
	return cfg.Voice.Validate()
}

func setupMetrics() (http.Handler, *metrics.LeadMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewLeadMetrics(reg)
}

// setupInlineWorker drains the in-process queue. It returns nil when the
// queue is external or no voice client is available.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, fu *bootstrap.FollowUp, calls voice.CallStarter, alerts followup.FailureNotifier, m *metrics.LeadMetrics, logger *logging.Logger) *followup.Worker {
	if fu == nil || fu.Memory == nil {
		return nil
	}
	if calls == nil {
		logger.Warn("in-process follow-up queue has no voice client; scheduled calls will not be placed")
		return nil
	}
	dispatcher := bootstrap.NewDispatcher(cfg, calls, fu.Jobs, alerts, m, logger)
	worker := followup.NewWorker(dispatcher, fu.Memory, logger, followup.WithWorkerCount(cfg.FollowUp.WorkerCount))
	worker.Start(ctx)
	logger.Info("inline follow-up worker started", "workers", cfg.FollowUp.WorkerCount)
	return worker
}

func waitForInlineWorker(worker *followup.Worker, logger *logging.Logger) {
	if worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline follow-up worker stopped")
	case <-time.After(10 * time.Second):
		logger.Warn("inline follow-up worker did not stop in time")
	}
}
