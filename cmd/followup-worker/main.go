package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/transcenda-leads/cmd/mainconfig"
	"github.com/wolfman30/transcenda-leads/internal/app/bootstrap"
	appconfig "github.com/wolfman30/transcenda-leads/internal/config"
	"github.com/wolfman30/transcenda-leads/internal/followup"
	"github.com/wolfman30/transcenda-leads/internal/observability/metrics"
	"github.com/wolfman30/transcenda-leads/internal/voice"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

func main() {
	_ = appconfig.LoadDotEnv()
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	if cfg.FollowUp.UseMemoryQueue {
		logger.Error("USE_MEMORY_QUEUE is set; the API runs follow-ups in-process and this worker has nothing to consume")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	leadMetrics := metrics.NewLeadMetrics(prometheus.DefaultRegisterer)

	voiceClient, err := voice.NewClient(cfg.Voice, voice.WithLogger(logger), voice.WithObserver(leadMetrics))
	if err != nil {
		logger.Error("voice client not configured", "error", err)
		os.Exit(1)
	}

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	fu, err := bootstrap.BuildFollowUp(cfg, bootstrap.NewFollowUpClients(awsConfig, pool), logger)
	if err != nil {
		logger.Error("failed to build follow-up queue", "error", err)
		os.Exit(1)
	}

	notifier := bootstrap.BuildOpsNotifier(cfg, sesv2.NewFromConfig(awsConfig), logger)
	dispatcher := bootstrap.NewDispatcher(cfg, voiceClient, fu.Jobs, notifier, leadMetrics, logger)
	worker := followup.NewWorker(dispatcher, fu.Queue, logger,
		followup.WithWorkerCount(cfg.FollowUp.WorkerCount),
		followup.WithReceiveWaitSeconds(20),
		followup.WithReceiveBatchSize(10),
	)

	worker.Start(ctx)
	logger.Info("follow-up worker started", "workers", cfg.FollowUp.WorkerCount, "queue_url", cfg.FollowUp.QueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down follow-up worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("follow-up worker stopped")
	case <-doneCtx.Done():
		logger.Error("follow-up worker shutdown timed out", "error", doneCtx.Err())
	}
}
