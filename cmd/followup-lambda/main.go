package main

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
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

const receiveCountAttr = "ApproximateReceiveCount"

func main() {
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

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

	// The event source mapping owns the queue; only the job store is built here.
	jobs, err := bootstrap.BuildJobStore(cfg, bootstrap.NewFollowUpClients(awsConfig, bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)), logger)
	if err != nil {
		logger.Error("failed to build follow-up job store", "error", err)
		os.Exit(1)
	}

	notifier := bootstrap.BuildOpsNotifier(cfg, sesv2.NewFromConfig(awsConfig), logger)
	dispatcher := bootstrap.NewDispatcher(cfg, voiceClient, jobs, notifier, leadMetrics, logger)

	lambda.Start(func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		return handle(ctx, dispatcher, evt, logger), nil
	})
}

// handle dispatches every record and reports the ones that should be
// redelivered as partial batch failures.
func handle(ctx context.Context, handler followup.MessageHandler, evt events.SQSEvent, logger *logging.Logger) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, record := range evt.Records {
		receiveCount := followup.ParseReceiveCount(record.Attributes[receiveCountAttr])
		err := handler.Handle(ctx, record.Body, receiveCount)
		if err == nil {
			continue
		}
		if errors.Is(err, followup.ErrRetry) {
			logger.Info("follow-up job left for redelivery", "msg_id", record.MessageId, "receive_count", receiveCount)
		} else {
			logger.Error("follow-up job failed", "error", err, "msg_id", record.MessageId)
		}
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return resp
}
