package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/transcenda-leads/internal/config"
	"github.com/wolfman30/transcenda-leads/internal/followup"
	"github.com/wolfman30/transcenda-leads/internal/observability/metrics"
	"github.com/wolfman30/transcenda-leads/internal/voice"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

// Job store backends selectable with FOLLOWUP_JOB_STORE.
const (
	JobStoreDynamo   = "dynamodb"
	JobStorePostgres = "postgres"
	JobStoreMemory   = "memory"
)

// FollowUpClients are the optional backends a follow-up runtime can use.
// Only the clients the configuration selects need to be set.
type FollowUpClients struct {
	SQS    *sqs.Client
	Dynamo *dynamodb.Client
	PG     *pgxpool.Pool
}

// NewFollowUpClients builds SQS and DynamoDB clients from one AWS config.
func NewFollowUpClients(awsCfg aws.Config, pg *pgxpool.Pool) FollowUpClients {
	return FollowUpClients{
		SQS:    sqs.NewFromConfig(awsCfg),
		Dynamo: dynamodb.NewFromConfig(awsCfg),
		PG:     pg,
	}
}

// FollowUp is the queue and job store pair shared by publisher and consumers.
type FollowUp struct {
	Queue followup.Queue
	Jobs  followup.JobStore
	// Memory is set when the queue is in-process and must be drained by an
	// inline worker.
	Memory *followup.MemoryQueue
}

// NeedsAWS reports whether cfg selects any AWS-backed follow-up component.
func NeedsAWS(cfg *appconfig.Config) bool {
	if cfg == nil {
		return false
	}
	return !cfg.FollowUp.UseMemoryQueue || jobStoreKind(cfg) == JobStoreDynamo
}

// BuildFollowUp selects the queue and job store from cfg.
func BuildFollowUp(cfg *appconfig.Config, clients FollowUpClients, logger *logging.Logger) (*FollowUp, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	out := &FollowUp{}
	if cfg.FollowUp.UseMemoryQueue {
		out.Memory = followup.NewMemoryQueue()
		out.Queue = out.Memory
		logger.Warn("follow-up queue is in-process; scheduled calls are lost on restart")
	} else {
		if clients.SQS == nil {
			return nil, errors.New("bootstrap: sqs client required for follow-up queue")
		}
		if strings.TrimSpace(cfg.FollowUp.QueueURL) == "" {
			return nil, &appconfig.MissingError{Key: "FOLLOWUP_QUEUE_URL"}
		}
		out.Queue = followup.NewSQSQueue(clients.SQS, cfg.FollowUp.QueueURL)
	}

	jobs, err := BuildJobStore(cfg, clients, logger)
	if err != nil {
		return nil, err
	}
	out.Jobs = jobs
	return out, nil
}

// BuildJobStore selects the job store named by FOLLOWUP_JOB_STORE.
func BuildJobStore(cfg *appconfig.Config, clients FollowUpClients, logger *logging.Logger) (followup.JobStore, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch kind := jobStoreKind(cfg); kind {
	case JobStoreMemory:
		return followup.NewMemoryJobStore(), nil
	case JobStorePostgres:
		if clients.PG == nil {
			return nil, errors.New("bootstrap: postgres job store selected but DATABASE_URL is not reachable")
		}
		logger.Info("follow-up jobs stored in postgres")
		return followup.NewPGJobStore(clients.PG), nil
	case JobStoreDynamo:
		if clients.Dynamo == nil {
			return nil, errors.New("bootstrap: dynamodb client required for follow-up job store")
		}
		return followup.NewDynamoJobStore(clients.Dynamo, cfg.FollowUp.JobsTable, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown FOLLOWUP_JOB_STORE %q", kind)
	}
}

func jobStoreKind(cfg *appconfig.Config) string {
	kind := strings.ToLower(strings.TrimSpace(cfg.FollowUp.JobStore))
	if kind == "" {
		return JobStoreDynamo
	}
	return kind
}

// NewDispatcher wires the call dispatcher the same way for every consumer.
func NewDispatcher(cfg *appconfig.Config, calls voice.CallStarter, jobs followup.JobStore, alerts followup.FailureNotifier, m *metrics.LeadMetrics, logger *logging.Logger) *followup.Dispatcher {
	return followup.NewDispatcher(calls, jobs, logger,
		followup.WithMaxAttempts(cfg.FollowUp.MaxAttempts),
		followup.WithFailureNotifier(alerts),
		followup.WithMetrics(m),
	)
}
