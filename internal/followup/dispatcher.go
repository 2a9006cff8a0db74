package followup

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/transcenda-leads/internal/notify"
	"github.com/wolfman30/transcenda-leads/internal/observability/metrics"
	"github.com/wolfman30/transcenda-leads/internal/voice"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

// ErrRetry means the call failed but attempts remain; the message should
// stay on the queue for redelivery.
var ErrRetry = errors.New("followup: call failed, retry pending")

const defaultMaxAttempts = 1

// FailureNotifier is told about calls that will not be retried.
type FailureNotifier interface {
	NotifyFollowUpFailure(ctx context.Context, f notify.FollowUpFailure) error
}

// Dispatcher places the call described by one queue message.
type Dispatcher struct {
	calls       voice.CallStarter
	jobs        JobStore
	maxAttempts int
	alerts      FailureNotifier
	metrics     *metrics.LeadMetrics
	logger      *logging.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxAttempts sets how many deliveries a job gets before it is marked failed.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

func WithFailureNotifier(n FailureNotifier) DispatcherOption {
	return func(d *Dispatcher) { d.alerts = n }
}

func WithMetrics(m *metrics.LeadMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher builds a dispatcher. jobs may be nil when job tracking is off.
func NewDispatcher(calls voice.CallStarter, jobs JobStore, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if calls == nil {
		panic("followup: call starter cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		calls:       calls,
		jobs:        jobs,
		maxAttempts: defaultMaxAttempts,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle places the call for body. receiveCount is the 1-based delivery
// number. A nil return means the message is done and can be deleted; an
// error wrapping ErrRetry means it should be redelivered.
func (d *Dispatcher) Handle(ctx context.Context, body string, receiveCount int) error {
	payload, err := decodePayload(body)
	if err != nil {
		d.logger.Error("dropping undecodable follow-up job", "error", err)
		d.metrics.ObserveFollowUp("invalid")
		return nil
	}
	if receiveCount < 1 {
		receiveCount = 1
	}
	req := payload.Request
	log := d.logger.With("job_id", payload.JobID, "contact_id", req.ContactID, "attempt", receiveCount)

	if d.jobs != nil {
		job, getErr := d.jobs.GetJob(ctx, payload.JobID)
		switch {
		case getErr == nil && job.Status != JobStatusPending:
			log.Info("follow-up job already settled, skipping", "status", job.Status)
			d.metrics.ObserveFollowUp("skipped")
			return nil
		case getErr != nil && !errors.Is(getErr, ErrJobNotFound):
			log.Warn("follow-up job lookup failed", "error", getErr)
		}
	}

	call, err := d.calls.InitiateCall(ctx, req.Phone, voice.CallDetails{
		Name:      req.Name,
		Company:   req.Company,
		Challenge: req.Challenge,
		ContactID: req.ContactID,
	})
	if err != nil {
		log.Error("follow-up call failed", "error", err, "phone", req.Phone, "name", req.Name)
		if receiveCount < d.maxAttempts {
			d.metrics.ObserveFollowUp("retry")
			return fmt.Errorf("%w: %v", ErrRetry, err)
		}
		d.fail(ctx, log, payload, receiveCount, err)
		return nil
	}

	if d.jobs != nil {
		if markErr := d.jobs.MarkCompleted(ctx, payload.JobID, call.ID, receiveCount); markErr != nil {
			log.Warn("failed to mark follow-up job completed", "error", markErr)
		}
	}
	d.metrics.ObserveFollowUp("completed")
	log.Info("follow-up call placed", "call_id", call.ID)
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, log *logging.Logger, payload queuePayload, attempts int, cause error) {
	d.metrics.ObserveFollowUp("failed")
	if d.jobs != nil {
		if err := d.jobs.MarkFailed(ctx, payload.JobID, cause.Error(), attempts); err != nil {
			log.Warn("failed to mark follow-up job failed", "error", err)
		}
	}
	if d.alerts == nil {
		return
	}
	req := payload.Request
	if err := d.alerts.NotifyFollowUpFailure(ctx, notify.FollowUpFailure{
		JobID:     payload.JobID,
		ContactID: req.ContactID,
		Name:      req.Name,
		Phone:     req.Phone,
		Attempts:  attempts,
		Err:       cause.Error(),
	}); err != nil {
		log.Warn("follow-up failure alert not sent", "error", err)
	}
}
