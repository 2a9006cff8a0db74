package followup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

// Publisher schedules follow-up calls on a delayed queue.
type Publisher struct {
	queue  Queue
	jobs   JobStore
	delay  time.Duration
	now    func() time.Time
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher. jobs may be nil when job
// tracking is not needed.
func NewPublisher(queue Queue, jobs JobStore, delay time.Duration, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("followup: queue cannot be nil")
	}
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		jobs:   jobs,
		delay:  delay,
		now:    time.Now,
		logger: logger,
	}
}

// ScheduleCall records a pending job and enqueues the call to run after the
// configured delay. It returns the job ID.
func (p *Publisher) ScheduleCall(ctx context.Context, req CallRequest) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.Phone) == "" {
		return "", errors.New("followup: phone required")
	}

	jobID := uuid.NewString()
	if p.jobs != nil {
		job := &JobRecord{
			JobID:   jobID,
			Request: req,
			DueAt:   p.now().Add(p.delay).UTC().Format(time.RFC3339Nano),
		}
		if err := p.jobs.PutPending(ctx, job); err != nil {
			return "", fmt.Errorf("followup: record job: %w", err)
		}
	}

	body, err := encodePayload(queuePayload{JobID: jobID, Request: req})
	if err != nil {
		return "", err
	}
	if err := p.queue.Send(ctx, body, p.delay); err != nil {
		if p.jobs != nil {
			if markErr := p.jobs.MarkFailed(ctx, jobID, "enqueue failed: "+err.Error(), 0); markErr != nil {
				p.logger.Warn("followup: mark unqueued job failed", "error", markErr, "job_id", jobID)
			}
		}
		return "", fmt.Errorf("followup: failed to enqueue call: %w", err)
	}

	p.logger.Info("follow-up call scheduled",
		"job_id", jobID,
		"contact_id", req.ContactID,
		"score", req.Score,
		"delay", p.delay.String(),
	)
	return jobID, nil
}
