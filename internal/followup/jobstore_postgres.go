package followup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGJobStore persists job records to PostgreSQL for deployments without DynamoDB.
type PGJobStore struct {
	db  pgExecutor
	now func() time.Time
}

var _ JobStore = (*PGJobStore)(nil)

// NewPGJobStore builds a Postgres-backed JobStore. db is usually a *pgxpool.Pool.
func NewPGJobStore(db pgExecutor) *PGJobStore {
	if db == nil {
		panic("followup: pgx pool cannot be nil")
	}
	return &PGJobStore{db: db, now: time.Now}
}

// PutPending inserts a pending job record.
func (s *PGJobStore) PutPending(ctx context.Context, job *JobRecord) error {
	if err := stampPending(job, s.now()); err != nil {
		return err
	}
	request, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("followup: failed to encode request: %w", err)
	}
	created, _ := time.Parse(time.RFC3339Nano, job.CreatedAt)
	due, err := time.Parse(time.RFC3339Nano, job.DueAt)
	if err != nil {
		due = created
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO followup_jobs (
			job_id, status, contact_id, request, attempts,
			error_message, due_at, created_at, updated_at, expires_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, job.JobID, job.Status, job.Request.ContactID, request, job.Attempts,
		job.ErrorMessage, due, created, created, time.Unix(job.ExpiresAt, 0).UTC()); err != nil {
		return fmt.Errorf("followup: failed to persist job: %w", err)
	}
	return nil
}

// MarkCompleted records the placed call.
func (s *PGJobStore) MarkCompleted(ctx context.Context, jobID, callID string, attempts int) error {
	if jobID == "" {
		return errors.New("followup: jobID required")
	}
	result, err := s.db.Exec(ctx, `
		UPDATE followup_jobs
		SET status = $2,
		    call_id = $3,
		    attempts = $4,
		    error_message = '',
		    updated_at = $5
		WHERE job_id = $1
	`, jobID, JobStatusCompleted, callID, attempts, s.now().UTC())
	if err != nil {
		return fmt.Errorf("followup: failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkFailed records a call that will not be retried.
func (s *PGJobStore) MarkFailed(ctx context.Context, jobID, errMsg string, attempts int) error {
	if jobID == "" {
		return errors.New("followup: jobID required")
	}
	result, err := s.db.Exec(ctx, `
		UPDATE followup_jobs
		SET status = $2,
		    attempts = $3,
		    error_message = $4,
		    updated_at = $5
		WHERE job_id = $1
	`, jobID, JobStatusFailed, attempts, errMsg, s.now().UTC())
	if err != nil {
		return fmt.Errorf("followup: failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetJob loads a job by ID.
func (s *PGJobStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, errors.New("followup: jobID required")
	}

	var (
		status    string
		request   []byte
		callID    pgtype.Text
		attempts  int
		errMsg    string
		dueAt     time.Time
		createdAt time.Time
		updatedAt time.Time
		expiresAt pgtype.Timestamptz
	)
	row := s.db.QueryRow(ctx, `
		SELECT status, request, call_id, attempts, error_message,
		       due_at, created_at, updated_at, expires_at
		FROM followup_jobs
		WHERE job_id = $1
	`, jobID)
	if err := row.Scan(&status, &request, &callID, &attempts, &errMsg,
		&dueAt, &createdAt, &updatedAt, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("followup: failed to fetch job: %w", err)
	}

	job := &JobRecord{
		JobID:        jobID,
		Status:       JobStatus(status),
		Attempts:     attempts,
		ErrorMessage: errMsg,
		DueAt:        dueAt.UTC().Format(time.RFC3339Nano),
		CreatedAt:    createdAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    updatedAt.UTC().Format(time.RFC3339Nano),
	}
	if callID.Valid {
		job.CallID = callID.String
	}
	if expiresAt.Valid {
		job.ExpiresAt = expiresAt.Time.Unix()
	}
	if len(request) > 0 {
		if err := json.Unmarshal(request, &job.Request); err != nil {
			return nil, fmt.Errorf("followup: failed to decode request: %w", err)
		}
	}
	return job, nil
}
