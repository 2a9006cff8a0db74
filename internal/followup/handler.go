package followup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

// JobReader loads a job record.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
}

// jobStatus is the public view of a job. Lead details stay in the store.
type jobStatus struct {
	JobID        string    `json:"jobId"`
	Status       JobStatus `json:"status"`
	CallID       string    `json:"callId,omitempty"`
	Attempts     int       `json:"attempts"`
	DueAt        string    `json:"dueAt"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// JobHandler exposes follow-up job state over HTTP.
type JobHandler struct {
	jobs   JobReader
	logger *logging.Logger
}

func NewJobHandler(jobs JobReader, logger *logging.Logger) *JobHandler {
	if jobs == nil {
		panic("followup: job reader cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JobHandler{jobs: jobs, logger: logger}
}

// GetJob serves GET /followups/{jobID}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "jobID required"})
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		h.logger.Error("failed to load follow-up job", "error", err, "job_id", jobID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return
	}
	writeJSON(w, http.StatusOK, jobStatus{
		JobID:        job.JobID,
		Status:       job.Status,
		CallID:       job.CallID,
		Attempts:     job.Attempts,
		DueAt:        job.DueAt,
		ErrorMessage: job.ErrorMessage,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
