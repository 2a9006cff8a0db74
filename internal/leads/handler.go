package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/transcenda-leads/internal/crm"
	"github.com/wolfman30/transcenda-leads/internal/idempotency"
	"github.com/wolfman30/transcenda-leads/internal/remote"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

const (
	idempotencyHeader = "Idempotency-Key"
	submitLeadScope   = "submit-lead"
	maxBodyBytes      = 64 << 10

	formSource = "Landing Page Form"
)

var formTags = []string{"Hot Lead", "Strategy Session Request"}

// LeadProcessor runs the intake pipeline for one submission.
type LeadProcessor interface {
	Process(ctx context.Context, sub *Submission) Result
}

// FormSubmitter forwards the short strategy-session form to the CRM.
type FormSubmitter interface {
	SubmitForm(ctx context.Context, form crm.FormSubmission) (*crm.ContactResponse, error)
}

// Handler serves the lead intake endpoints.
type Handler struct {
	processor   LeadProcessor
	forms       FormSubmitter
	idempotency idempotency.Store
	exposeErrs  bool
	logger      *logging.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithIdempotency rejects replayed Idempotency-Key headers.
func WithIdempotency(store idempotency.Store) HandlerOption {
	return func(h *Handler) { h.idempotency = store }
}

// WithFormSubmitter enables the direct form webhook.
func WithFormSubmitter(forms FormSubmitter) HandlerOption {
	return func(h *Handler) { h.forms = forms }
}

// WithErrorDetails includes internal error text in 5xx bodies. Never set in production.
func WithErrorDetails(enabled bool) HandlerOption {
	return func(h *Handler) { h.exposeErrs = enabled }
}

// NewHandler creates a new leads handler
func NewHandler(processor LeadProcessor, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if processor == nil {
		panic("leads: processor required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{processor: processor, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type submitResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ContactID     string `json:"contactId,omitempty"`
	Score         *int   `json:"score,omitempty"`
	Tier          Tier   `json:"tier,omitempty"`
	FollowUpJobID string `json:"followUpJobId,omitempty"`
	FailedStage   string `json:"failedStage,omitempty"`
	Details       string `json:"details,omitempty"`
}

// SubmitLead handles POST /submit-lead.
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sub); err != nil {
		h.logger.Error("failed to decode lead submission", "error", err)
		writeJSON(w, http.StatusBadRequest, submitResponse{Message: "Invalid request body"})
		return
	}

	// Incomplete submissions never reach the processor or claim a key.
	sub.Normalize()
	if err := sub.Validate(); err != nil {
		h.logger.Info("lead submission rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, submitResponse{Message: err.Error(), FailedStage: StageValidation})
		return
	}

	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	claimed := false
	if key != "" && h.idempotency != nil {
		first, err := h.idempotency.Claim(ctx, submitLeadScope, key)
		switch {
		case err != nil:
			h.logger.Warn("idempotency check failed, processing anyway", "error", err)
		case !first:
			h.logger.Info("duplicate lead submission rejected", "idempotency_key", key)
			writeJSON(w, http.StatusConflict, submitResponse{Message: "Duplicate submission"})
			return
		default:
			claimed = true
		}
	}

	result := h.processor.Process(ctx, &sub)
	if result.Success {
		score := result.Score
		writeJSON(w, http.StatusOK, submitResponse{
			Success:       true,
			Message:       "Lead processed successfully",
			ContactID:     result.ContactID,
			Score:         &score,
			Tier:          result.Tier,
			FollowUpJobID: result.FollowUpJobID,
		})
		return
	}

	// Without a contact the client may safely retry with the same key.
	if claimed && result.ContactID == "" {
		if err := h.idempotency.Release(ctx, submitLeadScope, key); err != nil {
			h.logger.Warn("failed to release idempotency key", "error", err)
		}
	}

	status, resp := h.failureResponse(result)
	writeJSON(w, status, resp)
}

func (h *Handler) failureResponse(result Result) (int, submitResponse) {
	resp := submitResponse{
		Message:     result.Error,
		ContactID:   result.ContactID,
		FailedStage: result.FailedStage,
	}
	err := result.Err
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, resp
	case errors.Is(err, remote.ErrTimeout):
		return http.StatusGatewayTimeout, resp
	case remote.IsRemote(err):
		return http.StatusBadRequest, resp
	}

	h.logger.Error("lead processing failed unexpectedly", "error", err, "stage", result.FailedStage)
	resp.Message = "Internal server error"
	if h.exposeErrs && err != nil {
		resp.Details = err.Error()
	}
	return http.StatusInternalServerError, resp
}

type formRequest struct {
	CompanyName string `json:"companyName"`
	Role        string `json:"role"`
	Industry    string `json:"industry"`
	Revenue     string `json:"revenue"`
	Challenge   string `json:"challenge"`
	Timeline    string `json:"timeline"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

// SubmitFormWebhook handles POST /ghl-webhook, the strategy-session form that
// goes straight to the CRM without scoring.
func (h *Handler) SubmitFormWebhook(w http.ResponseWriter, r *http.Request) {
	if h.forms == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "form webhook not configured"})
		return
	}
	var req formRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.CompanyName) == "" || strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Phone) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
		return
	}

	resp, err := h.forms.SubmitForm(r.Context(), crm.FormSubmission{
		CompanyName: strings.TrimSpace(req.CompanyName),
		Role:        req.Role,
		Industry:    req.Industry,
		Revenue:     req.Revenue,
		Challenge:   req.Challenge,
		Timeline:    req.Timeline,
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Source:      formSource,
		Tags:        formTags,
	})
	if err != nil {
		h.logger.Error("form webhook submission failed", "error", err, "company", req.CompanyName)
		body := map[string]string{"error": "Failed to submit lead"}
		if h.exposeErrs {
			body["details"] = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}

	h.logger.Info("lead submitted to crm form", "company", req.CompanyName, "email", req.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Lead submitted successfully",
		"ghlContactId": resp.Contact.ID,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
