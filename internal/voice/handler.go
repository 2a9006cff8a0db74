package voice

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/transcenda-leads/internal/idempotency"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

const (
	secretHeader    = "X-Vapi-Secret"
	callEndedScope  = "vapi-call-ended"
	callCompleteEvt = "vapi_call_completed"
	maxWebhookBytes = 1 << 20
)

// CallSummarySender relays call summaries to the CRM.
type CallSummarySender interface {
	SendWebhook(ctx context.Context, webhookURL string, payload map[string]any) error
}

// WebhookHandler receives call lifecycle events from the voice vendor.
type WebhookHandler struct {
	sink       CallSummarySender
	webhookURL string
	secret     string
	dedupe     idempotency.Store
	logger     *logging.Logger
}

// WebhookOption customizes a WebhookHandler.
type WebhookOption func(*WebhookHandler)

// WithWebhookSecret requires the vendor's shared secret header on every event.
func WithWebhookSecret(secret string) WebhookOption {
	return func(h *WebhookHandler) { h.secret = strings.TrimSpace(secret) }
}

// WithDedupe skips call-ended events whose call id was already relayed.
func WithDedupe(store idempotency.Store) WebhookOption {
	return func(h *WebhookHandler) { h.dedupe = store }
}

// NewWebhookHandler builds the call-ended relay.
func NewWebhookHandler(sink CallSummarySender, webhookURL string, logger *logging.Logger, opts ...WebhookOption) *WebhookHandler {
	if sink == nil {
		panic("voice: call summary sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &WebhookHandler{
		sink:       sink,
		webhookURL: strings.TrimSpace(webhookURL),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes POST /vapi-webhook.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("voice webhook rejected: bad secret")
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
	}

	var evt WebhookEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBytes)).Decode(&evt); err != nil {
		h.logger.Warn("voice webhook: invalid body", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false})
		return
	}

	phone := customerNumber(evt.Call)
	if evt.Type != EventCallEnded || phone == "" {
		h.logger.Debug("voice webhook ignored", "type", evt.Type)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	ctx := r.Context()
	callID := strings.TrimSpace(evt.Call.ID)
	claimed := false
	if h.dedupe != nil && callID != "" {
		first, err := h.dedupe.Claim(ctx, callEndedScope, callID)
		if err != nil {
			h.logger.Warn("voice webhook: dedupe check failed", "error", err, "call_id", callID)
		} else if !first {
			h.logger.Info("voice webhook: duplicate call-ended event", "call_id", callID)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "duplicate": true})
			return
		} else {
			claimed = true
		}
	}

	payload := map[string]any{
		"event":      callCompleteEvt,
		"phone":      phone,
		"duration":   evt.Call.Duration,
		"transcript": evt.Transcript,
		"status":     evt.Call.Status,
	}
	if err := h.sink.SendWebhook(ctx, h.webhookURL, payload); err != nil {
		h.logger.Error("voice webhook: relay to crm failed", "error", err, "call_id", callID, "phone", phone)
		if claimed {
			if relErr := h.dedupe.Release(ctx, callEndedScope, callID); relErr != nil {
				h.logger.Warn("voice webhook: release dedupe key failed", "error", relErr, "call_id", callID)
			}
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false})
		return
	}

	h.logger.Info("voice call summary relayed", "call_id", callID, "phone", phone, "status", evt.Call.Status)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func customerNumber(call *Call) string {
	if call == nil || call.Customer == nil {
		return ""
	}
	return strings.TrimSpace(call.Customer.Number)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
