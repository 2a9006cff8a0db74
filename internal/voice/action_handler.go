package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/transcenda-leads/internal/validators"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

// CallStarter places an outbound call immediately.
type CallStarter interface {
	InitiateCall(ctx context.Context, phone string, details CallDetails) (*Call, error)
}

type actionRequest struct {
	Action string     `json:"action"`
	Data   actionData `json:"data"`
}

type actionData struct {
	CustomerPhone string          `json:"customerPhone"`
	CustomerName  string          `json:"customerName"`
	Type          string          `json:"type"`
	Duration      float64         `json:"duration"`
	Transcript    json.RawMessage `json:"transcript"`
	Sentiment     string          `json:"sentiment"`
}

// ActionHandler serves the browser widget's POST /vapi endpoint.
type ActionHandler struct {
	calls  CallStarter
	logger *logging.Logger
}

func NewActionHandler(calls CallStarter, logger *logging.Logger) *ActionHandler {
	if calls == nil {
		panic("voice: call starter required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ActionHandler{calls: calls, logger: logger}
}

// Handle dispatches on the request's action field.
func (h *ActionHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	switch req.Action {
	case "start-call":
		phone := validators.NormalizePhone(req.Data.CustomerPhone)
		if !validators.IsValidPhone(phone) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid customer phone"})
			return
		}
		call, err := h.calls.InitiateCall(r.Context(), phone, CallDetails{Name: strings.TrimSpace(req.Data.CustomerName)})
		if err != nil {
			h.logger.Error("voice action: start call failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Voice integration failed"})
			return
		}
		if len(call.Raw) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(call.Raw)
			return
		}
		writeJSON(w, http.StatusOK, call)
	case "webhook":
		h.logger.Info("voice action: widget event received", "type", req.Data.Type)
		if req.Data.Type == EventCallEnded {
			h.logger.Info("voice action: call ended",
				"duration", req.Data.Duration,
				"sentiment", req.Data.Sentiment,
				"transcript_bytes", len(req.Data.Transcript),
			)
		}
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid action"})
	}
}

// WidgetConfig is the browser-safe subset of the voice configuration.
type WidgetConfig struct {
	PublicKey   string `json:"publicKey"`
	AssistantID string `json:"assistantId"`
}

// WidgetConfigHandler serves GET /voice/widget-config.
func WidgetConfigHandler(cfg WidgetConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.PublicKey == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "voice widget not configured"})
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}
