package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfman30/transcenda-leads/internal/config"
	"github.com/wolfman30/transcenda-leads/internal/remote"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

const serviceName = "voice"

// Client wraps the VAPI REST endpoints for outbound calls.
type Client struct {
	api           *remote.Client
	assistantID   string
	phoneNumberID string
	logger        *logging.Logger
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	observer   remote.Observer
	logger     *logging.Logger
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithObserver records per-call metrics.
func WithObserver(obs remote.Observer) Option {
	return func(o *clientOptions) { o.observer = obs }
}

// WithLogger sets the client logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// NewClient validates cfg and builds a voice client.
func NewClient(cfg config.VoiceConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.vapi.ai"
	}
	return &Client{
		api: remote.NewClient(serviceName, remote.Options{
			BaseURL:     baseURL,
			BearerToken: cfg.PrivateKey,
			Timeout:     cfg.Timeout,
			HTTPClient:  o.httpClient,
			Logger:      o.logger,
			Observer:    o.observer,
		}),
		assistantID:   cfg.AssistantID,
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		logger:        o.logger,
	}, nil
}

// InitiateCall asks the configured assistant to call phone.
func (c *Client) InitiateCall(ctx context.Context, phone string, details CallDetails) (*Call, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, errors.New("voice: phone required")
	}
	req := createCallRequest{
		AssistantID:   c.assistantID,
		PhoneNumberID: c.phoneNumberID,
		Customer: Customer{
			Number: phone,
			Name:   strings.TrimSpace(details.Name),
		},
		Metadata: compactMetadata(map[string]string{
			"company":   details.Company,
			"challenge": details.Challenge,
			"contactId": details.ContactID,
		}),
	}

	var raw json.RawMessage
	if err := c.api.Do(ctx, remote.Request{
		Operation: "initiate_call",
		Method:    http.MethodPost,
		Path:      "/call",
		Body:      req,
		Out:       &raw,
	}); err != nil {
		return nil, fmt.Errorf("voice: initiate call: %w", err)
	}
	call, err := decodeCall(raw)
	if err != nil {
		return nil, fmt.Errorf("voice: initiate call: %w", err)
	}
	c.logger.Info("voice call initiated", "call_id", call.ID, "contact_id", details.ContactID)
	return call, nil
}

// GetCallStatus fetches the current state of a call.
func (c *Client) GetCallStatus(ctx context.Context, callID string) (*Call, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return nil, errors.New("voice: call id required")
	}
	var raw json.RawMessage
	if err := c.api.Do(ctx, remote.Request{
		Operation: "get_call",
		Method:    http.MethodGet,
		Path:      "/call/" + url.PathEscape(callID),
		Out:       &raw,
	}); err != nil {
		return nil, fmt.Errorf("voice: get call status: %w", err)
	}
	call, err := decodeCall(raw)
	if err != nil {
		return nil, fmt.Errorf("voice: get call status: %w", err)
	}
	return call, nil
}

// UpdateAssistant patches the configured assistant.
func (c *Client) UpdateAssistant(ctx context.Context, updates map[string]any) (*Assistant, error) {
	if len(updates) == 0 {
		return nil, errors.New("voice: updates required")
	}
	var out Assistant
	if err := c.api.Do(ctx, remote.Request{
		Operation: "update_assistant",
		Method:    http.MethodPatch,
		Path:      "/assistant/" + url.PathEscape(c.assistantID),
		Body:      updates,
		Out:       &out,
	}); err != nil {
		return nil, fmt.Errorf("voice: update assistant: %w", err)
	}
	return &out, nil
}

func decodeCall(raw json.RawMessage) (*Call, error) {
	call := &Call{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, call); err != nil {
			return nil, fmt.Errorf("decode call: %w", err)
		}
	}
	call.Raw = raw
	return call, nil
}

func compactMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
