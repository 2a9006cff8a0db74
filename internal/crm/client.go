package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/transcenda-leads/internal/config"
	"github.com/wolfman30/transcenda-leads/internal/remote"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

const (
	serviceName = "crm"

	// WebhookSource is stamped on every generic webhook payload.
	WebhookSource = "Transcenda Landing Page"

	defaultTag       = "Transcenda Lead"
	defaultLeadSrc   = "Landing Page"
	defaultQualStage = "New"
)

// ErrMissingContactID is returned when the CRM accepts a contact but the
// response carries no id.
var ErrMissingContactID = errors.New("crm: response missing contact id")

// Client wraps the GoHighLevel REST endpoints used by the lead pipeline.
// Each method is an independent HTTP call; nothing is transactional.
type Client struct {
	api        *remote.Client
	locationID string
	formURL    string
	now        func() time.Time
	logger     *logging.Logger
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	observer   remote.Observer
	logger     *logging.Logger
	now        func() time.Time
}

// WithHTTPClient overrides the HTTP client (tests, custom transports).
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

// WithClock overrides the timestamp source used for webhook payloads.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) { o.now = now }
}

// NewClient validates cfg and builds a CRM client.
func NewClient(cfg config.CRMConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := clientOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://rest.gohighlevel.com/v1"
	}
	return &Client{
		api: remote.NewClient(serviceName, remote.Options{
			BaseURL:     baseURL,
			BearerToken: cfg.APIKey,
			Timeout:     cfg.Timeout,
			HTTPClient:  o.httpClient,
			Logger:      o.logger,
			Observer:    o.observer,
		}),
		locationID: cfg.LocationID,
		formURL:    strings.TrimSpace(cfg.FormWebhookURL),
		now:        o.now,
		logger:     o.logger,
	}, nil
}

// CreateContact posts a new contact and returns the CRM's record.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (*ContactResponse, error) {
	body := contact
	if len(body.Tags) == 0 {
		body.Tags = []string{defaultTag}
	}
	fields := map[string]any{
		"lead_source":         defaultLeadSrc,
		"qualification_stage": defaultQualStage,
	}
	for k, v := range contact.CustomFields {
		fields[k] = v
	}
	body.CustomFields = fields

	var resp ContactResponse
	if err := c.api.Do(ctx, remote.Request{
		Operation: "create_contact",
		Method:    http.MethodPost,
		Path:      "/contacts/",
		Body:      body,
		Out:       &resp,
	}); err != nil {
		return nil, fmt.Errorf("crm: create contact: %w", err)
	}
	if strings.TrimSpace(resp.Contact.ID) == "" {
		return nil, ErrMissingContactID
	}
	return &resp, nil
}

// AddToWorkflow enrolls an existing contact in a workflow.
func (c *Client) AddToWorkflow(ctx context.Context, contactID, workflowID string) error {
	if strings.TrimSpace(contactID) == "" {
		return errors.New("crm: contact id required")
	}
	if strings.TrimSpace(workflowID) == "" {
		return errors.New("crm: workflow id required")
	}
	path := fmt.Sprintf("/contacts/%s/workflow/%s", url.PathEscape(contactID), url.PathEscape(workflowID))
	if err := c.api.Do(ctx, remote.Request{
		Operation: "add_to_workflow",
		Method:    http.MethodPost,
		Path:      path,
	}); err != nil {
		return fmt.Errorf("crm: add to workflow: %w", err)
	}
	return nil
}

// SendWebhook posts payload to an arbitrary webhook URL with a timestamp and
// source tag added. Caller keys win except for source and timestamp.
func (c *Client) SendWebhook(ctx context.Context, webhookURL string, payload map[string]any) error {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return &config.MissingError{Key: "GHL_WEBHOOK_URL"}
	}
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["timestamp"] = c.now().UTC().Format(time.RFC3339)
	body["source"] = WebhookSource

	if err := c.api.Do(ctx, remote.Request{
		Operation: "send_webhook",
		Method:    http.MethodPost,
		URL:       webhookURL,
		Body:      body,
		NoAuth:    true,
	}); err != nil {
		return fmt.Errorf("crm: send webhook: %w", err)
	}
	return nil
}

// CreateOpportunity opens a pipeline deal for a contact.
func (c *Client) CreateOpportunity(ctx context.Context, opp Opportunity) (*OpportunityResponse, error) {
	if strings.TrimSpace(opp.ContactID) == "" {
		return nil, errors.New("crm: contact id required")
	}
	if opp.Status == "" {
		opp.Status = "open"
	}
	if opp.Source == "" {
		opp.Source = defaultLeadSrc
	}
	body := struct {
		LocationID string `json:"locationId"`
		Opportunity
	}{LocationID: c.locationID, Opportunity: opp}

	var resp OpportunityResponse
	if err := c.api.Do(ctx, remote.Request{
		Operation: "create_opportunity",
		Method:    http.MethodPost,
		Path:      "/opportunities",
		Body:      body,
		Out:       &resp,
	}); err != nil {
		return nil, fmt.Errorf("crm: create opportunity: %w", err)
	}
	return &resp, nil
}

// SubmitForm forwards the short strategy-session form to the CRM's inbound
// form webhook.
func (c *Client) SubmitForm(ctx context.Context, form FormSubmission) (*ContactResponse, error) {
	if c.formURL == "" {
		return nil, &config.MissingError{Key: "GHL_FORM_WEBHOOK_URL"}
	}
	body := map[string]any{
		"locationId": c.locationID,
		"contact": map[string]any{
			"firstName": form.CompanyName,
			"email":     form.Email,
			"phone":     form.Phone,
			"source":    form.Source,
			"tags":      form.Tags,
			"customFields": map[string]any{
				"company_name":      form.CompanyName,
				"role":              form.Role,
				"industry":          form.Industry,
				"revenue_range":     form.Revenue,
				"primary_challenge": form.Challenge,
				"timeline":          form.Timeline,
				"form_submitted_at": c.now().UTC().Format(time.RFC3339),
			},
		},
	}

	var resp ContactResponse
	if err := c.api.Do(ctx, remote.Request{
		Operation: "submit_form",
		Method:    http.MethodPost,
		URL:       c.formURL,
		Body:      body,
		Out:       &resp,
	}); err != nil {
		return nil, fmt.Errorf("crm: submit form: %w", err)
	}
	return &resp, nil
}
