package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/transcenda-leads/internal/config"
	"github.com/wolfman30/transcenda-leads/internal/crm"
	"github.com/wolfman30/transcenda-leads/internal/followup"
	"github.com/wolfman30/transcenda-leads/internal/notify"
	"github.com/wolfman30/transcenda-leads/internal/observability/metrics"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

// Stages reported in Result.FailedStage.
const (
	StageValidation         = "validation"
	StageContactCreation    = "contact_creation"
	StageWorkflowEnrollment = "workflow_enrollment"
)

const opportunityName = "Strategy Session - Transcenda"

// ContactCreator is the CRM surface the processor needs.
type ContactCreator interface {
	CreateContact(ctx context.Context, contact crm.Contact) (*crm.ContactResponse, error)
	AddToWorkflow(ctx context.Context, contactID, workflowID string) error
}

// OpportunityCreator opens a pipeline deal for hot leads.
type OpportunityCreator interface {
	CreateOpportunity(ctx context.Context, opp crm.Opportunity) (*crm.OpportunityResponse, error)
}

// FollowUpScheduler queues the delayed qualification call.
type FollowUpScheduler interface {
	ScheduleCall(ctx context.Context, req followup.CallRequest) (string, error)
}

// Notifier raises ops alerts for leads that need manual handling.
type Notifier interface {
	NotifyWorkflowFailure(ctx context.Context, f notify.WorkflowFailure) error
	NotifyFollowUpFailure(ctx context.Context, f notify.FollowUpFailure) error
}

// Result is the outcome of processing one submission. A failed workflow
// enrollment still carries the ContactID of the contact that was created.
type Result struct {
	Success       bool   `json:"success"`
	ContactID     string `json:"contactId,omitempty"`
	Score         int    `json:"score"`
	Tier          Tier   `json:"tier,omitempty"`
	FollowUpJobID string `json:"followUpJobId,omitempty"`
	FailedStage   string `json:"failedStage,omitempty"`
	Error         string `json:"error,omitempty"`
	Err           error  `json:"-"`
}

// ProcessorConfig holds the CRM identifiers the processor routes to.
type ProcessorConfig struct {
	Workflows     config.WorkflowConfig
	PipelineID    string
	PipelineStage string
}

func (c ProcessorConfig) workflowFor(tier Tier) string {
	switch tier {
	case TierHot:
		return c.Workflows.Hot
	case TierWarm:
		return c.Workflows.Warm
	default:
		return c.Workflows.Cold
	}
}

// Processor runs the intake pipeline: validate, score, create the contact,
// enroll it in a workflow and schedule a follow-up call for high-value leads.
type Processor struct {
	crm           ContactCreator
	scheduler     FollowUpScheduler
	opportunities OpportunityCreator
	notifier      Notifier
	metrics       *metrics.LeadMetrics
	cfg           ProcessorConfig
	logger        *logging.Logger
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

func WithNotifier(n Notifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

func WithMetrics(m *metrics.LeadMetrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithOpportunities enables deal creation for hot leads when a pipeline is configured.
func WithOpportunities(o OpportunityCreator) ProcessorOption {
	return func(p *Processor) { p.opportunities = o }
}

// NewProcessor fails when any tier has no workflow id.
func NewProcessor(contacts ContactCreator, scheduler FollowUpScheduler, cfg ProcessorConfig, logger *logging.Logger, opts ...ProcessorOption) (*Processor, error) {
	if contacts == nil {
		return nil, errors.New("leads: crm client required")
	}
	if scheduler == nil {
		return nil, errors.New("leads: follow-up scheduler required")
	}
	for key, id := range map[string]string{
		"GHL_WORKFLOW_HOT":  cfg.Workflows.Hot,
		"GHL_WORKFLOW_WARM": cfg.Workflows.Warm,
		"GHL_WORKFLOW_COLD": cfg.Workflows.Cold,
	} {
		if strings.TrimSpace(id) == "" {
			return nil, &config.MissingError{Key: key}
		}
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Processor{
		crm:       contacts,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process handles one submission. It never panics on missing optional fields
// and returns a populated Result rather than an error.
func (p *Processor) Process(ctx context.Context, sub *Submission) Result {
	if sub == nil {
		sub = &Submission{}
	}
	sub.Normalize()
	if err := sub.Validate(); err != nil {
		p.metrics.ObserveSubmission("invalid")
		return Result{FailedStage: StageValidation, Error: err.Error(), Err: err}
	}

	score := Score(sub)
	tier := TierFor(score)
	p.metrics.ObserveQualification(string(tier), score)
	log := p.logger.With("email", sub.Email, "score", score, "tier", tier)

	created, err := p.crm.CreateContact(ctx, p.buildContact(sub, score, tier))
	if err != nil {
		log.Error("lead processing: contact creation failed", "error", err)
		p.metrics.ObserveSubmission("failed")
		return Result{Score: score, Tier: tier, FailedStage: StageContactCreation, Error: err.Error(), Err: err}
	}
	contactID := created.Contact.ID
	log = log.With("contact_id", contactID)

	workflowID := p.cfg.workflowFor(tier)
	if err := p.crm.AddToWorkflow(ctx, contactID, workflowID); err != nil {
		log.Error("lead processing: workflow enrollment failed", "error", err, "workflow_id", workflowID)
		p.metrics.ObserveSubmission("partial")
		p.alertWorkflowFailure(ctx, log, sub, contactID, workflowID, score, tier, err)
		return Result{
			ContactID:   contactID,
			Score:       score,
			Tier:        tier,
			FailedStage: StageWorkflowEnrollment,
			Error:       err.Error(),
			Err:         err,
		}
	}

	if tier == TierHot {
		p.openOpportunity(ctx, log, sub, contactID)
	}

	result := Result{Success: true, ContactID: contactID, Score: score, Tier: tier}
	if IsHighValue(score) {
		result.FollowUpJobID = p.scheduleCall(ctx, log, sub, contactID, score)
	}

	p.metrics.ObserveSubmission("accepted")
	log.Info("lead processed", "follow_up_job_id", result.FollowUpJobID)
	return result
}

func (p *Processor) buildContact(sub *Submission, score int, tier Tier) crm.Contact {
	source := sub.Source
	if source == "" {
		source = DefaultSource
	}
	fields := map[string]any{
		"qualification_score": score,
		"qualification_tier":  string(tier),
	}
	setField(fields, "industry", sub.Industry)
	setField(fields, "monthly_revenue", sub.MonthlyRevenue)
	setField(fields, "primary_challenge", sub.PrimaryChallenge)
	setField(fields, "timeline", sub.Timeline)
	setField(fields, "role", sub.Role)
	setField(fields, "preferred_time", sub.PreferredTime)
	if sub.ROICalculatorData != nil {
		if raw, err := json.Marshal(sub.ROICalculatorData); err == nil {
			fields["roi_data"] = string(raw)
		}
	}

	return crm.Contact{
		FirstName:    sub.FirstName,
		LastName:     sub.LastName,
		Email:        sub.Email,
		Phone:        sub.Phone,
		CompanyName:  sub.CompanyName,
		Source:       source,
		Tags:         Tags(sub),
		CustomFields: fields,
	}
}

func setField(fields map[string]any, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

func (p *Processor) openOpportunity(ctx context.Context, log *logging.Logger, sub *Submission, contactID string) {
	if p.opportunities == nil || strings.TrimSpace(p.cfg.PipelineID) == "" {
		return
	}
	opp, err := p.opportunities.CreateOpportunity(ctx, crm.Opportunity{
		ContactID:  contactID,
		Name:       opportunityName,
		PipelineID: p.cfg.PipelineID,
		StageID:    p.cfg.PipelineStage,
		Source:     sub.Source,
	})
	if err != nil {
		log.Warn("lead processing: opportunity creation failed", "error", err)
		return
	}
	log.Info("opportunity created", "opportunity_id", opp.ID)
}

func (p *Processor) scheduleCall(ctx context.Context, log *logging.Logger, sub *Submission, contactID string, score int) string {
	req := followup.CallRequest{
		ContactID: contactID,
		Phone:     sub.Phone,
		Name:      sub.FirstName,
		Company:   sub.CompanyName,
		Challenge: sub.PrimaryChallenge,
		Score:     score,
	}
	jobID, err := p.scheduler.ScheduleCall(ctx, req)
	if err == nil {
		return jobID
	}

	log.Error("lead processing: follow-up call not scheduled", "error", err, "phone", sub.Phone, "name", sub.FirstName)
	if p.notifier != nil {
		if alertErr := p.notifier.NotifyFollowUpFailure(ctx, notify.FollowUpFailure{
			ContactID: contactID,
			Name:      sub.DisplayName(),
			Phone:     sub.Phone,
			Err:       fmt.Sprintf("scheduling failed: %v", err),
		}); alertErr != nil {
			log.Warn("follow-up failure alert not sent", "error", alertErr)
		}
	}
	return ""
}

func (p *Processor) alertWorkflowFailure(ctx context.Context, log *logging.Logger, sub *Submission, contactID, workflowID string, score int, tier Tier, cause error) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyWorkflowFailure(ctx, notify.WorkflowFailure{
		ContactID:  contactID,
		Name:       sub.DisplayName(),
		Email:      sub.Email,
		Phone:      sub.Phone,
		Tier:       string(tier),
		Score:      score,
		WorkflowID: workflowID,
		Err:        cause.Error(),
	}); err != nil {
		log.Warn("workflow failure alert not sent", "error", err)
	}
}
