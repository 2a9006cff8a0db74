package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

// WorkflowFailure describes a lead whose contact exists in the CRM but who
// was not enrolled in a nurture workflow.
type WorkflowFailure struct {
	ContactID  string
	Name       string
	Email      string
	Phone      string
	Tier       string
	Score      int
	WorkflowID string
	Err        string
}

// FollowUpFailure describes a scheduled call that was never placed.
type FollowUpFailure struct {
	JobID     string
	ContactID string
	Name      string
	Phone     string
	Attempts  int
	Err       string
}

// OpsNotifier emails the operations inbox about leads that need a human.
// A notifier without a sender or recipient only logs.
type OpsNotifier struct {
	email  EmailSender
	to     string
	now    func() time.Time
	logger *logging.Logger
}

func NewOpsNotifier(email EmailSender, to string, logger *logging.Logger) *OpsNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &OpsNotifier{
		email:  email,
		to:     strings.TrimSpace(to),
		now:    time.Now,
		logger: logger,
	}
}

// NotifyWorkflowFailure alerts that a contact needs manual workflow enrollment.
func (n *OpsNotifier) NotifyWorkflowFailure(ctx context.Context, f WorkflowFailure) error {
	var b strings.Builder
	fmt.Fprintf(&b, "A lead was created in the CRM but could not be added to the %s workflow.\n\n", f.Tier)
	writeField(&b, "Contact ID", f.ContactID)
	writeField(&b, "Name", f.Name)
	writeField(&b, "Email", f.Email)
	writeField(&b, "Phone", f.Phone)
	writeField(&b, "Score", fmt.Sprint(f.Score))
	writeField(&b, "Workflow ID", f.WorkflowID)
	writeField(&b, "Error", f.Err)
	b.WriteString("\nEnroll the contact manually. No follow-up call was scheduled.\n")

	return n.send(ctx, fmt.Sprintf("[Transcenda] Workflow enrollment failed for %s", displayName(f.Name, f.ContactID)), b.String(),
		"contact_id", f.ContactID, "workflow_id", f.WorkflowID)
}

// NotifyFollowUpFailure alerts that a high-value lead was not called.
func (n *OpsNotifier) NotifyFollowUpFailure(ctx context.Context, f FollowUpFailure) error {
	var b strings.Builder
	b.WriteString("The automated qualification call for a high-value lead failed.\n\n")
	writeField(&b, "Job ID", f.JobID)
	writeField(&b, "Contact ID", f.ContactID)
	writeField(&b, "Name", f.Name)
	writeField(&b, "Phone", f.Phone)
	writeField(&b, "Attempts", fmt.Sprint(f.Attempts))
	writeField(&b, "Error", f.Err)
	b.WriteString("\nCall the lead directly.\n")

	return n.send(ctx, fmt.Sprintf("[Transcenda] Follow-up call failed for %s", displayName(f.Name, f.ContactID)), b.String(),
		"job_id", f.JobID, "contact_id", f.ContactID)
}

func (n *OpsNotifier) send(ctx context.Context, subject, body string, logArgs ...any) error {
	if n == nil {
		return nil
	}
	if n.email == nil || n.to == "" {
		n.logger.Warn("ops alert not emailed: no sender or recipient configured", append([]any{"subject", subject}, logArgs...)...)
		return nil
	}
	body += "\nSent " + n.now().UTC().Format(time.RFC1123) + "\n"
	if err := n.email.Send(ctx, EmailMessage{To: n.to, Subject: subject, Body: body}); err != nil {
		n.logger.Error("ops alert failed", append([]any{"error", err, "subject", subject}, logArgs...)...)
		return fmt.Errorf("notify: ops alert: %w", err)
	}
	return nil
}

func writeField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func displayName(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if fallback != "" {
		return "contact " + fallback
	}
	return "unknown lead"
}
