package crm

// Contact is the payload sent to the GoHighLevel contacts endpoint.
type Contact struct {
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	CompanyName  string         `json:"companyName"`
	Source       string         `json:"source"`
	Tags         []string       `json:"tags"`
	CustomFields map[string]any `json:"customFields"`
}

// ContactRecord is the CRM's view of a created contact.
type ContactRecord struct {
	ID          string   `json:"id"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	CompanyName string   `json:"companyName,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ContactResponse wraps the created contact as returned by the CRM.
type ContactResponse struct {
	Contact ContactRecord `json:"contact"`
}

// Opportunity is a pipeline deal attached to a contact.
type Opportunity struct {
	ContactID     string  `json:"contactId"`
	Name          string  `json:"name"`
	MonetaryValue float64 `json:"monetaryValue"`
	PipelineID    string  `json:"pipelineId"`
	StageID       string  `json:"stageId"`
	Status        string  `json:"status"`
	Source        string  `json:"source"`
}

// OpportunityResponse is the CRM's representation of a created opportunity.
type OpportunityResponse struct {
	ID        string `json:"id"`
	ContactID string `json:"contactId,omitempty"`
	Status    string `json:"status,omitempty"`
}

// FormSubmission is the short strategy-session form posted straight to the
// CRM's inbound form webhook.
type FormSubmission struct {
	CompanyName string   `json:"companyName"`
	Role        string   `json:"role"`
	Industry    string   `json:"industry"`
	Revenue     string   `json:"revenue"`
	Challenge   string   `json:"challenge"`
	Timeline    string   `json:"timeline"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email"`
	Source      string   `json:"source"`
	Tags        []string `json:"tags"`
}
