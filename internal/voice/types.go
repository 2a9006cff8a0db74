package voice

import "encoding/json"

// Customer identifies who the assistant is calling.
type Customer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

// CallDetails carries lead context the assistant can reference on the call.
type CallDetails struct {
	Name      string
	Company   string
	Challenge string
	ContactID string
}

// Call is the vendor's call object. Only the fields this service reads are
// typed; the rest is kept in Raw.
type Call struct {
	ID       string          `json:"id"`
	Status   string          `json:"status,omitempty"`
	Type     string          `json:"type,omitempty"`
	Customer *Customer       `json:"customer,omitempty"`
	Duration float64         `json:"duration,omitempty"`
	EndedAt  string          `json:"endedAt,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// Assistant is the vendor's assistant object after an update.
type Assistant struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type createCallRequest struct {
	AssistantID   string            `json:"assistantId"`
	PhoneNumberID string            `json:"phoneNumberId,omitempty"`
	Customer      Customer          `json:"customer"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// WebhookEvent is the envelope the vendor posts when call state changes.
type WebhookEvent struct {
	Type       string          `json:"type"`
	Call       *Call           `json:"call"`
	Transcript json.RawMessage `json:"transcript,omitempty"`
}

// EventCallEnded is the only event type relayed to the CRM.
const EventCallEnded = "call-ended"
