// Package followup schedules and places the delayed qualification call that
// follows a high-value lead submission.
package followup

import (
	"errors"
	"time"
)

const jobTTL = 7 * 24 * time.Hour

// CallRequest is the lead context carried on a scheduled call.
type CallRequest struct {
	ContactID string `json:"contactId" dynamodbav:"contactId"`
	Phone     string `json:"phone" dynamodbav:"phone"`
	Name      string `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Company   string `json:"company,omitempty" dynamodbav:"company,omitempty"`
	Challenge string `json:"challenge,omitempty" dynamodbav:"challenge,omitempty"`
	Score     int    `json:"score" dynamodbav:"score"`
}

// JobStatus represents the lifecycle of a follow-up job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound indicates the requested job ID does not exist.
var ErrJobNotFound = errors.New("followup: job not found")

// JobRecord is the persisted state of one scheduled call.
type JobRecord struct {
	JobID        string      `dynamodbav:"jobId" json:"jobId"`
	Status       JobStatus   `dynamodbav:"status" json:"status"`
	Request      CallRequest `dynamodbav:"request" json:"request"`
	CallID       string      `dynamodbav:"callId,omitempty" json:"callId,omitempty"`
	Attempts     int         `dynamodbav:"attempts" json:"attempts"`
	ErrorMessage string      `dynamodbav:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	DueAt        string      `dynamodbav:"dueAt" json:"dueAt"`
	CreatedAt    string      `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt    string      `dynamodbav:"updatedAt" json:"updatedAt"`
	ExpiresAt    int64       `dynamodbav:"expiresAt,omitempty" json:"-"`
}
