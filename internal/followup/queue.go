package followup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Queue is a delayed message queue. A message sent with a delay is not
// visible to Receive until the delay has elapsed.
type Queue interface {
	Send(ctx context.Context, body string, delay time.Duration) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one received queue entry. ReceiveCount starts at 1.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
	ReceiveCount  int
}

type queuePayload struct {
	JobID   string      `json:"jobId"`
	Request CallRequest `json:"request"`
}

func encodePayload(payload queuePayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("followup: encode payload: %w", err)
	}
	return string(body), nil
}

func decodePayload(body string) (queuePayload, error) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return queuePayload{}, fmt.Errorf("followup: decode payload: %w", err)
	}
	if strings.TrimSpace(payload.JobID) == "" {
		return queuePayload{}, errors.New("followup: payload missing job id")
	}
	if strings.TrimSpace(payload.Request.Phone) == "" {
		return queuePayload{}, errors.New("followup: payload missing phone")
	}
	return payload, nil
}
