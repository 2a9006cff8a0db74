package followup

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultVisibilityTimeout = 30 * time.Second

// MemoryQueue is an in-process Queue with delayed delivery and a visibility
// timeout, so undeleted messages are redelivered like SQS would.
type MemoryQueue struct {
	mu         sync.Mutex
	entries    []*memoryEntry
	visibility time.Duration
	signal     chan struct{}
}

type memoryEntry struct {
	id        string
	body      string
	receipt   string
	visibleAt time.Time
	receives  int
}

// MemoryQueueOption customizes a MemoryQueue.
type MemoryQueueOption func(*MemoryQueue)

// WithVisibilityTimeout sets how long a received message stays hidden before
// it is delivered again.
func WithVisibilityTimeout(d time.Duration) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if d > 0 {
			q.visibility = d
		}
	}
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue(opts ...MemoryQueueOption) *MemoryQueue {
	q := &MemoryQueue{
		visibility: defaultVisibilityTimeout,
		signal:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Send enqueues body, hidden until delay has passed.
func (q *MemoryQueue) Send(ctx context.Context, body string, delay time.Duration) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if delay < 0 {
		delay = 0
	}
	q.mu.Lock()
	q.entries = append(q.entries, &memoryEntry{
		id:        uuid.NewString(),
		body:      body,
		visibleAt: time.Now().Add(delay),
	})
	q.mu.Unlock()
	q.wake()
	return nil
}

// Receive returns up to maxMessages visible messages. It blocks until one is
// visible, ctx is done, or waitSeconds elapses (waitSeconds <= 0 waits on ctx only).
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxMessages <= 0 {
		maxMessages = 1
	}

	var deadline <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		messages, next := q.collect(maxMessages)
		if len(messages) > 0 {
			return messages, nil
		}

		var (
			wake   *time.Timer
			wakeAt <-chan time.Time
		)
		if !next.IsZero() {
			wake = time.NewTimer(time.Until(next))
			wakeAt = wake.C
		}

		select {
		case <-ctx.Done():
			stopTimer(wake)
			return nil, ctx.Err()
		case <-deadline:
			stopTimer(wake)
			return nil, nil
		case <-wakeAt:
		case <-q.signal:
			stopTimer(wake)
		}
	}
}

// Delete removes the message holding receiptHandle. Unknown handles are ignored.
func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.receipt == receiptHandle {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

// Len reports how many messages are queued or in flight.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// collect claims visible entries and returns the earliest future visibility
// time when nothing is ready.
func (q *MemoryQueue) collect(max int) ([]Message, time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var (
		out  []Message
		next time.Time
	)
	for _, e := range q.entries {
		if e.visibleAt.After(now) {
			if next.IsZero() || e.visibleAt.Before(next) {
				next = e.visibleAt
			}
			continue
		}
		if len(out) == max {
			break
		}
		e.receives++
		e.receipt = uuid.NewString()
		e.visibleAt = now.Add(q.visibility)
		out = append(out, Message{
			ID:            e.id,
			Body:          e.body,
			ReceiptHandle: e.receipt,
			ReceiveCount:  e.receives,
		})
	}
	return out, next
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (q *MemoryQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
