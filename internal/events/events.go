// Package events publishes engine domain events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event
type Type string

const (
	AssignmentCreated   Type = "assignment.created"
	AssignmentCompleted Type = "assignment.completed"
	AssignmentExpired   Type = "assignment.expired"
	RequestCreated      Type = "assignment_request.created"
	RequestResolved     Type = "assignment_request.resolved"
	LedgerReconciled    Type = "reputation.reconciled"
)

// Event is the envelope published for every domain change
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	ReviewerID uuid.UUID `json:"reviewer_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// New builds an event with a fresh ID
func New(t Type, reviewerID uuid.UUID, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		ReviewerID: reviewerID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers events. Publishing is best effort; callers log failures
// and never roll back the state change that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the structured log
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs events at info level
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event
func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "Domain event",
		"event_id", e.ID,
		"type", e.Type,
		"reviewer_id", e.ReviewerID,
		"payload", string(payload),
	)
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the event
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Close is a no-op
func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
