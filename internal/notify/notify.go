// Package notify publishes tenant-facing events from the verification
// pipeline. Dispatch is fire-and-forget: a notification failure never
// fails the state transition that produced it.
package notify

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/queue"
)

// EventType names the lifecycle moments tenants are told about.
type EventType string

const (
	EventDocumentReceived     EventType = "document_received"
	EventReviewDecision       EventType = "review_decision"
	EventAppealReceived       EventType = "appeal_received"
	EventAppealDecision       EventType = "appeal_decision"
	EventAppealInfoRequested  EventType = "appeal_info_requested"
	EventGracePeriodWarning   EventType = "grace_period_warning"
	EventEligibilityConfirmed EventType = "eligibility_confirmed"
)

// Event carries everything the delivery job needs to render a message.
type Event struct {
	Type       EventType `json:"type"`
	TenantID   uuid.UUID `json:"tenant_id"`
	TenantName string    `json:"tenant_name"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject"`
	Detail     string    `json:"detail"`
}

// Dispatcher accepts events for asynchronous delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// QueueDispatcher enqueues each event as a background delivery job.
type QueueDispatcher struct {
	queue *queue.Queue
}

// NewQueueDispatcher wraps the job queue.
func NewQueueDispatcher(q *queue.Queue) *QueueDispatcher {
	return &QueueDispatcher{queue: q}
}

// Dispatch enqueues the event. Failures are logged and swallowed so
// the calling transition still commits.
func (d *QueueDispatcher) Dispatch(ctx context.Context, event Event) {
	if _, err := d.queue.Enqueue(queue.JobTypeSendNotification, event); err != nil {
		log.Printf("Failed to enqueue %s notification for tenant %s: %v", event.Type, event.TenantID, err)
	}
}

// NopDispatcher discards events. Used in tests and when notifications
// are disabled.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(ctx context.Context, event Event) {}

// Recorder captures dispatched events for test assertions.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Dispatch(ctx context.Context, event Event) {
	r.Events = append(r.Events, event)
}
