package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/eduverify/backend/internal/notify"
	"github.com/eduverify/backend/internal/queue"
)

// NotificationJob delivers queued notification events by email.
type NotificationJob struct {
	sender *notify.EmailSender
}

// NewNotificationJob creates the delivery handler.
func NewNotificationJob(sender *notify.EmailSender) *NotificationJob {
	return &NotificationJob{sender: sender}
}

// RegisterNotificationJobHandlers wires the handler into the queue.
func RegisterNotificationJobHandlers(q *queue.Queue, sender *notify.EmailSender) {
	handler := NewNotificationJob(sender)
	q.RegisterHandler(queue.JobTypeSendNotification, handler.Deliver)
}

// Deliver decodes the event payload and sends the email. A delivery
// failure returns an error so the queue retries with backoff.
func (j *NotificationJob) Deliver(ctx context.Context, job queue.Job) error {
	var event notify.Event
	if err := json.Unmarshal(job.Payload, &event); err != nil {
		return fmt.Errorf("failed to decode notification payload: %w", err)
	}

	if err := j.sender.Send(event); err != nil {
		return fmt.Errorf("failed to deliver %s notification to %s: %w", event.Type, event.Recipient, err)
	}

	log.Printf("Delivered %s notification for tenant %s", event.Type, event.TenantID)
	return nil
}
