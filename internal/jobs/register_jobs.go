package jobs

import (
	"github.com/eduverify/backend/internal/notify"
	"github.com/eduverify/backend/internal/queue"
	"github.com/eduverify/backend/internal/services/anomaly"
)

// RegisterAllJobHandlers registers every background handler with the
// queue. Must run before the queue workers start.
func RegisterAllJobHandlers(q *queue.Queue, sender *notify.EmailSender, detector *anomaly.Detector) {
	RegisterNotificationJobHandlers(q, sender)
	RegisterAnomalyJobHandlers(q, detector)
}
