package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/eduverify/backend/internal/queue"
	"github.com/eduverify/backend/internal/services/anomaly"
	"github.com/eduverify/backend/internal/services/verification"
)

// AnomalyJob runs the daily anomaly scan.
type AnomalyJob struct {
	detector *anomaly.Detector
}

// NewAnomalyJob creates the scan handler.
func NewAnomalyJob(detector *anomaly.Detector) *AnomalyJob {
	return &AnomalyJob{detector: detector}
}

// RegisterAnomalyJobHandlers wires the scan into the queue so it can
// also be triggered on demand.
func RegisterAnomalyJobHandlers(q *queue.Queue, detector *anomaly.Detector) {
	handler := NewAnomalyJob(detector)
	q.RegisterHandler(queue.JobTypeAnomalyScan, handler.Scan)
}

// Scan runs the detector once.
func (j *AnomalyJob) Scan(ctx context.Context, job queue.Job) error {
	alerts, err := j.detector.Run(ctx)
	if err != nil {
		return err
	}
	if len(alerts) > 0 {
		log.Printf("Anomaly scan raised %d alert(s)", len(alerts))
	}
	return nil
}

// ScheduleRecurringJobs starts the gocron scheduler with the daily
// anomaly scan and grace-period sweep. The returned scheduler is
// already running asynchronously.
func ScheduleRecurringJobs(detector *anomaly.Detector, verificationSvc *verification.Service) *gocron.Scheduler {
	scheduler := gocron.NewScheduler(time.UTC)

	scheduler.Every(1).Day().At("02:00").Do(func() {
		if _, err := detector.Run(context.Background()); err != nil {
			log.Printf("Scheduled anomaly scan failed: %v", err)
		}
	})

	scheduler.Every(1).Day().At("08:00").Do(func() {
		if err := verificationSvc.ScanGracePeriods(context.Background()); err != nil {
			log.Printf("Scheduled grace period scan failed: %v", err)
		}
	})

	scheduler.StartAsync()
	return scheduler
}
