// Package anomaly watches the verification pipeline for operational
// deviations: rejection spikes, processing-time drift and application
// surges. Checks run independently so one failing query never hides
// the other signals; alerts for a run are written as a single batch.
package anomaly

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/repository"
)

// Metric names, one per check. Idempotency is keyed on (day, metric).
const (
	MetricDailyRejections   = "daily_rejections"
	MetricProcessingTime    = "processing_time"
	MetricDailyApplications = "daily_applications"
)

// Detector runs the scheduled anomaly scan.
type Detector struct {
	store repository.Store
	now   func() time.Time
}

// NewDetector builds a detector over the store.
func NewDetector(store repository.Store) *Detector {
	return &Detector{store: store, now: time.Now}
}

// Run executes all three checks and persists the resulting alerts as
// one batch. Re-running within the same calendar day is a no-op for
// any metric that already alerted. Returns the alerts written by this
// run.
func (d *Detector) Run(ctx context.Context) ([]models.AnomalyAlert, error) {
	now := d.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	checks := []struct {
		metric string
		fn     func(ctx context.Context, now, dayStart time.Time) (*models.AnomalyAlert, error)
	}{
		{MetricDailyRejections, d.checkRejectionSpike},
		{MetricProcessingTime, d.checkProcessingDrift},
		{MetricDailyApplications, d.checkApplicationSurge},
	}

	var alerts []models.AnomalyAlert
	for _, c := range checks {
		exists, err := d.store.Anomalies().ExistsSince(ctx, c.metric, dayStart)
		if err != nil {
			log.Printf("Anomaly check %s skipped, idempotency lookup failed: %v", c.metric, err)
			continue
		}
		if exists {
			continue
		}

		alert, err := c.fn(ctx, now, dayStart)
		if err != nil {
			// One failing check must not suppress the others.
			log.Printf("Anomaly check %s failed: %v", c.metric, err)
			continue
		}
		if alert != nil {
			alert.DetectedOn = dayStart.Format("2006-01-02")
			alerts = append(alerts, *alert)
		}
	}

	if len(alerts) == 0 {
		return nil, nil
	}

	err := d.store.Atomic(ctx, func(tx repository.Store) error {
		if err := tx.Anomalies().CreateBatch(ctx, alerts); err != nil {
			return fmt.Errorf("failed to store anomaly alerts: %w", err)
		}
		types := make([]string, 0, len(alerts))
		for _, a := range alerts {
			types = append(types, string(a.Type))
		}
		entry := &models.AuditEntry{
			Action:      models.AuditAnomalyDetected,
			Details:     models.JSON{"alerts": len(alerts), "types": types},
			PerformedBy: "anomaly-detector",
		}
		return tx.Audit().Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Anomaly scan recorded %d alert(s)", len(alerts))
	return alerts, nil
}

// checkRejectionSpike compares today's rejection count against twice
// the trailing 30-day daily average.
func (d *Detector) checkRejectionSpike(ctx context.Context, now, dayStart time.Time) (*models.AnomalyAlert, error) {
	reviews := d.store.Reviews()

	today, err := reviews.CountByActionBetween(ctx, models.ReviewActionReject, dayStart, now.Add(time.Second))
	if err != nil {
		return nil, err
	}
	total, err := reviews.CountByActionBetween(ctx, models.ReviewActionReject, now.AddDate(0, 0, -30), now.Add(time.Second))
	if err != nil {
		return nil, err
	}

	avgDaily := float64(total) / 30
	threshold := avgDaily * 2
	current := float64(today)
	if threshold <= 0 || current <= threshold {
		return nil, nil
	}

	severity := models.SeverityMedium
	if current > threshold*2 {
		severity = models.SeverityHigh
	}
	return &models.AnomalyAlert{
		Type:             models.AnomalyRejectionSpike,
		Severity:         severity,
		Description:      fmt.Sprintf("Rejection count (%d) is %.1fx above average", today, current/avgDaily),
		Metric:           MetricDailyRejections,
		CurrentValue:     current,
		ExpectedValue:    math.Round(avgDaily),
		DeviationPercent: (current - avgDaily) / avgDaily * 100,
		DetectedAt:       now,
	}, nil
}

// checkProcessingDrift compares the average turnaround of the last 24
// hours of approvals against the trailing 30-day average.
func (d *Detector) checkProcessingDrift(ctx context.Context, now, dayStart time.Time) (*models.AnomalyAlert, error) {
	tenants := d.store.Tenants()

	historical, err := tenants.ListApprovedBetween(ctx, now.AddDate(0, 0, -30), now.Add(time.Second))
	if err != nil {
		return nil, err
	}
	histAvg := float64(defaultProcessingDays)
	if len(historical) > 0 {
		histAvg = averageDays(historical)
	}

	recent, err := tenants.ListApprovedBetween(ctx, now.Add(-24*time.Hour), now.Add(time.Second))
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, nil
	}
	recentAvg := averageDays(recent)

	deviation := math.Abs(recentAvg-histAvg) / histAvg
	if deviation <= 0.5 {
		return nil, nil
	}

	severity := models.SeverityMedium
	if deviation > 1 {
		severity = models.SeverityHigh
	}
	return &models.AnomalyAlert{
		Type:             models.AnomalyProcessingTimeDrift,
		Severity:         severity,
		Description:      fmt.Sprintf("Recent average processing time (%.1f days) differs significantly from historical average (%.1f days)", recentAvg, histAvg),
		Metric:           MetricProcessingTime,
		CurrentValue:     recentAvg,
		ExpectedValue:    histAvg,
		DeviationPercent: deviation * 100,
		DetectedAt:       now,
	}, nil
}

// checkApplicationSurge compares today's signups against three times
// the trailing 30-day daily average.
func (d *Detector) checkApplicationSurge(ctx context.Context, now, dayStart time.Time) (*models.AnomalyAlert, error) {
	tenants := d.store.Tenants()

	today, err := tenants.CountCreatedSince(ctx, dayStart)
	if err != nil {
		return nil, err
	}
	total, err := tenants.CountCreatedSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}

	avgDaily := float64(total) / 30
	threshold := avgDaily * 3
	current := float64(today)
	if threshold <= 0 || current <= threshold {
		return nil, nil
	}

	severity := models.SeverityMedium
	if current > threshold*2 {
		severity = models.SeverityHigh
	}
	return &models.AnomalyAlert{
		Type:             models.AnomalyApplicationSurge,
		Severity:         severity,
		Description:      fmt.Sprintf("Application surge detected: %d new applications today (%.1fx above average)", today, current/avgDaily),
		Metric:           MetricDailyApplications,
		CurrentValue:     current,
		ExpectedValue:    math.Round(avgDaily),
		DeviationPercent: (current - avgDaily) / avgDaily * 100,
		DetectedAt:       now,
	}, nil
}

// defaultProcessingDays mirrors the predictor's fallback when no
// approvals exist to average.
const defaultProcessingDays = 5

func averageDays(tenants []models.Tenant) float64 {
	var total float64
	for _, t := range tenants {
		total += math.Ceil(t.VerifiedAt.Sub(t.CreatedAt).Hours() / 24)
	}
	return total / float64(len(tenants))
}

// Acknowledge marks an alert as seen. Acknowledging twice is a no-op.
func (d *Detector) Acknowledge(ctx context.Context, id uuid.UUID) error {
	return d.store.Anomalies().Acknowledge(ctx, id)
}

// List returns stored alerts, optionally filtered by acknowledgement.
func (d *Detector) List(ctx context.Context, acknowledged *bool, limit int) ([]models.AnomalyAlert, error) {
	return d.store.Anomalies().List(ctx, acknowledged, limit)
}
