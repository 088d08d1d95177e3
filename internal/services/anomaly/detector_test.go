package anomaly

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/repository"
)

// seedRejections backdates count REJECT reviews by the given offset.
func seedRejections(store *repository.MemoryStore, count int, ago time.Duration) {
	for i := 0; i < count; i++ {
		r := models.VerificationReview{
			ID:         uuid.New(),
			TenantID:   uuid.New(),
			Action:     models.ReviewActionReject,
			ReviewedBy: uuid.New(),
			Notes:      "insufficient documentation",
			CreatedAt:  time.Now().Add(-ago),
		}
		store.SeedReview(r)
	}
}

func seedApproval(store *repository.MemoryStore, createdDaysAgo int, verifiedAgo time.Duration) {
	now := time.Now()
	verified := now.Add(-verifiedAgo)
	t := models.Tenant{
		Name:              "Approved College",
		EligibilityStatus: models.EligibilityApproved,
		VerifiedAt:        &verified,
	}
	t.ID = uuid.New()
	t.CreatedAt = now.AddDate(0, 0, -createdDaysAgo)
	store.SeedTenant(t)
}

func TestRejectionSpikeDetection(t *testing.T) {
	store := repository.NewMemoryStore()

	// Baseline: 90 rejections over 30 days is 3 per day. Twenty today
	// is more than 4x the average, so the alert is HIGH.
	seedRejections(store, 70, 5*24*time.Hour)
	seedRejections(store, 20, time.Hour)

	d := NewDetector(store)
	alerts, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, models.AnomalyRejectionSpike, a.Type)
	assert.Equal(t, models.SeverityHigh, a.Severity)
	assert.Equal(t, float64(20), a.CurrentValue)
	assert.Equal(t, float64(3), a.ExpectedValue)
	assert.InDelta(t, 566.7, a.DeviationPercent, 0.1)
	assert.False(t, a.Acknowledged)
}

func TestRejectionSpikeQuietBaseline(t *testing.T) {
	store := repository.NewMemoryStore()

	// A steady trickle on earlier days with nothing today stays quiet.
	seedRejections(store, 4, 3*24*time.Hour)
	seedRejections(store, 3, 6*24*time.Hour)

	d := NewDetector(store)
	alerts, err := d.Run(context.Background())
	require.NoError(t, err)

	for _, a := range alerts {
		assert.NotEqual(t, models.AnomalyRejectionSpike, a.Type)
	}
}

func TestRejectionSpikeCountsTodayInTrailingWindow(t *testing.T) {
	store := repository.NewMemoryStore()

	// Today's rejections are part of the 30-day window, so even a
	// previously empty history alerts once today's count outpaces the
	// average it creates.
	seedRejections(store, 2, time.Hour)

	d := NewDetector(store)
	alerts, err := d.Run(context.Background())
	require.NoError(t, err)

	var spike *models.AnomalyAlert
	for i := range alerts {
		if alerts[i].Type == models.AnomalyRejectionSpike {
			spike = &alerts[i]
		}
	}
	require.NotNil(t, spike, "expected a rejection spike alert")
	assert.Equal(t, float64(2), spike.CurrentValue)
}

func TestProcessingDriftDetection(t *testing.T) {
	store := repository.NewMemoryStore()

	// Historical approvals averaging 4 days.
	for i := 0; i < 5; i++ {
		seedApproval(store, 14, 10*24*time.Hour)
	}
	// A fresh approval that took 25 days pulls the recent average far
	// off the baseline.
	seedApproval(store, 25, time.Hour)

	d := NewDetector(store)
	alerts, err := d.Run(context.Background())
	require.NoError(t, err)

	var drift *models.AnomalyAlert
	for i := range alerts {
		if alerts[i].Type == models.AnomalyProcessingTimeDrift {
			drift = &alerts[i]
		}
	}
	require.NotNil(t, drift, "expected a processing time drift alert")
	assert.Equal(t, models.SeverityHigh, drift.Severity)
	assert.Equal(t, MetricProcessingTime, drift.Metric)
}

func TestApplicationSurgeDetection(t *testing.T) {
	store := repository.NewMemoryStore()

	// Baseline 30 signups over 30 days; 10 more today pushes the rate
	// well past 6x the daily average.
	for i := 0; i < 30; i++ {
		tenant := models.Tenant{Name: "Old", EligibilityStatus: models.EligibilityPending}
		tenant.ID = uuid.New()
		tenant.CreatedAt = time.Now().AddDate(0, 0, -10)
		store.SeedTenant(tenant)
	}
	for i := 0; i < 10; i++ {
		tenant := models.Tenant{Name: "New", EligibilityStatus: models.EligibilityPending}
		tenant.ID = uuid.New()
		tenant.CreatedAt = time.Now().Add(-time.Hour)
		store.SeedTenant(tenant)
	}

	d := NewDetector(store)
	alerts, err := d.Run(context.Background())
	require.NoError(t, err)

	var surge *models.AnomalyAlert
	for i := range alerts {
		if alerts[i].Type == models.AnomalyApplicationSurge {
			surge = &alerts[i]
		}
	}
	require.NotNil(t, surge, "expected an application surge alert")
	assert.Equal(t, models.SeverityHigh, surge.Severity)
	assert.Equal(t, float64(10), surge.CurrentValue)
}

func TestRunIsIdempotentPerDay(t *testing.T) {
	store := repository.NewMemoryStore()
	seedRejections(store, 80, 5*24*time.Hour)
	seedRejections(store, 10, time.Hour)

	d := NewDetector(store)
	first, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second, "second run on the same day must not duplicate alerts")
	assert.Len(t, store.Alerts(), 1)
}

func TestSameDayAlertInsertsOnce(t *testing.T) {
	store := repository.NewMemoryStore()

	// Two scans racing past the idempotency probe both reach the batch
	// write; the (metric, day) bucket keeps a single row.
	alert := models.AnomalyAlert{
		Type:         models.AnomalyRejectionSpike,
		Severity:     models.SeverityMedium,
		Metric:       MetricDailyRejections,
		CurrentValue: 9,
		DetectedAt:   time.Now(),
		DetectedOn:   time.Now().Format("2006-01-02"),
	}

	require.NoError(t, store.Anomalies().CreateBatch(context.Background(), []models.AnomalyAlert{alert}))
	require.NoError(t, store.Anomalies().CreateBatch(context.Background(), []models.AnomalyAlert{alert}))

	stored, err := store.Anomalies().List(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestQuietDayProducesNoAlerts(t *testing.T) {
	store := repository.NewMemoryStore()
	seedRejections(store, 30, 10*24*time.Hour)

	d := NewDetector(store)
	alerts, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Empty(t, store.AuditEntries())
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	seedRejections(store, 80, 5*24*time.Hour)
	seedRejections(store, 10, time.Hour)

	d := NewDetector(store)
	alerts, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	stored := store.Alerts()
	require.Len(t, stored, 1)
	id := stored[0].ID

	require.NoError(t, d.Acknowledge(context.Background(), id))
	require.NoError(t, d.Acknowledge(context.Background(), id))

	ack := true
	got, err := d.List(context.Background(), &ack, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Acknowledged)
}
