package analytics

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

func seedApprovedTenant(store *repository.MemoryStore, createdDaysAgo, verifiedDaysAgo int) {
	now := time.Now()
	verified := now.AddDate(0, 0, -verifiedDaysAgo)
	t := models.Tenant{
		Name:              "Approved College",
		EligibilityStatus: models.EligibilityApproved,
		VerifiedAt:        &verified,
	}
	t.ID = uuid.New()
	t.CreatedAt = now.AddDate(0, 0, -createdDaysAgo)
	store.SeedTenant(t)
}

func TestPredictDefaultsWithoutHistory(t *testing.T) {
	store := repository.NewMemoryStore()
	tenant := seedTenant(store, models.EligibilityPending, 2000)

	p := NewPredictor(store)
	pred, err := p.Predict(context.Background(), tenant.ID)
	require.NoError(t, err)

	// Base 5 days, no analysis yet: 5 * 1.1 rounds to 6.
	assert.Equal(t, 6, pred.EstimatedDays)
	assert.Equal(t, 0.75, pred.Confidence)
	assert.Equal(t, 4, pred.RangeMinDays)
	assert.Equal(t, 8, pred.RangeMaxDays)
	assert.Len(t, pred.Factors, 2)
}

func TestPredictUsesTrailingApprovalAverage(t *testing.T) {
	store := repository.NewMemoryStore()
	tenant := seedTenant(store, models.EligibilityUnderReview, 2000)

	// Two recent approvals averaging 10 processing days.
	seedApprovedTenant(store, 12, 4) // 8 days
	seedApprovedTenant(store, 14, 2) // 12 days

	// An approval outside the window must not affect the average.
	old := time.Now().AddDate(0, 0, -60)
	stale := models.Tenant{
		Name:              "Old College",
		EligibilityStatus: models.EligibilityApproved,
		VerifiedAt:        &old,
	}
	stale.ID = uuid.New()
	stale.CreatedAt = old.AddDate(0, 0, -90)
	store.SeedTenant(stale)

	p := NewPredictor(store)
	pred, err := p.Predict(context.Background(), tenant.ID)
	require.NoError(t, err)

	// Base 10 days, pending analysis: 10 * 1.1 = 11.
	assert.Equal(t, 11, pred.EstimatedDays)
}

func TestPredictAnalyzedDocumentsLowerEstimate(t *testing.T) {
	store := repository.NewMemoryStore()
	tenant := seedTenant(store, models.EligibilityUnderReview, 2000)
	for _, dt := range models.RequiredDocumentTypes() {
		seedDoc(store, tenant.ID, dt, models.DocumentUnderReview, 0.9, 0.9)
	}

	p := NewPredictor(store)
	pred, err := p.Predict(context.Background(), tenant.ID)
	require.NoError(t, err)

	// Base 5 days, analyzed: 5 * 0.9 rounds to 5 (away from zero).
	assert.Equal(t, 5, pred.EstimatedDays)
	// Five documents: 0.75 + 5*0.03 = 0.90.
	assert.InDelta(t, 0.90, pred.Confidence, 1e-9)
}

func TestPredictConfidenceCap(t *testing.T) {
	store := repository.NewMemoryStore()
	tenant := seedTenant(store, models.EligibilityUnderReview, 2000)
	for i := 0; i < 8; i++ {
		seedDoc(store, tenant.ID, models.DocumentTypeOther, models.DocumentUnderReview, 0, 0)
	}

	p := NewPredictor(store)
	pred, err := p.Predict(context.Background(), tenant.ID)
	require.NoError(t, err)

	// Eight documents would push confidence to 0.99; the cap holds.
	assert.Equal(t, 0.95, pred.Confidence)
}

func TestPredictRangeFloorsAtOneDay(t *testing.T) {
	store := repository.NewMemoryStore()
	tenant := seedTenant(store, models.EligibilityUnderReview, 2000)

	// A one-day approval drives the average down to 1 day.
	seedApprovedTenant(store, 2, 1)

	p := NewPredictor(store)
	pred, err := p.Predict(context.Background(), tenant.ID)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, pred.RangeMinDays, 1)
	assert.GreaterOrEqual(t, pred.RangeMaxDays, pred.RangeMinDays)
}

func TestSummarizeCountsAndAnomalies(t *testing.T) {
	store := repository.NewMemoryStore()
	seedTenant(store, models.EligibilityPending, 2000)
	seedTenant(store, models.EligibilityPending, 2000)
	seedApprovedTenant(store, 10, 3)

	require.NoError(t, store.Anomalies().CreateBatch(context.Background(), []models.AnomalyAlert{
		{Type: models.AnomalyRejectionSpike, Severity: models.SeverityHigh, Metric: "daily_rejection_rate", DetectedAt: time.Now()},
	}))

	s := NewSummarizer(store)
	sum, err := s.Summarize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), sum.StatusCounts[models.EligibilityPending])
	assert.Equal(t, int64(1), sum.StatusCounts[models.EligibilityApproved])
	assert.Equal(t, 1, sum.ApprovedLast30Days)
	assert.Equal(t, 7, sum.AvgProcessingDays)
	assert.Equal(t, 1, sum.UnacknowledgedAnomalies)
}
