package analytics

import (
	"context"
	"time"

	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/repository"
)

// Summary is the operational overview for the admin dashboard.
type Summary struct {
	StatusCounts            map[models.EligibilityStatus]int64 `json:"status_counts"`
	ApprovedLast30Days      int                                `json:"approved_last_30_days"`
	AvgProcessingDays       int                                `json:"avg_processing_days"`
	UnacknowledgedAnomalies int                                `json:"unacknowledged_anomalies"`
	GeneratedAt             time.Time                          `json:"generated_at"`
}

// Summarizer aggregates verification trends.
type Summarizer struct {
	store repository.Store
	now   func() time.Time
}

// NewSummarizer builds a summarizer over the store.
func NewSummarizer(store repository.Store) *Summarizer {
	return &Summarizer{store: store, now: time.Now}
}

// Summarize counts tenants per status and reports the recent approval
// throughput alongside open anomaly alerts.
func (s *Summarizer) Summarize(ctx context.Context) (*Summary, error) {
	now := s.now()
	counts := make(map[models.EligibilityStatus]int64)
	for _, status := range []models.EligibilityStatus{
		models.EligibilityPending,
		models.EligibilityUnderReview,
		models.EligibilityApproved,
		models.EligibilityRejected,
		models.EligibilityRequiresMoreInfo,
	} {
		_, total, err := s.store.Tenants().ListByStatus(ctx, status, 1, 0)
		if err != nil {
			return nil, err
		}
		counts[status] = total
	}

	predictor := &Predictor{store: s.store, now: s.now}
	avgDays, err := predictor.averageProcessingDays(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.store.Tenants().ListApprovedBetween(ctx, now.AddDate(0, 0, -30), now)
	if err != nil {
		return nil, err
	}

	ack := false
	open, err := s.store.Anomalies().List(ctx, &ack, 0)
	if err != nil {
		return nil, err
	}

	return &Summary{
		StatusCounts:            counts,
		ApprovedLast30Days:      len(recent),
		AvgProcessingDays:       avgDays,
		UnacknowledgedAnomalies: len(open),
		GeneratedAt:             now,
	}, nil
}
