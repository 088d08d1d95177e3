package verification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduverify/backend/internal/apperr"
	"github.com/eduverify/backend/internal/models"
)

func TestBulkReviewMixedBatch(t *testing.T) {
	f := newFixture()
	reviewable := f.seedTenant(models.EligibilityUnderReview)
	alsoReviewable := f.seedTenant(models.EligibilityUnderReview)
	alreadyDone := f.seedTenant(models.EligibilityApproved)
	missing := uuid.New()

	result, err := f.svc.BulkReview(context.Background(),
		[]uuid.UUID{reviewable.ID, alreadyDone.ID, missing, alsoReviewable.ID},
		uuid.New(), models.ReviewActionApprove, "")
	require.NoError(t, err)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Outcomes, 4)
	assert.Equal(t, "applied", result.Outcomes[0].Status)
	assert.Equal(t, "skipped", result.Outcomes[1].Status)
	assert.Equal(t, "skipped", result.Outcomes[2].Status)

	// Applied tenants went through the ordinary review path.
	got, err := f.store.Tenants().Get(context.Background(), reviewable.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EligibilityApproved, got.EligibilityStatus)
	assert.NotNil(t, got.VerifiedAt)

	reviews, err := f.store.Reviews().ListByTenant(context.Background(), reviewable.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestBulkReviewValidation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.BulkReview(context.Background(), nil, uuid.New(), models.ReviewActionApprove, "")
	assert.True(t, apperr.IsValidation(err))

	_, err = f.svc.BulkReview(context.Background(), []uuid.UUID{uuid.New()}, uuid.New(), "ESCALATE", "")
	assert.True(t, apperr.IsValidation(err))

	// A skip never fails the batch, but missing notes on a rejection do.
	_, err = f.svc.BulkReview(context.Background(), []uuid.UUID{uuid.New()}, uuid.New(), models.ReviewActionReject, "")
	assert.True(t, apperr.IsValidation(err))
}

func TestExportByStatus(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityUnderReview)
	f.seedTenant(models.EligibilityPending)

	f.store.SeedDocument(models.VerificationDocument{
		Base:         models.Base{ID: uuid.New(), CreatedAt: time.Now()},
		TenantID:     tenant.ID,
		DocumentType: models.DocumentTypeAccreditation,
		FileName:     "accreditation.pdf",
		Status:       models.DocumentPending,
	})
	f.store.SeedDocument(models.VerificationDocument{
		Base:         models.Base{ID: uuid.New(), CreatedAt: time.Now()},
		TenantID:     tenant.ID,
		DocumentType: models.DocumentTypeEnrollmentData,
		FileName:     "old-enrollment.pdf",
		Status:       models.DocumentSuperseded,
	})
	f.store.SeedReview(models.VerificationReview{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		Action:     models.ReviewActionRequestMoreInfo,
		ReviewedBy: uuid.New(),
		Notes:      "need a current enrollment snapshot",
		CreatedAt:  time.Now(),
	})

	rows, err := f.svc.ExportByStatus(context.Background(), models.EligibilityUnderReview)
	require.NoError(t, err)
	require.Len(t, rows, 1, "only tenants in the requested status are exported")

	row := rows[0]
	assert.Equal(t, tenant.ID, row.TenantID)
	assert.Equal(t, 1, row.DocumentsSubmitted, "superseded documents do not count")
	assert.Equal(t, string(models.DocumentTypeAccreditation), row.DocumentTypes)
	assert.Equal(t, string(models.ReviewActionRequestMoreInfo), row.LastReviewAction)
	assert.NotEmpty(t, row.CreatedAt)
}

func TestExportByStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ExportByStatus(context.Background(), "ACTIVE")
	assert.True(t, apperr.IsValidation(err))
}
