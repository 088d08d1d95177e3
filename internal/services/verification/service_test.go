package verification

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduverify/backend/internal/apperr"
	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/notify"
	"github.com/eduverify/backend/internal/repository"
)

// fakeBlobs records saves and removals without touching disk.
type fakeBlobs struct {
	saved   []string
	removed []string
	failErr error
}

func (f *fakeBlobs) Save(ctx context.Context, tenantID uuid.UUID, fileName string, r io.Reader) (string, error) {
	if f.failErr != nil {
		return "", f.failErr
	}
	url := fmt.Sprintf("uploads/%s/%s", tenantID, fileName)
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeBlobs) Remove(ctx context.Context, url string) error {
	f.removed = append(f.removed, url)
	return nil
}

type fixture struct {
	store    *repository.MemoryStore
	blobs    *fakeBlobs
	recorder *notify.Recorder
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:    repository.NewMemoryStore(),
		blobs:    &fakeBlobs{},
		recorder: &notify.Recorder{},
	}
	f.svc = NewService(f.store, f.blobs, f.recorder)
	return f
}

func (f *fixture) seedTenant(status models.EligibilityStatus) models.Tenant {
	t := models.Tenant{
		Name:              "Test University",
		ContactEmail:      "registrar@test.edu",
		Domain:            "test.edu",
		StudentCount:      2000,
		EligibilityStatus: status,
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	f.store.SeedTenant(t)
	return t
}

func pdfUpload(name string) SubmitDocumentInput {
	return SubmitDocumentInput{
		DocumentType: models.DocumentTypeAccreditation,
		FileName:     name,
		ContentType:  "application/pdf",
		FileSize:     1024,
		Content:      strings.NewReader("pdf"),
	}
}

func TestSubmitDocumentRejectsOversizeWithoutTrace(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityPending)

	in := pdfUpload("huge.pdf")
	in.FileSize = 11 << 20

	_, err := f.svc.SubmitDocument(context.Background(), tenant.ID, in)
	assert.True(t, apperr.IsValidation(err))

	docs, err := f.store.Documents().ListByTenant(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, docs, "no document row may survive a rejected upload")
	assert.Empty(t, f.blobs.saved, "no blob may be written for a rejected upload")
}

func TestSubmitDocumentRejectsBadContentType(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityPending)

	in := pdfUpload("archive.zip")
	in.ContentType = "application/zip"

	_, err := f.svc.SubmitDocument(context.Background(), tenant.ID, in)
	assert.True(t, apperr.IsValidation(err))
}

func TestSubmitDocumentTerminalTenant(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityApproved)

	_, err := f.svc.SubmitDocument(context.Background(), tenant.ID, pdfUpload("late.pdf"))
	assert.True(t, apperr.IsPrecondition(err))
}

func TestSubmitDocumentAdvancesPendingToUnderReview(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityPending)

	doc, err := f.svc.SubmitDocument(context.Background(), tenant.ID, pdfUpload("cert.pdf"))
	require.NoError(t, err)
	assert.Equal(t, models.DocumentPending, doc.Status)

	got, err := f.store.Tenants().Get(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EligibilityUnderReview, got.EligibilityStatus)

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditDocumentSubmitted, entries[0].Action)
	assert.Equal(t, string(models.EligibilityPending), entries[0].Details["status_from"])

	require.Len(t, f.recorder.Events, 1)
	assert.Equal(t, notify.EventDocumentReceived, f.recorder.Events[0].Type)
}

func TestSubmitDocumentSupersedesPreviousUpload(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityPending)
	ctx := context.Background()

	first, err := f.svc.SubmitDocument(ctx, tenant.ID, pdfUpload("cert-v1.pdf"))
	require.NoError(t, err)
	_, err = f.svc.SubmitDocument(ctx, tenant.ID, pdfUpload("cert-v2.pdf"))
	require.NoError(t, err)

	old, err := f.store.Documents().Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentSuperseded, old.Status, "old upload is retained, not deleted")

	var actions []models.AuditAction
	for _, e := range f.store.AuditEntries() {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, models.AuditDocumentSuperseded)
}

func TestSubmitDocumentReturnsToPendingAfterFullResubmission(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityRequiresMoreInfo)
	ctx := context.Background()

	// Cover four of the five required types directly.
	for _, dt := range models.RequiredDocumentTypes()[1:] {
		d := models.VerificationDocument{
			TenantID:     tenant.ID,
			DocumentType: dt,
			FileName:     "seed.pdf",
			FileURL:      "uploads/seed.pdf",
			Status:       models.DocumentUnderReview,
		}
		d.ID = uuid.New()
		f.store.SeedDocument(d)
	}

	// Still one type missing, so the first upload of a duplicate type
	// leaves the status alone.
	in := pdfUpload("extra.pdf")
	in.DocumentType = models.DocumentTypeEnrollmentData
	_, err := f.svc.SubmitDocument(ctx, tenant.ID, in)
	require.NoError(t, err)
	got, _ := f.store.Tenants().Get(ctx, tenant.ID)
	assert.Equal(t, models.EligibilityRequiresMoreInfo, got.EligibilityStatus)

	// Covering the last missing type completes the resubmission.
	_, err = f.svc.SubmitDocument(ctx, tenant.ID, pdfUpload("cert.pdf"))
	require.NoError(t, err)
	got, _ = f.store.Tenants().Get(ctx, tenant.ID)
	assert.Equal(t, models.EligibilityPending, got.EligibilityStatus)
}

func TestRecordReviewRequiresNotesForNonApproval(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityUnderReview)

	_, err := f.svc.RecordReview(context.Background(), tenant.ID, uuid.New(), models.ReviewActionReject, "")
	assert.True(t, apperr.IsValidation(err))
}

func TestRecordReviewApproveStampsTenantAndDocuments(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityUnderReview)
	ctx := context.Background()

	d := models.VerificationDocument{
		TenantID:     tenant.ID,
		DocumentType: models.DocumentTypeAccreditation,
		FileName:     "cert.pdf",
		FileURL:      "uploads/cert.pdf",
		Status:       models.DocumentPending,
	}
	d.ID = uuid.New()
	f.store.SeedDocument(d)

	reviewer := uuid.New()
	review, err := f.svc.RecordReview(ctx, tenant.ID, reviewer, models.ReviewActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewActionApprove, review.Action)

	got, err := f.store.Tenants().Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EligibilityApproved, got.EligibilityStatus)
	require.NotNil(t, got.VerifiedAt)

	doc, err := f.store.Documents().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentApproved, doc.Status)

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditReviewRecorded, entries[0].Action)
	assert.Equal(t, string(models.EligibilityUnderReview), entries[0].Details["status_from"])
	assert.Equal(t, string(models.EligibilityApproved), entries[0].Details["status_to"])

	require.Len(t, f.recorder.Events, 1)
	assert.Equal(t, notify.EventEligibilityConfirmed, f.recorder.Events[0].Type)
}

func TestRecordReviewTerminalTenant(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityRejected)

	_, err := f.svc.RecordReview(context.Background(), tenant.ID, uuid.New(), models.ReviewActionApprove, "")
	assert.True(t, apperr.IsPrecondition(err))
}

func TestRecordReviewRetriesOnceThenSurfacesConflict(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityUnderReview)

	// One stale write: the transparent retry wins.
	f.store.FailTenantUpdate = 1
	_, err := f.svc.RecordReview(context.Background(), tenant.ID, uuid.New(), models.ReviewActionApprove, "")
	require.NoError(t, err)

	// Two stale writes in a row exhaust the retry budget.
	tenant2 := f.seedTenant(models.EligibilityUnderReview)
	f.store.FailTenantUpdate = 2
	_, err = f.svc.RecordReview(context.Background(), tenant2.ID, uuid.New(), models.ReviewActionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrConcurrencyConflict)

	// The loser left no partial transition behind.
	got, _ := f.store.Tenants().Get(context.Background(), tenant2.ID)
	assert.Equal(t, models.EligibilityUnderReview, got.EligibilityStatus)
}

func TestAuditFailureRollsBackTransition(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityUnderReview)
	f.store.FailAudit = fmt.Errorf("audit table unavailable")

	_, err := f.svc.RecordReview(context.Background(), tenant.ID, uuid.New(), models.ReviewActionApprove, "")
	require.Error(t, err)

	got, _ := f.store.Tenants().Get(context.Background(), tenant.ID)
	assert.Equal(t, models.EligibilityUnderReview, got.EligibilityStatus, "transition must roll back with the audit write")

	reviews, _ := f.store.Reviews().ListByTenant(context.Background(), tenant.ID)
	assert.Empty(t, reviews, "review row must roll back with the audit write")
	assert.Empty(t, f.recorder.Events)
}

func TestGetStatusReportsCoverageAndGrace(t *testing.T) {
	f := newFixture()
	deadline := time.Now().Add(5 * 24 * time.Hour)
	tenant := models.Tenant{
		Name:                "Grace College",
		ContactEmail:        "admin@grace.edu",
		EligibilityStatus:   models.EligibilityUnderReview,
		EligibilityDeadline: &deadline,
	}
	tenant.ID = uuid.New()
	tenant.CreatedAt = time.Now()
	f.store.SeedTenant(tenant)

	d := models.VerificationDocument{
		TenantID:     tenant.ID,
		DocumentType: models.DocumentTypeAccreditation,
		FileName:     "cert.pdf",
		FileURL:      "uploads/cert.pdf",
		Status:       models.DocumentUnderReview,
	}
	d.ID = uuid.New()
	f.store.SeedDocument(d)

	report, err := f.svc.GetStatus(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Len(t, report.Documents, 1)
	assert.Len(t, report.MissingTypes, 4)
	assert.NotContains(t, report.MissingTypes, models.DocumentTypeAccreditation)
	assert.Equal(t, models.GraceWarning, report.GraceTier)
	require.NotNil(t, report.DaysToDeadline)
	assert.Equal(t, 5, *report.DaysToDeadline)
}

func TestGetStatusUnknownTenant(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetStatus(context.Background(), uuid.New())
	assert.True(t, apperr.IsNotFound(err))
}
