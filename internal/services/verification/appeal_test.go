package verification

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduverify/backend/internal/apperr"
	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/notify"
)

const validReason = "Our accreditation certificate was renewed last month and the new issue resolves the concerns raised."

func TestOpenAppealRequiresSubstantialReason(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityRejected)

	_, err := f.svc.OpenAppeal(context.Background(), tenant.ID, "too short", nil)
	assert.True(t, apperr.IsValidation(err))

	// Exactly at the minimum passes.
	reason := strings.Repeat("x", models.MinAppealReasonLength)
	_, err = f.svc.OpenAppeal(context.Background(), tenant.ID, reason, nil)
	assert.NoError(t, err)
}

func TestOpenAppealOnlyAfterRejection(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityUnderReview)

	_, err := f.svc.OpenAppeal(context.Background(), tenant.ID, validReason, nil)
	assert.True(t, apperr.IsPrecondition(err))
}

func TestOpenAppealRejectsDuplicate(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityRejected)
	ctx := context.Background()

	_, err := f.svc.OpenAppeal(ctx, tenant.ID, validReason, nil)
	require.NoError(t, err)

	_, err = f.svc.OpenAppeal(ctx, tenant.ID, validReason, nil)
	assert.True(t, apperr.IsPrecondition(err))
}

func TestOpenAppealWritesAuditAndNotifies(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityRejected)

	appeal, err := f.svc.OpenAppeal(context.Background(), tenant.ID, validReason, []models.DocumentRef{
		{ID: uuid.New(), FileName: "renewal.pdf", FileURL: "uploads/renewal.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppealPending, appeal.Status)
	assert.Equal(t, models.EligibilityRejected, appeal.OriginalDecision)
	assert.False(t, appeal.SubmittedAt.IsZero())

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditAppealSubmitted, entries[0].Action)

	require.Len(t, f.recorder.Events, 1)
	assert.Equal(t, notify.EventAppealReceived, f.recorder.Events[0].Type)
}

func TestDecideAppealApprovalCascadesToTenant(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityRejected)
	ctx := context.Background()

	appeal, err := f.svc.OpenAppeal(ctx, tenant.ID, validReason, nil)
	require.NoError(t, err)

	reviewer := uuid.New()
	decided, err := f.svc.DecideAppeal(ctx, appeal.ID, reviewer, models.AppealApproved, "")
	require.NoError(t, err)
	assert.Equal(t, models.AppealApproved, decided.Status)
	require.NotNil(t, decided.ReviewedAt)
	assert.Equal(t, reviewer, *decided.ReviewedBy)

	got, err := f.store.Tenants().Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EligibilityApproved, got.EligibilityStatus)
	assert.NotNil(t, got.VerifiedAt)
}

func TestDecideAppealRequiresNotesForNonApproval(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityRejected)
	ctx := context.Background()

	appeal, err := f.svc.OpenAppeal(ctx, tenant.ID, validReason, nil)
	require.NoError(t, err)

	_, err = f.svc.DecideAppeal(ctx, appeal.ID, uuid.New(), models.AppealRejected, "")
	assert.True(t, apperr.IsValidation(err))
}

func TestDecideAppealAlreadyDecided(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityRejected)
	ctx := context.Background()

	appeal, err := f.svc.OpenAppeal(ctx, tenant.ID, validReason, nil)
	require.NoError(t, err)
	_, err = f.svc.DecideAppeal(ctx, appeal.ID, uuid.New(), models.AppealRejected, "insufficient evidence")
	require.NoError(t, err)

	_, err = f.svc.DecideAppeal(ctx, appeal.ID, uuid.New(), models.AppealApproved, "")
	assert.True(t, apperr.IsPrecondition(err))

	// A rejected appeal leaves the tenant rejected.
	got, _ := f.store.Tenants().Get(ctx, tenant.ID)
	assert.Equal(t, models.EligibilityRejected, got.EligibilityStatus)
}

func TestResubmitAppealInfoReopensReview(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityRejected)
	ctx := context.Background()

	appeal, err := f.svc.OpenAppeal(ctx, tenant.ID, validReason, nil)
	require.NoError(t, err)
	_, err = f.svc.DecideAppeal(ctx, appeal.ID, uuid.New(), models.AppealMoreInfoRequested, "please attach the renewal letter")
	require.NoError(t, err)

	updated, err := f.svc.ResubmitAppealInfo(ctx, appeal.ID, "Renewal letter attached.", []models.DocumentRef{
		{ID: uuid.New(), FileName: "letter.pdf", FileURL: "uploads/letter.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppealPending, updated.Status)
	assert.Contains(t, updated.AppealReason, "Renewal letter attached.")
	assert.Len(t, updated.SupportingDocuments, 1)

	var actions []models.AuditAction
	for _, e := range f.store.AuditEntries() {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, models.AuditAppealInfoProvided)
}

func TestResubmitAppealInfoWrongState(t *testing.T) {
	f := newFixture()
	tenant := f.seedTenant(models.EligibilityRejected)
	ctx := context.Background()

	appeal, err := f.svc.OpenAppeal(ctx, tenant.ID, validReason, nil)
	require.NoError(t, err)

	_, err = f.svc.ResubmitAppealInfo(ctx, appeal.ID, "extra context", nil)
	assert.True(t, apperr.IsPrecondition(err))
}
