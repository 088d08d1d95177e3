package verification

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/apperr"
	"github.com/eduverify/backend/internal/models"
)

// MaxBulkReviewSize bounds one bulk request.
const MaxBulkReviewSize = 100

// BulkReviewOutcome records what happened to one tenant in a bulk run.
type BulkReviewOutcome struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Status   string    `json:"status"` // applied, skipped or failed
	Reason   string    `json:"reason,omitempty"`
}

// BulkReviewResult summarizes a bulk review run.
type BulkReviewResult struct {
	Total    int                 `json:"total"`
	Applied  int                 `json:"applied"`
	Skipped  int                 `json:"skipped"`
	Failed   int                 `json:"failed"`
	Outcomes []BulkReviewOutcome `json:"outcomes"`
}

// BulkReview applies the same reviewer decision to a batch of tenants.
// Each tenant goes through the ordinary review path, so transitions,
// audit entries and notifications are identical to a one-off review.
// Tenants that cannot take the decision are skipped, never failing the
// batch.
func (s *Service) BulkReview(ctx context.Context, tenantIDs []uuid.UUID, reviewerID uuid.UUID, action models.ReviewAction, notes string) (*BulkReviewResult, error) {
	if len(tenantIDs) == 0 {
		return nil, apperr.Validationf("at least one tenant id is required")
	}
	if len(tenantIDs) > MaxBulkReviewSize {
		return nil, apperr.Validationf("at most %d tenants per bulk review", MaxBulkReviewSize)
	}
	if !models.ValidReviewAction(action) {
		return nil, apperr.Validationf("unknown review action %q", action)
	}
	if action != models.ReviewActionApprove && strings.TrimSpace(notes) == "" {
		return nil, apperr.Validationf("notes are required for %s", action)
	}

	result := &BulkReviewResult{Total: len(tenantIDs)}
	for _, tenantID := range tenantIDs {
		_, err := s.RecordReview(ctx, tenantID, reviewerID, action, notes)
		switch {
		case err == nil:
			result.Applied++
			result.Outcomes = append(result.Outcomes, BulkReviewOutcome{TenantID: tenantID, Status: "applied"})
		case apperr.IsNotFound(err), apperr.IsPrecondition(err):
			result.Skipped++
			result.Outcomes = append(result.Outcomes, BulkReviewOutcome{TenantID: tenantID, Status: "skipped", Reason: err.Error()})
		default:
			result.Failed++
			result.Outcomes = append(result.Outcomes, BulkReviewOutcome{TenantID: tenantID, Status: "failed", Reason: err.Error()})
		}
	}
	return result, nil
}

// ExportRow is one line of the admin verification export.
type ExportRow struct {
	TenantID           uuid.UUID                `json:"tenant_id"`
	Name               string                   `json:"name"`
	ContactEmail       string                   `json:"contact_email"`
	StudentCount       int                      `json:"student_count"`
	Status             models.EligibilityStatus `json:"status"`
	Deadline           string                   `json:"deadline"`
	CreatedAt          string                   `json:"created_at"`
	DocumentsSubmitted int                      `json:"documents_submitted"`
	DocumentTypes      string                   `json:"document_types"`
	LastReviewAction   string                   `json:"last_review_action"`
	LastReviewNotes    string                   `json:"last_review_notes"`
}

// ExportByStatus assembles the full verification export for every
// tenant in the given status, newest first.
func (s *Service) ExportByStatus(ctx context.Context, status models.EligibilityStatus) ([]ExportRow, error) {
	tenants, _, err := s.ReviewQueue(ctx, status, 0, 0)
	if err != nil {
		return nil, err
	}

	rows := make([]ExportRow, 0, len(tenants))
	for _, tenant := range tenants {
		row := ExportRow{
			TenantID:     tenant.ID,
			Name:         tenant.Name,
			ContactEmail: tenant.ContactEmail,
			StudentCount: tenant.StudentCount,
			Status:       tenant.EligibilityStatus,
			CreatedAt:    tenant.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if tenant.EligibilityDeadline != nil {
			row.Deadline = tenant.EligibilityDeadline.UTC().Format("2006-01-02T15:04:05Z")
		}

		docs, err := s.store.Documents().ListByTenant(ctx, tenant.ID)
		if err != nil {
			return nil, err
		}
		types := make([]string, 0, len(docs))
		for _, d := range docs {
			if d.Status.Active() {
				types = append(types, string(d.DocumentType))
			}
		}
		row.DocumentsSubmitted = len(types)
		row.DocumentTypes = strings.Join(types, "; ")

		reviews, err := s.store.Reviews().ListByTenant(ctx, tenant.ID)
		if err != nil {
			return nil, err
		}
		if len(reviews) > 0 {
			last := reviews[0]
			for _, r := range reviews[1:] {
				if r.CreatedAt.After(last.CreatedAt) {
					last = r
				}
			}
			row.LastReviewAction = string(last.Action)
			row.LastReviewNotes = last.Notes
		}

		rows = append(rows, row)
	}
	return rows, nil
}
