package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/apperr"
	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/notify"
	"github.com/eduverify/backend/internal/repository"
)

// OpenAppeal files a secondary review request against a rejection.
// Only a REJECTED tenant may appeal, and only one appeal may be open
// at a time.
func (s *Service) OpenAppeal(ctx context.Context, tenantID uuid.UUID, reason string, supportingDocs []models.DocumentRef) (*models.Appeal, error) {
	if len(reason) < models.MinAppealReasonLength {
		return nil, apperr.Validationf("appeal reason must be at least %d characters", models.MinAppealReasonLength)
	}

	appeal := &models.Appeal{
		TenantID:            tenantID,
		OriginalDecision:    models.EligibilityRejected,
		AppealReason:        reason,
		SupportingDocuments: supportingDocs,
		Status:              models.AppealPending,
	}

	var tenant models.Tenant
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		fresh, err := tx.Tenants().Get(ctx, tenantID)
		if err != nil {
			return err
		}
		if fresh.EligibilityStatus != models.EligibilityRejected {
			return apperr.Preconditionf("appeals are only possible after a rejection, current status is %s", fresh.EligibilityStatus)
		}
		tenant = *fresh

		open, err := tx.Appeals().FindOpenByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperr.Preconditionf("an appeal is already open for this institution")
		}

		appeal.ID = uuid.Nil
		if err := tx.Appeals().Create(ctx, appeal); err != nil {
			return fmt.Errorf("failed to create appeal: %w", err)
		}

		return s.audit(ctx, tx, tenantID, models.AuditAppealSubmitted, models.JSON{
			"appeal_id":            appeal.ID.String(),
			"reason_length":        len(reason),
			"supporting_documents": len(supportingDocs),
		}, "tenant")
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(ctx, notify.Event{
		Type:       notify.EventAppealReceived,
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Recipient:  tenant.ContactEmail,
		Subject:    "Appeal received",
		Detail:     "Your appeal has been received and will be reviewed by our verification team.",
	})
	return appeal, nil
}

// DecideAppeal records the reviewer's decision on an open appeal. An
// approval cascades to the tenant, overriding the earlier rejection.
func (s *Service) DecideAppeal(ctx context.Context, appealID, reviewerID uuid.UUID, decision models.AppealStatus, notes string) (*models.Appeal, error) {
	if !models.ValidAppealDecision(decision) {
		return nil, apperr.Validationf("unknown appeal decision %q", decision)
	}
	if decision != models.AppealApproved && notes == "" {
		return nil, apperr.Validationf("notes are required when the decision is %s", decision)
	}

	var (
		appeal models.Appeal
		tenant models.Tenant
	)
	err := s.withConflictRetry(ctx, func(tx repository.Store) error {
		a, err := tx.Appeals().Get(ctx, appealID)
		if err != nil {
			return err
		}
		if !a.Status.Decidable() {
			return apperr.Preconditionf("appeal has already been decided (%s)", a.Status)
		}

		fresh, err := tx.Tenants().Get(ctx, a.TenantID)
		if err != nil {
			return err
		}
		tenant = *fresh

		now := s.now()
		a.Status = decision
		a.ReviewedAt = &now
		a.ReviewedBy = &reviewerID
		a.ReviewNotes = &notes
		if err := tx.Appeals().Update(ctx, a); err != nil {
			return fmt.Errorf("failed to update appeal: %w", err)
		}
		appeal = *a

		// An approved appeal overrides the rejection; this is the one
		// path out of REJECTED.
		if decision == models.AppealApproved {
			verifiedAt := now
			if err := s.transition(ctx, tx, fresh, models.EligibilityApproved, &verifiedAt); err != nil {
				return err
			}
			tenant.EligibilityStatus = models.EligibilityApproved
		}

		return s.audit(ctx, tx, a.TenantID, models.AuditAppealDecided, models.JSON{
			"appeal_id":   a.ID.String(),
			"decision":    string(decision),
			"reviewed_by": reviewerID.String(),
		}, reviewerID.String())
	})
	if err != nil {
		return nil, err
	}

	s.notifyAppealOutcome(ctx, tenant, decision, notes)
	return &appeal, nil
}

func (s *Service) notifyAppealOutcome(ctx context.Context, tenant models.Tenant, decision models.AppealStatus, notes string) {
	event := notify.Event{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Recipient:  tenant.ContactEmail,
	}
	switch decision {
	case models.AppealApproved:
		event.Type = notify.EventAppealDecision
		event.Subject = "Appeal approved"
		event.Detail = "Your appeal was successful and your institution is now approved."
	case models.AppealRejected:
		event.Type = notify.EventAppealDecision
		event.Subject = "Appeal decision"
		event.Detail = fmt.Sprintf("Your appeal was not successful. Reviewer notes: %s", notes)
	default:
		event.Type = notify.EventAppealInfoRequested
		event.Subject = "More information needed for your appeal"
		event.Detail = fmt.Sprintf("The review team needs more information to decide your appeal: %s", notes)
	}
	s.notifier.Dispatch(ctx, event)
}

// ResubmitAppealInfo answers a MORE_INFO_REQUESTED appeal with extra
// context and returns it to the review queue.
func (s *Service) ResubmitAppealInfo(ctx context.Context, appealID uuid.UUID, additionalInfo string, supportingDocs []models.DocumentRef) (*models.Appeal, error) {
	if additionalInfo == "" && len(supportingDocs) == 0 {
		return nil, apperr.Validationf("additional information or supporting documents are required")
	}

	var appeal models.Appeal
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		a, err := tx.Appeals().Get(ctx, appealID)
		if err != nil {
			return err
		}
		if a.Status != models.AppealMoreInfoRequested {
			return apperr.Preconditionf("appeal is not waiting for more information (%s)", a.Status)
		}

		if additionalInfo != "" {
			a.AppealReason = a.AppealReason + "\n\n[" + s.now().Format(time.RFC3339) + "] " + additionalInfo
		}
		a.SupportingDocuments = append(a.SupportingDocuments, supportingDocs...)
		a.Status = models.AppealPending
		if err := tx.Appeals().Update(ctx, a); err != nil {
			return fmt.Errorf("failed to update appeal: %w", err)
		}
		appeal = *a

		return s.audit(ctx, tx, a.TenantID, models.AuditAppealInfoProvided, models.JSON{
			"appeal_id":            a.ID.String(),
			"supporting_documents": len(supportingDocs),
		}, "tenant")
	})
	if err != nil {
		return nil, err
	}
	return &appeal, nil
}
