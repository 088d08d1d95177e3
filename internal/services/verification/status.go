package verification

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/notify"
)

// StatusReport is the tenant-facing snapshot of a verification.
type StatusReport struct {
	Tenant         models.Tenant                 `json:"tenant"`
	Documents      []models.VerificationDocument `json:"documents"`
	MissingTypes   []models.DocumentType         `json:"missing_document_types"`
	Reviews        []models.VerificationReview   `json:"reviews"`
	OpenAppeal     *models.Appeal                `json:"open_appeal,omitempty"`
	GraceTier      models.GraceTier              `json:"grace_tier"`
	DaysToDeadline *int                          `json:"days_to_deadline,omitempty"`
}

// GetStatus assembles the current verification picture for a tenant:
// eligibility state, document coverage, review history, any open
// appeal and the grace-period tier.
func (s *Service) GetStatus(ctx context.Context, tenantID uuid.UUID) (*StatusReport, error) {
	tenant, err := s.store.Tenants().Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	docs, err := s.store.Documents().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	covered := make(map[models.DocumentType]bool)
	for _, d := range docs {
		if d.Status.Active() {
			covered[d.DocumentType] = true
		}
	}
	missing := []models.DocumentType{}
	for _, t := range models.RequiredDocumentTypes() {
		if !covered[t] {
			missing = append(missing, t)
		}
	}

	reviews, err := s.store.Reviews().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	openAppeal, err := s.store.Appeals().FindOpenByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		Tenant:       *tenant,
		Documents:    docs,
		MissingTypes: missing,
		Reviews:      reviews,
		OpenAppeal:   openAppeal,
		GraceTier:    tenant.GraceStatus(s.now()),
	}
	if days, ok := tenant.DaysToDeadline(s.now()); ok {
		report.DaysToDeadline = &days
	}
	return report, nil
}

// AuditTrail returns the compliance log for a tenant, newest first
// within the requested page.
func (s *Service) AuditTrail(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]models.AuditEntry, error) {
	if _, err := s.store.Tenants().Get(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.store.Audit().ListByTenant(ctx, tenantID, limit, offset)
}

// ScanGracePeriods walks unverified tenants and sends deadline
// warnings for those inside the warning or critical window. Intended
// to run once daily from the scheduler.
func (s *Service) ScanGracePeriods(ctx context.Context) error {
	now := s.now()
	statuses := []models.EligibilityStatus{
		models.EligibilityPending,
		models.EligibilityUnderReview,
		models.EligibilityRequiresMoreInfo,
	}
	var warned int
	for _, status := range statuses {
		tenants, _, err := s.store.Tenants().ListByStatus(ctx, status, 0, 0)
		if err != nil {
			return fmt.Errorf("failed to list %s tenants: %w", status, err)
		}
		for _, t := range tenants {
			tier := t.GraceStatus(now)
			if tier != models.GraceWarning && tier != models.GraceCritical {
				continue
			}
			days, _ := t.DaysToDeadline(now)
			s.notifier.Dispatch(ctx, notify.Event{
				Type:       notify.EventGracePeriodWarning,
				TenantID:   t.ID,
				TenantName: t.Name,
				Recipient:  t.ContactEmail,
				Subject:    "Your verification deadline is approaching",
				Detail:     fmt.Sprintf("Your eligibility verification deadline is %d day(s) away. Please complete your document submission.", days),
			})
			warned++
		}
	}
	if warned > 0 {
		log.Printf("Grace period scan sent %d deadline warnings", warned)
	}
	return nil
}
