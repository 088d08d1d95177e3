package verification

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/eduverify/backend/internal/apperr"
	"github.com/eduverify/backend/internal/models"
)

// RegisterTenantInput carries the onboarding details for an institution.
type RegisterTenantInput struct {
	Name         string
	ContactEmail string
	Domain       string
	StudentCount int
}

// RegisterTenant creates a new institution in PENDING with the
// standard grace period for completing verification.
func (s *Service) RegisterTenant(ctx context.Context, in RegisterTenantInput) (*models.Tenant, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validationf("institution name is required")
	}
	if _, err := mail.ParseAddress(in.ContactEmail); err != nil {
		return nil, apperr.Validationf("a valid contact email is required")
	}
	if in.StudentCount < 0 {
		return nil, apperr.Validationf("student count cannot be negative")
	}

	deadline := s.now().Add(models.GracePeriodDays * 24 * time.Hour)
	tenant := &models.Tenant{
		Name:                strings.TrimSpace(in.Name),
		ContactEmail:        in.ContactEmail,
		Domain:              strings.ToLower(strings.TrimSpace(in.Domain)),
		StudentCount:        in.StudentCount,
		EligibilityStatus:   models.EligibilityPending,
		EligibilityDeadline: &deadline,
	}
	if err := s.store.Tenants().Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant, nil
}

// ReviewQueue pages tenants by eligibility status for the admin
// dashboard.
func (s *Service) ReviewQueue(ctx context.Context, status models.EligibilityStatus, limit, offset int) ([]models.Tenant, int64, error) {
	switch status {
	case models.EligibilityPending, models.EligibilityUnderReview, models.EligibilityApproved,
		models.EligibilityRejected, models.EligibilityRequiresMoreInfo:
	default:
		return nil, 0, apperr.Validationf("unknown eligibility status %q", status)
	}
	return s.store.Tenants().ListByStatus(ctx, status, limit, offset)
}

// AppealQueue pages appeals by status for the admin dashboard.
func (s *Service) AppealQueue(ctx context.Context, status models.AppealStatus, limit, offset int) ([]models.Appeal, int64, error) {
	switch status {
	case models.AppealPending, models.AppealApproved, models.AppealRejected, models.AppealMoreInfoRequested:
	default:
		return nil, 0, apperr.Validationf("unknown appeal status %q", status)
	}
	return s.store.Appeals().ListByStatus(ctx, status, limit, offset)
}
