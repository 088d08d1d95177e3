// Package repository defines the persistence boundary for the
// verification core. Services depend on these interfaces only; the
// GORM implementation lives alongside and an in-memory implementation
// backs the unit tests.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/models"
)

// ErrVersionMismatch is returned by guarded tenant updates when the
// optimistic version check fails. Callers retry with a fresh read.
var ErrVersionMismatch = errors.New("tenant version mismatch")

// Store aggregates the per-entity repositories and the transaction
// boundary. Atomic hands fn a Store bound to a single transaction;
// any error rolls the whole unit back, so a state transition and its
// audit entry commit together or not at all.
type Store interface {
	Tenants() TenantRepository
	Documents() DocumentRepository
	Reviews() ReviewRepository
	Appeals() AppealRepository
	Anomalies() AnomalyRepository
	Audit() AuditRepository
	Atomic(ctx context.Context, fn func(Store) error) error
}

// TenantRepository persists institutions and their eligibility state.
type TenantRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	Create(ctx context.Context, t *models.Tenant) error
	// UpdateGuarded applies updates only when the stored version matches;
	// the version column is incremented as part of the same write.
	// Returns ErrVersionMismatch when another writer got there first.
	UpdateGuarded(ctx context.Context, id uuid.UUID, version int, updates map[string]interface{}) error
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	// ListApprovedBetween returns tenants whose verification completed in
	// the window, for processing-time aggregates.
	ListApprovedBetween(ctx context.Context, from, to time.Time) ([]models.Tenant, error)
	// ListByStudentCountRange returns other tenants with a declared
	// student count in [min, max], excluding the given tenant.
	ListByStudentCountRange(ctx context.Context, min, max int, exclude uuid.UUID) ([]models.Tenant, error)
	ListByStatus(ctx context.Context, status models.EligibilityStatus, limit, offset int) ([]models.Tenant, int64, error)
}

// DocumentRepository persists verification documents.
type DocumentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.VerificationDocument, error)
	Create(ctx context.Context, d *models.VerificationDocument) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.VerificationDocument, error)
	// SupersedeActive marks every non-approved active document of the
	// given type as superseded. Old rows are retained, never deleted.
	SupersedeActive(ctx context.Context, tenantID uuid.UUID, docType models.DocumentType) error
	// MarkReviewed stamps all pending documents of a tenant with the
	// review outcome.
	MarkReviewed(ctx context.Context, tenantID uuid.UUID, status models.DocumentStatus, reviewedBy uuid.UUID, notes string) error
}

// ReviewRepository persists the append-only reviewer decisions.
type ReviewRepository interface {
	Create(ctx context.Context, r *models.VerificationReview) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.VerificationReview, error)
	CountByActionBetween(ctx context.Context, action models.ReviewAction, from, to time.Time) (int64, error)
}

// AppealRepository persists rejection appeals.
type AppealRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Appeal, error)
	Create(ctx context.Context, a *models.Appeal) error
	// FindOpenByTenant returns the tenant's open appeal, or nil.
	FindOpenByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Appeal, error)
	Update(ctx context.Context, a *models.Appeal) error
	ListByStatus(ctx context.Context, status models.AppealStatus, limit, offset int) ([]models.Appeal, int64, error)
}

// AnomalyRepository persists operational anomaly alerts.
type AnomalyRepository interface {
	// CreateBatch inserts the run's alerts as one unit.
	CreateBatch(ctx context.Context, alerts []models.AnomalyAlert) error
	// List returns alerts filtered by acknowledgement; acknowledged nil
	// means no filter.
	List(ctx context.Context, acknowledged *bool, limit int) ([]models.AnomalyAlert, error)
	// Acknowledge flips the acknowledged flag. Idempotent; acknowledging
	// twice is not an error.
	Acknowledge(ctx context.Context, id uuid.UUID) error
	// ExistsSince reports whether an alert for the metric was already
	// recorded at or after the given time (per-day idempotency check).
	ExistsSince(ctx context.Context, metric string, since time.Time) (bool, error)
}

// AuditRepository appends to the immutable compliance log.
type AuditRepository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]models.AuditEntry, error)
}
