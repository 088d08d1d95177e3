package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eduverify/backend/internal/apperr"
	"github.com/eduverify/backend/internal/models"
)

// gormStore is the PostgreSQL-backed Store.
type gormStore struct {
	db *gorm.DB
}

// paginate applies limit/offset only when positive. gorm renders
// Limit(0) as a hard LIMIT 0, so a zero limit must mean "unlimited"
// here, matching the in-memory store.
func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

// NewStore wraps a gorm handle in the repository boundary.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Tenants() TenantRepository    { return &gormTenants{db: s.db} }
func (s *gormStore) Documents() DocumentRepository { return &gormDocuments{db: s.db} }
func (s *gormStore) Reviews() ReviewRepository    { return &gormReviews{db: s.db} }
func (s *gormStore) Appeals() AppealRepository    { return &gormAppeals{db: s.db} }
func (s *gormStore) Anomalies() AnomalyRepository { return &gormAnomalies{db: s.db} }
func (s *gormStore) Audit() AuditRepository       { return &gormAudit{db: s.db} }

func (s *gormStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// --- tenants ---

type gormTenants struct {
	db *gorm.DB
}

func (r *gormTenants) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("tenant")
		}
		return nil, fmt.Errorf("error finding tenant: %w", err)
	}
	return &t, nil
}

func (r *gormTenants) Create(ctx context.Context, t *models.Tenant) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("error creating tenant: %w", err)
	}
	return nil
}

func (r *gormTenants) UpdateGuarded(ctx context.Context, id uuid.UUID, version int, updates map[string]interface{}) error {
	updates["version"] = version + 1
	res := r.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("error updating tenant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionMismatch
	}
	return nil
}

func (r *gormTenants) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *gormTenants) ListApprovedBetween(ctx context.Context, from, to time.Time) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.WithContext(ctx).
		Where("eligibility_status = ? AND verified_at >= ? AND verified_at < ?", models.EligibilityApproved, from, to).
		Find(&tenants).Error
	return tenants, err
}

func (r *gormTenants) ListByStudentCountRange(ctx context.Context, min, max int, exclude uuid.UUID) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.WithContext(ctx).
		Where("student_count BETWEEN ? AND ? AND id <> ?", min, max, exclude).
		Find(&tenants).Error
	return tenants, err
}

func (r *gormTenants) ListByStatus(ctx context.Context, status models.EligibilityStatus, limit, offset int) ([]models.Tenant, int64, error) {
	var tenants []models.Tenant
	var total int64
	q := r.db.WithContext(ctx).Model(&models.Tenant{}).Where("eligibility_status = ?", status)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(q.Order("created_at DESC"), limit, offset).Find(&tenants).Error
	return tenants, total, err
}

// --- documents ---

type gormDocuments struct {
	db *gorm.DB
}

func (r *gormDocuments) Get(ctx context.Context, id uuid.UUID) (*models.VerificationDocument, error) {
	var d models.VerificationDocument
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("document")
		}
		return nil, fmt.Errorf("error finding document: %w", err)
	}
	return &d, nil
}

func (r *gormDocuments) Create(ctx context.Context, d *models.VerificationDocument) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("error creating document: %w", err)
	}
	return nil
}

func (r *gormDocuments) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.VerificationDocument, error) {
	var docs []models.VerificationDocument
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

func (r *gormDocuments) SupersedeActive(ctx context.Context, tenantID uuid.UUID, docType models.DocumentType) error {
	return r.db.WithContext(ctx).Model(&models.VerificationDocument{}).
		Where("tenant_id = ? AND document_type = ? AND status IN ?", tenantID, docType,
			[]models.DocumentStatus{models.DocumentPending, models.DocumentUnderReview}).
		Update("status", models.DocumentSuperseded).Error
}

func (r *gormDocuments) MarkReviewed(ctx context.Context, tenantID uuid.UUID, status models.DocumentStatus, reviewedBy uuid.UUID, notes string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.VerificationDocument{}).
		Where("tenant_id = ? AND status IN ?", tenantID,
			[]models.DocumentStatus{models.DocumentPending, models.DocumentUnderReview}).
		Updates(map[string]interface{}{
			"status":       status,
			"reviewed_by":  reviewedBy,
			"reviewed_at":  now,
			"review_notes": notes,
		}).Error
}

// --- reviews ---

type gormReviews struct {
	db *gorm.DB
}

func (r *gormReviews) Create(ctx context.Context, review *models.VerificationReview) error {
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		return fmt.Errorf("error creating review: %w", err)
	}
	return nil
}

func (r *gormReviews) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.VerificationReview, error) {
	var reviews []models.VerificationReview
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&reviews).Error
	return reviews, err
}

func (r *gormReviews) CountByActionBetween(ctx context.Context, action models.ReviewAction, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.VerificationReview{}).
		Where("action = ? AND created_at >= ? AND created_at < ?", action, from, to).
		Count(&count).Error
	return count, err
}

// --- appeals ---

type gormAppeals struct {
	db *gorm.DB
}

func (r *gormAppeals) Get(ctx context.Context, id uuid.UUID) (*models.Appeal, error) {
	var a models.Appeal
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("appeal")
		}
		return nil, fmt.Errorf("error finding appeal: %w", err)
	}
	return &a, nil
}

func (r *gormAppeals) Create(ctx context.Context, a *models.Appeal) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("error creating appeal: %w", err)
	}
	return nil
}

func (r *gormAppeals) FindOpenByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Appeal, error) {
	var a models.Appeal
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID,
			[]models.AppealStatus{models.AppealPending, models.AppealMoreInfoRequested}).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding open appeal: %w", err)
	}
	return &a, nil
}

func (r *gormAppeals) Update(ctx context.Context, a *models.Appeal) error {
	if err := r.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("error updating appeal: %w", err)
	}
	return nil
}

func (r *gormAppeals) ListByStatus(ctx context.Context, status models.AppealStatus, limit, offset int) ([]models.Appeal, int64, error) {
	var appeals []models.Appeal
	var total int64
	q := r.db.WithContext(ctx).Model(&models.Appeal{}).Where("status = ?", status)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(q.Order("submitted_at DESC"), limit, offset).Find(&appeals).Error
	return appeals, total, err
}

// --- anomalies ---

type gormAnomalies struct {
	db *gorm.DB
}

func (r *gormAnomalies) CreateBatch(ctx context.Context, alerts []models.AnomalyAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	// The (metric, detected_on) unique index absorbs a concurrent
	// same-day scan that raced past the ExistsSince probe.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&alerts).Error
	if err != nil {
		return fmt.Errorf("error creating anomaly alerts: %w", err)
	}
	return nil
}

func (r *gormAnomalies) List(ctx context.Context, acknowledged *bool, limit int) ([]models.AnomalyAlert, error) {
	var alerts []models.AnomalyAlert
	q := r.db.WithContext(ctx).Model(&models.AnomalyAlert{})
	if acknowledged != nil {
		q = q.Where("acknowledged = ?", *acknowledged)
	}
	err := paginate(q.Order("detected_at DESC"), limit, 0).Find(&alerts).Error
	return alerts, err
}

func (r *gormAnomalies) Acknowledge(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.AnomalyAlert{}).
		Where("id = ?", id).
		Update("acknowledged", true)
	if res.Error != nil {
		return fmt.Errorf("error acknowledging alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("anomaly alert")
	}
	return nil
}

func (r *gormAnomalies) ExistsSince(ctx context.Context, metric string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AnomalyAlert{}).
		Where("metric = ? AND detected_at >= ?", metric, since).
		Count(&count).Error
	return count > 0, err
}

// --- audit ---

type gormAudit struct {
	db *gorm.DB
}

func (r *gormAudit) Append(ctx context.Context, e *models.AuditEntry) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("error appending audit entry: %w", err)
	}
	return nil
}

func (r *gormAudit) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	q := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC")
	err := paginate(q, limit, offset).Find(&entries).Error
	return entries, err
}
