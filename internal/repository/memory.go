package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/apperr"
	"github.com/eduverify/backend/internal/models"
)

// MemoryStore is an in-memory Store used by unit tests. Atomic takes a
// snapshot of all tables and restores it when fn fails, mirroring the
// rollback semantics of the SQL implementation. Error hooks let tests
// inject failures at specific points.
type MemoryStore struct {
	mu sync.Mutex

	tenants   map[uuid.UUID]models.Tenant
	documents map[uuid.UUID]models.VerificationDocument
	reviews   map[uuid.UUID]models.VerificationReview
	appeals   map[uuid.UUID]models.Appeal
	anomalies map[uuid.UUID]models.AnomalyAlert
	audit     []models.AuditEntry

	// FailAudit, when set, makes every audit append fail with this error.
	FailAudit error
	// FailTenantUpdate, when positive, makes the next N guarded tenant
	// updates return ErrVersionMismatch regardless of the version.
	FailTenantUpdate int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:   make(map[uuid.UUID]models.Tenant),
		documents: make(map[uuid.UUID]models.VerificationDocument),
		reviews:   make(map[uuid.UUID]models.VerificationReview),
		appeals:   make(map[uuid.UUID]models.Appeal),
		anomalies: make(map[uuid.UUID]models.AnomalyAlert),
	}
}

func (s *MemoryStore) Tenants() TenantRepository     { return &memTenants{s} }
func (s *MemoryStore) Documents() DocumentRepository { return &memDocuments{s} }
func (s *MemoryStore) Reviews() ReviewRepository     { return &memReviews{s} }
func (s *MemoryStore) Appeals() AppealRepository     { return &memAppeals{s} }
func (s *MemoryStore) Anomalies() AnomalyRepository  { return &memAnomalies{s} }
func (s *MemoryStore) Audit() AuditRepository        { return &memAudit{s} }

func (s *MemoryStore) Atomic(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	snapTenants := copyMap(s.tenants)
	snapDocs := copyMap(s.documents)
	snapReviews := copyMap(s.reviews)
	snapAppeals := copyMap(s.appeals)
	snapAnomalies := copyMap(s.anomalies)
	snapAudit := append([]models.AuditEntry(nil), s.audit...)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.tenants = snapTenants
		s.documents = snapDocs
		s.reviews = snapReviews
		s.appeals = snapAppeals
		s.anomalies = snapAnomalies
		s.audit = snapAudit
		s.mu.Unlock()
		return err
	}
	return nil
}

// SeedTenant inserts a tenant directly, bypassing service rules.
func (s *MemoryStore) SeedTenant(t models.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
}

// SeedDocument inserts a document directly.
func (s *MemoryStore) SeedDocument(d models.VerificationDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[d.ID] = d
}

// SeedReview inserts a review directly.
func (s *MemoryStore) SeedReview(r models.VerificationReview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[r.ID] = r
}

// AuditEntries returns a copy of the audit log for assertions.
func (s *MemoryStore) AuditEntries() []models.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditEntry(nil), s.audit...)
}

// Alerts returns a copy of all stored anomaly alerts.
func (s *MemoryStore) Alerts() []models.AnomalyAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AnomalyAlert, 0, len(s.anomalies))
	for _, a := range s.anomalies {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// --- tenants ---

type memTenants struct{ s *MemoryStore }

func (r *memTenants) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, apperr.NotFound("tenant")
	}
	return &t, nil
}

func (r *memTenants) Create(ctx context.Context, t *models.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	r.s.tenants[t.ID] = *t
	return nil
}

func (r *memTenants) UpdateGuarded(ctx context.Context, id uuid.UUID, version int, updates map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailTenantUpdate > 0 {
		r.s.FailTenantUpdate--
		return ErrVersionMismatch
	}
	t, ok := r.s.tenants[id]
	if !ok || t.Version != version {
		return ErrVersionMismatch
	}
	for k, v := range updates {
		switch k {
		case "eligibility_status":
			t.EligibilityStatus = v.(models.EligibilityStatus)
		case "verified_at":
			switch tv := v.(type) {
			case *time.Time:
				t.VerifiedAt = tv
			case time.Time:
				t.VerifiedAt = &tv
			}
		case "eligibility_deadline":
			switch tv := v.(type) {
			case *time.Time:
				t.EligibilityDeadline = tv
			case time.Time:
				t.EligibilityDeadline = &tv
			}
		}
	}
	t.Version = version + 1
	t.UpdatedAt = time.Now()
	r.s.tenants[id] = t
	return nil
}

func (r *memTenants) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, t := range r.s.tenants {
		if !t.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *memTenants) ListApprovedBetween(ctx context.Context, from, to time.Time) ([]models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Tenant
	for _, t := range r.s.tenants {
		if t.EligibilityStatus == models.EligibilityApproved && t.VerifiedAt != nil &&
			!t.VerifiedAt.Before(from) && t.VerifiedAt.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTenants) ListByStudentCountRange(ctx context.Context, min, max int, exclude uuid.UUID) ([]models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Tenant
	for _, t := range r.s.tenants {
		if t.ID != exclude && t.StudentCount >= min && t.StudentCount <= max {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTenants) ListByStatus(ctx context.Context, status models.EligibilityStatus, limit, offset int) ([]models.Tenant, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []models.Tenant
	for _, t := range r.s.tenants {
		if t.EligibilityStatus == status {
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// --- documents ---

type memDocuments struct{ s *MemoryStore }

func (r *memDocuments) Get(ctx context.Context, id uuid.UUID) (*models.VerificationDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.documents[id]
	if !ok {
		return nil, apperr.NotFound("document")
	}
	return &d, nil
}

func (r *memDocuments) Create(ctx context.Context, d *models.VerificationDocument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	r.s.documents[d.ID] = *d
	return nil
}

func (r *memDocuments) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.VerificationDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.VerificationDocument
	for _, d := range r.s.documents {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memDocuments) SupersedeActive(ctx context.Context, tenantID uuid.UUID, docType models.DocumentType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, d := range r.s.documents {
		if d.TenantID == tenantID && d.DocumentType == docType &&
			(d.Status == models.DocumentPending || d.Status == models.DocumentUnderReview) {
			d.Status = models.DocumentSuperseded
			r.s.documents[id] = d
		}
	}
	return nil
}

func (r *memDocuments) MarkReviewed(ctx context.Context, tenantID uuid.UUID, status models.DocumentStatus, reviewedBy uuid.UUID, notes string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for id, d := range r.s.documents {
		if d.TenantID == tenantID &&
			(d.Status == models.DocumentPending || d.Status == models.DocumentUnderReview) {
			d.Status = status
			d.ReviewedBy = &reviewedBy
			d.ReviewedAt = &now
			d.ReviewNotes = &notes
			r.s.documents[id] = d
		}
	}
	return nil
}

// --- reviews ---

type memReviews struct{ s *MemoryStore }

func (r *memReviews) Create(ctx context.Context, review *models.VerificationReview) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}
	r.s.reviews[review.ID] = *review
	return nil
}

func (r *memReviews) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.VerificationReview, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.VerificationReview
	for _, rv := range r.s.reviews {
		if rv.TenantID == tenantID {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memReviews) CountByActionBetween(ctx context.Context, action models.ReviewAction, from, to time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, rv := range r.s.reviews {
		if rv.Action == action && !rv.CreatedAt.Before(from) && rv.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

// --- appeals ---

type memAppeals struct{ s *MemoryStore }

func (r *memAppeals) Get(ctx context.Context, id uuid.UUID) (*models.Appeal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appeals[id]
	if !ok {
		return nil, apperr.NotFound("appeal")
	}
	return &a, nil
}

func (r *memAppeals) Create(ctx context.Context, a *models.Appeal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now()
	}
	r.s.appeals[a.ID] = *a
	return nil
}

func (r *memAppeals) FindOpenByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Appeal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.appeals {
		if a.TenantID == tenantID && a.Status.Open() {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (r *memAppeals) Update(ctx context.Context, a *models.Appeal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appeals[a.ID]; !ok {
		return apperr.NotFound("appeal")
	}
	r.s.appeals[a.ID] = *a
	return nil
}

func (r *memAppeals) ListByStatus(ctx context.Context, status models.AppealStatus, limit, offset int) ([]models.Appeal, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []models.Appeal
	for _, a := range r.s.appeals {
		if a.Status == status {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SubmittedAt.After(all[j].SubmittedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// --- anomalies ---

type memAnomalies struct{ s *MemoryStore }

func (r *memAnomalies) CreateBatch(ctx context.Context, alerts []models.AnomalyAlert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range alerts {
		if a.DetectedOn != "" && r.dayBucketTaken(a.Metric, a.DetectedOn) {
			continue
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		r.s.anomalies[a.ID] = a
	}
	return nil
}

// dayBucketTaken mirrors the (metric, detected_on) unique index. Caller
// holds the store lock.
func (r *memAnomalies) dayBucketTaken(metric, day string) bool {
	for _, a := range r.s.anomalies {
		if a.Metric == metric && a.DetectedOn == day {
			return true
		}
	}
	return false
}

func (r *memAnomalies) List(ctx context.Context, acknowledged *bool, limit int) ([]models.AnomalyAlert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.AnomalyAlert
	for _, a := range r.s.anomalies {
		if acknowledged == nil || a.Acknowledged == *acknowledged {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAnomalies) Acknowledge(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.anomalies[id]
	if !ok {
		return apperr.NotFound("anomaly alert")
	}
	a.Acknowledged = true
	r.s.anomalies[id] = a
	return nil
}

func (r *memAnomalies) ExistsSince(ctx context.Context, metric string, since time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.anomalies {
		if a.Metric == metric && !a.DetectedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// --- audit ---

type memAudit struct{ s *MemoryStore }

func (r *memAudit) Append(ctx context.Context, e *models.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailAudit != nil {
		return r.s.FailAudit
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	r.s.audit = append(r.s.audit, *e)
	return nil
}

func (r *memAudit) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]models.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.AuditEntry
	for _, e := range r.s.audit {
		if e.TenantID != nil && *e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}
