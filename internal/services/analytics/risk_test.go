package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/repository"
)

func seedTenant(store *repository.MemoryStore, status models.EligibilityStatus, students int) models.Tenant {
	t := models.Tenant{
		Name:              "Test University",
		ContactEmail:      "registrar@test.edu",
		StudentCount:      students,
		EligibilityStatus: status,
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	store.SeedTenant(t)
	return t
}

func seedDoc(store *repository.MemoryStore, tenantID uuid.UUID, dt models.DocumentType, status models.DocumentStatus, authenticity, completeness float64) {
	d := models.VerificationDocument{
		TenantID:     tenantID,
		DocumentType: dt,
		FileName:     "doc.pdf",
		FileURL:      "uploads/doc.pdf",
		Status:       status,
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	if authenticity > 0 {
		now := time.Now()
		d.AuthenticityScore = &authenticity
		d.CompletenessScore = &completeness
		d.AnalyzedAt = &now
	}
	store.SeedDocument(d)
}

func TestAssessRiskStrongApplication(t *testing.T) {
	store := repository.NewMemoryStore()
	tenant := seedTenant(store, models.EligibilityUnderReview, 3000)
	for _, dt := range models.RequiredDocumentTypes() {
		seedDoc(store, tenant.ID, dt, models.DocumentApproved, 0.95, 0.92)
	}
	// An approved peer group of the same size.
	for i := 0; i < 3; i++ {
		seedTenant(store, models.EligibilityApproved, 3000)
	}

	engine := NewRiskEngine(store, nil)
	a, err := engine.AssessRisk(context.Background(), tenant.ID)
	require.NoError(t, err)

	assert.Equal(t, RiskLow, a.RiskLevel)
	assert.GreaterOrEqual(t, a.RiskScore, 0.7)
	assert.LessOrEqual(t, a.RiskScore, 1.0)
	assert.Len(t, a.Factors, 4)
	assert.Empty(t, a.Recommendations)
}

func TestAssessRiskEmptyApplicationIsHighRisk(t *testing.T) {
	store := repository.NewMemoryStore()
	tenant := seedTenant(store, models.EligibilityPending, 800)

	engine := NewRiskEngine(store, nil)
	a, err := engine.AssessRisk(context.Background(), tenant.ID)
	require.NoError(t, err)

	// completeness 0, quality 0.5 (nothing analyzed), historical 0.5
	// (no peers), student count 0.2 flat: avg 0.3.
	assert.InDelta(t, 0.3, a.RiskScore, 1e-9)
	assert.Equal(t, RiskHigh, a.RiskLevel)
	assert.Contains(t, a.Recommendations, "Consider contacting support for guidance on completing verification")
}

func TestAssessRiskStudentCountFloor(t *testing.T) {
	engine := NewRiskEngine(repository.NewMemoryStore(), nil)

	below := engine.assessStudentCount(1499)
	assert.Equal(t, 0.2, below.Score)
	assert.Equal(t, RiskHigh, below.Severity)

	at := engine.assessStudentCount(1500)
	assert.Equal(t, 0.5, at.Score)
	assert.Equal(t, RiskLow, at.Severity)

	capped := engine.assessStudentCount(10000)
	assert.Equal(t, 1.0, capped.Score)
}

func TestAssessRiskNeutralDefaults(t *testing.T) {
	engine := NewRiskEngine(repository.NewMemoryStore(), nil)

	quality := engine.assessDocumentQuality(nil)
	assert.Equal(t, 0.5, quality.Score)
	assert.Equal(t, RiskMedium, quality.Severity)
}

func TestAssessRiskIgnoresSupersededDocuments(t *testing.T) {
	store := repository.NewMemoryStore()
	tenant := seedTenant(store, models.EligibilityUnderReview, 2000)
	seedDoc(store, tenant.ID, models.DocumentTypeAccreditation, models.DocumentSuperseded, 0.2, 0.2)
	seedDoc(store, tenant.ID, models.DocumentTypeAccreditation, models.DocumentUnderReview, 0.9, 0.9)

	engine := NewRiskEngine(store, nil)
	a, err := engine.AssessRisk(context.Background(), tenant.ID)
	require.NoError(t, err)

	for _, f := range a.Factors {
		if f.Category == FactorDocumentQuality {
			assert.Equal(t, 1.0, f.Score, "superseded low-quality upload must not count")
		}
	}
}

// stubCache counts writes so caching behavior is observable.
type stubCache struct {
	data map[string][]byte
	sets int
}

func (c *stubCache) Get(ctx context.Context, key string, dest interface{}) bool {
	b, ok := c.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(b, dest) == nil
}

func (c *stubCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.data[key] = b
	c.sets++
}

func TestAssessRiskUsesCache(t *testing.T) {
	store := repository.NewMemoryStore()
	tenant := seedTenant(store, models.EligibilityPending, 2000)

	cache := &stubCache{}
	engine := NewRiskEngine(store, cache)

	first, err := engine.AssessRisk(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	second, err := engine.AssessRisk(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "cache hit must not recompute")
	assert.Equal(t, first.RiskScore, second.RiskScore)
}
