// Package analytics houses the read-only scoring engines: approval
// risk assessment and processing-time prediction. Both are aggregate
// queries plus arithmetic and are safe to call concurrently.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/repository"
)

// FactorCategory is the closed set of risk factor categories.
type FactorCategory string

const (
	FactorDocumentCompleteness FactorCategory = "DOCUMENT_COMPLETENESS"
	FactorDocumentQuality      FactorCategory = "DOCUMENT_QUALITY"
	FactorHistoricalPatterns   FactorCategory = "HISTORICAL_PATTERNS"
	FactorStudentCount         FactorCategory = "STUDENT_COUNT"
)

// RiskLevel buckets the overall score. Higher scores mean lower risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// riskLevelFor buckets a 0..1 score.
func riskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 0.7:
		return RiskLow
	case score >= 0.4:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// RiskFactor is one scored dimension of an assessment.
type RiskFactor struct {
	Category    FactorCategory `json:"category"`
	Score       float64        `json:"score"`
	Description string         `json:"description"`
	Severity    RiskLevel      `json:"severity"`
}

// RiskAssessment is the full scoring result for one tenant.
type RiskAssessment struct {
	TenantID        uuid.UUID    `json:"tenant_id"`
	RiskScore       float64      `json:"risk_score"`
	RiskLevel       RiskLevel    `json:"risk_level"`
	Factors         []RiskFactor `json:"factors"`
	Recommendations []string     `json:"recommendations"`
	ProcessedAt     time.Time    `json:"processed_at"`
}

// minStudentCount is the eligibility floor for institution size.
const minStudentCount = 1500

// similarStudentRange bounds the peer group for historical comparison.
const similarStudentRange = 500

// RiskEngine scores tenants for approval likelihood.
type RiskEngine struct {
	store repository.Store
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewRiskEngine builds the engine. cache may be nil to disable caching.
func NewRiskEngine(store repository.Store, cache Cache) *RiskEngine {
	return &RiskEngine{
		store: store,
		cache: cache,
		ttl:   15 * time.Minute,
		now:   time.Now,
	}
}

// AssessRisk scores a tenant across the four factor categories. The
// overall score is the unweighted average of the factor scores. Recent
// assessments are served from cache.
func (e *RiskEngine) AssessRisk(ctx context.Context, tenantID uuid.UUID) (*RiskAssessment, error) {
	cacheKey := "risk:" + tenantID.String()
	if e.cache != nil {
		var cached RiskAssessment
		if ok := e.cache.Get(ctx, cacheKey, &cached); ok {
			return &cached, nil
		}
	}

	tenant, err := e.store.Tenants().Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	docs, err := e.store.Documents().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	// Superseded and rejected uploads no longer represent the tenant's
	// submission.
	var active []models.VerificationDocument
	for _, d := range docs {
		if d.Status.Active() {
			active = append(active, d)
		}
	}

	historical, err := e.assessHistoricalPattern(ctx, tenant)
	if err != nil {
		return nil, err
	}

	factors := []RiskFactor{
		e.assessDocumentCompleteness(active),
		e.assessDocumentQuality(active),
		historical,
		e.assessStudentCount(tenant.StudentCount),
	}

	var sum float64
	for _, f := range factors {
		sum += f.Score
	}
	score := sum / float64(len(factors))
	level := riskLevelFor(score)

	assessment := &RiskAssessment{
		TenantID:        tenantID,
		RiskScore:       score,
		RiskLevel:       level,
		Factors:         factors,
		Recommendations: recommendations(factors, level),
		ProcessedAt:     e.now(),
	}

	if e.cache != nil {
		e.cache.Set(ctx, cacheKey, assessment, e.ttl)
	}
	return assessment, nil
}

// assessDocumentCompleteness scores required-type coverage (70%) plus
// the share of approved documents (30%).
func (e *RiskEngine) assessDocumentCompleteness(docs []models.VerificationDocument) RiskFactor {
	required := models.RequiredDocumentTypes()
	submitted := make(map[models.DocumentType]bool)
	var approved int
	for _, d := range docs {
		submitted[d.DocumentType] = true
		if d.Status == models.DocumentApproved {
			approved++
		}
	}
	var present int
	for _, t := range required {
		if submitted[t] {
			present++
		}
	}

	completion := float64(present) / float64(len(required))
	var qualityBonus float64
	if len(docs) > 0 {
		qualityBonus = float64(approved) / float64(len(docs))
	}
	score := completion*0.7 + qualityBonus*0.3

	var severity RiskLevel
	switch {
	case score >= 0.8:
		severity = RiskLow
	case score >= 0.5:
		severity = RiskMedium
	default:
		severity = RiskHigh
	}

	return RiskFactor{
		Category:    FactorDocumentCompleteness,
		Score:       score,
		Description: fmt.Sprintf("%d/%d required documents submitted, %d approved", present, len(required), approved),
		Severity:    severity,
	}
}

// assessDocumentQuality scores the share of analyzed documents meeting
// the 0.8 authenticity and completeness bars. Neutral 0.5 when nothing
// has been analyzed yet.
func (e *RiskEngine) assessDocumentQuality(docs []models.VerificationDocument) RiskFactor {
	var analyzed, highQuality int
	for _, d := range docs {
		if !d.Analyzed() {
			continue
		}
		analyzed++
		if *d.AuthenticityScore >= 0.8 && *d.CompletenessScore >= 0.8 {
			highQuality++
		}
	}

	score := 0.5
	if analyzed > 0 {
		score = float64(highQuality) / float64(analyzed)
	}

	return RiskFactor{
		Category:    FactorDocumentQuality,
		Score:       score,
		Description: fmt.Sprintf("%d/%d analyzed documents meet quality standards", highQuality, analyzed),
		Severity:    riskLevelFor(score),
	}
}

// assessHistoricalPattern compares against tenants of similar size.
// Neutral 0.5 when no peer group exists.
func (e *RiskEngine) assessHistoricalPattern(ctx context.Context, tenant *models.Tenant) (RiskFactor, error) {
	min := tenant.StudentCount - similarStudentRange
	if min < 0 {
		min = 0
	}
	similar, err := e.store.Tenants().ListByStudentCountRange(ctx, min, tenant.StudentCount+similarStudentRange, tenant.ID)
	if err != nil {
		return RiskFactor{}, fmt.Errorf("failed to load peer institutions: %w", err)
	}

	if len(similar) == 0 {
		return RiskFactor{
			Category:    FactorHistoricalPatterns,
			Score:       0.5,
			Description: "No similar institutions found for comparison",
			Severity:    RiskMedium,
		}, nil
	}

	var approved int
	for _, t := range similar {
		if t.EligibilityStatus == models.EligibilityApproved {
			approved++
		}
	}
	rate := float64(approved) / float64(len(similar))

	return RiskFactor{
		Category:    FactorHistoricalPatterns,
		Score:       rate,
		Description: fmt.Sprintf("%.0f%% approval rate for similar institutions (%d institutions)", rate*100, len(similar)),
		Severity:    riskLevelFor(rate),
	}, nil
}

// assessStudentCount scores declared institution size against the
// eligibility floor. Below the floor the factor is a flat 0.2.
func (e *RiskEngine) assessStudentCount(count int) RiskFactor {
	if count < minStudentCount {
		return RiskFactor{
			Category:    FactorStudentCount,
			Score:       0.2,
			Description: fmt.Sprintf("Student count %d is below the %d threshold", count, minStudentCount),
			Severity:    RiskHigh,
		}
	}

	score := float64(count) / 3000
	if score > 1 {
		score = 1
	}
	return RiskFactor{
		Category:    FactorStudentCount,
		Score:       score,
		Description: fmt.Sprintf("Student count %d meets the %d+ requirement", count, minStudentCount),
		Severity:    RiskLow,
	}
}

func recommendations(factors []RiskFactor, level RiskLevel) []string {
	var recs []string
	byCategory := make(map[FactorCategory]RiskFactor, len(factors))
	for _, f := range factors {
		byCategory[f.Category] = f
	}

	if f, ok := byCategory[FactorDocumentCompleteness]; ok && f.Severity != RiskLow {
		recs = append(recs, "Upload all required documents to improve approval chances")
	}
	if f, ok := byCategory[FactorDocumentQuality]; ok && f.Severity != RiskLow {
		recs = append(recs,
			"Ensure uploaded documents are clear and legible",
			"Avoid submitting blurry or cropped documents")
	}
	if f, ok := byCategory[FactorStudentCount]; ok && f.Severity != RiskLow {
		recs = append(recs,
			"Provide audited enrollment data showing 1500+ students",
			"Include official student records with photos")
	}
	if level == RiskHigh {
		recs = append(recs, "Consider contacting support for guidance on completing verification")
	}
	return recs
}
