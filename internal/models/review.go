package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReviewAction represents a reviewer decision on a tenant's application
type ReviewAction string

const (
	ReviewActionApprove         ReviewAction = "APPROVE"
	ReviewActionReject          ReviewAction = "REJECT"
	ReviewActionRequestMoreInfo ReviewAction = "REQUEST_MORE_INFO"
)

// ValidReviewAction reports whether a is a known review action.
func ValidReviewAction(a ReviewAction) bool {
	return a == ReviewActionApprove || a == ReviewActionReject || a == ReviewActionRequestMoreInfo
}

// StatusAfter returns the eligibility status the action transitions to.
func (a ReviewAction) StatusAfter() EligibilityStatus {
	switch a {
	case ReviewActionApprove:
		return EligibilityApproved
	case ReviewActionReject:
		return EligibilityRejected
	default:
		return EligibilityRequiresMoreInfo
	}
}

// VerificationReview is the append-only record of a reviewer decision.
// Rows are never mutated or deleted; risk scoring and anomaly detection
// read them as the audit trail of past decisions.
type VerificationReview struct {
	ID         uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TenantID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Tenant     Tenant       `gorm:"foreignKey:TenantID" json:"-"`
	Action     ReviewAction `gorm:"type:varchar(20);not null;index" json:"action"`
	ReviewedBy uuid.UUID    `gorm:"type:uuid;not null" json:"reviewed_by"`
	Notes      string       `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time    `gorm:"index" json:"created_at"`
}

// BeforeCreate sets the primary key for the append-only review row.
func (r *VerificationReview) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
