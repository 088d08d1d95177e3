package models

import (
	"math"
	"time"
)

// EligibilityStatus represents the tenant-level verification state
type EligibilityStatus string

const (
	EligibilityPending          EligibilityStatus = "PENDING"
	EligibilityUnderReview      EligibilityStatus = "UNDER_REVIEW"
	EligibilityApproved         EligibilityStatus = "APPROVED"
	EligibilityRejected         EligibilityStatus = "REJECTED"
	EligibilityRequiresMoreInfo EligibilityStatus = "REQUIRES_MORE_INFO"
)

// eligibilityTransitions is the set of legal status edges. Appeals can
// re-open a REJECTED tenant, so REJECTED is terminal only with respect
// to reviews, not to appeal decisions.
var eligibilityTransitions = map[EligibilityStatus][]EligibilityStatus{
	EligibilityPending:          {EligibilityUnderReview, EligibilityApproved, EligibilityRejected, EligibilityRequiresMoreInfo},
	EligibilityUnderReview:      {EligibilityApproved, EligibilityRejected, EligibilityRequiresMoreInfo},
	EligibilityRequiresMoreInfo: {EligibilityPending, EligibilityUnderReview, EligibilityApproved, EligibilityRejected},
	EligibilityApproved:         {},
	EligibilityRejected:         {},
}

// CanTransition reports whether moving from s to the given status is a
// legal edge.
func (s EligibilityStatus) CanTransition(to EligibilityStatus) bool {
	for _, next := range eligibilityTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further review can change the status.
func (s EligibilityStatus) Terminal() bool {
	return s == EligibilityApproved || s == EligibilityRejected
}

// GraceTier classifies how close a tenant is to its eligibility deadline
type GraceTier string

const (
	GraceActive   GraceTier = "active"
	GraceWarning  GraceTier = "warning"  // 7 days remaining
	GraceCritical GraceTier = "critical" // 3 days remaining
	GraceExpired  GraceTier = "expired"
)

// Tenant represents an institutional customer undergoing eligibility
// verification. Mutated only through the verification service.
type Tenant struct {
	Base
	Name                string            `gorm:"type:varchar(255);not null" json:"name"`
	ContactEmail        string            `gorm:"type:varchar(255)" json:"contact_email"`
	Domain              string            `gorm:"type:varchar(255)" json:"domain"`
	StudentCount        int               `gorm:"not null;default:0" json:"student_count"`
	EligibilityStatus   EligibilityStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"eligibility_status"`
	EligibilityDeadline *time.Time        `json:"eligibility_deadline"`
	VerifiedAt          *time.Time        `json:"verified_at"`
	// Version implements the optimistic lock on all status mutations.
	Version int `gorm:"not null;default:0" json:"-"`
}

// GracePeriodDays is the verification window granted on signup.
const GracePeriodDays = 30

// DaysToDeadline returns the whole days remaining until the eligibility
// deadline, negative once past it. Returns 0, false when no deadline is set.
func (t *Tenant) DaysToDeadline(now time.Time) (int, bool) {
	if t.EligibilityDeadline == nil {
		return 0, false
	}
	diff := t.EligibilityDeadline.Sub(now)
	days := int(math.Ceil(diff.Hours() / 24))
	return days, true
}

// GraceStatus returns the grace tier for the tenant at the given time.
func (t *Tenant) GraceStatus(now time.Time) GraceTier {
	days, ok := t.DaysToDeadline(now)
	switch {
	case !ok:
		return GraceActive
	case days <= 0:
		return GraceExpired
	case days <= 3:
		return GraceCritical
	case days <= 7:
		return GraceWarning
	default:
		return GraceActive
	}
}
