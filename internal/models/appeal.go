package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppealStatus represents the state of a rejection appeal
type AppealStatus string

const (
	AppealPending           AppealStatus = "PENDING"
	AppealApproved          AppealStatus = "APPROVED"
	AppealRejected          AppealStatus = "REJECTED"
	AppealMoreInfoRequested AppealStatus = "MORE_INFO_REQUESTED"
)

// Open reports whether the appeal still blocks a new one being created.
func (s AppealStatus) Open() bool {
	return s == AppealPending || s == AppealMoreInfoRequested
}

// Decidable reports whether a reviewer may still act on the appeal.
func (s AppealStatus) Decidable() bool {
	return s == AppealPending || s == AppealMoreInfoRequested
}

// ValidAppealDecision reports whether s is an acceptable reviewer decision.
func ValidAppealDecision(s AppealStatus) bool {
	return s == AppealApproved || s == AppealRejected || s == AppealMoreInfoRequested
}

// MinAppealReasonLength is the minimum free-text justification length.
const MinAppealReasonLength = 50

// DocumentRef points an appeal at an already-stored supporting file.
type DocumentRef struct {
	ID       uuid.UUID `json:"id"`
	FileName string    `json:"file_name"`
	FileURL  string    `json:"file_url"`
}

// DocumentRefList stores supporting document references as a JSON column.
type DocumentRefList []DocumentRef

// Value implements the driver.Valuer interface for DocumentRefList
func (l DocumentRefList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for DocumentRefList
func (l *DocumentRefList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	var result DocumentRefList
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*l = result
	return nil
}

// Appeal is a secondary review request opened after a rejection.
// At most one open appeal exists per tenant at any time.
type Appeal struct {
	ID                  uuid.UUID         `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TenantID            uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Tenant              Tenant            `gorm:"foreignKey:TenantID" json:"-"`
	OriginalDecision    EligibilityStatus `gorm:"type:varchar(20);not null" json:"original_decision"`
	AppealReason        string            `gorm:"type:text;not null" json:"appeal_reason"`
	SupportingDocuments DocumentRefList   `gorm:"type:jsonb" json:"supporting_documents"`
	Status              AppealStatus      `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	SubmittedAt         time.Time         `json:"submitted_at"`
	ReviewedAt          *time.Time        `json:"reviewed_at"`
	ReviewNotes         *string           `gorm:"type:text" json:"review_notes"`
	ReviewedBy          *uuid.UUID        `gorm:"type:uuid" json:"reviewed_by"`
}

// BeforeCreate sets the primary key and submission time.
func (a *Appeal) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now()
	}
	return nil
}
