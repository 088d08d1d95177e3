package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction identifies what a verification audit entry records
type AuditAction string

const (
	AuditDocumentSubmitted  AuditAction = "DOCUMENT_SUBMITTED"
	AuditDocumentSuperseded AuditAction = "DOCUMENT_SUPERSEDED"
	AuditReviewRecorded     AuditAction = "REVIEW_RECORDED"
	AuditAppealSubmitted    AuditAction = "APPEAL_SUBMITTED"
	AuditAppealInfoProvided AuditAction = "APPEAL_INFO_PROVIDED"
	AuditAppealDecided      AuditAction = "APPEAL_DECIDED"
	AuditAnomalyDetected    AuditAction = "ANOMALY_DETECTED"
)

// AuditEntry is the append-only compliance record of every state
// transition. Entries are written in the same transaction as the
// transition they document and are immutable forever. The report
// compiler scans them chronologically per tenant.
type AuditEntry struct {
	ID          uuid.UUID   `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TenantID    *uuid.UUID  `gorm:"type:uuid;index:idx_audit_tenant_time,priority:1" json:"tenant_id"`
	Action      AuditAction `gorm:"type:varchar(30);not null;index" json:"action"`
	Details     JSON        `gorm:"type:jsonb" json:"details"`
	PerformedBy string      `gorm:"type:varchar(100)" json:"performed_by"`
	CreatedAt   time.Time   `gorm:"index:idx_audit_tenant_time,priority:2" json:"created_at"`
}

// BeforeCreate sets the primary key for the audit row.
func (e *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
