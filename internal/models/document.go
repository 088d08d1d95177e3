package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType represents the type of evidence uploaded for verification
type DocumentType string

const (
	DocumentTypeAccreditation   DocumentType = "ACCREDITATION_CERTIFICATE"
	DocumentTypeGovtApproval    DocumentType = "GOVERNMENT_APPROVAL"
	DocumentTypeEnrollmentData  DocumentType = "ENROLLMENT_DATA"
	DocumentTypeStudentIDSample DocumentType = "STUDENT_ID_SAMPLE"
	DocumentTypeRegistration    DocumentType = "INSTITUTION_REGISTRATION"
	DocumentTypeOther           DocumentType = "OTHER"
)

// RequiredDocumentTypes lists the document categories every institution
// must submit before a review can approve it.
func RequiredDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeAccreditation,
		DocumentTypeGovtApproval,
		DocumentTypeEnrollmentData,
		DocumentTypeStudentIDSample,
		DocumentTypeRegistration,
	}
}

// ValidDocumentType reports whether t is a known document type.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypeAccreditation, DocumentTypeGovtApproval, DocumentTypeEnrollmentData,
		DocumentTypeStudentIDSample, DocumentTypeRegistration, DocumentTypeOther:
		return true
	}
	return false
}

// DocumentStatus represents the review status of a verification document
type DocumentStatus string

const (
	DocumentPending     DocumentStatus = "PENDING"
	DocumentUnderReview DocumentStatus = "UNDER_REVIEW"
	DocumentApproved    DocumentStatus = "APPROVED"
	DocumentRejected    DocumentStatus = "REJECTED"
	// DocumentSuperseded marks an old upload replaced by a resubmission.
	// Superseded rows are kept for the compliance history, never deleted.
	DocumentSuperseded DocumentStatus = "SUPERSEDED"
)

// Active reports whether the document still counts toward the tenant's
// submission (a tenant has at most one active document per type).
func (s DocumentStatus) Active() bool {
	return s != DocumentRejected && s != DocumentSuperseded
}

// VerificationDocument represents a single uploaded evidence file.
// Analysis scores are attached later by the document-analysis collaborator.
type VerificationDocument struct {
	Base
	TenantID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Tenant            Tenant         `gorm:"foreignKey:TenantID" json:"-"`
	DocumentType      DocumentType   `gorm:"type:varchar(50);not null" json:"document_type"`
	FileName          string         `gorm:"type:varchar(255);not null" json:"file_name"`
	FileURL           string         `gorm:"type:text;not null" json:"file_url"`
	FileSize          int64          `json:"file_size"`
	ContentType       string         `gorm:"type:varchar(100)" json:"content_type"`
	Status            DocumentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ReviewedAt        *time.Time     `json:"reviewed_at"`
	ReviewedBy        *uuid.UUID     `gorm:"type:uuid" json:"reviewed_by"`
	ReviewNotes       *string        `gorm:"type:text" json:"review_notes"`
	AuthenticityScore *float64       `json:"authenticity_score"`
	CompletenessScore *float64       `json:"completeness_score"`
	AnalyzedAt        *time.Time     `json:"analyzed_at"`
}

// Analyzed reports whether the analysis collaborator has scored this document.
func (d *VerificationDocument) Analyzed() bool {
	return d.AnalyzedAt != nil && d.AuthenticityScore != nil && d.CompletenessScore != nil
}
