// Package verification implements the eligibility state machine for
// institutional tenants: document submission, reviewer decisions and
// the appeal workflow. Every transition commits atomically with its
// audit entry; tenants are serialized through an optimistic version
// check with one transparent retry.
package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/apperr"
	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/notify"
	"github.com/eduverify/backend/internal/repository"
	"github.com/eduverify/backend/internal/storage"
)

// MaxDocumentSize is the upload limit for a single document.
const MaxDocumentSize = 10 << 20 // 10 MiB

// retryBackoff is the pause before the single conflict retry.
const retryBackoff = 25 * time.Millisecond

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

// Service drives the verification state machine.
type Service struct {
	store    repository.Store
	blobs    storage.BlobStore
	notifier notify.Dispatcher
	now      func() time.Time
}

// NewService wires the state machine to its collaborators.
func NewService(store repository.Store, blobs storage.BlobStore, notifier notify.Dispatcher) *Service {
	return &Service{
		store:    store,
		blobs:    blobs,
		notifier: notifier,
		now:      time.Now,
	}
}

// SubmitDocumentInput carries one document upload.
type SubmitDocumentInput struct {
	DocumentType models.DocumentType
	FileName     string
	ContentType  string
	FileSize     int64
	Content      io.Reader
}

// SubmitDocument stores an evidence file and records it against the
// tenant. A resubmission supersedes the previous non-approved document
// of the same type. The first upload moves a PENDING tenant to
// UNDER_REVIEW; a tenant in REQUIRES_MORE_INFO returns to PENDING once
// every required document type has active coverage again.
func (s *Service) SubmitDocument(ctx context.Context, tenantID uuid.UUID, in SubmitDocumentInput) (*models.VerificationDocument, error) {
	if !models.ValidDocumentType(in.DocumentType) {
		return nil, apperr.Validationf("unknown document type %q", in.DocumentType)
	}
	if in.FileSize > MaxDocumentSize {
		return nil, apperr.Validationf("document exceeds the %d MiB size limit", MaxDocumentSize>>20)
	}
	if !allowedContentTypes[in.ContentType] {
		return nil, apperr.Validationf("unsupported content type %q, expected pdf, jpeg, png or webp", in.ContentType)
	}
	if in.FileName == "" {
		return nil, apperr.Validationf("file name is required")
	}

	tenant, err := s.store.Tenants().Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.EligibilityStatus.Terminal() {
		return nil, apperr.Preconditionf("cannot submit documents while eligibility status is %s", tenant.EligibilityStatus)
	}

	// The blob is written before the transaction; a failed commit
	// removes it again so no orphaned record points at nothing and no
	// record-less file survives.
	fileURL, err := s.blobs.Save(ctx, tenantID, in.FileName, io.LimitReader(in.Content, MaxDocumentSize))
	if err != nil {
		return nil, err
	}

	doc := &models.VerificationDocument{
		TenantID:     tenantID,
		DocumentType: in.DocumentType,
		FileName:     in.FileName,
		FileURL:      fileURL,
		FileSize:     in.FileSize,
		ContentType:  in.ContentType,
		Status:       models.DocumentPending,
	}

	err = s.withConflictRetry(ctx, func(tx repository.Store) error {
		fresh, err := tx.Tenants().Get(ctx, tenantID)
		if err != nil {
			return err
		}
		if fresh.EligibilityStatus.Terminal() {
			return apperr.Preconditionf("cannot submit documents while eligibility status is %s", fresh.EligibilityStatus)
		}

		superseded, err := s.supersedeExisting(ctx, tx, fresh, in.DocumentType)
		if err != nil {
			return err
		}

		doc.ID = uuid.Nil
		if err := tx.Documents().Create(ctx, doc); err != nil {
			return fmt.Errorf("failed to create document record: %w", err)
		}

		prev := fresh.EligibilityStatus
		next, advance := s.statusAfterSubmission(ctx, tx, fresh)
		if advance {
			if err := s.transition(ctx, tx, fresh, next, nil); err != nil {
				return err
			}
		}

		details := models.JSON{
			"document_id":   doc.ID.String(),
			"document_type": string(in.DocumentType),
			"file_name":     in.FileName,
			"file_size":     in.FileSize,
			"superseded":    superseded,
		}
		if advance {
			details["status_from"] = string(prev)
			details["status_to"] = string(next)
		}
		return s.audit(ctx, tx, tenantID, models.AuditDocumentSubmitted, details, "tenant")
	})
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, fileURL); rmErr != nil {
			log.Printf("Failed to clean up document %s after aborted submission: %v", fileURL, rmErr)
		}
		return nil, err
	}

	s.notifier.Dispatch(ctx, notify.Event{
		Type:       notify.EventDocumentReceived,
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Recipient:  tenant.ContactEmail,
		Subject:    "Verification document received",
		Detail:     fmt.Sprintf("We received your %s document %q and it is now in the review queue.", in.DocumentType, in.FileName),
	})
	return doc, nil
}

// supersedeExisting retires any active document of the same type and
// writes the supersession to the audit log. Returns whether anything
// was superseded.
func (s *Service) supersedeExisting(ctx context.Context, tx repository.Store, tenant *models.Tenant, docType models.DocumentType) (bool, error) {
	docs, err := tx.Documents().ListByTenant(ctx, tenant.ID)
	if err != nil {
		return false, err
	}
	var hadActive bool
	for _, d := range docs {
		if d.DocumentType == docType && (d.Status == models.DocumentPending || d.Status == models.DocumentUnderReview) {
			hadActive = true
			break
		}
	}
	if !hadActive {
		return false, nil
	}
	if err := tx.Documents().SupersedeActive(ctx, tenant.ID, docType); err != nil {
		return false, fmt.Errorf("failed to supersede previous document: %w", err)
	}
	details := models.JSON{"document_type": string(docType)}
	if err := s.audit(ctx, tx, tenant.ID, models.AuditDocumentSuperseded, details, "tenant"); err != nil {
		return false, err
	}
	return true, nil
}

// statusAfterSubmission decides whether this upload advances the
// tenant. PENDING moves to UNDER_REVIEW on the first upload; a tenant
// asked for more information returns to PENDING once every required
// type has an active document again.
func (s *Service) statusAfterSubmission(ctx context.Context, tx repository.Store, tenant *models.Tenant) (models.EligibilityStatus, bool) {
	switch tenant.EligibilityStatus {
	case models.EligibilityPending:
		return models.EligibilityUnderReview, true
	case models.EligibilityRequiresMoreInfo:
		missing, err := s.missingRequiredTypes(ctx, tx, tenant.ID)
		if err != nil {
			log.Printf("Failed to check document coverage for tenant %s: %v", tenant.ID, err)
			return "", false
		}
		if len(missing) == 0 {
			return models.EligibilityPending, true
		}
	}
	return "", false
}

// missingRequiredTypes returns the required document types without an
// active upload.
func (s *Service) missingRequiredTypes(ctx context.Context, tx repository.Store, tenantID uuid.UUID) ([]models.DocumentType, error) {
	docs, err := tx.Documents().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	covered := make(map[models.DocumentType]bool)
	for _, d := range docs {
		if d.Status.Active() {
			covered[d.DocumentType] = true
		}
	}
	var missing []models.DocumentType
	for _, t := range models.RequiredDocumentTypes() {
		if !covered[t] {
			missing = append(missing, t)
		}
	}
	return missing, nil
}

// RecordReview records a reviewer decision and applies the resulting
// eligibility transition.
func (s *Service) RecordReview(ctx context.Context, tenantID, reviewerID uuid.UUID, action models.ReviewAction, notes string) (*models.VerificationReview, error) {
	if !models.ValidReviewAction(action) {
		return nil, apperr.Validationf("unknown review action %q", action)
	}
	if action != models.ReviewActionApprove && notes == "" {
		return nil, apperr.Validationf("notes are required when the decision is %s", action)
	}

	review := &models.VerificationReview{
		TenantID:   tenantID,
		Action:     action,
		ReviewedBy: reviewerID,
		Notes:      notes,
	}

	var tenant models.Tenant
	err := s.withConflictRetry(ctx, func(tx repository.Store) error {
		fresh, err := tx.Tenants().Get(ctx, tenantID)
		if err != nil {
			return err
		}
		if fresh.EligibilityStatus.Terminal() {
			return apperr.Preconditionf("tenant is already %s, no further review is possible", fresh.EligibilityStatus)
		}
		prev := fresh.EligibilityStatus
		next := action.StatusAfter()
		if !prev.CanTransition(next) {
			return apperr.Preconditionf("cannot move from %s to %s", prev, next)
		}
		tenant = *fresh

		review.ID = uuid.Nil
		if err := tx.Reviews().Create(ctx, review); err != nil {
			return fmt.Errorf("failed to record review: %w", err)
		}

		var verifiedAt *time.Time
		if next == models.EligibilityApproved {
			now := s.now()
			verifiedAt = &now
		}
		if err := s.transition(ctx, tx, fresh, next, verifiedAt); err != nil {
			return err
		}

		docStatus := models.DocumentUnderReview
		switch next {
		case models.EligibilityApproved:
			docStatus = models.DocumentApproved
		case models.EligibilityRejected:
			docStatus = models.DocumentRejected
		}
		if docStatus != models.DocumentUnderReview {
			if err := tx.Documents().MarkReviewed(ctx, tenantID, docStatus, reviewerID, notes); err != nil {
				return fmt.Errorf("failed to update document statuses: %w", err)
			}
		}

		return s.audit(ctx, tx, tenantID, models.AuditReviewRecorded, models.JSON{
			"review_id":   review.ID.String(),
			"action":      string(action),
			"status_from": string(prev),
			"status_to":   string(next),
			"reviewed_by": reviewerID.String(),
		}, reviewerID.String())
	})
	if err != nil {
		return nil, err
	}

	s.notifyReviewOutcome(ctx, tenant, action, notes)
	return review, nil
}

func (s *Service) notifyReviewOutcome(ctx context.Context, tenant models.Tenant, action models.ReviewAction, notes string) {
	event := notify.Event{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Recipient:  tenant.ContactEmail,
	}
	switch action {
	case models.ReviewActionApprove:
		event.Type = notify.EventEligibilityConfirmed
		event.Subject = "Your institution has been verified"
		event.Detail = "Your eligibility verification is complete and your institution is now approved."
	case models.ReviewActionReject:
		event.Type = notify.EventReviewDecision
		event.Subject = "Verification decision"
		event.Detail = fmt.Sprintf("Your verification was not approved. Reviewer notes: %s", notes)
	default:
		event.Type = notify.EventReviewDecision
		event.Subject = "More information needed"
		event.Detail = fmt.Sprintf("The review team needs more information before a decision can be made: %s", notes)
	}
	s.notifier.Dispatch(ctx, event)
}

// transition applies a guarded status update on the tenant, carrying
// the optimistic version forward.
func (s *Service) transition(ctx context.Context, tx repository.Store, tenant *models.Tenant, next models.EligibilityStatus, verifiedAt *time.Time) error {
	updates := map[string]interface{}{
		"eligibility_status": next,
	}
	if verifiedAt != nil {
		updates["verified_at"] = verifiedAt
	}
	if err := tx.Tenants().UpdateGuarded(ctx, tenant.ID, tenant.Version, updates); err != nil {
		return err
	}
	tenant.EligibilityStatus = next
	tenant.Version++
	return nil
}

// audit appends one compliance entry inside the transition's transaction.
func (s *Service) audit(ctx context.Context, tx repository.Store, tenantID uuid.UUID, action models.AuditAction, details models.JSON, performedBy string) error {
	entry := &models.AuditEntry{
		TenantID:    &tenantID,
		Action:      action,
		Details:     details,
		PerformedBy: performedBy,
	}
	if err := tx.Audit().Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// withConflictRetry runs fn atomically, retrying once with a short
// backoff when the optimistic version check loses a race. A second
// loss surfaces ErrConcurrencyConflict.
func (s *Service) withConflictRetry(ctx context.Context, fn func(tx repository.Store) error) error {
	err := s.store.Atomic(ctx, fn)
	if !errors.Is(err, repository.ErrVersionMismatch) {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryBackoff):
	}

	err = s.store.Atomic(ctx, fn)
	if errors.Is(err, repository.ErrVersionMismatch) {
		return apperr.ErrConcurrencyConflict
	}
	return err
}
