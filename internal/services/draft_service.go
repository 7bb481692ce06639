package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/inboxpilot/core/internal/database/models"
	"github.com/inboxpilot/core/internal/mailbox"
	"gorm.io/gorm"
)

var (
	// ErrDraftNotFound indicates the draft does not exist
	ErrDraftNotFound = errors.New("draft not found")
	// ErrInvalidDraftStatus indicates the draft is not in the required state
	ErrInvalidDraftStatus = errors.New("invalid draft status")
)

// DraftService persists drafts and enforces the one-active-draft-per-email
// rule.
type DraftService struct {
	db *gorm.DB
}

// NewDraftService creates a new DraftService instance
func NewDraftService(db *gorm.DB) *DraftService {
	return &DraftService{db: db}
}

// CreateDraft stores a draft unless the email already has an active one, in
// which case the existing draft is returned unchanged with created=false.
func (s *DraftService) CreateDraft(draft *models.Draft) (*models.Draft, bool, error) {
	var result *models.Draft
	created := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Draft
		err := tx.Where("email_id = ? AND status IN ?", draft.EmailID, models.ActiveDraftStatuses).
			First(&existing).Error
		if err == nil {
			result = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check for existing draft: %w", err)
		}

		if err := tx.Create(draft).Error; err != nil {
			return fmt.Errorf("failed to create draft: %w", err)
		}
		result = draft
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// HasActiveDraft reports whether the email already has a draft that is
// pending, approved, or sent.
func (s *DraftService) HasActiveDraft(emailID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Draft{}).
		Where("email_id = ? AND status IN ?", emailID, models.ActiveDraftStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check for active draft: %w", err)
	}
	return count > 0, nil
}

// GetByID fetches one draft scoped to its owner
func (s *DraftService) GetByID(userID, draftID uint) (*models.Draft, error) {
	var draft models.Draft
	err := s.db.Where("user_id = ? AND id = ?", userID, draftID).First(&draft).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return &draft, nil
}

// ListByStatus returns a user's drafts in one status, newest first
func (s *DraftService) ListByStatus(userID uint, status models.DraftStatus, limit int) ([]models.Draft, error) {
	if limit <= 0 {
		limit = 50
	}

	var drafts []models.Draft
	err := s.db.Where("user_id = ? AND status = ?", userID, string(status)).
		Order("created_at DESC").
		Limit(limit).
		Find(&drafts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return drafts, nil
}

// Approve moves a pending draft to approved
func (s *DraftService) Approve(userID, draftID uint) (*models.Draft, error) {
	return s.review(userID, draftID, models.DraftStatusApproved)
}

// Reject moves a pending draft to rejected, freeing the email for re-drafting
func (s *DraftService) Reject(userID, draftID uint) (*models.Draft, error) {
	return s.review(userID, draftID, models.DraftStatusRejected)
}

func (s *DraftService) review(userID, draftID uint, status models.DraftStatus) (*models.Draft, error) {
	draft, err := s.GetByID(userID, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status != string(models.DraftStatusPending) {
		return nil, fmt.Errorf("%w: expected pending, got %s", ErrInvalidDraftStatus, draft.Status)
	}

	now := time.Now().UTC()
	draft.Status = string(status)
	draft.ReviewedAt = &now
	if err := s.db.Save(draft).Error; err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}
	return draft, nil
}

// SendApproved delivers an approved draft through the sender and marks it
// sent. Replies thread onto the original message when it is still available.
func (s *DraftService) SendApproved(userID, draftID uint, sender *mailbox.SMTPSender, activities *ActivityService) (*models.Draft, error) {
	draft, err := s.GetByID(userID, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status != string(models.DraftStatusApproved) {
		return nil, fmt.Errorf("%w: expected approved, got %s", ErrInvalidDraftStatus, draft.Status)
	}

	recipients := draft.ToEmailList()
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: draft has no recipients", ErrInvalidDraftStatus)
	}

	req := mailbox.SendRequest{
		To:      recipients,
		Subject: draft.Subject,
		Body:    draft.BodyText,
	}
	var email models.Email
	if err := s.db.Where("id = ?", draft.EmailID).First(&email).Error; err == nil {
		req.ReplyToID = email.MessageID
		req.ThreadID = email.ThreadID
	}

	if _, err := sender.Send(req); err != nil {
		return nil, fmt.Errorf("failed to send draft: %w", err)
	}

	now := time.Now().UTC()
	draft.Status = string(models.DraftStatusSent)
	draft.SentAt = &now
	if err := s.db.Save(draft).Error; err != nil {
		// The message went out; surface the bookkeeping failure loudly
		log.Printf("[DraftService] Draft %d sent but status update failed: %v", draft.ID, err)
		return nil, fmt.Errorf("draft sent but status update failed: %w", err)
	}

	if activities != nil {
		activities.Log(userID, models.ActivityEmailSent,
			fmt.Sprintf("Sent email to %s", strings.Join(recipients, ", ")),
			&draft.EmailID, &draft.ID, nil)
	}
	return draft, nil
}
