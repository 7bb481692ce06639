package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inboxpilot/core/internal/database/models"
	"github.com/inboxpilot/core/internal/mailbox"
	"gorm.io/gorm"
)

var (
	// ErrEmailNotFound indicates the email does not exist for this user
	ErrEmailNotFound = errors.New("email not found")
)

// EmailService persists inbound emails and their processing state
type EmailService struct {
	db *gorm.DB
}

// NewEmailService creates a new EmailService instance
func NewEmailService(db *gorm.DB) *EmailService {
	return &EmailService{db: db}
}

// SaveInbound stores one polled message, deduplicating on SourceID. Returns
// the stored record and whether it was newly created.
func (s *EmailService) SaveInbound(userID, accountID uint, msg mailbox.Message) (*models.Email, bool, error) {
	var existing models.Email
	err := s.db.Where("user_id = ? AND source_id = ?", userID, msg.SourceID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to check for existing email: %w", err)
	}

	email := models.Email{
		UserID:     userID,
		AccountID:  accountID,
		SourceID:   msg.SourceID,
		ThreadID:   msg.ThreadID,
		MessageID:  msg.MessageID,
		FromEmail:  msg.FromEmail,
		FromName:   msg.FromName,
		ToEmails:   encodeAddressList(msg.ToEmails),
		CcEmails:   encodeAddressList(msg.CcEmails),
		Subject:    msg.Subject,
		Snippet:    msg.Snippet,
		BodyText:   msg.BodyText,
		BodyHTML:   msg.BodyHTML,
		ReceivedAt: msg.ReceivedAt,
	}
	if err := s.db.Create(&email).Error; err != nil {
		return nil, false, fmt.Errorf("failed to save email: %w", err)
	}
	return &email, true, nil
}

// GetByID fetches one email scoped to its owner
func (s *EmailService) GetByID(userID, emailID uint) (*models.Email, error) {
	var email models.Email
	err := s.db.Where("user_id = ? AND id = ?", userID, emailID).First(&email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	return &email, nil
}

// FindBySourceID fetches one email by its mailbox-assigned id
func (s *EmailService) FindBySourceID(userID uint, sourceID string) (*models.Email, error) {
	var email models.Email
	err := s.db.Where("user_id = ? AND source_id = ?", userID, sourceID).First(&email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find email: %w", err)
	}
	return &email, nil
}

// UpdateProcessingStatus records the processing outcome for one email.
// requiresResponse is left untouched when nil, matching the retry path where
// only is_processed is reset.
func (s *EmailService) UpdateProcessingStatus(userID uint, sourceID string, processed bool, requiresResponse *bool) error {
	updates := map[string]interface{}{
		"is_processed": processed,
		"processed_at": time.Now().UTC(),
	}
	if requiresResponse != nil {
		updates["requires_response"] = *requiresResponse
	}

	result := s.db.Model(&models.Email{}).
		Where("user_id = ? AND source_id = ?", userID, sourceID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update email status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEmailNotFound
	}
	return nil
}

// ListUnprocessed returns emails awaiting the agent pipeline, oldest first
func (s *EmailService) ListUnprocessed(userID uint, limit int) ([]models.Email, error) {
	if limit <= 0 {
		limit = 50
	}

	var emails []models.Email
	err := s.db.Where("user_id = ? AND is_processed = ?", userID, false).
		Order("received_at ASC").
		Limit(limit).
		Find(&emails).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed emails: %w", err)
	}
	return emails, nil
}

func encodeAddressList(addrs []string) string {
	if len(addrs) == 0 {
		return "[]"
	}
	data, err := json.Marshal(addrs)
	if err != nil {
		return "[]"
	}
	return string(data)
}
