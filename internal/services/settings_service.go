package services

import (
	"errors"
	"fmt"

	"github.com/inboxpilot/core/internal/database/models"
	"gorm.io/gorm"
)

// Defaults applied when a user has no stored settings row
const (
	defaultApprovalMode        = models.ApprovalModeDraft
	defaultLLMModel            = "anthropic/claude-3.5-sonnet"
	defaultLLMTemperature      = 0.7
	defaultConfidenceThreshold = 0.7
)

// SettingsService reads and writes per-user agent settings
type SettingsService struct {
	db *gorm.DB
}

// NewSettingsService creates a new SettingsService instance
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// DefaultSettings returns the conservative defaults for a new user: every
// draft requires approval and all guardrail checks are on.
func DefaultSettings(userID uint) *models.UserSettings {
	return &models.UserSettings{
		UserID:                         userID,
		ApprovalMode:                   string(defaultApprovalMode),
		LLMModel:                       defaultLLMModel,
		LLMTemperature:                 defaultLLMTemperature,
		GuardrailProfanityEnabled:      true,
		GuardrailPIIEnabled:            true,
		GuardrailCommitmentEnabled:     true,
		GuardrailCustomKeywordsEnabled: true,
		GuardrailConfidenceThreshold:   defaultConfidenceThreshold,
	}
}

// GetOrDefault returns the user's stored settings, or the defaults when no
// row exists. The defaults are not persisted until the user saves them.
func (s *SettingsService) GetOrDefault(userID uint) (*models.UserSettings, error) {
	var settings models.UserSettings
	err := s.db.Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultSettings(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

// Save validates and persists the settings row
func (s *SettingsService) Save(settings *models.UserSettings) error {
	if !models.ApprovalMode(settings.ApprovalMode).IsValid() {
		return fmt.Errorf("invalid approval mode: %s", settings.ApprovalMode)
	}
	if settings.GuardrailConfidenceThreshold < 0 || settings.GuardrailConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %g", settings.GuardrailConfidenceThreshold)
	}

	if err := s.db.Save(settings).Error; err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
