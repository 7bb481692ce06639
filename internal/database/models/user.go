package models

import (
	"encoding/json"
	"time"
)

// ApprovalMode controls whether generated replies require human sign-off
type ApprovalMode string

const (
	// ApprovalModeDraft requires every generated reply to be approved by the user
	ApprovalModeDraft ApprovalMode = "draft_approval"
	// ApprovalModeAutoWithRules auto-sends only when an auto_respond rule matched
	ApprovalModeAutoWithRules ApprovalMode = "auto_with_rules"
	// ApprovalModeFullyAutomatic auto-sends every generated reply
	ApprovalModeFullyAutomatic ApprovalMode = "fully_automatic"
)

// IsValid checks if the approval mode is valid
func (m ApprovalMode) IsValid() bool {
	switch m {
	case ApprovalModeDraft, ApprovalModeAutoWithRules, ApprovalModeFullyAutomatic:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Email       string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	EmailAccounts []EmailAccount `gorm:"foreignKey:UserID" json:"email_accounts,omitempty"`
	Settings      *UserSettings  `gorm:"foreignKey:UserID" json:"settings,omitempty"`
}

// UserSettings stores user-specific agent settings
type UserSettings struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	// Approval mode: draft_approval, auto_with_rules, fully_automatic
	ApprovalMode string `gorm:"size:50;default:'draft_approval'" json:"approval_mode"`

	// LLM settings
	LLMModel       string  `gorm:"size:100" json:"llm_model"`
	LLMTemperature float64 `gorm:"default:0.7" json:"llm_temperature"`

	// Prompt customization
	SystemPrompt string `gorm:"type:text" json:"system_prompt"`
	Signature    string `gorm:"type:text" json:"signature"`

	// Guardrail settings
	GuardrailProfanityEnabled      bool    `gorm:"default:true" json:"guardrail_profanity_enabled"`
	GuardrailPIIEnabled            bool    `gorm:"default:true" json:"guardrail_pii_enabled"`
	GuardrailCommitmentEnabled     bool    `gorm:"default:true" json:"guardrail_commitment_enabled"`
	GuardrailCustomKeywordsEnabled bool    `gorm:"default:true" json:"guardrail_custom_keywords_enabled"`
	GuardrailConfidenceThreshold   float64 `gorm:"default:0.7" json:"guardrail_confidence_threshold"`
	GuardrailBlockedKeywords       string  `gorm:"type:text" json:"guardrail_blocked_keywords"` // JSON array stored as string
}

// BlockedKeywords decodes the stored blocked keyword list
func (s *UserSettings) BlockedKeywords() []string {
	if s.GuardrailBlockedKeywords == "" {
		return nil
	}
	var keywords []string
	if err := json.Unmarshal([]byte(s.GuardrailBlockedKeywords), &keywords); err != nil {
		return nil
	}
	return keywords
}

// SetBlockedKeywords encodes and stores the blocked keyword list
func (s *UserSettings) SetBlockedKeywords(keywords []string) {
	if len(keywords) == 0 {
		s.GuardrailBlockedKeywords = ""
		return
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return
	}
	s.GuardrailBlockedKeywords = string(data)
}
