package models

import (
	"encoding/json"
	"time"
)

// DraftStatus represents the lifecycle state of a draft
type DraftStatus string

const (
	// DraftStatusPending awaits user review
	DraftStatusPending DraftStatus = "pending"
	// DraftStatusApproved was approved by the user but not yet sent
	DraftStatusApproved DraftStatus = "approved"
	// DraftStatusRejected was rejected by the user
	DraftStatusRejected DraftStatus = "rejected"
	// DraftStatusSent was sent after user approval
	DraftStatusSent DraftStatus = "sent"
	// DraftStatusAutoSent was sent automatically by the agent
	DraftStatusAutoSent DraftStatus = "auto_sent"
)

// IsValid checks if the draft status is valid
func (s DraftStatus) IsValid() bool {
	switch s {
	case DraftStatusPending, DraftStatusApproved, DraftStatusRejected, DraftStatusSent, DraftStatusAutoSent:
		return true
	}
	return false
}

// ActiveDraftStatuses are the states that count toward the one-active-draft-per-message rule.
// A rejected draft does not block a new draft from being created.
var ActiveDraftStatuses = []string{
	string(DraftStatusPending),
	string(DraftStatusApproved),
	string(DraftStatusSent),
	string(DraftStatusAutoSent),
}

// Draft represents a generated reply awaiting approval or already sent
type Draft struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	UserID   uint `gorm:"index;not null" json:"user_id"`
	EmailID  uint `gorm:"index;not null" json:"email_id"`
	ToEmails string `gorm:"type:text;not null" json:"to_emails"` // JSON array stored as string
	Subject  string `gorm:"size:500;not null" json:"subject"`
	BodyText string `gorm:"type:text;not null" json:"body_text"`

	// Status: pending, approved, rejected, sent, auto_sent
	Status string `gorm:"size:50;default:'pending';index" json:"status"`

	// Generation metadata
	LLMModelUsed  string  `gorm:"size:100" json:"llm_model_used"`
	LLMReasoning  string  `gorm:"type:text" json:"llm_reasoning"`
	LLMConfidence float64 `json:"llm_confidence"`
	MatchedRuleID *uint   `gorm:"index" json:"matched_rule_id,omitempty"`

	// Guardrail tracking
	GuardrailFlagged    bool   `gorm:"default:false" json:"guardrail_flagged"`
	GuardrailViolations string `gorm:"type:text" json:"guardrail_violations"`

	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ToEmailList decodes the stored recipient list
func (d *Draft) ToEmailList() []string {
	if d.ToEmails == "" {
		return nil
	}
	var emails []string
	if err := json.Unmarshal([]byte(d.ToEmails), &emails); err != nil {
		return nil
	}
	return emails
}

// SetToEmails encodes and stores the recipient list
func (d *Draft) SetToEmails(emails []string) {
	data, err := json.Marshal(emails)
	if err != nil {
		d.ToEmails = "[]"
		return
	}
	d.ToEmails = string(data)
}
