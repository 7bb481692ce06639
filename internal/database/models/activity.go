package models

import (
	"time"
)

// ActivityType categorizes an activity log entry
type ActivityType string

const (
	ActivityDraftCreated     ActivityType = "draft_created"
	ActivityEmailSent        ActivityType = "email_sent"
	ActivityEmailForwarded   ActivityType = "email_forwarded"
	ActivityGuardrailBlocked ActivityType = "guardrail_blocked"
	ActivityRuleIgnored      ActivityType = "rule_ignored"
	ActivityProcessingError  ActivityType = "processing_error"
)

// Activity records an action taken by the agent on behalf of a user
type Activity struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	ActivityType string    `gorm:"size:50;index;not null" json:"activity_type"`
	Description  string    `gorm:"type:text" json:"description"`
	EmailID      *uint     `gorm:"index" json:"email_id,omitempty"`
	DraftID      *uint     `gorm:"index" json:"draft_id,omitempty"`
	RuleID       *uint     `gorm:"index" json:"rule_id,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
