package models

import (
	"time"
)

// Rule represents a stored automation rule. The condition tree and action
// config are kept as JSON and parsed into the rules engine's types when an
// engine is built for the owning user.
type Rule struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Priority     int       `gorm:"default:0;index" json:"priority"` // lower value = evaluated first
	Conditions   string    `gorm:"type:text;not null" json:"conditions"` // JSON condition tree
	Action       string    `gorm:"size:50;not null" json:"action"`
	ActionConfig string    `gorm:"type:text" json:"action_config"` // JSON object (forward_to, custom_prompt)
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
