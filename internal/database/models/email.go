package models

import (
	"time"
)

// Email represents an inbound message stored for processing
type Email struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"uniqueIndex:idx_user_source;not null" json:"user_id"`
	AccountID        uint       `gorm:"index" json:"account_id"`
	SourceID         string     `gorm:"uniqueIndex:idx_user_source;size:255;not null" json:"source_id"` // mailbox-assigned id
	ThreadID         string     `gorm:"size:255" json:"thread_id"`
	MessageID        string     `gorm:"size:500" json:"message_id"` // RFC 5322 Message-ID, reply target
	FromEmail        string     `gorm:"size:255" json:"from_email"`
	FromName         string     `gorm:"size:255" json:"from_name"`
	ToEmails         string     `gorm:"type:text" json:"to_emails"` // JSON array stored as string
	CcEmails         string     `gorm:"type:text" json:"cc_emails"` // JSON array stored as string
	Subject          string     `gorm:"size:500" json:"subject"`
	Snippet          string     `gorm:"size:500" json:"snippet"`
	BodyText         string     `gorm:"type:text" json:"body_text"`
	BodyHTML         string     `gorm:"type:text" json:"body_html"`
	ReceivedAt       time.Time  `gorm:"index" json:"received_at"`
	IsProcessed      bool       `gorm:"default:false;index" json:"is_processed"`
	RequiresResponse bool       `gorm:"default:false" json:"requires_response"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`

	// Relations
	Drafts []Draft `gorm:"foreignKey:EmailID" json:"drafts,omitempty"`
}
