package models

import (
	"encoding/json"
	"time"
)

// BatchJobStatus represents the state of a batch draft generation job
type BatchJobStatus string

const (
	BatchJobPending    BatchJobStatus = "pending"
	BatchJobProcessing BatchJobStatus = "processing"
	BatchJobCompleted  BatchJobStatus = "completed"
	BatchJobFailed     BatchJobStatus = "failed"
)

// BatchDraftJob tracks a bulk draft generation request. Counters are only
// mutated through BatchService's conditional updates so that concurrent item
// completions cannot race the terminal status transition.
type BatchDraftJob struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	TotalEmails     int       `gorm:"not null" json:"total_emails"`
	CompletedEmails int       `gorm:"default:0" json:"completed_emails"`
	FailedEmails    int       `gorm:"default:0" json:"failed_emails"`
	Status          string    `gorm:"size:50;default:'pending'" json:"status"`
	EmailIDs        string    `gorm:"type:text;not null" json:"email_ids"` // JSON array stored as string
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DecodeEmailIDs returns the email ids tracked by this job
func (j *BatchDraftJob) DecodeEmailIDs() []uint {
	if j.EmailIDs == "" {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal([]byte(j.EmailIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// EncodeEmailIDs stores the email ids tracked by this job
func (j *BatchDraftJob) EncodeEmailIDs(ids []uint) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	j.EmailIDs = string(data)
	return nil
}
