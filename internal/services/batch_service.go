package services

import (
	"errors"
	"fmt"

	"github.com/inboxpilot/core/internal/database/models"
	"gorm.io/gorm"
)

// ErrBatchJobNotFound indicates the batch job does not exist
var ErrBatchJobNotFound = errors.New("batch job not found")

// BatchService persists batch draft jobs. Progress counters are advanced with
// single conditional UPDATE statements so concurrent workers cannot lose
// increments or race the terminal status flip.
type BatchService struct {
	db *gorm.DB
}

// NewBatchService creates a new BatchService instance
func NewBatchService(db *gorm.DB) *BatchService {
	return &BatchService{db: db}
}

// CreateJob stores a new batch job
func (s *BatchService) CreateJob(job *models.BatchDraftJob) error {
	if err := s.db.Create(job).Error; err != nil {
		return fmt.Errorf("failed to create batch job: %w", err)
	}
	return nil
}

// GetJob fetches one job scoped to its owner
func (s *BatchService) GetJob(userID, jobID uint) (*models.BatchDraftJob, error) {
	var job models.BatchDraftJob
	err := s.db.Where("user_id = ? AND id = ?", userID, jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch job: %w", err)
	}
	return &job, nil
}

// MarkItemCompleted increments the completed counter and flips the job to
// completed when every item is accounted for, in one statement.
func (s *BatchService) MarkItemCompleted(jobID uint) error {
	return s.advance(jobID, "completed_emails")
}

// MarkItemFailed increments the failed counter and flips the job to completed
// when every item is accounted for, in one statement.
func (s *BatchService) MarkItemFailed(jobID uint) error {
	return s.advance(jobID, "failed_emails")
}

func (s *BatchService) advance(jobID uint, counter string) error {
	// A job is done when completed + failed reaches the total, regardless of
	// which counter got the final increment.
	query := fmt.Sprintf(`UPDATE batch_draft_jobs
		SET %s = %s + 1,
		    status = CASE
		        WHEN completed_emails + failed_emails + 1 >= total_emails THEN 'completed'
		        ELSE status
		    END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, counter, counter)

	result := s.db.Exec(query, jobID)
	if result.Error != nil {
		return fmt.Errorf("failed to advance batch job %d: %w", jobID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBatchJobNotFound
	}
	return nil
}
