package agent

import (
	"fmt"
	"log"
	"sync"

	"github.com/inboxpilot/core/internal/database/models"
)

// BatchStore persists batch jobs and advances their counters. MarkItem* must
// be safe under concurrent calls for the same job and must flip the job to
// completed exactly when every item is accounted for.
type BatchStore interface {
	CreateJob(job *models.BatchDraftJob) error
	MarkItemCompleted(jobID uint) error
	MarkItemFailed(jobID uint) error
}

// EmailLoader fetches stored emails for batch drafting
type EmailLoader interface {
	GetByID(userID, emailID uint) (*models.Email, error)
}

// DraftChecker reports whether an email already has an active draft
type DraftChecker interface {
	HasActiveDraft(emailID uint) (bool, error)
}

// BatchCoordinator fans a user-selected set of emails out to concurrent draft
// generation and tracks progress in a BatchDraftJob.
type BatchCoordinator struct {
	store     BatchStore
	emails    EmailLoader
	drafts    DraftChecker
	processor *Processor
}

// NewBatchCoordinator wires a coordinator around one user's processor
func NewBatchCoordinator(store BatchStore, emails EmailLoader, drafts DraftChecker, processor *Processor) *BatchCoordinator {
	return &BatchCoordinator{
		store:     store,
		emails:    emails,
		drafts:    drafts,
		processor: processor,
	}
}

// Run creates the job record and starts drafting in the background. The
// returned job reflects the initial state; callers poll the store for
// progress.
func (c *BatchCoordinator) Run(userID uint, emailIDs []uint, settings *models.UserSettings) (*models.BatchDraftJob, error) {
	if len(emailIDs) == 0 {
		return nil, fmt.Errorf("batch job needs at least one email")
	}

	job := &models.BatchDraftJob{
		UserID:      userID,
		TotalEmails: len(emailIDs),
		Status:      string(models.BatchJobProcessing),
	}
	if err := job.EncodeEmailIDs(emailIDs); err != nil {
		return nil, fmt.Errorf("encode email ids: %w", err)
	}
	if err := c.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create batch job: %w", err)
	}

	go c.drain(job.ID, userID, emailIDs, settings)
	return job, nil
}

// drain processes every item concurrently and waits for all of them. Each
// item reports exactly one of completed or failed, so the counters always sum
// to the total when the fan-out finishes.
func (c *BatchCoordinator) drain(jobID, userID uint, emailIDs []uint, settings *models.UserSettings) {
	var wg sync.WaitGroup
	for _, emailID := range emailIDs {
		wg.Add(1)
		go func(emailID uint) {
			defer wg.Done()
			c.processItem(jobID, userID, emailID, settings)
		}(emailID)
	}
	wg.Wait()
	log.Printf("[Batch] Job %d finished drafting %d emails", jobID, len(emailIDs))
}

func (c *BatchCoordinator) processItem(jobID, userID, emailID uint, settings *models.UserSettings) {
	email, err := c.emails.GetByID(userID, emailID)
	if err != nil {
		log.Printf("[Batch] Job %d: email %d not found: %v", jobID, emailID, err)
		c.markFailed(jobID)
		return
	}

	// An email that already has a live draft counts as done, not as an error
	exists, err := c.drafts.HasActiveDraft(email.ID)
	if err != nil {
		log.Printf("[Batch] Job %d: draft lookup for email %d failed: %v", jobID, emailID, err)
		c.markFailed(jobID)
		return
	}
	if exists {
		log.Printf("[Batch] Job %d: email %d already has a draft, skipping", jobID, emailID)
		c.markCompleted(jobID)
		return
	}

	if _, err := c.processor.GenerateDraftOnly(email, settings); err != nil {
		log.Printf("[Batch] Job %d: drafting email %d failed: %v", jobID, emailID, err)
		c.markFailed(jobID)
		return
	}
	c.markCompleted(jobID)
}

func (c *BatchCoordinator) markCompleted(jobID uint) {
	if err := c.store.MarkItemCompleted(jobID); err != nil {
		log.Printf("[Batch] Job %d: progress update failed: %v", jobID, err)
	}
}

func (c *BatchCoordinator) markFailed(jobID uint) {
	if err := c.store.MarkItemFailed(jobID); err != nil {
		log.Printf("[Batch] Job %d: progress update failed: %v", jobID, err)
	}
}
