package services

import (
	"log"
	"sync"
	"time"

	"github.com/inboxpilot/core/internal/agent"
	"github.com/inboxpilot/core/internal/database/models"
	"github.com/inboxpilot/core/internal/llm"
	"github.com/inboxpilot/core/internal/mailbox"
	"gorm.io/gorm"
)

// PollScheduler polls every enabled account on an interval and runs new
// messages through the agent pipeline.
type PollScheduler struct {
	db         *gorm.DB
	emails     *EmailService
	drafts     *DraftService
	settings   *SettingsService
	rules      *RuleService
	activities *ActivityService
	llmClient  *llm.Client
	interval   time.Duration
	stopChan   chan struct{}
	running    bool
	mu         sync.Mutex
	polling    sync.Mutex // prevents poll cycles from overlapping
	accountLocks sync.Map // one in-flight poll per account
}

// NewPollScheduler creates a new PollScheduler instance
func NewPollScheduler(
	db *gorm.DB,
	emails *EmailService,
	drafts *DraftService,
	settings *SettingsService,
	rules *RuleService,
	activities *ActivityService,
	llmClient *llm.Client,
	interval time.Duration,
) *PollScheduler {
	return &PollScheduler{
		db:         db,
		emails:     emails,
		drafts:     drafts,
		settings:   settings,
		rules:      rules,
		activities: activities,
		llmClient:  llmClient,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the polling loop
func (s *PollScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("[PollScheduler] Starting with interval: %v", s.interval)

	go func() {
		// Give the rest of the service time to come up before the first poll
		select {
		case <-time.After(10 * time.Second):
			log.Println("[PollScheduler] Running first poll...")
			s.pollAllAccounts()
		case <-s.stopChan:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				log.Println("[PollScheduler] Running scheduled poll...")
				s.pollAllAccounts()
			case <-s.stopChan:
				log.Println("[PollScheduler] Stopping")
				return
			}
		}
	}()
}

// Stop terminates the polling loop
func (s *PollScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.running = false
}

// TryLockAccount claims an account for polling, so manual polls do not race
// the scheduled ones.
func (s *PollScheduler) TryLockAccount(accountID uint) bool {
	_, loaded := s.accountLocks.LoadOrStore(accountID, true)
	return !loaded
}

// UnlockAccount releases an account claimed with TryLockAccount
func (s *PollScheduler) UnlockAccount(accountID uint) {
	s.accountLocks.Delete(accountID)
}

func (s *PollScheduler) pollAllAccounts() {
	if !s.polling.TryLock() {
		log.Println("[PollScheduler] Previous poll still running, skipping this cycle")
		return
	}
	defer s.polling.Unlock()

	var accounts []models.EmailAccount
	if err := s.db.Where("enabled = ?", true).Find(&accounts).Error; err != nil {
		log.Printf("[PollScheduler] Failed to get accounts: %v", err)
		return
	}

	if len(accounts) == 0 {
		log.Println("[PollScheduler] No enabled accounts found")
		return
	}

	log.Printf("[PollScheduler] Polling %d accounts", len(accounts))

	var wg sync.WaitGroup
	for _, account := range accounts {
		if !s.TryLockAccount(account.ID) {
			log.Printf("[PollScheduler] Account %d (%s) is already polling, skipping", account.ID, account.Email)
			continue
		}

		wg.Add(1)
		go func(acc models.EmailAccount) {
			defer wg.Done()
			defer s.UnlockAccount(acc.ID)

			s.pollOneAccount(acc)
		}(account)
	}
	wg.Wait()

	log.Println("[PollScheduler] Poll cycle completed")
}

// pollOneAccount fetches new messages for one account with retry, then runs
// the pipeline over them.
func (s *PollScheduler) pollOneAccount(account models.EmailAccount) {
	const maxRetries = 2
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("[PollScheduler] Account %d retry %d/%d after %v", account.ID, attempt, maxRetries, backoff)

			select {
			case <-time.After(backoff):
			case <-s.stopChan:
				return
			}
		}

		count, err := s.PollAndProcess(&account)
		if err == nil {
			if count > 0 {
				log.Printf("[PollScheduler] Account %d (%s) processed %d new emails", account.ID, account.Email, count)
			}
			return
		}

		lastErr = err
		log.Printf("[PollScheduler] Account %d (%s) poll attempt %d failed: %v", account.ID, account.Email, attempt+1, err)
	}

	log.Printf("[PollScheduler] Account %d (%s) poll failed after %d attempts: %v", account.ID, account.Email, maxRetries+1, lastErr)
}

// PollAndProcess runs one poll for an account and pipelines the new messages.
// It returns the number of newly stored messages. Exported for the manual
// poll endpoint; callers must hold the account lock.
func (s *PollScheduler) PollAndProcess(account *models.EmailAccount) (int, error) {
	source := mailbox.NewIMAPSource(account)
	messages, err := source.Poll()
	if err != nil {
		return 0, err
	}

	settings, err := s.settings.GetOrDefault(account.UserID)
	if err != nil {
		return 0, err
	}

	processor, err := s.processorFor(account)
	if err != nil {
		return 0, err
	}

	newCount := 0
	for _, msg := range messages {
		email, created, err := s.emails.SaveInbound(account.UserID, account.ID, msg)
		if err != nil {
			log.Printf("[PollScheduler] Failed to save email %s: %v", msg.SourceID, err)
			continue
		}
		if created {
			newCount++
		}
		if email.IsProcessed {
			continue
		}

		outcome := processor.ProcessMessage(msg, settings)
		log.Printf("[PollScheduler] Email %s: %s", msg.SourceID, outcome)
	}

	s.db.Model(account).Update("last_poll_at", time.Now().UTC())
	return newCount, nil
}

// processorFor builds a pipeline bound to this account's sender and the
// user's current rule set.
func (s *PollScheduler) processorFor(account *models.EmailAccount) (*agent.Processor, error) {
	engine, err := s.rules.EngineForUser(account.UserID)
	if err != nil {
		return nil, err
	}

	return agent.NewProcessor(
		account.UserID,
		engine,
		s.llmClient,
		s.llmClient,
		mailbox.NewSMTPSender(account),
		s.emails,
		s.drafts,
		s.activities,
	), nil
}
