package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/inboxpilot/core/internal/agent"
	"github.com/inboxpilot/core/internal/database/models"
	"github.com/inboxpilot/core/internal/llm"
	"github.com/inboxpilot/core/internal/services"
)

// BatchHandler handles bulk draft generation requests
type BatchHandler struct {
	batchService    *services.BatchService
	emailService    *services.EmailService
	draftService    *services.DraftService
	settingsService *services.SettingsService
	ruleService     *services.RuleService
	activityService *services.ActivityService
	llmClient       *llm.Client
}

// NewBatchHandler creates a new BatchHandler instance
func NewBatchHandler(
	batchService *services.BatchService,
	emailService *services.EmailService,
	draftService *services.DraftService,
	settingsService *services.SettingsService,
	ruleService *services.RuleService,
	activityService *services.ActivityService,
	llmClient *llm.Client,
) *BatchHandler {
	return &BatchHandler{
		batchService:    batchService,
		emailService:    emailService,
		draftService:    draftService,
		settingsService: settingsService,
		ruleService:     ruleService,
		activityService: activityService,
		llmClient:       llmClient,
	}
}

// CreateBatchJobRequest selects the emails to draft for
type CreateBatchJobRequest struct {
	UserID   uint   `json:"user_id" binding:"required"`
	EmailIDs []uint `json:"email_ids" binding:"required,min=1"`
}

// BatchJobResponse reports batch job progress
type BatchJobResponse struct {
	ID              uint   `json:"id"`
	Status          string `json:"status"`
	TotalEmails     int    `json:"total_emails"`
	CompletedEmails int    `json:"completed_emails"`
	FailedEmails    int    `json:"failed_emails"`
}

// CreateBatchJob starts drafting for a user-selected set of emails
func (h *BatchHandler) CreateBatchJob(c *gin.Context) {
	var req CreateBatchJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": err.Error(),
			},
		})
		return
	}

	settings, err := h.settingsService.GetOrDefault(req.UserID)
	if err != nil {
		internalError(c, err)
		return
	}

	engine, err := h.ruleService.EngineForUser(req.UserID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RULES_INVALID",
				"message": err.Error(),
			},
		})
		return
	}

	// Batch drafting never sends, so the processor gets no sender
	processor := agent.NewProcessor(
		req.UserID,
		engine,
		h.llmClient,
		h.llmClient,
		nil,
		h.emailService,
		h.draftService,
		h.activityService,
	)
	coordinator := agent.NewBatchCoordinator(h.batchService, h.userScopedEmails(req.UserID), h.draftService, processor)

	job, err := coordinator.Run(req.UserID, req.EmailIDs, settings)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data":    jobResponse(job),
	})
}

// GetBatchJob reports progress for one batch job
func (h *BatchHandler) GetBatchJob(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	jobID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid job ID",
			},
		})
		return
	}

	job, err := h.batchService.GetJob(userID, uint(jobID))
	if err != nil {
		if errors.Is(err, services.ErrBatchJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Batch job not found",
				},
			})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    jobResponse(job),
	})
}

// userScopedEmails adapts EmailService to the coordinator's loader, pinning
// the owner so a job cannot draft another user's emails.
func (h *BatchHandler) userScopedEmails(userID uint) agent.EmailLoader {
	return emailLoaderFunc(func(uid, emailID uint) (*models.Email, error) {
		return h.emailService.GetByID(userID, emailID)
	})
}

type emailLoaderFunc func(userID, emailID uint) (*models.Email, error)

func (f emailLoaderFunc) GetByID(userID, emailID uint) (*models.Email, error) {
	return f(userID, emailID)
}

func jobResponse(job *models.BatchDraftJob) BatchJobResponse {
	return BatchJobResponse{
		ID:              job.ID,
		Status:          job.Status,
		TotalEmails:     job.TotalEmails,
		CompletedEmails: job.CompletedEmails,
		FailedEmails:    job.FailedEmails,
	}
}

func queryUserID(c *gin.Context) (uint, bool) {
	raw := c.Query("user_id")
	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Valid user_id query parameter is required",
			},
		})
		return 0, false
	}
	return uint(userID), true
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	})
}
