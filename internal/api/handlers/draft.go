package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/inboxpilot/core/internal/database/models"
	"github.com/inboxpilot/core/internal/mailbox"
	"github.com/inboxpilot/core/internal/services"
	"gorm.io/gorm"
)

// DraftHandler handles draft review and sending
type DraftHandler struct {
	db              *gorm.DB
	draftService    *services.DraftService
	activityService *services.ActivityService
}

// NewDraftHandler creates a new DraftHandler instance
func NewDraftHandler(db *gorm.DB, draftService *services.DraftService, activityService *services.ActivityService) *DraftHandler {
	return &DraftHandler{
		db:              db,
		draftService:    draftService,
		activityService: activityService,
	}
}

// ListDrafts returns a user's drafts in one status, defaulting to pending
func (h *DraftHandler) ListDrafts(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	status := models.DraftStatus(c.DefaultQuery("status", string(models.DraftStatusPending)))
	if !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid draft status",
			},
		})
		return
	}

	drafts, err := h.draftService.ListByStatus(userID, status, 50)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    drafts,
	})
}

// ApproveDraft moves a pending draft to approved
func (h *DraftHandler) ApproveDraft(c *gin.Context) {
	h.review(c, h.draftService.Approve)
}

// RejectDraft moves a pending draft to rejected
func (h *DraftHandler) RejectDraft(c *gin.Context) {
	h.review(c, h.draftService.Reject)
}

func (h *DraftHandler) review(c *gin.Context, apply func(userID, draftID uint) (*models.Draft, error)) {
	userID, draftID, ok := draftPathParams(c)
	if !ok {
		return
	}

	draft, err := apply(userID, draftID)
	if err != nil {
		draftError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    draft,
	})
}

// SendDraftRequest names the account to send through
type SendDraftRequest struct {
	UserID    uint `json:"user_id" binding:"required"`
	AccountID uint `json:"account_id" binding:"required"`
}

// SendDraft delivers an approved draft through the given account
func (h *DraftHandler) SendDraft(c *gin.Context) {
	draftID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid draft ID",
			},
		})
		return
	}

	var req SendDraftRequest
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

	var account models.EmailAccount
	if err := h.db.Where("user_id = ? AND id = ?", req.UserID, req.AccountID).First(&account).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Email account not found",
			},
		})
		return
	}

	draft, err := h.draftService.SendApproved(req.UserID, uint(draftID), mailbox.NewSMTPSender(&account), h.activityService)
	if err != nil {
		draftError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    draft,
	})
}

func draftPathParams(c *gin.Context) (userID, draftID uint, ok bool) {
	userID, ok = queryUserID(c)
	if !ok {
		return 0, 0, false
	}

	parsed, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid draft ID",
			},
		})
		return 0, 0, false
	}
	return userID, uint(parsed), true
}

func draftError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDraftNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Draft not found",
			},
		})
	case errors.Is(err, services.ErrInvalidDraftStatus):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_STATUS",
				"message": err.Error(),
			},
		})
	default:
		internalError(c, err)
	}
}
