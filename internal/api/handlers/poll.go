package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/inboxpilot/core/internal/database/models"
	"github.com/inboxpilot/core/internal/services"
	"gorm.io/gorm"
)

// PollHandler triggers manual mailbox polls
type PollHandler struct {
	db        *gorm.DB
	scheduler *services.PollScheduler
}

// NewPollHandler creates a new PollHandler instance
func NewPollHandler(db *gorm.DB, scheduler *services.PollScheduler) *PollHandler {
	return &PollHandler{db: db, scheduler: scheduler}
}

// PollAccount polls one account immediately. Returns 409 when the account is
// already being polled by the scheduler.
func (h *PollHandler) PollAccount(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	accountID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid account ID",
			},
		})
		return
	}

	var account models.EmailAccount
	if err := h.db.Where("user_id = ? AND id = ?", userID, uint(accountID)).First(&account).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Email account not found",
			},
		})
		return
	}

	if !h.scheduler.TryLockAccount(account.ID) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ALREADY_POLLING",
				"message": "Account is already being polled",
			},
		})
		return
	}
	defer h.scheduler.UnlockAccount(account.ID)

	count, err := h.scheduler.PollAndProcess(&account)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"new_emails": count,
		},
	})
}
