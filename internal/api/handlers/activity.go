package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/inboxpilot/core/internal/database/models"
	"github.com/inboxpilot/core/internal/services"
)

// ActivityHandler serves the agent activity feed
type ActivityHandler struct {
	activityService *services.ActivityService
}

// NewActivityHandler creates a new ActivityHandler instance
func NewActivityHandler(activityService *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// ListActivities returns recent agent actions, optionally filtered by type
func (h *ActivityHandler) ListActivities(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	var activities []models.Activity
	var err error
	if activityType := c.Query("type"); activityType != "" {
		activities, err = h.activityService.ListByType(userID, models.ActivityType(activityType), limit)
	} else {
		activities, err = h.activityService.ListRecent(userID, limit)
	}
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    activities,
	})
}
