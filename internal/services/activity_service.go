package services

import (
	"fmt"

	"github.com/inboxpilot/core/internal/database/models"
	"gorm.io/gorm"
)

// ActivityService records and lists agent actions
type ActivityService struct {
	db *gorm.DB
}

// NewActivityService creates a new ActivityService instance
func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// Log records one activity entry
func (s *ActivityService) Log(userID uint, activityType models.ActivityType, description string, emailID, draftID, ruleID *uint) error {
	activity := models.Activity{
		UserID:       userID,
		ActivityType: string(activityType),
		Description:  description,
		EmailID:      emailID,
		DraftID:      draftID,
		RuleID:       ruleID,
	}
	if err := s.db.Create(&activity).Error; err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}

// ListRecent returns the newest activities for a user, newest first
func (s *ActivityService) ListRecent(userID uint, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var activities []models.Activity
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

// ListByType filters the feed to one activity type
func (s *ActivityService) ListByType(userID uint, activityType models.ActivityType, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var activities []models.Activity
	err := s.db.Where("user_id = ? AND activity_type = ?", userID, string(activityType)).
		Order("created_at DESC").
		Limit(limit).
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}
