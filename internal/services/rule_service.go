package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inboxpilot/core/internal/database/models"
	"github.com/inboxpilot/core/internal/rules"
	"gorm.io/gorm"
)

// ErrRuleNotFound indicates the rule does not exist for this user
var ErrRuleNotFound = errors.New("rule not found")

// RuleService persists automation rules and builds evaluation engines from
// them. Rules are validated on write so a stored rule always parses.
type RuleService struct {
	db *gorm.DB
}

// NewRuleService creates a new RuleService instance
func NewRuleService(db *gorm.DB) *RuleService {
	return &RuleService{db: db}
}

// Save validates and persists one rule. Invalid condition trees, actions, or
// operators are rejected here rather than at evaluation time.
func (s *RuleService) Save(rule *models.Rule) error {
	if _, err := parseStoredRule(rule); err != nil {
		return err
	}
	if err := s.db.Save(rule).Error; err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// Delete removes one rule scoped to its owner
func (s *RuleService) Delete(userID, ruleID uint) error {
	result := s.db.Where("user_id = ? AND id = ?", userID, ruleID).Delete(&models.Rule{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// List returns a user's rules ordered by priority
func (s *RuleService) List(userID uint) ([]models.Rule, error) {
	var stored []models.Rule
	err := s.db.Where("user_id = ?", userID).Order("priority ASC").Find(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return stored, nil
}

// EngineForUser parses the user's active rules into an engine. A stored rule
// that no longer parses is a hard error, not a silent skip.
func (s *RuleService) EngineForUser(userID uint) (*rules.Engine, error) {
	var stored []models.Rule
	err := s.db.Where("user_id = ? AND is_active = ?", userID, true).Find(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	parsed := make([]rules.Rule, 0, len(stored))
	for i := range stored {
		rule, err := parseStoredRule(&stored[i])
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, *rule)
	}
	return rules.NewEngine(parsed), nil
}

func parseStoredRule(stored *models.Rule) (*rules.Rule, error) {
	conditions, err := rules.ParseGroup([]byte(stored.Conditions))
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", stored.Name, err)
	}

	action, err := rules.ParseRuleAction(stored.Action)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", stored.Name, err)
	}

	var config rules.ActionConfig
	if stored.ActionConfig != "" {
		if err := json.Unmarshal([]byte(stored.ActionConfig), &config); err != nil {
			return nil, fmt.Errorf("rule %q: invalid action config: %w", stored.Name, err)
		}
	}

	return &rules.Rule{
		ID:           stored.ID,
		Name:         stored.Name,
		Priority:     stored.Priority,
		Conditions:   conditions,
		Action:       action,
		ActionConfig: config,
		IsActive:     stored.IsActive,
	}, nil
}
