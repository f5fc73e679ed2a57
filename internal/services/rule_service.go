package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
)

// CreateRuleRequest DTO. Priority nil means "above every existing rule".
type CreateRuleRequest struct {
	Pattern     string `json:"pattern" binding:"required"`
	PatternType string `json:"pattern_type"`
	Category    string `json:"category" binding:"required"`
	Priority    *int   `json:"priority"`
	IsActive    *bool  `json:"is_active"`
}

// TestRuleRequest DTO
type TestRuleRequest struct {
	Description string `json:"description"`
	Vendor      string `json:"vendor"`
}

// TestRuleResponse DTO
type TestRuleResponse struct {
	Matched  bool                       `json:"matched"`
	Category *string                    `json:"category"`
	Rule     *models.CategorizationRule `json:"rule,omitempty"`
}

// RuleService manages categorization rules.
type RuleService interface {
	List(ctx context.Context) ([]models.CategorizationRule, error)
	Create(ctx context.Context, req CreateRuleRequest) (*models.CategorizationRule, error)
	Update(ctx context.Context, id int64, patch models.RulePatch) (*models.CategorizationRule, error)
	Delete(ctx context.Context, id int64) error
	Test(ctx context.Context, req TestRuleRequest) (*TestRuleResponse, error)
	// Categorizer snapshots the active rules.
	Categorizer(ctx context.Context) (*Categorizer, error)
}

type ruleService struct {
	repo          repositories.RuleRepository
	maxPatternLen int
}

// NewRuleService creates a new instance of RuleService.
func NewRuleService(repo repositories.RuleRepository, maxPatternLen int) RuleService {
	if maxPatternLen <= 0 {
		maxPatternLen = DefaultMaxPatternLength
	}
	return &ruleService{repo: repo, maxPatternLen: maxPatternLen}
}

func errPatternTooLong(max int) error {
	return fmt.Errorf("pattern is longer than %d characters", max)
}

func (s *ruleService) validate(patternType, pattern, category string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("%w: pattern is required", ErrValidation)
	}
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if !models.IsValidPatternType(patternType) {
		return fmt.Errorf("%w: pattern_type must be one of contains, exact, regex", ErrValidation)
	}
	if err := CompilePattern(patternType, pattern, s.maxPatternLen); err != nil {
		return fmt.Errorf("%w: invalid regex: %v", ErrValidation, err)
	}
	return nil
}

func (s *ruleService) List(ctx context.Context) ([]models.CategorizationRule, error) {
	rules, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

func (s *ruleService) Create(ctx context.Context, req CreateRuleRequest) (*models.CategorizationRule, error) {
	rule := models.CategorizationRule{
		Pattern:     strings.TrimSpace(req.Pattern),
		PatternType: strings.ToLower(strings.TrimSpace(req.PatternType)),
		Category:    strings.TrimSpace(req.Category),
		IsActive:    true,
	}
	if rule.PatternType == "" {
		rule.PatternType = models.PatternTypeContains
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := s.validate(rule.PatternType, rule.Pattern, rule.Category); err != nil {
		return nil, err
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}

	id, err := s.repo.Create(ctx, &rule, req.Priority == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	rule.ID = id
	return &rule, nil
}

func (s *ruleService) Update(ctx context.Context, id int64, patch models.RulePatch) (*models.CategorizationRule, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}

	pattern, patternType, category := current.Pattern, current.PatternType, current.Category
	if patch.Pattern != nil {
		v := strings.TrimSpace(*patch.Pattern)
		patch.Pattern, pattern = &v, v
	}
	if patch.PatternType != nil {
		v := strings.ToLower(strings.TrimSpace(*patch.PatternType))
		patch.PatternType, patternType = &v, v
	}
	if patch.Category != nil {
		v := strings.TrimSpace(*patch.Category)
		patch.Category, category = &v, v
	}
	if err := s.validate(patternType, pattern, category); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return updated, nil
}

func (s *ruleService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrRuleNotFound
		}
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

func (s *ruleService) Test(ctx context.Context, req TestRuleRequest) (*TestRuleResponse, error) {
	engine, err := s.Categorizer(ctx)
	if err != nil {
		return nil, err
	}
	rule := engine.Match(req.Description, req.Vendor)
	if rule == nil {
		return &TestRuleResponse{}, nil
	}
	category := rule.Category
	return &TestRuleResponse{Matched: true, Category: &category, Rule: rule}, nil
}

func (s *ruleService) Categorizer(ctx context.Context) (*Categorizer, error) {
	rules, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}
	return NewCategorizer(rules, s.maxPatternLen), nil
}
