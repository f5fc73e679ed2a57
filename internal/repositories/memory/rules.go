package memory

import (
	"context"
	"sort"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
)

type ruleRepo struct{ s *state }

func (r *ruleRepo) List(_ context.Context, activeOnly bool) ([]models.CategorizationRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []models.CategorizationRule{}
	for _, rule := range r.s.rules {
		if activeOnly && !rule.IsActive {
			continue
		}
		out = append(out, *rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *ruleRepo) Get(_ context.Context, id int64) (*models.CategorizationRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *rule
	return &c, nil
}

func (r *ruleRepo) Create(_ context.Context, rule *models.CategorizationRule, autoPriority bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if autoPriority {
		max := 0
		for _, existing := range r.s.rules {
			if existing.Priority > max {
				max = existing.Priority
			}
		}
		rule.Priority = max + 1
	}
	now := r.s.now()
	rule.ID = r.s.id("categorization_rules")
	rule.CreatedAt, rule.UpdatedAt = now, now
	c := *rule
	r.s.rules[c.ID] = &c
	return rule.ID, nil
}

func (r *ruleRepo) Update(_ context.Context, id int64, patch models.RulePatch) (*models.CategorizationRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if patch.Pattern != nil {
		rule.Pattern = *patch.Pattern
	}
	if patch.PatternType != nil {
		rule.PatternType = *patch.PatternType
	}
	if patch.Category != nil {
		rule.Category = *patch.Category
	}
	if patch.Priority != nil {
		rule.Priority = *patch.Priority
	}
	if patch.IsActive != nil {
		rule.IsActive = *patch.IsActive
	}
	rule.UpdatedAt = r.s.now()
	c := *rule
	return &c, nil
}

func (r *ruleRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rules[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.rules, id)
	return nil
}
