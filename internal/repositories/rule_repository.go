package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ecom_ops_backend/internal/models"
)

const ruleColumns = `id, pattern, pattern_type, category, priority, is_active, created_at, updated_at`

type ruleRepository struct {
	db *sql.DB
}

// NewRuleRepository creates a new instance of RuleRepository.
func NewRuleRepository(db *sql.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func scanRule(s scanner) (*models.CategorizationRule, error) {
	rule := &models.CategorizationRule{}
	if err := s.Scan(&rule.ID, &rule.Pattern, &rule.PatternType, &rule.Category, &rule.Priority,
		&rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *ruleRepository) List(ctx context.Context, activeOnly bool) ([]models.CategorizationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM categorization_rules`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY priority DESC, created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapDBError(err, "listing rules")
	}
	defer rows.Close()

	rules := []models.CategorizationRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, wrapDBError(err, "scanning rule")
		}
		rules = append(rules, *rule)
	}
	return rules, wrapDBError(rows.Err(), "iterating rules")
}

func (r *ruleRepository) Get(ctx context.Context, id int64) (*models.CategorizationRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM categorization_rules WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting rule %d", id))
	}
	return rule, nil
}

func (r *ruleRepository) Create(ctx context.Context, rule *models.CategorizationRule, autoPriority bool) (int64, error) {
	now := time.Now()
	// Equal priorities are ordered by created_at on read.
	err := r.db.QueryRowContext(ctx, `INSERT INTO categorization_rules
		(pattern, pattern_type, category, priority, is_active, created_at, updated_at)
		VALUES ($1, $2, $3,
			CASE WHEN $4 THEN (SELECT COALESCE(MAX(priority), 0) + 1 FROM categorization_rules) ELSE $5 END,
			$6, $7, $7)
		RETURNING id, priority`,
		rule.Pattern, rule.PatternType, rule.Category, autoPriority, rule.Priority, rule.IsActive, now,
	).Scan(&rule.ID, &rule.Priority)
	if err != nil {
		return 0, wrapDBError(err, "creating rule")
	}
	rule.CreatedAt, rule.UpdatedAt = now, now
	return rule.ID, nil
}

func (r *ruleRepository) Update(ctx context.Context, id int64, patch models.RulePatch) (*models.CategorizationRule, error) {
	var sets []string
	var args []interface{}
	argCount := 1
	set := func(col string, v interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argCount))
		args = append(args, v)
		argCount++
	}
	if patch.Pattern != nil {
		set("pattern", *patch.Pattern)
	}
	if patch.PatternType != nil {
		set("pattern_type", *patch.PatternType)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.Priority != nil {
		set("priority", *patch.Priority)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(`UPDATE categorization_rules SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), argCount, ruleColumns)
	args = append(args, id)

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("updating rule %d", id))
	}
	return rule, nil
}

func (r *ruleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categorization_rules WHERE id = $1`, id)
	if err != nil {
		return wrapDBError(err, fmt.Sprintf("deleting rule %d", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
