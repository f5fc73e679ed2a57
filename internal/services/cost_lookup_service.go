package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecom_ops_backend/internal/cache"
	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/pkg/metrics"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// CostTable is a loaded snapshot of the cost lookup table.
type CostTable []models.CostLookupRow

// Match resolves the per-unit cost of a product display name such as
// "BPC-157 - 10mg". Stages run in order and the first stage with a candidate
// wins: exact base name, base name substring, then keyword substring.
// A vendor only breaks ties inside a stage. No match yields the zero value.
func (t CostTable) Match(productName, vendor string) models.CostMatch {
	base, strength := splitProductName(productName)
	if base == "" {
		return models.CostMatch{}
	}
	lowerBase := strings.ToLower(base)

	// exact base name; an empty strength on either side is a wildcard
	var exact, wildcard []models.CostLookupRow
	for _, row := range t {
		if !strings.EqualFold(strings.TrimSpace(row.Name), base) {
			continue
		}
		rowStrength := strings.TrimSpace(row.Strength)
		switch {
		case strength != "" && strings.EqualFold(rowStrength, strength):
			exact = append(exact, row)
		case strength == "" || rowStrength == "":
			wildcard = append(wildcard, row)
		}
	}
	if row, ok := preferVendor(exact, vendor); ok {
		return matchOf(row)
	}
	if row, ok := preferVendor(wildcard, vendor); ok {
		return matchOf(row)
	}

	if row, ok := t.substringStage(lowerBase, strength, vendor); ok {
		return matchOf(row)
	}

	for _, kw := range keywords(base) {
		if row, ok := t.substringStage(kw, strength, vendor); ok {
			return matchOf(row)
		}
	}
	return models.CostMatch{}
}

func (t CostTable) substringStage(needle, strength, vendor string) (models.CostLookupRow, bool) {
	var candidates []models.CostLookupRow
	for _, row := range t {
		name := strings.ToLower(strings.TrimSpace(row.Name))
		if name != "" && strings.Contains(name, needle) {
			candidates = append(candidates, row)
		}
	}
	if len(candidates) == 0 {
		return models.CostLookupRow{}, false
	}
	if strength != "" {
		var preferred []models.CostLookupRow
		for _, row := range candidates {
			if strengthOverlaps(row.Strength, strength) {
				preferred = append(preferred, row)
			}
		}
		if row, ok := preferVendor(preferred, vendor); ok {
			return row, true
		}
	}
	return preferVendor(candidates, vendor)
}

func splitProductName(name string) (base, strength string) {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, " - "); i >= 0 {
		return strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+3:])
	}
	return name, ""
}

// keywords splits on whitespace, hyphen and plus, dropping tokens of two
// characters or fewer.
func keywords(base string) []string {
	fields := strings.FieldsFunc(strings.ToLower(base), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '+'
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

func strengthOverlaps(rowStrength, query string) bool {
	a := strings.ToLower(strings.TrimSpace(rowStrength))
	b := strings.ToLower(strings.TrimSpace(query))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func preferVendor(rows []models.CostLookupRow, vendor string) (models.CostLookupRow, bool) {
	if len(rows) == 0 {
		return models.CostLookupRow{}, false
	}
	vendor = strings.TrimSpace(vendor)
	if vendor != "" {
		for _, row := range rows {
			if strings.EqualFold(strings.TrimSpace(row.Vendor), vendor) {
				return row, true
			}
		}
	}
	return rows[0], true
}

func matchOf(row models.CostLookupRow) models.CostMatch {
	return models.CostMatch{
		CostPerUnit:     row.CostPerUnit,
		MatchedName:     row.Name,
		MatchedStrength: row.Strength,
	}
}

// CostLookupRequest DTO
type CostLookupRequest struct {
	Name        string          `json:"name" binding:"required"`
	Strength    string          `json:"strength"`
	Vendor      string          `json:"vendor"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
}

// CostLookupService resolves product costs and maintains the lookup table.
type CostLookupService interface {
	// Table loads the current table; on failure it returns an empty table.
	Table(ctx context.Context) CostTable
	Lookup(ctx context.Context, productName, vendor string) models.CostMatch
	List(ctx context.Context) ([]models.CostLookupRow, error)
	Upsert(ctx context.Context, req CostLookupRequest) (*models.CostLookupRow, error)
	Delete(ctx context.Context, id int64) error
}

type costLookupService struct {
	repo  repositories.CostLookupRepository
	cache cache.CostTable
}

// NewCostLookupService creates a new instance of CostLookupService.
func NewCostLookupService(repo repositories.CostLookupRepository, tableCache cache.CostTable) CostLookupService {
	if tableCache == nil {
		tableCache = cache.NewCostTable(nil, 0)
	}
	return &costLookupService{repo: repo, cache: tableCache}
}

func (s *costLookupService) Table(ctx context.Context) CostTable {
	if rows, ok := s.cache.Get(ctx); ok {
		metrics.RecordCostCache(true)
		return rows
	}
	metrics.RecordCostCache(false)

	rows, err := s.repo.List(ctx)
	if err != nil {
		utils.LogWarn("Cost lookup table unavailable, costs resolve to zero", map[string]interface{}{"error": err.Error()})
		return nil
	}
	s.cache.Set(ctx, rows)
	return rows
}

func (s *costLookupService) Lookup(ctx context.Context, productName, vendor string) models.CostMatch {
	return s.Table(ctx).Match(productName, vendor)
}

func (s *costLookupService) List(ctx context.Context) ([]models.CostLookupRow, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cost lookups: %w", err)
	}
	return rows, nil
}

func (s *costLookupService) Upsert(ctx context.Context, req CostLookupRequest) (*models.CostLookupRow, error) {
	row := models.CostLookupRow{
		Name:        strings.TrimSpace(req.Name),
		Strength:    strings.TrimSpace(req.Strength),
		Vendor:      strings.TrimSpace(req.Vendor),
		CostPerUnit: req.CostPerUnit,
	}
	if row.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if row.CostPerUnit.IsNegative() {
		return nil, fmt.Errorf("%w: cost_per_unit must not be negative", ErrValidation)
	}
	id, err := s.repo.Upsert(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	row.ID = id
	s.cache.Invalidate(ctx)
	return &row, nil
}

func (s *costLookupService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrCostLookupNotFound
		}
		return fmt.Errorf("failed to delete cost lookup: %w", err)
	}
	s.cache.Invalidate(ctx)
	return nil
}
