// Package memory is an in-process data provider seeded from YAML. It honours
// the same uniqueness rules as the Postgres schema and is used for demo mode
// and tests.
package memory

import (
	"sync"
	"time"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
)

type lineKey struct {
	wooOrderID int64
	lineItemID int64
}

type state struct {
	mu sync.RWMutex

	nextID map[string]int64
	now    func() time.Time

	orders      map[int64]*models.Order
	lines       map[lineKey]models.OrderLine
	products    map[int64]*models.Product
	expenses    map[int64]*models.Expense
	batches     map[int64]*models.ExpenseImportBatch
	importLines map[int64]*models.ExpenseImportLine
	rules       map[int64]*models.CategorizationRule
	costs       map[int64]*models.CostLookupRow
	users       map[int64]*userRecord
}

type userRecord struct {
	user models.User
	hash string
}

func newState() *state {
	return &state{
		nextID:      map[string]int64{},
		now:         time.Now,
		orders:      map[int64]*models.Order{},
		lines:       map[lineKey]models.OrderLine{},
		products:    map[int64]*models.Product{},
		expenses:    map[int64]*models.Expense{},
		batches:     map[int64]*models.ExpenseImportBatch{},
		importLines: map[int64]*models.ExpenseImportLine{},
		rules:       map[int64]*models.CategorizationRule{},
		costs:       map[int64]*models.CostLookupRow{},
		users:       map[int64]*userRecord{},
	}
}

// id hands out per-table sequence values. Callers hold mu.
func (s *state) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

// NewStore returns a Store backed by process memory. seed may be nil.
func NewStore(seed *Seed) (*repositories.Store, error) {
	st := newState()
	store := &repositories.Store{
		Orders:      &orderRepo{st},
		Products:    &productRepo{st},
		Expenses:    &expenseRepo{st},
		Imports:     &importRepo{st},
		Rules:       &ruleRepo{st},
		CostLookups: &costLookupRepo{st},
		Users:       &userRepo{st},
		Reports:     &reportRepo{st},
	}
	if seed != nil {
		if err := seed.apply(store); err != nil {
			return nil, err
		}
	}
	return store, nil
}
