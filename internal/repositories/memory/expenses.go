package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

type expenseRepo struct{ s *state }

func cloneExpense(e *models.Expense) *models.Expense {
	c := *e
	if e.Metadata != nil {
		c.Metadata = append(json.RawMessage(nil), e.Metadata...)
	}
	return &c
}

// perOrderCategory reports whether (order_number, category) is unique for c.
func perOrderCategory(c string) bool {
	return c == models.CategoryShipping || c == models.CategoryAffiliate
}

func (r *expenseRepo) FindByOrderAndCategory(_ context.Context, orderNumber, category string) (*models.Expense, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *models.Expense
	for _, e := range r.s.expenses {
		if e.OrderNumber != nil && *e.OrderNumber == orderNumber && e.Category == category {
			if found == nil || e.ID < found.ID {
				found = e
			}
		}
	}
	if found == nil {
		return nil, repositories.ErrNotFound
	}
	return cloneExpense(found), nil
}

func (r *expenseRepo) FindByExternalRef(_ context.Context, externalRef string) (*models.Expense, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.expenses {
		if e.ExternalRef != nil && *e.ExternalRef == externalRef {
			return cloneExpense(e), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *expenseRepo) Create(_ context.Context, e *models.Expense) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if !e.Amount.GreaterThan(decimal.Zero) {
		return 0, fmt.Errorf("%w: expenses_amount_check: amount must be positive", repositories.ErrDatabaseError)
	}
	for _, other := range r.s.expenses {
		if e.ExternalRef != nil && other.ExternalRef != nil && *e.ExternalRef == *other.ExternalRef {
			return 0, duplicate("expenses_external_ref_key")
		}
		if e.OrderNumber != nil && other.OrderNumber != nil && perOrderCategory(e.Category) &&
			*e.OrderNumber == *other.OrderNumber && e.Category == other.Category {
			return 0, duplicate("expenses_order_category_uniq")
		}
	}

	now := r.s.now()
	stored := cloneExpense(e)
	stored.ID = r.s.id("expenses")
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.s.expenses[stored.ID] = stored

	e.ID = stored.ID
	e.CreatedAt, e.UpdatedAt = now, now
	return e.ID, nil
}

func (r *expenseRepo) UpdateAmount(_ context.Context, id int64, amount decimal.Decimal, description string, metadata json.RawMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.expenses[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if !amount.GreaterThan(decimal.Zero) {
		return fmt.Errorf("%w: expenses_amount_check: amount must be positive", repositories.ErrDatabaseError)
	}
	e.Amount = amount
	e.Description = description
	if len(metadata) > 0 {
		e.Metadata = append(json.RawMessage(nil), metadata...)
	}
	e.UpdatedAt = r.s.now()
	return nil
}

func (r *expenseRepo) List(_ context.Context, f models.ExpenseFilters) ([]models.Expense, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	match := func(want *string, got string) bool {
		return want == nil || *want == "" || *want == got
	}
	all := []models.Expense{}
	for _, e := range r.s.expenses {
		if !match(f.Category, e.Category) || !match(f.Source, e.Source) ||
			!match(f.OrderNumber, utils.StringValue(e.OrderNumber)) ||
			!inWindow(e.ExpenseDate, utils.StringValue(f.StartDate), utils.StringValue(f.EndDate)) {
			continue
		}
		all = append(all, *cloneExpense(e))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ExpenseDate != all[j].ExpenseDate {
			return all[i].ExpenseDate > all[j].ExpenseDate
		}
		return all[i].ID > all[j].ID
	})
	return paginate(all, f.Page, f.PageSize), len(all), nil
}

func (r *expenseRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.expenses[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.expenses, id)
	for _, l := range r.s.importLines {
		if l.ExpenseID != nil && *l.ExpenseID == id {
			l.ExpenseID = nil
		}
	}
	return nil
}

type importRepo struct{ s *state }

func (r *importRepo) CreateBatch(_ context.Context, batch *models.ExpenseImportBatch, lines []models.ExpenseImportLine) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()

	batch.ID = r.s.id("expense_import_batches")
	batch.Status = models.ImportStatusPending
	batch.TotalLines = len(lines)
	batch.ApprovedLines = 0
	batch.CreatedAt, batch.UpdatedAt = now, now
	stored := *batch
	stored.Lines = nil
	r.s.batches[batch.ID] = &stored

	for i := range lines {
		l := &lines[i]
		l.ID = r.s.id("expense_import_lines")
		l.BatchID = batch.ID
		l.CreatedAt = now
		c := *l
		r.s.importLines[c.ID] = &c
	}
	return batch.ID, nil
}

func (r *importRepo) GetBatch(_ context.Context, id int64) (*models.ExpenseImportBatch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.batches[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (r *importRepo) ListBatches(_ context.Context) ([]models.ExpenseImportBatch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.ExpenseImportBatch, 0, len(r.s.batches))
	for _, b := range r.s.batches {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *importRepo) ListLines(_ context.Context, batchID int64) ([]models.ExpenseImportLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []models.ExpenseImportLine{}
	for _, l := range r.s.importLines {
		if l.BatchID == batchID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LineNumber != out[j].LineNumber {
			return out[i].LineNumber < out[j].LineNumber
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// pendingLine returns the line when it belongs to batchID and is neither
// approved nor rejected. Callers hold mu.
func (r *importRepo) pendingLine(batchID, lineID int64) (*models.ExpenseImportLine, error) {
	l, ok := r.s.importLines[lineID]
	if !ok || l.BatchID != batchID || l.State() != models.LineStatePending {
		return nil, repositories.ErrNotFound
	}
	return l, nil
}

func (r *importRepo) SetLineCategory(_ context.Context, batchID, lineID int64, category string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, err := r.pendingLine(batchID, lineID)
	if err != nil {
		return err
	}
	l.Category = &category
	l.AutoCategorized = false
	return nil
}

func (r *importRepo) MarkLineApproved(_ context.Context, batchID, lineID, expenseID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, err := r.pendingLine(batchID, lineID)
	if err != nil {
		return err
	}
	l.Approved = true
	l.ExpenseID = &expenseID
	return nil
}

func (r *importRepo) MarkLineRejected(_ context.Context, batchID, lineID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, err := r.pendingLine(batchID, lineID)
	if err != nil {
		return err
	}
	l.Rejected = true
	return nil
}

func (r *importRepo) UpdateBatchStatus(_ context.Context, batchID int64, status string, approvedLines int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[batchID]
	if !ok {
		return repositories.ErrNotFound
	}
	b.Status = status
	b.ApprovedLines = approvedLines
	b.UpdatedAt = r.s.now()
	return nil
}
