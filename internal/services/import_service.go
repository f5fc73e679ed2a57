package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
	"ecom_ops_backend/internal/statement"
	"ecom_ops_backend/pkg/metrics"
	"ecom_ops_backend/pkg/utils"
)

// StageResult DTO
type StageResult struct {
	ImportID        int64  `json:"import_id"`
	Filename        string `json:"filename"`
	TotalLines      int    `json:"total_lines"`
	AutoCategorized int    `json:"auto_categorized"`
	Uncategorized   int    `json:"uncategorized"`
	SkippedRows     int    `json:"skipped_rows"`
}

// ApproveRequest DTO. Empty LineIDs approves every eligible line.
type ApproveRequest struct {
	LineIDs []int64 `json:"line_ids"`
}

// ApproveLineResult is the outcome for one staged line.
type ApproveLineResult struct {
	LineID    int64  `json:"line_id"`
	Status    string `json:"status"`
	ExpenseID *int64 `json:"expense_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ApproveResult DTO
type ApproveResult struct {
	ImportID int64               `json:"import_id"`
	Approved int                 `json:"approved"`
	Failed   int                 `json:"failed"`
	Status   string              `json:"status"`
	Results  []ApproveLineResult `json:"results"`
}

// ImportService stages statement files and promotes reviewed lines to expenses.
type ImportService interface {
	Stage(ctx context.Context, filename string, data []byte) (*StageResult, error)
	ListBatches(ctx context.Context) ([]models.ExpenseImportBatch, error)
	GetBatch(ctx context.Context, batchID int64) (*models.ExpenseImportBatch, error)
	SetLineCategory(ctx context.Context, batchID, lineID int64, category string) error
	RejectLine(ctx context.Context, batchID, lineID int64) error
	Approve(ctx context.Context, batchID int64, req ApproveRequest) (*ApproveResult, error)
}

type importService struct {
	imports  repositories.ImportRepository
	expenses repositories.ExpenseRepository
	rules    RuleService
	clock    utils.Clock
}

// NewImportService creates a new instance of ImportService.
func NewImportService(store *repositories.Store, rules RuleService, clock utils.Clock) ImportService {
	if clock == nil {
		clock = utils.NewZoneClock(nil)
	}
	return &importService{
		imports:  store.Imports,
		expenses: store.Expenses,
		rules:    rules,
		clock:    clock,
	}
}

// ImportExternalRef is the dedup key of an approved import line.
func ImportExternalRef(batchID, lineID int64) string {
	return fmt.Sprintf("import_%d_line_%d", batchID, lineID)
}

func (s *importService) Stage(ctx context.Context, filename string, data []byte) (*StageResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrValidation)
	}
	rows, err := statement.ReadRows(filename, data)
	if err != nil {
		if errors.Is(err, statement.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("%w: cannot read statement: %v", ErrValidation, err)
	}
	st, err := statement.Extract(rows)
	if err != nil {
		return nil, err
	}
	if len(st.Rows) == 0 {
		return nil, ErrNoDataRows
	}

	engine, err := s.rules.Categorizer(ctx)
	if err != nil {
		utils.LogWarn("Rules unavailable, staging without categories", map[string]interface{}{"error": err.Error()})
		engine = NewCategorizer(nil, 0)
	}

	result := &StageResult{Filename: filename, SkippedRows: st.Skipped}
	lines := make([]models.ExpenseImportLine, 0, len(st.Rows))
	for _, row := range st.Rows {
		line := models.ExpenseImportLine{
			LineNumber:      row.LineNumber,
			TransactionDate: row.Date,
			Description:     row.Description,
			Vendor:          row.Vendor,
			Amount:          row.Amount,
		}
		if line.Description == "" {
			line.Description = row.Vendor
		}
		if category, ok := engine.Categorize(row.Description, row.Vendor); ok {
			line.Category = &category
			line.AutoCategorized = true
			result.AutoCategorized++
		} else {
			result.Uncategorized++
		}
		lines = append(lines, line)
	}

	batch := &models.ExpenseImportBatch{
		Filename:   filename,
		Status:     models.ImportStatusPending,
		TotalLines: len(lines),
	}
	id, err := s.imports.CreateBatch(ctx, batch, lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	result.ImportID = id
	result.TotalLines = len(lines)
	utils.LogInfo("Statement staged", map[string]interface{}{
		"import_id":        id,
		"filename":         filename,
		"total_lines":      result.TotalLines,
		"auto_categorized": result.AutoCategorized,
		"skipped_rows":     result.SkippedRows,
	})
	return result, nil
}

func (s *importService) ListBatches(ctx context.Context) ([]models.ExpenseImportBatch, error) {
	batches, err := s.imports.ListBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	return batches, nil
}

func (s *importService) GetBatch(ctx context.Context, batchID int64) (*models.ExpenseImportBatch, error) {
	batch, err := s.imports.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to load import: %w", err)
	}
	lines, err := s.imports.ListLines(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import lines: %w", err)
	}
	batch.Lines = lines
	return batch, nil
}

func (s *importService) SetLineCategory(ctx context.Context, batchID, lineID int64, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if err := s.imports.SetLineCategory(ctx, batchID, lineID, category); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrLineNotPending
		}
		return fmt.Errorf("failed to set line category: %w", err)
	}
	return nil
}

func (s *importService) RejectLine(ctx context.Context, batchID, lineID int64) error {
	if err := s.imports.MarkLineRejected(ctx, batchID, lineID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrLineNotPending
		}
		return fmt.Errorf("failed to reject line: %w", err)
	}
	_, err := s.refreshStatus(ctx, batchID)
	return err
}

// Approve promotes eligible lines one by one; a failing line is reported in
// the results and does not stop the others.
func (s *importService) Approve(ctx context.Context, batchID int64, req ApproveRequest) (*ApproveResult, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	result := &ApproveResult{ImportID: batchID, Results: []ApproveLineResult{}}
	var targets []models.ExpenseImportLine
	if len(req.LineIDs) == 0 {
		for _, l := range batch.Lines {
			if l.Eligible() {
				targets = append(targets, l)
			}
		}
	} else {
		byID := make(map[int64]models.ExpenseImportLine, len(batch.Lines))
		for _, l := range batch.Lines {
			byID[l.ID] = l
		}
		seen := map[int64]bool{}
		for _, id := range req.LineIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			l, ok := byID[id]
			switch {
			case !ok:
				result.fail(id, "line not found in this import")
			case !l.Eligible():
				result.fail(id, fmt.Sprintf("line is %s or has no category", l.State()))
			default:
				targets = append(targets, l)
			}
		}
	}
	if len(targets) == 0 {
		return nil, ErrNothingToApprove
	}

	for _, line := range targets {
		s.approveLine(ctx, batch, line, result)
	}
	metrics.RecordImportLinesApproved(result.Approved)

	status, err := s.refreshStatus(ctx, batchID)
	if err != nil {
		return nil, err
	}
	result.Status = status
	return result, nil
}

func (r *ApproveResult) fail(lineID int64, msg string) {
	r.Failed++
	r.Results = append(r.Results, ApproveLineResult{LineID: lineID, Status: "error", Error: msg})
}

func (s *importService) approveLine(ctx context.Context, batch *models.ExpenseImportBatch, line models.ExpenseImportLine, result *ApproveResult) {
	if !line.Amount.IsPositive() {
		result.fail(line.ID, "amount must be a positive number")
		return
	}

	ref := ImportExternalRef(batch.ID, line.ID)
	date := utils.StringValue(line.TransactionDate)
	if date == "" {
		date = s.clock.Today()
	}
	expense := &models.Expense{
		ExpenseDate: date,
		Category:    models.NormalizeCategory(utils.StringValue(line.Category)),
		Description: line.Description,
		Vendor:      line.Vendor,
		Amount:      line.Amount,
		Source:      models.ExpenseSourceImport,
		ExternalRef: &ref,
		Metadata: jsonMeta(map[string]interface{}{
			"import_id":   batch.ID,
			"line_id":     line.ID,
			"line_number": line.LineNumber,
			"filename":    batch.Filename,
		}),
	}

	duplicate := false
	expenseID, err := s.expenses.Create(ctx, expense)
	if err != nil {
		if !errors.Is(err, repositories.ErrDuplicateKey) {
			result.fail(line.ID, err.Error())
			return
		}
		existing, ferr := s.expenses.FindByExternalRef(ctx, ref)
		if ferr != nil {
			result.fail(line.ID, err.Error())
			return
		}
		expenseID, duplicate = existing.ID, true
	} else {
		metrics.RecordExpenseWrite(models.ExpenseSourceImport, "created")
	}

	if err := s.imports.MarkLineApproved(ctx, batch.ID, line.ID, expenseID); err != nil {
		result.fail(line.ID, err.Error())
		return
	}
	result.Approved++
	id := expenseID
	result.Results = append(result.Results, ApproveLineResult{
		LineID:    line.ID,
		Status:    "approved",
		ExpenseID: &id,
		Duplicate: duplicate,
	})
}

// refreshStatus recomputes the batch status from its lines.
func (s *importService) refreshStatus(ctx context.Context, batchID int64) (string, error) {
	lines, err := s.imports.ListLines(ctx, batchID)
	if err != nil {
		return "", fmt.Errorf("failed to reload import lines: %w", err)
	}
	approved := 0
	for _, l := range lines {
		if l.Approved {
			approved++
		}
	}
	status := models.DeriveImportStatus(approved, len(lines))
	if err := s.imports.UpdateBatchStatus(ctx, batchID, status, approved); err != nil {
		return "", fmt.Errorf("failed to update import status: %w", err)
	}
	return status, nil
}
