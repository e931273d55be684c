package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Expenses"

var header = []interface{}{
	"Expense ID", "Submitted At", "Employee", "Email", "Category", "Description",
	"Amount", "Currency", "Status", "Current Step", "Total Steps",
}

type RepositoryAPI interface {
	ListCompanyExpenses(ctx context.Context, companyID int64) ([]*Row, error)
}

// StateResolver derives the workflow state of an expense.
type StateResolver interface {
	StateOf(ctx context.Context, e *expense.Expense) (expense.State, error)
}

type Service struct {
	repo   RepositoryAPI
	states StateResolver
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, states StateResolver, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		states: states,
		logger: logger,
	}
}

// ExportCompanyExpenses renders every expense of the admin's company as an XLSX workbook.
func (s *Service) ExportCompanyExpenses(ctx context.Context, actor *auth.User) (*bytes.Buffer, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrAdminRequired
	}

	rows, err := s.repo.ListCompanyExpenses(ctx, actor.CompanyID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load expense report", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, internal.NewInternalError("failed to prepare workbook", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, internal.NewInternalError("failed to write report header", err)
	}

	for i, row := range rows {
		state, err := s.states.StateOf(ctx, row.Expense())
		if err != nil {
			return nil, err
		}

		amount, _ := row.Amount.Float64()
		values := []interface{}{
			row.ExpenseID,
			row.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
			row.EmployeeName,
			row.EmployeeEmail,
			row.Category,
			row.Description,
			amount,
			row.Currency,
			string(state.Status),
			state.CurrentStep,
			row.TotalSteps,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, internal.NewInternalError("failed to address report row", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, internal.NewInternalError(fmt.Sprintf("failed to write report row %d", i+1), err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, internal.NewInternalError("failed to render workbook", err)
	}

	s.logger.Info("expense report exported", "company_id", actor.CompanyID, "rows", len(rows))
	return buf, nil
}
