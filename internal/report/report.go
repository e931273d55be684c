package report

import (
	"time"

	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/shopspring/decimal"
)

// Row is one line of the company expense report.
type Row struct {
	ExpenseID     int64           `db:"expense_id"`
	CompanyID     int64           `db:"company_id"`
	UserID        int64           `db:"user_id"`
	EmployeeName  string          `db:"employee_name"`
	EmployeeEmail string          `db:"employee_email"`
	Category      string          `db:"category"`
	Description   string          `db:"description"`
	Amount        decimal.Decimal `db:"amount"`
	Currency      string          `db:"currency"`
	TotalSteps    int             `db:"total_steps"`
	AutoApproved  bool            `db:"auto_approved"`
	SubmittedAt   time.Time       `db:"submitted_at"`
}

func (r *Row) Expense() *expense.Expense {
	return &expense.Expense{
		ID:           r.ExpenseID,
		CompanyID:    r.CompanyID,
		UserID:       r.UserID,
		Amount:       r.Amount,
		Currency:     r.Currency,
		Category:     r.Category,
		Description:  r.Description,
		TotalSteps:   r.TotalSteps,
		AutoApproved: r.AutoApproved,
		SubmittedAt:  r.SubmittedAt,
	}
}
