package postgres

import (
	"context"

	"github.com/frahmantamala/expense-approval/internal/report"
	"github.com/jmoiron/sqlx"
)

const companyExpensesQuery = `
SELECT e.id AS expense_id, e.company_id, e.user_id,
       u.name AS employee_name, u.email AS employee_email,
       e.category, e.description, e.amount, e.currency,
       e.total_steps, e.auto_approved, e.submitted_at
FROM expenses e
JOIN users u ON u.id = e.user_id
WHERE e.company_id = ?
ORDER BY e.submitted_at DESC, e.id DESC`

// ReportRepository reads the report directly with sqlx; it never writes.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) report.RepositoryAPI {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) ListCompanyExpenses(ctx context.Context, companyID int64) ([]*report.Row, error) {
	var rows []*report.Row
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(companyExpensesQuery), companyID); err != nil {
		return nil, err
	}
	return rows, nil
}
