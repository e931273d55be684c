package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-approval/internal"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"gorm.io/gorm"
)

// ExpenseRepository is the read side of expenses; writes go through the approval store transaction.
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) expense.RepositoryAPI {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*expense.Expense, error) {
	var row expenseDatamodel.Expense
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrExpenseNotFound
		}
		return nil, err
	}
	return expense.FromDataModel(&row), nil
}

func (r *ExpenseRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*expense.Expense, error) {
	return r.list(r.db.WithContext(ctx).Where("user_id = ?", userID), limit, offset)
}

func (r *ExpenseRepository) ListByCompany(ctx context.Context, companyID int64, limit, offset int) ([]*expense.Expense, error) {
	return r.list(r.db.WithContext(ctx).Where("company_id = ?", companyID), limit, offset)
}

func (r *ExpenseRepository) list(q *gorm.DB, limit, offset int) ([]*expense.Expense, error) {
	var rows []*expenseDatamodel.Expense
	err := q.Order("submitted_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	expenses := make([]*expense.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = expense.FromDataModel(row)
	}
	return expenses, nil
}
