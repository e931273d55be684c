package approval

import (
	"context"

	"github.com/frahmantamala/expense-approval/internal/expense"
)

// Tx is the write surface available inside Store.Atomic.
type Tx interface {
	CreateExpense(ctx context.Context, e *expense.Expense) error
	// LockExpense takes a row lock on the expense for the rest of the transaction.
	LockExpense(ctx context.Context, id int64) (*expense.Expense, error)
	GetRequest(ctx context.Context, id int64) (*Request, error)
	ListByStep(ctx context.Context, expenseID int64, step int) ([]*Request, error)
	ListPendingByExpense(ctx context.Context, expenseID int64) ([]*Request, error)
	CreateRequests(ctx context.Context, reqs []*Request) error
	UpdateRequest(ctx context.Context, req *Request) error
	AppendAudit(ctx context.Context, entries ...*AuditEntry) error
}

type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	GetExpense(ctx context.Context, id int64) (*expense.Expense, error)
	// GetExpenses loads the expenses with the given ids in one query, keyed by id.
	GetExpenses(ctx context.Context, ids []int64) (map[int64]*expense.Expense, error)
	GetRequest(ctx context.Context, id int64) (*Request, error)
	ListByExpense(ctx context.Context, expenseID int64) ([]*Request, error)
	ListPendingFor(ctx context.Context, approverID int64) ([]*Request, error)
	ListAudit(ctx context.Context, expenseID int64) ([]*AuditEntry, error)
	IsApproverOn(ctx context.Context, expenseID, userID int64) (bool, error)
}
