package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockNotAvailable is the postgres SQLSTATE raised when lock_timeout expires.
const lockNotAvailable = "55P03"

// ApprovalStore implements both approval.Store and, bound to a transaction, approval.Tx.
type ApprovalStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewApprovalStore bounds row-lock waits inside Atomic by lockTimeout on postgres.
// A non-positive lockTimeout waits indefinitely.
func NewApprovalStore(db *gorm.DB, lockTimeout time.Duration) approval.Store {
	return &ApprovalStore{db: db, lockTimeout: lockTimeout}
}

func (s *ApprovalStore) Atomic(ctx context.Context, fn func(tx approval.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			// SET does not take bind parameters.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&ApprovalStore{db: tx, lockTimeout: s.lockTimeout})
	})
}

func (s *ApprovalStore) CreateExpense(ctx context.Context, e *expense.Expense) error {
	row := e.ToDataModel()
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	e.ID = row.ID
	e.CreatedAt = row.CreatedAt
	return nil
}

func (s *ApprovalStore) GetExpense(ctx context.Context, id int64) (*expense.Expense, error) {
	return s.getExpense(s.db.WithContext(ctx), id)
}

func (s *ApprovalStore) LockExpense(ctx context.Context, id int64) (*expense.Expense, error) {
	e, err := s.getExpense(s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
	if err != nil {
		return nil, lockError(err)
	}
	return e, nil
}

// lockError reports an expired row-lock wait as ErrLockTimeout so callers retry.
func lockError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return internal.ErrLockTimeout.WithCause(err)
	}
	return err
}

func (s *ApprovalStore) GetExpenses(ctx context.Context, ids []int64) (map[int64]*expense.Expense, error) {
	out := make(map[int64]*expense.Expense, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*expenseDatamodel.Expense
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = expense.FromDataModel(row)
	}
	return out, nil
}

func (s *ApprovalStore) getExpense(q *gorm.DB, id int64) (*expense.Expense, error) {
	var row expenseDatamodel.Expense
	if err := q.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrExpenseNotFound
		}
		return nil, err
	}
	return expense.FromDataModel(&row), nil
}

func (s *ApprovalStore) GetRequest(ctx context.Context, id int64) (*approval.Request, error) {
	var row approvalDatamodel.ApprovalRequest
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRequestNotFound
		}
		return nil, err
	}
	return approval.FromDataModel(&row), nil
}

func (s *ApprovalStore) ListByStep(ctx context.Context, expenseID int64, step int) ([]*approval.Request, error) {
	return s.listRequests(s.db.WithContext(ctx).Where("expense_id = ? AND step = ?", expenseID, step))
}

func (s *ApprovalStore) ListByExpense(ctx context.Context, expenseID int64) ([]*approval.Request, error) {
	return s.listRequests(s.db.WithContext(ctx).Where("expense_id = ?", expenseID))
}

func (s *ApprovalStore) ListPendingByExpense(ctx context.Context, expenseID int64) ([]*approval.Request, error) {
	return s.listRequests(s.db.WithContext(ctx).
		Where("expense_id = ? AND status = ?", expenseID, string(approval.StatusPending)))
}

func (s *ApprovalStore) ListPendingFor(ctx context.Context, approverID int64) ([]*approval.Request, error) {
	return s.listRequests(s.db.WithContext(ctx).
		Where("approver_id = ? AND status = ?", approverID, string(approval.StatusPending)))
}

func (s *ApprovalStore) listRequests(q *gorm.DB) ([]*approval.Request, error) {
	var rows []*approvalDatamodel.ApprovalRequest
	if err := q.Order("step ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	reqs := make([]*approval.Request, len(rows))
	for i, row := range rows {
		reqs[i] = approval.FromDataModel(row)
	}
	return reqs, nil
}

func (s *ApprovalStore) CreateRequests(ctx context.Context, reqs []*approval.Request) error {
	if len(reqs) == 0 {
		return nil
	}

	rows := make([]*approvalDatamodel.ApprovalRequest, len(reqs))
	for i, req := range reqs {
		rows[i] = req.ToDataModel()
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return err
	}
	for i, row := range rows {
		reqs[i].ID = row.ID
		reqs[i].CreatedAt = row.CreatedAt
		reqs[i].UpdatedAt = row.UpdatedAt
	}
	return nil
}

func (s *ApprovalStore) UpdateRequest(ctx context.Context, req *approval.Request) error {
	req.UpdatedAt = time.Now()
	result := s.db.WithContext(ctx).
		Model(&approvalDatamodel.ApprovalRequest{}).
		Where("id = ?", req.ID).
		Updates(map[string]interface{}{
			"status":     string(req.Status),
			"superseded": req.Superseded,
			"comment":    req.Comment,
			"acted_at":   req.ActedAt,
			"updated_at": req.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrRequestNotFound
	}
	return nil
}

func (s *ApprovalStore) AppendAudit(ctx context.Context, entries ...*approval.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]*approvalDatamodel.ApprovalAuditEntry, len(entries))
	for i, entry := range entries {
		rows[i] = entry.ToDataModel()
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return err
	}
	for i, row := range rows {
		entries[i].ID = row.ID
		entries[i].CreatedAt = row.CreatedAt
	}
	return nil
}

func (s *ApprovalStore) ListAudit(ctx context.Context, expenseID int64) ([]*approval.AuditEntry, error) {
	var rows []*approvalDatamodel.ApprovalAuditEntry
	err := s.db.WithContext(ctx).
		Where("expense_id = ?", expenseID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]*approval.AuditEntry, len(rows))
	for i, row := range rows {
		entries[i] = approval.AuditFromDataModel(row)
	}
	return entries, nil
}

func (s *ApprovalStore) IsApproverOn(ctx context.Context, expenseID, userID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&approvalDatamodel.ApprovalRequest{}).
		Where("expense_id = ? AND approver_id = ?", expenseID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
