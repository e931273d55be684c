package approval

import (
	"time"

	"gorm.io/datatypes"
)

type ApprovalRequest struct {
	ID         int64      `gorm:"primaryKey"`
	ExpenseID  int64      `gorm:"column:expense_id;not null;index;uniqueIndex:idx_request_expense_step_approver"`
	Step       int        `gorm:"column:step;not null;uniqueIndex:idx_request_expense_step_approver"`
	ApproverID int64      `gorm:"column:approver_id;not null;uniqueIndex:idx_request_expense_step_approver;index:idx_request_approver_status"`
	Status     string     `gorm:"column:status;not null;index:idx_request_approver_status"`
	Superseded bool       `gorm:"column:superseded;not null;default:false"`
	InPool     bool       `gorm:"column:in_pool;not null;default:false"`
	RuleID     *int64     `gorm:"column:rule_id"`
	Comment    string     `gorm:"column:comment"`
	ActedAt    *time.Time `gorm:"column:acted_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

// ApprovalAuditEntry is append-only.
type ApprovalAuditEntry struct {
	ID           int64             `gorm:"primaryKey"`
	ExpenseID    int64             `gorm:"column:expense_id;not null;index"`
	RequestID    *int64            `gorm:"column:request_id"`
	Step         int               `gorm:"column:step;not null"`
	Action       string            `gorm:"column:action;not null"`
	PerformedBy  *int64            `gorm:"column:performed_by"`
	StatusBefore string            `gorm:"column:status_before"`
	StatusAfter  string            `gorm:"column:status_after"`
	Metadata     datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (ApprovalAuditEntry) TableName() string {
	return "approval_audit_log"
}
