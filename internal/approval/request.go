package approval

import (
	"strings"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	"github.com/frahmantamala/expense-approval/internal/expense"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	}
	return "", internal.ErrInvalidAction
}

// Request asks one approver to decide one step of an expense. InPool marks a request
// owed to the step's approver pool; only those count towards a percentage.
type Request struct {
	ID         int64      `json:"id"`
	ExpenseID  int64      `json:"expense_id"`
	Step       int        `json:"step"`
	ApproverID int64      `json:"approver_id"`
	Status     Status     `json:"status"`
	Superseded bool       `json:"superseded"`
	InPool     bool       `json:"in_pool"`
	RuleID     *int64     `json:"rule_id,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	ActedAt    *time.Time `json:"acted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}

// Rejected excludes requests that were closed by the engine rather than by their approver.
func (r *Request) Rejected() bool {
	return r.Status == StatusRejected && !r.Superseded
}

func (r *Request) ToDataModel() *approvalDatamodel.ApprovalRequest {
	return &approvalDatamodel.ApprovalRequest{
		ID:         r.ID,
		ExpenseID:  r.ExpenseID,
		Step:       r.Step,
		ApproverID: r.ApproverID,
		Status:     string(r.Status),
		Superseded: r.Superseded,
		InPool:     r.InPool,
		RuleID:     r.RuleID,
		Comment:    r.Comment,
		ActedAt:    r.ActedAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func FromDataModel(m *approvalDatamodel.ApprovalRequest) *Request {
	return &Request{
		ID:         m.ID,
		ExpenseID:  m.ExpenseID,
		Step:       m.Step,
		ApproverID: m.ApproverID,
		Status:     Status(m.Status),
		Superseded: m.Superseded,
		InPool:     m.InPool,
		RuleID:     m.RuleID,
		Comment:    m.Comment,
		ActedAt:    m.ActedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

type AuditAction string

const (
	AuditSubmitted       AuditAction = "submitted"
	AuditAutoApproved    AuditAction = "auto_approved"
	AuditApproved        AuditAction = "approved"
	AuditRejected        AuditAction = "rejected"
	AuditSuperseded      AuditAction = "superseded"
	AuditStepCompleted   AuditAction = "step_completed"
	AuditExpenseApproved AuditAction = "expense_approved"
	AuditExpenseRejected AuditAction = "expense_rejected"
)

type AuditEntry struct {
	ID           int64                  `json:"id"`
	ExpenseID    int64                  `json:"expense_id"`
	RequestID    *int64                 `json:"request_id,omitempty"`
	Step         int                    `json:"step"`
	Action       AuditAction            `json:"action"`
	PerformedBy  *int64                 `json:"performed_by,omitempty"`
	StatusBefore string                 `json:"status_before,omitempty"`
	StatusAfter  string                 `json:"status_after,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (a *AuditEntry) ToDataModel() *approvalDatamodel.ApprovalAuditEntry {
	return &approvalDatamodel.ApprovalAuditEntry{
		ID:           a.ID,
		ExpenseID:    a.ExpenseID,
		RequestID:    a.RequestID,
		Step:         a.Step,
		Action:       string(a.Action),
		PerformedBy:  a.PerformedBy,
		StatusBefore: a.StatusBefore,
		StatusAfter:  a.StatusAfter,
		Metadata:     a.Metadata,
		CreatedAt:    a.CreatedAt,
	}
}

func AuditFromDataModel(m *approvalDatamodel.ApprovalAuditEntry) *AuditEntry {
	return &AuditEntry{
		ID:           m.ID,
		ExpenseID:    m.ExpenseID,
		RequestID:    m.RequestID,
		Step:         m.Step,
		Action:       AuditAction(m.Action),
		PerformedBy:  m.PerformedBy,
		StatusBefore: m.StatusBefore,
		StatusAfter:  m.StatusAfter,
		Metadata:     m.Metadata,
		CreatedAt:    m.CreatedAt,
	}
}

// Outcome is the result of a single approve or reject.
type Outcome struct {
	Request       *Request      `json:"request"`
	State         expense.State `json:"state"`
	StepCompleted bool          `json:"step_completed"`
	NextRequests  []*Request    `json:"next_requests,omitempty"`
}

// PendingItem pairs an actionable request with the expense it belongs to.
type PendingItem struct {
	Request *Request         `json:"request"`
	Expense *expense.Expense `json:"expense"`
}

// History is the full approval trail of one expense.
type History struct {
	State    expense.State `json:"state"`
	Requests []*Request    `json:"requests"`
	Audit    []*AuditEntry `json:"audit"`
}
