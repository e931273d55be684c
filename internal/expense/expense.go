package expense

import (
	"time"

	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	"github.com/shopspring/decimal"
)

// Expense is immutable once submitted; its workflow status is derived from approval requests.
type Expense struct {
	ID           int64           `json:"id"`
	CompanyID    int64           `json:"company_id"`
	UserID       int64           `json:"user_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	TotalSteps   int             `json:"total_steps"`
	AutoApproved bool            `json:"auto_approved"`
	SubmittedAt  time.Time       `json:"submitted_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Status string

const (
	StatusSubmitted    Status = "submitted"
	StatusInProgress   Status = "in_progress"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusAutoApproved Status = "auto_approved"
)

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusAutoApproved
}

// State is the derived workflow position of an expense. CurrentStep is 0 once terminal-approved.
type State struct {
	Status      Status `json:"status"`
	CurrentStep int    `json:"current_step,omitempty"`
	TotalSteps  int    `json:"total_steps"`
}

// View is an expense together with its derived state.
type View struct {
	*Expense
	State State `json:"state"`
}

func (e *Expense) ToDataModel() *expenseDatamodel.Expense {
	return &expenseDatamodel.Expense{
		ID:           e.ID,
		CompanyID:    e.CompanyID,
		UserID:       e.UserID,
		Amount:       e.Amount,
		Currency:     e.Currency,
		Category:     e.Category,
		Description:  e.Description,
		TotalSteps:   e.TotalSteps,
		AutoApproved: e.AutoApproved,
		SubmittedAt:  e.SubmittedAt,
		CreatedAt:    e.CreatedAt,
	}
}

func FromDataModel(m *expenseDatamodel.Expense) *Expense {
	return &Expense{
		ID:           m.ID,
		CompanyID:    m.CompanyID,
		UserID:       m.UserID,
		Amount:       m.Amount,
		Currency:     m.Currency,
		Category:     m.Category,
		Description:  m.Description,
		TotalSteps:   m.TotalSteps,
		AutoApproved: m.AutoApproved,
		SubmittedAt:  m.SubmittedAt,
		CreatedAt:    m.CreatedAt,
	}
}
