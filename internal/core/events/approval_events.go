package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeExpenseSubmitted    = "expense.submitted"
	EventTypeExpenseAutoApproved = "expense.auto_approved"
	EventTypeStepCompleted       = "approval.step_completed"
	EventTypeExpenseApproved     = "expense.approved"
	EventTypeExpenseRejected     = "expense.rejected"
)

// AllExpenseEventTypes lists every workflow event, in lifecycle order.
var AllExpenseEventTypes = []string{
	EventTypeExpenseSubmitted,
	EventTypeExpenseAutoApproved,
	EventTypeStepCompleted,
	EventTypeExpenseApproved,
	EventTypeExpenseRejected,
}

// ExpenseEvent describes a workflow transition of one expense. ActorID is zero for system transitions.
type ExpenseEvent struct {
	BaseEvent
	ExpenseID int64 `json:"expense_id"`
	CompanyID int64 `json:"company_id"`
	Step      int   `json:"step"`
	ActorID   int64 `json:"actor_id,omitempty"`
}

func NewExpenseEvent(eventType string, expenseID, companyID int64, step int, actorID int64) *ExpenseEvent {
	return &ExpenseEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"expense_id": expenseID,
				"company_id": companyID,
				"step":       step,
				"actor_id":   actorID,
			},
		},
		ExpenseID: expenseID,
		CompanyID: companyID,
		Step:      step,
		ActorID:   actorID,
	}
}
