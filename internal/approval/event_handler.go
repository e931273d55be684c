package approval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/expense-approval/internal/core/events"
)

// EventHandler records workflow transitions in the structured log.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

func (h *EventHandler) HandleExpenseEvent(ctx context.Context, event events.Event) error {
	expenseEvent, ok := event.(*events.ExpenseEvent)
	if !ok {
		h.logger.Error("invalid event type for expense event handler", "event_type", event.EventType())
		return fmt.Errorf("expected ExpenseEvent, got %T", event)
	}

	h.logger.Info("expense workflow event",
		"event_type", expenseEvent.EventType(),
		"event_id", expenseEvent.EventID(),
		"expense_id", expenseEvent.ExpenseID,
		"company_id", expenseEvent.CompanyID,
		"step", expenseEvent.Step,
		"actor_id", expenseEvent.ActorID)
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	for _, eventType := range events.AllExpenseEventTypes {
		eventBus.Subscribe(eventType, h.HandleExpenseEvent)
	}

	h.logger.Info("approval event handlers registered", "handlers", events.AllExpenseEventTypes)
}
