package approval

import (
	"context"
	"net/http"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/frahmantamala/expense-approval/internal/transport"
	"github.com/frahmantamala/expense-approval/pkg/logger"
)

type ServiceAPI interface {
	Act(ctx context.Context, requestID, actorID int64, action, comment string) (*Outcome, error)
	ListPendingFor(ctx context.Context, userID int64) ([]*PendingItem, error)
	History(ctx context.Context, expenseID int64) (*History, error)
}

// ExpenseAccess checks that the actor may see an expense before its trail is returned.
type ExpenseAccess interface {
	Get(ctx context.Context, actor *auth.User, id int64) (*expense.View, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Expenses ExpenseAccess
}

func NewHandler(service ServiceAPI, expenses ExpenseAccess) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     service,
		Expenses:    expenses,
	}
}

// ListPending handles GET /approvals
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}

	items, err := h.Service.ListPendingFor(r.Context(), actor.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, PendingResponse{Approvals: items})
}

// Act handles POST /approvals/{id}
func (h *Handler) Act(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}
	requestID, ok := h.Int64Param(w, r, "id")
	if !ok {
		return
	}

	var dto ActionDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	outcome, err := h.Service.Act(r.Context(), requestID, actor.ID, dto.Action, dto.Comment)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, outcome)
}

// GetHistory handles GET /expenses/{id}/approvals
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}
	expenseID, ok := h.Int64Param(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.Expenses.Get(r.Context(), actor, expenseID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	history, err := h.Service.History(r.Context(), expenseID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, history)
}
