package expense

import (
	"context"
	"net/http"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/transport"
	"github.com/frahmantamala/expense-approval/pkg/logger"
)

type ServiceAPI interface {
	Submit(ctx context.Context, actor *auth.User, dto SubmitExpenseDTO) (*View, error)
	Get(ctx context.Context, actor *auth.User, id int64) (*View, error)
	ListMine(ctx context.Context, actor *auth.User, limit, offset int) ([]*View, error)
	ListCompany(ctx context.Context, actor *auth.User, limit, offset int) ([]*View, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     service,
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.Logger.Error("expense handler: user not found in context", "path", r.URL.Path)
		h.HandleServiceError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
	}
	return user, ok
}

// SubmitExpense handles POST /expenses
func (h *Handler) SubmitExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto SubmitExpenseDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	view, err := h.Service.Submit(r.Context(), user, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, view)
}

// GetExpense handles GET /expenses/{id}
func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.Int64Param(w, r, "id")
	if !ok {
		return
	}

	view, err := h.Service.Get(r.Context(), user, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}

// ListMyExpenses handles GET /expenses
func (h *Handler) ListMyExpenses(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	limit, offset := h.PageParams(r)

	views, err := h.Service.ListMine(r.Context(), user, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ListResponse{Expenses: views, Limit: limit, Offset: offset})
}

// ListCompanyExpenses handles GET /company/expenses
func (h *Handler) ListCompanyExpenses(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}
	limit, offset := h.PageParams(r)

	views, err := h.Service.ListCompany(r.Context(), user, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ListResponse{Expenses: views, Limit: limit, Offset: offset})
}
