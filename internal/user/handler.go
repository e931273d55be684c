package user

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/transport"
	"github.com/frahmantamala/expense-approval/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateUser(ctx context.Context, actor *auth.User, dto CreateUserDTO) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context, actor *auth.User) ([]*User, error)
	SetManager(ctx context.Context, actor *auth.User, userID int64, managerID *int64) (*User, error)
	AddPoolMember(ctx context.Context, actor *auth.User, step int, dto AddPoolMemberDTO) (*PoolMember, error)
	ListPoolMembers(ctx context.Context, actor *auth.User, step int) ([]*PoolMember, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
	}
	return user, ok
}

func (h *Handler) stepParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil || step < 1 {
		h.HandleServiceError(w, internal.NewValidationFieldError("step", "step must be a positive integer", internal.ErrCodeInvalidStep))
		return 0, false
	}
	return step, true
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CreateUserDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	u, err := h.Service.CreateUser(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, u)
}

// ListUsers handles GET /users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	users, err := h.Service.ListUsers(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	u, err := h.Service.GetByID(r.Context(), actor.ID)
	if err != nil {
		logger.From(r.Context()).Error("GetCurrentUser: lookup failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

// SetManager handles PATCH /users/{id}/manager
func (h *Handler) SetManager(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	userID, ok := h.Int64Param(w, r, "id")
	if !ok {
		return
	}

	var dto SetManagerDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	u, err := h.Service.SetManager(r.Context(), actor, userID, dto.ManagerID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

// AddPoolMember handles POST /approver-pools/{step}/members
func (h *Handler) AddPoolMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	step, ok := h.stepParam(w, r)
	if !ok {
		return
	}

	var dto AddPoolMemberDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	member, err := h.Service.AddPoolMember(r.Context(), actor, step, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, member)
}

// ListPoolMembers handles GET /approver-pools/{step}
func (h *Handler) ListPoolMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	step, ok := h.stepParam(w, r)
	if !ok {
		return
	}

	members, err := h.Service.ListPoolMembers(r.Context(), actor, step)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"step": step, "members": members})
}
