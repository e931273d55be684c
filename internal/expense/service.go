package expense

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/user"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*Expense, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Expense, error)
	ListByCompany(ctx context.Context, companyID int64, limit, offset int) ([]*Expense, error)
}

// Workflow persists a submission with its first approval step and answers state queries.
type Workflow interface {
	Submit(ctx context.Context, e *Expense, submitter *user.User) (State, error)
	StateOf(ctx context.Context, e *Expense) (State, error)
	IsApproverOn(ctx context.Context, expenseID, userID int64) (bool, error)
}

type CategoryValidator interface {
	EnsureValid(ctx context.Context, name string) error
}

type Directory interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type Service struct {
	repo       RepositoryAPI
	workflow   Workflow
	categories CategoryValidator
	directory  Directory
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, workflow Workflow, categories CategoryValidator, directory Directory, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		workflow:   workflow,
		categories: categories,
		directory:  directory,
		logger:     logger,
	}
}

// Submit records an expense for the actor and starts its approval chain.
func (s *Service) Submit(ctx context.Context, actor *auth.User, dto SubmitExpenseDTO) (*View, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		s.logger.Warn("expense validation failed", "error", err, "user_id", actor.ID)
		return nil, err
	}
	if err := s.categories.EnsureValid(ctx, dto.Category); err != nil {
		return nil, err
	}

	submitter, err := s.directory.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	e := &Expense{
		CompanyID:   submitter.CompanyID,
		UserID:      submitter.ID,
		Amount:      dto.Amount,
		Currency:    dto.Currency,
		Category:    dto.Category,
		Description: dto.Description,
		SubmittedAt: time.Now(),
	}

	state, err := s.workflow.Submit(ctx, e, submitter)
	if err != nil {
		return nil, err
	}

	s.logger.Info("expense submitted",
		"expense_id", e.ID,
		"user_id", e.UserID,
		"amount", e.Amount.String(),
		"currency", e.Currency,
		"status", state.Status,
		"total_steps", e.TotalSteps)
	return &View{Expense: e, State: state}, nil
}

// Get returns an expense visible to the actor: its owner, a company admin, or one of its approvers.
func (s *Service) Get(ctx context.Context, actor *auth.User, id int64) (*View, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, e); err != nil {
		return nil, err
	}
	return s.view(ctx, e)
}

func (s *Service) authorize(ctx context.Context, actor *auth.User, e *Expense) error {
	if e.CompanyID != actor.CompanyID {
		return internal.ErrExpenseForbidden
	}
	if e.UserID == actor.ID || actor.IsAdmin() {
		return nil
	}
	ok, err := s.workflow.IsApproverOn(ctx, e.ID, actor.ID)
	if err != nil {
		return internal.NewInternalError("failed to check approver", err)
	}
	if !ok {
		return internal.ErrExpenseForbidden
	}
	return nil
}

func (s *Service) ListMine(ctx context.Context, actor *auth.User, limit, offset int) ([]*View, error) {
	expenses, err := s.repo.ListByUser(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, internal.NewInternalError("failed to list expenses", err)
	}
	return s.views(ctx, expenses)
}

func (s *Service) ListCompany(ctx context.Context, actor *auth.User, limit, offset int) ([]*View, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrAdminRequired
	}
	expenses, err := s.repo.ListByCompany(ctx, actor.CompanyID, limit, offset)
	if err != nil {
		return nil, internal.NewInternalError("failed to list company expenses", err)
	}
	return s.views(ctx, expenses)
}

func (s *Service) view(ctx context.Context, e *Expense) (*View, error) {
	state, err := s.workflow.StateOf(ctx, e)
	if err != nil {
		return nil, err
	}
	return &View{Expense: e, State: state}, nil
}

func (s *Service) views(ctx context.Context, expenses []*Expense) ([]*View, error) {
	out := make([]*View, 0, len(expenses))
	for _, e := range expenses {
		v, err := s.view(ctx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
