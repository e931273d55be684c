package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
)

type RepositoryAPI interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListByCompany(ctx context.Context, companyID int64) ([]*User, error)
	UpdateManager(ctx context.Context, userID int64, managerID *int64) error
	AddPoolMember(ctx context.Context, m *PoolMember) error
	ListPoolMembers(ctx context.Context, companyID int64, step int) ([]*PoolMember, error)
}

type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type Service struct {
	repo   RepositoryAPI
	hasher PasswordHasher
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, hasher PasswordHasher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

// CreateUser adds a user to the admin's own company.
func (s *Service) CreateUser(ctx context.Context, actor *auth.User, dto CreateUserDTO) (*User, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrAdminRequired
	}

	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, dto.Email)
	if err != nil {
		return nil, internal.NewInternalError("failed to check email", err)
	}
	if exists {
		return nil, internal.NewConflictError("email is already registered", internal.ErrCodeEmailTaken)
	}

	if dto.ManagerID != nil {
		if _, err := s.companyMember(ctx, actor.CompanyID, *dto.ManagerID, "manager"); err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.HashPassword(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	now := time.Now()
	u := &User{
		CompanyID:    actor.CompanyID,
		ManagerID:    dto.ManagerID,
		Email:        dto.Email,
		Name:         dto.Name,
		PasswordHash: hash,
		Role:         internal.Role(dto.Role),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, internal.NewInternalError("failed to create user", err)
	}

	s.logger.Info("user created",
		"user_id", u.ID,
		"company_id", u.CompanyID,
		"role", u.Role,
		"created_by", actor.ID)
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, actor *auth.User) ([]*User, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrAdminRequired
	}
	return s.repo.ListByCompany(ctx, actor.CompanyID)
}

// SetManager reassigns a reporting line, refusing any change that would close a cycle.
func (s *Service) SetManager(ctx context.Context, actor *auth.User, userID int64, managerID *int64) (*User, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrAdminRequired
	}

	u, err := s.companyMember(ctx, actor.CompanyID, userID, "user")
	if err != nil {
		return nil, err
	}

	if managerID != nil {
		if _, err := s.companyMember(ctx, actor.CompanyID, *managerID, "manager"); err != nil {
			return nil, err
		}
		if err := s.checkNoCycle(ctx, userID, *managerID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateManager(ctx, userID, managerID); err != nil {
		return nil, internal.NewInternalError("failed to update manager", err)
	}
	u.ManagerID = managerID

	s.logger.Info("manager reassigned", "user_id", userID, "manager_id", managerID, "updated_by", actor.ID)
	return u, nil
}

// checkNoCycle walks the reporting line upward from managerID and fails if it reaches userID.
func (s *Service) checkNoCycle(ctx context.Context, userID, managerID int64) error {
	visited := map[int64]bool{}
	current := &managerID
	for current != nil {
		if *current == userID {
			return internal.NewValidationError("manager assignment would create a reporting cycle", internal.ErrCodeManagerCycle)
		}
		if visited[*current] {
			// the existing forest is already corrupt above this user
			return internal.NewValidationError("reporting line above manager contains a cycle", internal.ErrCodeManagerCycle)
		}
		visited[*current] = true

		next, err := s.repo.GetByID(ctx, *current)
		if err != nil {
			return err
		}
		current = next.ManagerID
	}
	return nil
}

func (s *Service) companyMember(ctx context.Context, companyID, userID int64, field string) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) && field == "manager" {
			return nil, internal.NewValidationFieldError("manager_id", "manager does not exist", internal.ErrCodeInvalidManager)
		}
		return nil, err
	}
	if u.CompanyID != companyID {
		return nil, internal.ErrCrossCompany
	}
	return u, nil
}

// AddPoolMember registers a user as a percentage approver for one step.
func (s *Service) AddPoolMember(ctx context.Context, actor *auth.User, step int, dto AddPoolMemberDTO) (*PoolMember, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrAdminRequired
	}
	if step < 1 {
		return nil, internal.NewValidationFieldError("step", "step must be at least 1", internal.ErrCodeInvalidStep)
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.companyMember(ctx, actor.CompanyID, dto.UserID, "user")
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, internal.ErrUserInactive
	}

	members, err := s.repo.ListPoolMembers(ctx, actor.CompanyID, step)
	if err != nil {
		return nil, internal.NewInternalError("failed to load approver pool", err)
	}
	for _, m := range members {
		if m.UserID == dto.UserID {
			return nil, internal.NewConflictError("user is already in the approver pool for this step", internal.ErrCodeDuplicatePoolUser)
		}
	}

	member := &PoolMember{CompanyID: actor.CompanyID, Step: step, UserID: dto.UserID, CreatedAt: time.Now()}
	if err := s.repo.AddPoolMember(ctx, member); err != nil {
		return nil, internal.NewInternalError("failed to add pool member", err)
	}

	s.logger.Info("approver pool member added", "company_id", actor.CompanyID, "step", step, "user_id", dto.UserID)
	return member, nil
}

func (s *Service) ListPoolMembers(ctx context.Context, actor *auth.User, step int) ([]*PoolMember, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrAdminRequired
	}
	return s.repo.ListPoolMembers(ctx, actor.CompanyID, step)
}

// ManagerOf returns the user's manager, or nil when the user reports to nobody.
func (s *Service) ManagerOf(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.ManagerID == nil {
		return nil, nil
	}
	return s.repo.GetByID(ctx, *u.ManagerID)
}

func (s *Service) UsersInCompany(ctx context.Context, companyID int64) ([]*User, error) {
	return s.repo.ListByCompany(ctx, companyID)
}

// ApproverPool resolves the active pool members for a step, ordered by user id.
func (s *Service) ApproverPool(ctx context.Context, companyID int64, step int) ([]int64, error) {
	members, err := s.repo.ListPoolMembers(ctx, companyID, step)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		u, err := s.repo.GetByID(ctx, m.UserID)
		if err != nil {
			if errors.Is(err, internal.ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		if u.IsActive && u.CompanyID == companyID {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}
