package rule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/user"
	"github.com/shopspring/decimal"
)

var ErrDuplicateStep = errors.New("rule step already exists")

type RepositoryAPI interface {
	// Create returns ErrDuplicateStep when (company, step) is taken.
	Create(ctx context.Context, r *Rule) error
	ListByCompany(ctx context.Context, companyID int64) ([]*Rule, error)
	GetByStep(ctx context.Context, companyID int64, step int) (*Rule, error)
}

type Directory interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type Service struct {
	repo      RepositoryAPI
	directory Directory
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, directory Directory, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		logger:    logger,
	}
}

var hundred = decimal.NewFromInt(100)

// CreateRule appends the next step to the actor's company chain. Rules are never updated or deleted.
func (s *Service) CreateRule(ctx context.Context, actor *auth.User, dto CreateRuleDTO) (*Rule, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrAdminRequired
	}

	existing, err := s.repo.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load approval rules", err)
	}
	next := 1
	if len(existing) > 0 {
		next = existing[len(existing)-1].Step + 1
	}
	if dto.Step != next {
		return nil, internal.NewConfigurationError(
			fmt.Sprintf("rule steps must be dense from 1: expected step %d, got %d", next, dto.Step),
			internal.ErrCodeStepOutOfOrder)
	}

	if err := s.validateShape(dto); err != nil {
		return nil, err
	}

	if dto.ApproverID != nil {
		approver, err := s.directory.GetByID(ctx, *dto.ApproverID)
		if err != nil {
			if errors.Is(err, internal.ErrUserNotFound) {
				return nil, internal.NewConfigurationError("rule approver does not exist", internal.ErrCodeRuleWithoutApprover)
			}
			return nil, err
		}
		if approver.CompanyID != actor.CompanyID {
			return nil, internal.ErrCrossCompany
		}
		if !approver.IsActive {
			return nil, internal.NewConfigurationError("rule approver is inactive", internal.ErrCodeRuleWithoutApprover)
		}
	}

	r := &Rule{
		CompanyID:          actor.CompanyID,
		Step:               dto.Step,
		ApproverID:         dto.ApproverID,
		PercentageRequired: dto.PercentageRequired,
		Hybrid:             dto.Hybrid,
		CreatedBy:          actor.ID,
		CreatedAt:          time.Now(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		if errors.Is(err, ErrDuplicateStep) {
			return nil, internal.NewConfigurationError(
				fmt.Sprintf("step %d was added concurrently", dto.Step),
				internal.ErrCodeStepOutOfOrder)
		}
		return nil, internal.NewInternalError("failed to create approval rule", err)
	}

	s.logger.Info("approval rule created",
		"rule_id", r.ID,
		"company_id", r.CompanyID,
		"step", r.Step,
		"kind", r.Kind(),
		"created_by", actor.ID)
	return r, nil
}

func (s *Service) validateShape(dto CreateRuleDTO) *internal.AppError {
	if dto.ApproverID == nil && dto.PercentageRequired == nil {
		return internal.NewConfigurationError("rule needs an approver_id, a percentage_required, or both", internal.ErrCodeRuleWithoutApprover)
	}
	if dto.Hybrid && (dto.ApproverID == nil || dto.PercentageRequired == nil) {
		return internal.NewConfigurationError("hybrid rule needs both approver_id and percentage_required", internal.ErrCodeHybridIncomplete)
	}
	if p := dto.PercentageRequired; p != nil {
		if !p.IsPositive() || p.GreaterThan(hundred) {
			return internal.NewConfigurationError("percentage_required must be greater than 0 and at most 100", internal.ErrCodeInvalidPercentage)
		}
		if !p.Equal(p.Truncate(2)) {
			return internal.NewConfigurationError("percentage_required allows at most 2 decimal places", internal.ErrCodeInvalidPercentage)
		}
	}
	return nil
}

// RulesFor returns the company chain ordered by step.
func (s *Service) RulesFor(ctx context.Context, companyID int64) ([]*Rule, error) {
	return s.repo.ListByCompany(ctx, companyID)
}

// RuleForStep returns nil when the company has no rule at step.
func (s *Service) RuleForStep(ctx context.Context, companyID int64, step int) (*Rule, error) {
	return s.repo.GetByStep(ctx, companyID, step)
}

func (s *Service) ListRules(ctx context.Context, actor *auth.User) ([]*Rule, error) {
	return s.repo.ListByCompany(ctx, actor.CompanyID)
}
