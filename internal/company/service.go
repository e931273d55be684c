package company

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/user"
)

type RepositoryAPI interface {
	// CreateWithAdmin inserts the company and its first admin in one transaction.
	CreateWithAdmin(ctx context.Context, c *Company, admin *user.User) error
	GetByID(ctx context.Context, id int64) (*Company, error)
}

type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type TokenIssuer interface {
	IssueTokens(ctx context.Context, u *auth.User) (auth.AuthTokens, error)
}

type Service struct {
	repo   RepositoryAPI
	hasher PasswordHasher
	tokens TokenIssuer
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, hasher PasswordHasher, tokens TokenIssuer, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// Signup registers a company with its admin and signs the admin in.
func (s *Service) Signup(ctx context.Context, dto SignupDTO) (*SignupResponse, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	now := time.Now()
	c := &Company{
		Name:      dto.CompanyName,
		Country:   dto.Country,
		Currency:  CurrencyForCountry(dto.Country),
		CreatedAt: now,
	}
	admin := &user.User{
		Email:        dto.Email,
		Name:         dto.Name,
		PasswordHash: hash,
		Role:         internal.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateWithAdmin(ctx, c, admin); err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to create company", err)
	}

	s.logger.Info("company registered",
		"company_id", c.ID,
		"country", c.Country,
		"currency", c.Currency,
		"admin_id", admin.ID)

	tokens, err := s.tokens.IssueTokens(ctx, &auth.User{
		ID:        admin.ID,
		CompanyID: c.ID,
		Email:     admin.Email,
		Name:      admin.Name,
		Role:      admin.Role,
		IsActive:  true,
	})
	if err != nil {
		return nil, err
	}

	return &SignupResponse{Company: c, Admin: admin, Tokens: tokens}, nil
}

func (s *Service) GetCompany(ctx context.Context, actor *auth.User) (*Company, error) {
	return s.repo.GetByID(ctx, actor.CompanyID)
}
