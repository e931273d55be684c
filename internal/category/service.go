package category

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/expense-approval/internal"
)

type RepositoryAPI interface {
	GetAll(ctx context.Context) ([]*Category, error)
	GetByName(ctx context.Context, name string) (*Category, error)
	Create(ctx context.Context, c *Category) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Catalog lists the categories expenses can currently be filed under.
func (s *Service) Catalog(ctx context.Context) ([]Option, error) {
	categories, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to load category catalog", "error", err)
		return nil, internal.NewInternalError("failed to get categories", err)
	}
	options := optionsOf(categories)
	s.logger.Debug("category catalog loaded", "selectable", len(options), "total", len(categories))
	return options, nil
}

// EnsureValid fails with a validation error unless name is an active category.
func (s *Service) EnsureValid(ctx context.Context, name string) error {
	c, err := s.repo.GetByName(ctx, CanonicalName(name))
	if err != nil {
		return internal.NewInternalError("failed to look up category", err)
	}
	if !c.Selectable() {
		return internal.NewValidationFieldError("category", "category '"+name+"' is not an active expense category", internal.ErrCodeInvalidCategory)
	}
	return nil
}

// Seed inserts the categories that do not exist yet.
func (s *Service) Seed(ctx context.Context, categories []*Category) error {
	for _, c := range categories {
		existing, err := s.repo.GetByName(ctx, c.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := s.repo.Create(ctx, c); err != nil {
			return err
		}
		s.logger.Info("category seeded", "name", c.Name)
	}
	return nil
}
