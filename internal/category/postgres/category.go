package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-approval/internal/category"
	categoryDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/category"
	"gorm.io/gorm"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) category.RepositoryAPI {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) GetAll(ctx context.Context) ([]*category.Category, error) {
	var rows []*categoryDatamodel.ExpenseCategory
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	categories := make([]*category.Category, len(rows))
	for i, row := range rows {
		categories[i] = category.FromRow(row)
	}
	return categories, nil
}

func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*category.Category, error) {
	var row categoryDatamodel.ExpenseCategory
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return category.FromRow(&row), nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	row := category.ToRow(c)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	c.ID = row.ID
	return nil
}
