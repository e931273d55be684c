package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/company"
	companyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/company"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/internal/user"
	"gorm.io/gorm"
)

type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) company.RepositoryAPI {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) CreateWithAdmin(ctx context.Context, c *company.Company, admin *user.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&userDatamodel.User{}).Where("email = ?", admin.Email).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return internal.NewConflictError("email is already registered", internal.ErrCodeEmailTaken)
		}

		companyRow := c.ToDataModel()
		if err := tx.Create(companyRow).Error; err != nil {
			return err
		}
		c.ID = companyRow.ID

		admin.CompanyID = c.ID
		adminRow := admin.ToDataModel()
		if err := tx.Create(adminRow).Error; err != nil {
			return err
		}
		admin.ID = adminRow.ID
		return nil
	})
}

func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*company.Company, error) {
	var row companyDatamodel.Company
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrCompanyNotFound
		}
		return nil, err
	}
	return company.FromDataModel(&row), nil
}
