package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-approval/internal"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	row := u.ToDataModel()
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	u.ID = row.ID
	u.CreatedAt = row.CreatedAt
	u.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ListByCompany(ctx context.Context, companyID int64) ([]*user.User, error) {
	var rows []*userDatamodel.User
	if err := r.db.WithContext(ctx).Where("company_id = ?", companyID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	users := make([]*user.User, len(rows))
	for i, row := range rows {
		users[i] = user.FromDataModel(row)
	}
	return users, nil
}

func (r *UserRepository) UpdateManager(ctx context.Context, userID int64, managerID *int64) error {
	result := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Update("manager_id", managerID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) AddPoolMember(ctx context.Context, m *user.PoolMember) error {
	return r.db.WithContext(ctx).Create(m.ToDataModel()).Error
}

func (r *UserRepository) ListPoolMembers(ctx context.Context, companyID int64, step int) ([]*user.PoolMember, error) {
	var rows []*userDatamodel.ApproverPoolMember
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND step = ?", companyID, step).
		Order("user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	members := make([]*user.PoolMember, len(rows))
	for i, row := range rows {
		members[i] = user.PoolMemberFromDataModel(row)
	}
	return members, nil
}
