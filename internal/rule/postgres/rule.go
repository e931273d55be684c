package postgres

import (
	"context"
	"errors"

	ruleDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/rule"
	"github.com/frahmantamala/expense-approval/internal/rule"
	"gorm.io/gorm"
)

type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) rule.RepositoryAPI {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Create(ctx context.Context, rl *rule.Rule) error {
	row := rl.ToDataModel()
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return rule.ErrDuplicateStep
		}
		return err
	}
	rl.ID = row.ID
	rl.CreatedAt = row.CreatedAt
	return nil
}

func (r *RuleRepository) ListByCompany(ctx context.Context, companyID int64) ([]*rule.Rule, error) {
	var rows []*ruleDatamodel.ApprovalRule
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("step ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	rules := make([]*rule.Rule, len(rows))
	for i, row := range rows {
		rules[i] = rule.FromDataModel(row)
	}
	return rules, nil
}

func (r *RuleRepository) GetByStep(ctx context.Context, companyID int64, step int) (*rule.Rule, error) {
	var row ruleDatamodel.ApprovalRule
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND step = ?", companyID, step).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rule.FromDataModel(&row), nil
}
