package rule

import (
	"time"

	"github.com/shopspring/decimal"
)

type ApprovalRule struct {
	ID                 int64               `gorm:"primaryKey"`
	CompanyID          int64               `gorm:"column:company_id;not null;uniqueIndex:idx_rule_company_step"`
	Step               int                 `gorm:"column:step;not null;uniqueIndex:idx_rule_company_step"`
	ApproverID         *int64              `gorm:"column:approver_id"`
	PercentageRequired decimal.NullDecimal `gorm:"column:percentage_required;type:numeric(5,2)"`
	Hybrid             bool                `gorm:"column:hybrid;not null;default:false"`
	CreatedBy          int64               `gorm:"column:created_by;not null"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (ApprovalRule) TableName() string {
	return "approval_rules"
}
