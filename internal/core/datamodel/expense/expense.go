package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense has no status column: the workflow state is derived from its approval requests.
type Expense struct {
	ID           int64           `gorm:"primaryKey"`
	CompanyID    int64           `gorm:"column:company_id;not null;index"`
	UserID       int64           `gorm:"column:user_id;not null;index"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency     string          `gorm:"column:currency;size:3;not null"`
	Category     string          `gorm:"column:category;not null"`
	Description  string          `gorm:"column:description;not null"`
	TotalSteps   int             `gorm:"column:total_steps;not null"`
	AutoApproved bool            `gorm:"column:auto_approved;not null;default:false"`
	SubmittedAt  time.Time       `gorm:"column:submitted_at;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Expense) TableName() string {
	return "expenses"
}
