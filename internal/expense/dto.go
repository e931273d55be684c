package expense

import (
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

// SubmitExpenseDTO is the payload of POST /expenses.
type SubmitExpenseDTO struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

func (d *SubmitExpenseDTO) Normalize() {
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	d.Category = strings.ToLower(strings.TrimSpace(d.Category))
	d.Description = strings.TrimSpace(d.Description)
}

func (d SubmitExpenseDTO) Validate() *internal.AppError {
	validator := validation.NewValidator()
	validator.Field("amount", d.Amount).
		Positive(internal.ErrCodeInvalidAmount).
		MaxDecimalPlaces(2, internal.ErrCodeInvalidAmount)
	validator.Field("currency", d.Currency).Required().Custom(func(interface{}) *internal.AppError {
		return validation.ValidateCurrency(d.Currency)
	})
	validator.Field("category", d.Category).Required().MaxLength(100)
	validator.Field("description", d.Description).Custom(func(interface{}) *internal.AppError {
		return validation.ValidateExpenseDescription(d.Description)
	})
	return validator.Validate()
}

type ListResponse struct {
	Expenses []*View `json:"expenses"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
}
