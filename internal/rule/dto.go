package rule

import (
	"github.com/shopspring/decimal"
)

// CreateRuleDTO is the payload of POST /rules.
type CreateRuleDTO struct {
	Step               int              `json:"step"`
	ApproverID         *int64           `json:"approver_id,omitempty"`
	PercentageRequired *decimal.Decimal `json:"percentage_required,omitempty"`
	Hybrid             bool             `json:"hybrid"`
}
