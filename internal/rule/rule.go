package rule

import (
	"time"

	ruleDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/rule"
	"github.com/shopspring/decimal"
)

// Rule is one step of a company's approval chain.
type Rule struct {
	ID                 int64            `json:"id"`
	CompanyID          int64            `json:"company_id"`
	Step               int              `json:"step"`
	ApproverID         *int64           `json:"approver_id,omitempty"`
	PercentageRequired *decimal.Decimal `json:"percentage_required,omitempty"`
	Hybrid             bool             `json:"hybrid"`
	CreatedBy          int64            `json:"created_by"`
	CreatedAt          time.Time        `json:"created_at"`
}

type Kind string

const (
	KindFixed      Kind = "fixed"
	KindPercentage Kind = "percentage"
	KindHybrid     Kind = "hybrid"
	// KindCombined needs both the fixed approver and the threshold.
	KindCombined Kind = "combined"
)

func (r *Rule) Kind() Kind {
	switch {
	case r.ApproverID != nil && r.PercentageRequired != nil && r.Hybrid:
		return KindHybrid
	case r.ApproverID != nil && r.PercentageRequired != nil:
		return KindCombined
	case r.PercentageRequired != nil:
		return KindPercentage
	}
	return KindFixed
}

func (r *Rule) HasPercentage() bool {
	return r.PercentageRequired != nil
}

func (r *Rule) ToDataModel() *ruleDatamodel.ApprovalRule {
	m := &ruleDatamodel.ApprovalRule{
		ID:         r.ID,
		CompanyID:  r.CompanyID,
		Step:       r.Step,
		ApproverID: r.ApproverID,
		Hybrid:     r.Hybrid,
		CreatedBy:  r.CreatedBy,
		CreatedAt:  r.CreatedAt,
	}
	if r.PercentageRequired != nil {
		m.PercentageRequired = decimal.NewNullDecimal(*r.PercentageRequired)
	}
	return m
}

func FromDataModel(m *ruleDatamodel.ApprovalRule) *Rule {
	r := &Rule{
		ID:         m.ID,
		CompanyID:  m.CompanyID,
		Step:       m.Step,
		ApproverID: m.ApproverID,
		Hybrid:     m.Hybrid,
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt,
	}
	if m.PercentageRequired.Valid {
		p := m.PercentageRequired.Decimal
		r.PercentageRequired = &p
	}
	return r
}
