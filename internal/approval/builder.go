package approval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/frahmantamala/expense-approval/internal/rule"
	"github.com/frahmantamala/expense-approval/internal/user"
)

type RuleSource interface {
	RulesFor(ctx context.Context, companyID int64) ([]*rule.Rule, error)
	RuleForStep(ctx context.Context, companyID int64, step int) (*rule.Rule, error)
}

type Directory interface {
	ManagerOf(ctx context.Context, userID int64) (*user.User, error)
	ApproverPool(ctx context.Context, companyID int64, step int) ([]int64, error)
}

// ChainBuilder materializes approval requests one step at a time.
type ChainBuilder struct {
	rules     RuleSource
	directory Directory
	logger    *slog.Logger
}

func NewChainBuilder(rules RuleSource, directory Directory, logger *slog.Logger) *ChainBuilder {
	return &ChainBuilder{
		rules:     rules,
		directory: directory,
		logger:    logger,
	}
}

// Plan fixes TotalSteps and AutoApproved on the expense and returns the unsaved step 1 requests.
func (b *ChainBuilder) Plan(ctx context.Context, e *expense.Expense, submitter *user.User) ([]*Request, error) {
	rules, err := b.rules.RulesFor(ctx, submitter.CompanyID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load approval rules", err)
	}

	if len(rules) == 0 {
		manager, err := b.directory.ManagerOf(ctx, submitter.ID)
		if err != nil {
			return nil, internal.NewInternalError("failed to resolve manager", err)
		}
		if manager == nil {
			e.TotalSteps = 0
			e.AutoApproved = true
			b.logger.Debug("no rules and no manager, auto-approving", "user_id", submitter.ID)
			return nil, nil
		}
		e.TotalSteps = 1
		return []*Request{{Step: 1, ApproverID: manager.ID, Status: StatusPending}}, nil
	}

	e.TotalSteps = len(rules)
	return b.requestsFor(ctx, e, rules[0])
}

// StepRequests resolves the unsaved requests of a rule-driven step.
func (b *ChainBuilder) StepRequests(ctx context.Context, e *expense.Expense, step int) ([]*Request, error) {
	r, err := b.rules.RuleForStep(ctx, e.CompanyID, step)
	if err != nil {
		return nil, internal.NewInternalError("failed to load approval rule", err)
	}
	if r == nil {
		return nil, internal.NewConfigurationError(
			fmt.Sprintf("no approval rule configured for step %d", step), internal.ErrCodeInvalidStep)
	}
	return b.requestsFor(ctx, e, r)
}

func (b *ChainBuilder) requestsFor(ctx context.Context, e *expense.Expense, r *rule.Rule) ([]*Request, error) {
	if r.ApproverID == nil && !r.HasPercentage() {
		return nil, internal.NewConfigurationError(
			fmt.Sprintf("rule for step %d has neither an approver nor a percentage", r.Step), internal.ErrCodeRuleWithoutApprover)
	}

	ruleID := r.ID
	byApprover := make(map[int64]*Request)
	var out []*Request
	add := func(approverID int64, inPool bool) {
		if req, ok := byApprover[approverID]; ok {
			req.InPool = req.InPool || inPool
			return
		}
		req := &Request{
			Step:       r.Step,
			ApproverID: approverID,
			Status:     StatusPending,
			InPool:     inPool,
			RuleID:     &ruleID,
		}
		byApprover[approverID] = req
		out = append(out, req)
	}

	if r.ApproverID != nil {
		add(*r.ApproverID, false)
	}

	if r.HasPercentage() {
		pool, err := b.directory.ApproverPool(ctx, e.CompanyID, r.Step)
		if err != nil {
			return nil, internal.NewInternalError("failed to resolve approver pool", err)
		}
		for _, id := range pool {
			if id == e.UserID {
				continue
			}
			add(id, true)
		}
	}

	poolSize := 0
	for _, req := range out {
		if req.InPool {
			poolSize++
		}
	}
	// A combined step can only complete once its pool reaches the percentage.
	if len(out) == 0 || (r.Kind() == rule.KindCombined && poolSize == 0) {
		return nil, internal.NewConfigurationError(
			fmt.Sprintf("percentage rule for step %d has no eligible approvers", r.Step), internal.ErrCodeEmptyApproverPool)
	}
	return out, nil
}

// BuildStep persists planned requests for a step unless that step already has requests.
func (b *ChainBuilder) BuildStep(ctx context.Context, tx Tx, e *expense.Expense, step int, planned []*Request) ([]*Request, error) {
	existing, err := tx.ListByStep(ctx, e.ID, step)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		b.logger.Warn("step already materialized", "expense_id", e.ID, "step", step)
		return nil, nil
	}

	for _, req := range planned {
		req.ExpenseID = e.ID
		req.Step = step
		req.Status = StatusPending
	}
	if err := tx.CreateRequests(ctx, planned); err != nil {
		return nil, err
	}
	return planned, nil
}
