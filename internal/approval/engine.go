package approval

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/core/events"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/frahmantamala/expense-approval/internal/rule"
	"github.com/frahmantamala/expense-approval/internal/user"
	"github.com/frahmantamala/expense-approval/pkg/logger"
)

// Engine applies approve and reject actions and keeps every expense's chain consistent.
type Engine struct {
	store       Store
	builder     *ChainBuilder
	rules       RuleSource
	locker      *Locker
	publisher   events.Publisher
	lockTimeout time.Duration
	logger      *slog.Logger
}

func NewEngine(store Store, builder *ChainBuilder, rules RuleSource, locker *Locker, publisher events.Publisher, lockTimeout time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		store:       store,
		builder:     builder,
		rules:       rules,
		locker:      locker,
		publisher:   publisher,
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

// Submit persists the expense together with its first step, or marks it auto-approved.
func (e *Engine) Submit(ctx context.Context, exp *expense.Expense, submitter *user.User) (expense.State, error) {
	planned, err := e.builder.Plan(ctx, exp, submitter)
	if err != nil {
		return expense.State{}, err
	}

	err = e.store.Atomic(ctx, func(tx Tx) error {
		if err := tx.CreateExpense(ctx, exp); err != nil {
			return err
		}

		submitterID := submitter.ID
		if exp.AutoApproved {
			return tx.AppendAudit(ctx, &AuditEntry{
				ExpenseID:   exp.ID,
				Action:      AuditAutoApproved,
				PerformedBy: &submitterID,
				StatusAfter: string(expense.StatusAutoApproved),
				Metadata:    map[string]interface{}{"reason": "no rules and no manager"},
			})
		}

		if _, err := e.builder.BuildStep(ctx, tx, exp, 1, planned); err != nil {
			return err
		}
		approvers := make([]int64, len(planned))
		for i, req := range planned {
			approvers[i] = req.ApproverID
		}
		return tx.AppendAudit(ctx, &AuditEntry{
			ExpenseID:   exp.ID,
			Step:        1,
			Action:      AuditSubmitted,
			PerformedBy: &submitterID,
			StatusAfter: string(expense.StatusInProgress),
			Metadata: map[string]interface{}{
				"approvers":   approvers,
				"total_steps": exp.TotalSteps,
			},
		})
	})
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return expense.State{}, err
		}
		return expense.State{}, internal.NewInternalError("failed to submit expense", err)
	}

	if exp.AutoApproved {
		e.publish(ctx, events.EventTypeExpenseAutoApproved, exp, 0, submitter.ID)
		return expense.State{Status: expense.StatusAutoApproved}, nil
	}
	e.publish(ctx, events.EventTypeExpenseSubmitted, exp, 1, submitter.ID)
	return expense.State{Status: expense.StatusInProgress, CurrentStep: 1, TotalSteps: exp.TotalSteps}, nil
}

// Act records one approver's decision and advances, completes or terminates the expense.
func (e *Engine) Act(ctx context.Context, requestID, actorID int64, action, comment string) (*Outcome, error) {
	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ApproverID != actorID {
		return nil, internal.ErrNotApprover
	}
	if !req.IsPending() {
		return nil, internal.ErrRequestResolved
	}
	act, err := ParseAction(action)
	if err != nil {
		return nil, err
	}

	exp, err := e.store.GetExpense(ctx, req.ExpenseID)
	if err != nil {
		return nil, err
	}

	var stepRule *rule.Rule
	if req.RuleID != nil {
		stepRule, err = e.rules.RuleForStep(ctx, exp.CompanyID, req.Step)
		if err != nil {
			return nil, internal.NewInternalError("failed to load approval rule", err)
		}
	}

	// Next-step approvers are resolved before the transaction so it only touches rows of this expense.
	var next []*Request
	var nextErr error
	if act == ActionApprove && req.Step < exp.TotalSteps {
		next, nextErr = e.builder.StepRequests(ctx, exp, req.Step+1)
	}

	lockCtx, cancel := internal.WithTimeout(ctx, e.lockTimeout)
	unlock, err := e.locker.Lock(lockCtx, exp.ID)
	cancel()
	if err != nil {
		logger.From(ctx).Warn("expense lock timed out", "expense_id", exp.ID, "request_id", requestID)
		return nil, err
	}
	defer unlock()

	outcome := &Outcome{}
	err = e.store.Atomic(ctx, func(tx Tx) error {
		if _, err := tx.LockExpense(ctx, exp.ID); err != nil {
			return err
		}

		cur, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !cur.IsPending() {
			return internal.ErrRequestResolved
		}

		now := time.Now()
		cur.Status = StatusApproved
		auditAction := AuditApproved
		if act == ActionReject {
			cur.Status = StatusRejected
			auditAction = AuditRejected
		}
		cur.Comment = comment
		cur.ActedAt = &now
		if err := tx.UpdateRequest(ctx, cur); err != nil {
			return err
		}
		outcome.Request = cur

		entries := []*AuditEntry{{
			ExpenseID:    exp.ID,
			RequestID:    &cur.ID,
			Step:         cur.Step,
			Action:       auditAction,
			PerformedBy:  &actorID,
			StatusBefore: string(StatusPending),
			StatusAfter:  string(cur.Status),
			Metadata:     map[string]interface{}{"comment": comment},
		}}

		siblings, err := tx.ListByStep(ctx, exp.ID, cur.Step)
		if err != nil {
			return err
		}

		result := EvaluateStep(stepRule, siblings)
		switch result {
		case StepFailed:
			pending, err := tx.ListPendingByExpense(ctx, exp.ID)
			if err != nil {
				return err
			}
			superseded, err := e.supersede(ctx, tx, pending, now, "expense_rejected")
			if err != nil {
				return err
			}
			entries = append(entries, superseded...)
			entries = append(entries, &AuditEntry{
				ExpenseID:    exp.ID,
				Step:         cur.Step,
				Action:       AuditExpenseRejected,
				PerformedBy:  &actorID,
				StatusBefore: string(expense.StatusInProgress),
				StatusAfter:  string(expense.StatusRejected),
			})
			outcome.State = expense.State{Status: expense.StatusRejected, CurrentStep: cur.Step, TotalSteps: exp.TotalSteps}

		case StepCompleted:
			var open []*Request
			for _, s := range siblings {
				if s.IsPending() {
					open = append(open, s)
				}
			}
			superseded, err := e.supersede(ctx, tx, open, now, "step_completed")
			if err != nil {
				return err
			}
			entries = append(entries, superseded...)
			entries = append(entries, &AuditEntry{
				ExpenseID:   exp.ID,
				Step:        cur.Step,
				Action:      AuditStepCompleted,
				PerformedBy: &actorID,
			})
			outcome.StepCompleted = true

			if cur.Step >= exp.TotalSteps {
				entries = append(entries, &AuditEntry{
					ExpenseID:    exp.ID,
					Step:         cur.Step,
					Action:       AuditExpenseApproved,
					PerformedBy:  &actorID,
					StatusBefore: string(expense.StatusInProgress),
					StatusAfter:  string(expense.StatusApproved),
				})
				outcome.State = expense.State{Status: expense.StatusApproved, TotalSteps: exp.TotalSteps}
				break
			}

			if nextErr != nil {
				return nextErr
			}
			created, err := e.builder.BuildStep(ctx, tx, exp, cur.Step+1, next)
			if err != nil {
				return err
			}
			outcome.NextRequests = created
			outcome.State = expense.State{Status: expense.StatusInProgress, CurrentStep: cur.Step + 1, TotalSteps: exp.TotalSteps}

		default:
			outcome.State = expense.State{Status: expense.StatusInProgress, CurrentStep: cur.Step, TotalSteps: exp.TotalSteps}
		}

		return tx.AppendAudit(ctx, entries...)
	})
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to apply approval action", err)
	}

	logger.From(ctx).Info("approval action applied",
		"expense_id", exp.ID,
		"request_id", requestID,
		"step", outcome.Request.Step,
		"action", act,
		"status", outcome.State.Status,
		"step_completed", outcome.StepCompleted)

	if outcome.StepCompleted {
		e.publish(ctx, events.EventTypeStepCompleted, exp, outcome.Request.Step, actorID)
	}
	switch outcome.State.Status {
	case expense.StatusApproved:
		e.publish(ctx, events.EventTypeExpenseApproved, exp, outcome.Request.Step, actorID)
	case expense.StatusRejected:
		e.publish(ctx, events.EventTypeExpenseRejected, exp, outcome.Request.Step, actorID)
	}
	return outcome, nil
}

// supersede closes requests that can no longer influence the outcome.
func (e *Engine) supersede(ctx context.Context, tx Tx, reqs []*Request, at time.Time, reason string) ([]*AuditEntry, error) {
	entries := make([]*AuditEntry, 0, len(reqs))
	for _, r := range reqs {
		if !r.IsPending() {
			continue
		}
		r.Status = StatusRejected
		r.Superseded = true
		r.ActedAt = &at
		if err := tx.UpdateRequest(ctx, r); err != nil {
			return nil, err
		}
		entries = append(entries, &AuditEntry{
			ExpenseID:    r.ExpenseID,
			RequestID:    &r.ID,
			Step:         r.Step,
			Action:       AuditSuperseded,
			StatusBefore: string(StatusPending),
			StatusAfter:  string(StatusRejected),
			Metadata:     map[string]interface{}{"reason": reason},
		})
	}
	return entries, nil
}

// ListPendingFor returns the requests waiting on the user. Only the active step of an expense is ever materialized.
func (e *Engine) ListPendingFor(ctx context.Context, userID int64) ([]*PendingItem, error) {
	reqs, err := e.store.ListPendingFor(ctx, userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list pending approvals", err)
	}

	ids := make([]int64, 0, len(reqs))
	for _, req := range reqs {
		ids = append(ids, req.ExpenseID)
	}
	expenses, err := e.store.GetExpenses(ctx, ids)
	if err != nil {
		return nil, internal.NewInternalError("failed to load pending expenses", err)
	}

	items := make([]*PendingItem, 0, len(reqs))
	for _, req := range reqs {
		exp, ok := expenses[req.ExpenseID]
		if !ok {
			return nil, internal.ErrExpenseNotFound
		}
		items = append(items, &PendingItem{Request: req, Expense: exp})
	}
	return items, nil
}

func (e *Engine) StateOf(ctx context.Context, exp *expense.Expense) (expense.State, error) {
	if exp.AutoApproved {
		return DeriveState(exp, nil, nil), nil
	}
	reqs, err := e.store.ListByExpense(ctx, exp.ID)
	if err != nil {
		return expense.State{}, internal.NewInternalError("failed to load approval requests", err)
	}
	rules, err := e.rules.RulesFor(ctx, exp.CompanyID)
	if err != nil {
		return expense.State{}, internal.NewInternalError("failed to load approval rules", err)
	}
	return DeriveState(exp, reqs, indexRules(rules)), nil
}

func (e *Engine) IsApproverOn(ctx context.Context, expenseID, userID int64) (bool, error) {
	return e.store.IsApproverOn(ctx, expenseID, userID)
}

// History returns the requests and audit trail of an expense with its derived state.
func (e *Engine) History(ctx context.Context, expenseID int64) (*History, error) {
	exp, err := e.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	reqs, err := e.store.ListByExpense(ctx, expenseID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load approval requests", err)
	}
	audit, err := e.store.ListAudit(ctx, expenseID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load audit trail", err)
	}
	rules, err := e.rules.RulesFor(ctx, exp.CompanyID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load approval rules", err)
	}
	return &History{
		State:    DeriveState(exp, reqs, indexRules(rules)),
		Requests: reqs,
		Audit:    audit,
	}, nil
}

func (e *Engine) publish(ctx context.Context, eventType string, exp *expense.Expense, step int, actorID int64) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, events.NewExpenseEvent(eventType, exp.ID, exp.CompanyID, step, actorID)); err != nil {
		e.logger.Warn("failed to publish event", "event_type", eventType, "expense_id", exp.ID, "error", err)
	}
}
