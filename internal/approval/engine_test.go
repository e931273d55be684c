package approval_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	"github.com/frahmantamala/expense-approval/internal/approval/postgres"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	"github.com/frahmantamala/expense-approval/internal/core/events"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/frahmantamala/expense-approval/internal/rule"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("Engine", func() {
	const company = int64(1)

	var (
		ctx       context.Context
		db        *gorm.DB
		store     approval.Store
		rules     *fakeRules
		directory *fakeDirectory
		publisher *recordingPublisher
		engine    *approval.Engine
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(
			&expenseDatamodel.Expense{},
			&approvalDatamodel.ApprovalRequest{},
			&approvalDatamodel.ApprovalAuditEntry{},
		)).To(Succeed())

		rules = newFakeRules()
		directory = newFakeDirectory()
		directory.add(2, company, nil)
		directory.add(1, company, ptr(2))
		for _, id := range []int64{3, 4, 5, 6, 7} {
			directory.add(id, company, nil)
		}
		publisher = &recordingPublisher{}

		testLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = postgres.NewApprovalStore(db, time.Second)
		builder := approval.NewChainBuilder(rules, directory, testLogger)
		engine = approval.NewEngine(store, builder, rules, approval.NewLocker(), publisher, 5*time.Second, testLogger)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	submit := func(submitterID int64) (*expense.Expense, expense.State, error) {
		exp := &expense.Expense{
			CompanyID:   company,
			UserID:      submitterID,
			Amount:      decimal.RequireFromString("120.50"),
			Currency:    "USD",
			Category:    "travel",
			Description: "client visit",
			SubmittedAt: time.Now(),
		}
		state, err := engine.Submit(ctx, exp, directory.users[submitterID])
		return exp, state, err
	}

	mustSubmit := func(submitterID int64) *expense.Expense {
		exp, _, err := submit(submitterID)
		Expect(err).NotTo(HaveOccurred())
		return exp
	}

	requestsAt := func(expenseID int64, step int) []*approval.Request {
		all, err := store.ListByExpense(ctx, expenseID)
		Expect(err).NotTo(HaveOccurred())
		var out []*approval.Request
		for _, r := range all {
			if r.Step == step {
				out = append(out, r)
			}
		}
		return out
	}

	requestOf := func(expenseID, approverID int64) *approval.Request {
		all, err := store.ListByExpense(ctx, expenseID)
		Expect(err).NotTo(HaveOccurred())
		for _, r := range all {
			if r.ApproverID == approverID {
				return r
			}
		}
		Fail("no request for approver")
		return nil
	}

	act := func(expenseID, approverID int64, action string) *approval.Outcome {
		outcome, err := engine.Act(ctx, requestOf(expenseID, approverID).ID, approverID, action, "")
		Expect(err).NotTo(HaveOccurred())
		return outcome
	}

	stateOf := func(exp *expense.Expense) expense.State {
		state, err := engine.StateOf(ctx, exp)
		Expect(err).NotTo(HaveOccurred())
		return state
	}

	Describe("implicit manager chain", func() {
		It("creates one step 1 request for the submitter's manager", func() {
			exp, state, err := submit(1)
			Expect(err).NotTo(HaveOccurred())

			Expect(state).To(Equal(expense.State{Status: expense.StatusInProgress, CurrentStep: 1, TotalSteps: 1}))
			reqs := requestsAt(exp.ID, 1)
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].ApproverID).To(Equal(int64(2)))
			Expect(reqs[0].RuleID).To(BeNil())
		})

		It("approves the expense when the manager approves", func() {
			exp := mustSubmit(1)

			outcome := act(exp.ID, 2, "approve")

			Expect(outcome.StepCompleted).To(BeTrue())
			Expect(outcome.State.Status).To(Equal(expense.StatusApproved))
			Expect(stateOf(exp).Status).To(Equal(expense.StatusApproved))
			Expect(publisher.types()).To(Equal([]string{
				events.EventTypeExpenseSubmitted,
				events.EventTypeStepCompleted,
				events.EventTypeExpenseApproved,
			}))
		})

		It("auto-approves with zero requests when there is no manager", func() {
			exp, state, err := submit(3)
			Expect(err).NotTo(HaveOccurred())

			Expect(state.Status).To(Equal(expense.StatusAutoApproved))
			Expect(exp.AutoApproved).To(BeTrue())
			Expect(requestsAt(exp.ID, 1)).To(BeEmpty())
			Expect(stateOf(exp).Status).To(Equal(expense.StatusAutoApproved))

			audit, err := store.ListAudit(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(audit).To(HaveLen(1))
			Expect(audit[0].Action).To(Equal(approval.AuditAutoApproved))
			Expect(publisher.types()).To(Equal([]string{events.EventTypeExpenseAutoApproved}))
		})
	})

	Describe("fixed approver rules", func() {
		BeforeEach(func() {
			rules.add(company, &rule.Rule{ApproverID: ptr(6)})
			rules.add(company, &rule.Rule{ApproverID: ptr(7)})
		})

		It("materializes only the first step at submission", func() {
			exp := mustSubmit(1)

			Expect(exp.TotalSteps).To(Equal(2))
			Expect(requestsAt(exp.ID, 1)).To(HaveLen(1))
			Expect(requestsAt(exp.ID, 2)).To(BeEmpty())
		})

		It("builds the next step lazily when a step completes", func() {
			exp := mustSubmit(1)

			outcome := act(exp.ID, 6, "approve")

			Expect(outcome.State).To(Equal(expense.State{Status: expense.StatusInProgress, CurrentStep: 2, TotalSteps: 2}))
			Expect(outcome.NextRequests).To(HaveLen(1))
			Expect(outcome.NextRequests[0].ApproverID).To(Equal(int64(7)))
			Expect(stateOf(exp).CurrentStep).To(Equal(2))

			outcome = act(exp.ID, 7, "approve")
			Expect(outcome.State.Status).To(Equal(expense.StatusApproved))
		})

		It("rejects the expense on a single rejection and creates nothing further", func() {
			exp := mustSubmit(1)

			outcome := act(exp.ID, 6, "reject")

			Expect(outcome.State).To(Equal(expense.State{Status: expense.StatusRejected, CurrentStep: 1, TotalSteps: 2}))
			Expect(requestsAt(exp.ID, 2)).To(BeEmpty())
			Expect(stateOf(exp).Status).To(Equal(expense.StatusRejected))
			Expect(publisher.types()).To(ContainElement(events.EventTypeExpenseRejected))
		})
	})

	Describe("percentage rules", func() {
		BeforeEach(func() {
			rules.add(company, &rule.Rule{PercentageRequired: percent("60")})
			directory.pools[1] = []int64{3, 4, 5}
		})

		It("creates one request per pool member", func() {
			exp := mustSubmit(1)

			var approvers []int64
			for _, r := range requestsAt(exp.ID, 1) {
				approvers = append(approvers, r.ApproverID)
			}
			Expect(sortedApprovers(approvers)).To(Equal([]int64{3, 4, 5}))
		})

		It("completes the step at two of three approvals and supersedes the rest", func() {
			exp := mustSubmit(1)

			first := act(exp.ID, 3, "approve")
			Expect(first.StepCompleted).To(BeFalse())
			Expect(first.State.Status).To(Equal(expense.StatusInProgress))

			second := act(exp.ID, 4, "approve")
			Expect(second.StepCompleted).To(BeTrue())
			Expect(second.State.Status).To(Equal(expense.StatusApproved))

			last := requestOf(exp.ID, 5)
			Expect(last.Status).To(Equal(approval.StatusRejected))
			Expect(last.Superseded).To(BeTrue())
		})

		It("rejects once the threshold becomes unreachable", func() {
			exp := mustSubmit(1)

			act(exp.ID, 3, "approve")
			outcome := act(exp.ID, 4, "reject")
			Expect(outcome.State.Status).To(Equal(expense.StatusInProgress))

			outcome = act(exp.ID, 5, "reject")
			Expect(outcome.State.Status).To(Equal(expense.StatusRejected))
			Expect(stateOf(exp).Status).To(Equal(expense.StatusRejected))
		})

		It("never asks the submitter to approve their own expense", func() {
			directory.users[3].ManagerID = nil
			exp := mustSubmit(3)

			var approvers []int64
			for _, r := range requestsAt(exp.ID, 1) {
				approvers = append(approvers, r.ApproverID)
			}
			Expect(sortedApprovers(approvers)).To(Equal([]int64{4, 5}))
		})

		It("refuses to submit when the pool is empty and persists nothing", func() {
			directory.pools[1] = nil

			_, _, err := submit(1)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeConfiguration))
			Expect(appErr.Code).To(Equal(internal.ErrCodeEmptyApproverPool))

			var count int64
			Expect(db.Model(&expenseDatamodel.Expense{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})
	})

	Describe("hybrid rules", func() {
		BeforeEach(func() {
			rules.add(company, &rule.Rule{ApproverID: ptr(6), PercentageRequired: percent("50"), Hybrid: true})
			directory.pools[1] = []int64{3, 4, 5, 7}
		})

		It("records which requests belong to the pool", func() {
			exp := mustSubmit(1)

			Expect(requestsAt(exp.ID, 1)).To(HaveLen(5))
			Expect(requestOf(exp.ID, 6).InPool).To(BeFalse())
			for _, id := range []int64{3, 4, 5, 7} {
				Expect(requestOf(exp.ID, id).InPool).To(BeTrue())
			}
		})

		It("deduplicates the fixed approver with the pool", func() {
			directory.pools[1] = []int64{3, 6}
			exp := mustSubmit(1)

			Expect(requestsAt(exp.ID, 1)).To(HaveLen(2))
			Expect(requestOf(exp.ID, 6).InPool).To(BeTrue())
		})

		It("completes as soon as the fixed approver approves", func() {
			exp := mustSubmit(1)

			outcome := act(exp.ID, 6, "approve")

			Expect(outcome.StepCompleted).To(BeTrue())
			Expect(outcome.State.Status).To(Equal(expense.StatusApproved))
		})

		It("completes at two of four pool approvals while the fixed approver is silent", func() {
			exp := mustSubmit(1)

			first := act(exp.ID, 3, "approve")
			Expect(first.StepCompleted).To(BeFalse())

			outcome := act(exp.ID, 4, "approve")

			Expect(outcome.StepCompleted).To(BeTrue())
			Expect(outcome.State.Status).To(Equal(expense.StatusApproved))
			for _, id := range []int64{5, 6, 7} {
				Expect(requestOf(exp.ID, id).Superseded).To(BeTrue())
			}
		})

		It("keeps waiting after a fixed rejection while the percentage is reachable", func() {
			exp := mustSubmit(1)

			outcome := act(exp.ID, 6, "reject")

			Expect(outcome.State.Status).To(Equal(expense.StatusInProgress))
		})

		It("keeps waiting on the fixed approver after the pool can no longer reach the percentage", func() {
			exp := mustSubmit(1)

			act(exp.ID, 3, "reject")
			act(exp.ID, 4, "reject")
			outcome := act(exp.ID, 5, "reject")
			Expect(outcome.State.Status).To(Equal(expense.StatusInProgress))

			outcome = act(exp.ID, 6, "reject")
			Expect(outcome.State.Status).To(Equal(expense.StatusRejected))
		})
	})

	Describe("combined rules", func() {
		BeforeEach(func() {
			rules.add(company, &rule.Rule{ApproverID: ptr(6), PercentageRequired: percent("50")})
			directory.pools[1] = []int64{3, 4}
		})

		It("waits for the fixed approver even when the percentage is met", func() {
			exp := mustSubmit(1)

			act(exp.ID, 3, "approve")
			outcome := act(exp.ID, 4, "approve")

			Expect(outcome.StepCompleted).To(BeFalse())
			Expect(outcome.State.Status).To(Equal(expense.StatusInProgress))
			Expect(requestOf(exp.ID, 6).IsPending()).To(BeTrue())
		})

		It("completes once both the fixed approver and the percentage agree", func() {
			exp := mustSubmit(1)

			act(exp.ID, 3, "approve")
			outcome := act(exp.ID, 6, "approve")

			Expect(outcome.StepCompleted).To(BeTrue())
			Expect(outcome.State.Status).To(Equal(expense.StatusApproved))
			Expect(requestOf(exp.ID, 4).Superseded).To(BeTrue())
			Expect(stateOf(exp).Status).To(Equal(expense.StatusApproved))
		})

		It("refuses a combined step whose pool is only the submitter", func() {
			directory.pools[1] = []int64{1}

			_, _, err := submit(1)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeEmptyApproverPool))
		})
	})

	Describe("rejection bookkeeping", func() {
		It("supersedes every pending request and keeps the active reject distinct", func() {
			rules.add(company, &rule.Rule{ApproverID: ptr(6), PercentageRequired: percent("50")})
			directory.pools[1] = []int64{3, 4}
			exp := mustSubmit(1)

			outcome := act(exp.ID, 3, "reject")
			Expect(outcome.State.Status).To(Equal(expense.StatusRejected))

			rejected := requestOf(exp.ID, 3)
			Expect(rejected.Status).To(Equal(approval.StatusRejected))
			Expect(rejected.Superseded).To(BeFalse())
			for _, id := range []int64{4, 6} {
				r := requestOf(exp.ID, id)
				Expect(r.Status).To(Equal(approval.StatusRejected))
				Expect(r.Superseded).To(BeTrue())
			}

			history, err := engine.History(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			var actions []approval.AuditAction
			for _, a := range history.Audit {
				actions = append(actions, a.Action)
			}
			Expect(actions).To(Equal([]approval.AuditAction{
				approval.AuditSubmitted,
				approval.AuditRejected,
				approval.AuditSuperseded,
				approval.AuditSuperseded,
				approval.AuditExpenseRejected,
			}))
			Expect(history.State.Status).To(Equal(expense.StatusRejected))
		})
	})

	Describe("action preconditions", func() {
		var exp *expense.Expense

		BeforeEach(func() {
			exp = mustSubmit(1)
		})

		It("reports a missing request", func() {
			_, err := engine.Act(ctx, 9999, 2, "approve", "")
			Expect(err).To(MatchError(internal.ErrRequestNotFound))
		})

		It("forbids anyone but the approver", func() {
			_, err := engine.Act(ctx, requestOf(exp.ID, 2).ID, 7, "approve", "")
			Expect(err).To(MatchError(internal.ErrNotApprover))
		})

		It("conflicts on a resolved request every time without touching state", func() {
			act(exp.ID, 2, "approve")
			resolved := requestOf(exp.ID, 2)
			auditBefore, err := store.ListAudit(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())

			for _, action := range []string{"reject", "approve"} {
				_, err := engine.Act(ctx, resolved.ID, 2, action, "again")
				Expect(err).To(MatchError(internal.ErrRequestResolved))
			}

			after := requestOf(exp.ID, 2)
			Expect(after.Status).To(Equal(approval.StatusApproved))
			Expect(after.Comment).To(Equal(resolved.Comment))
			Expect(after.UpdatedAt).To(BeTemporally("==", resolved.UpdatedAt))
			auditAfter, err := store.ListAudit(ctx, exp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(auditAfter).To(HaveLen(len(auditBefore)))
			Expect(stateOf(exp).Status).To(Equal(expense.StatusApproved))
		})

		It("rejects an unknown action", func() {
			_, err := engine.Act(ctx, requestOf(exp.ID, 2).ID, 2, "escalate", "")
			Expect(err).To(MatchError(internal.ErrInvalidAction))
		})

		It("checks the approver before the action", func() {
			_, err := engine.Act(ctx, requestOf(exp.ID, 2).ID, 7, "escalate", "")
			Expect(err).To(MatchError(internal.ErrNotApprover))
		})
	})

	Describe("next step configuration errors", func() {
		It("rolls back the approval when the next step has no approvers", func() {
			rules.add(company, &rule.Rule{ApproverID: ptr(6)})
			rules.add(company, &rule.Rule{PercentageRequired: percent("50")})
			exp := mustSubmit(1)

			_, err := engine.Act(ctx, requestOf(exp.ID, 6).ID, 6, "approve", "")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeEmptyApproverPool))
			Expect(requestOf(exp.ID, 6).IsPending()).To(BeTrue())
			Expect(requestsAt(exp.ID, 2)).To(BeEmpty())
		})
	})

	Describe("queries", func() {
		It("lists only the requests waiting on the user", func() {
			rules.add(company, &rule.Rule{ApproverID: ptr(6)})
			rules.add(company, &rule.Rule{ApproverID: ptr(7)})
			exp := mustSubmit(1)

			items, err := engine.ListPendingFor(ctx, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(BeEmpty())

			items, err = engine.ListPendingFor(ctx, 6)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Expense.ID).To(Equal(exp.ID))

			act(exp.ID, 6, "approve")
			items, err = engine.ListPendingFor(ctx, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
		})

		It("lists pending requests across several expenses", func() {
			rules.add(company, &rule.Rule{ApproverID: ptr(6)})
			first := mustSubmit(1)
			second := mustSubmit(1)

			items, err := engine.ListPendingFor(ctx, 6)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			for _, item := range items {
				Expect(item.Expense.ID).To(Equal(item.Request.ExpenseID))
			}
			Expect([]int64{items[0].Expense.ID, items[1].Expense.ID}).To(ConsistOf(first.ID, second.ID))
		})

		It("knows who approves an expense", func() {
			exp := mustSubmit(1)

			ok, err := engine.IsApproverOn(ctx, exp.ID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = engine.IsApproverOn(ctx, exp.ID, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("concurrent approvals", func() {
		It("completes a step exactly once", func() {
			rules.add(company, &rule.Rule{PercentageRequired: percent("100")})
			rules.add(company, &rule.Rule{ApproverID: ptr(6)})
			directory.pools[1] = []int64{3, 4}
			exp := mustSubmit(1)

			ids := map[int64]int64{3: requestOf(exp.ID, 3).ID, 4: requestOf(exp.ID, 4).ID}
			outcomes := make(chan *approval.Outcome, 2)
			var wg sync.WaitGroup
			for approver, requestID := range ids {
				wg.Add(1)
				go func(approver, requestID int64) {
					defer GinkgoRecover()
					defer wg.Done()
					outcome, err := engine.Act(ctx, requestID, approver, "approve", "")
					Expect(err).NotTo(HaveOccurred())
					outcomes <- outcome
				}(approver, requestID)
			}
			wg.Wait()
			close(outcomes)

			completed := 0
			for o := range outcomes {
				if o.StepCompleted {
					completed++
				}
			}
			Expect(completed).To(Equal(1))
			Expect(requestsAt(exp.ID, 2)).To(HaveLen(1))
			Expect(stateOf(exp)).To(Equal(expense.State{Status: expense.StatusInProgress, CurrentStep: 2, TotalSteps: 2}))
		})
	})
})
