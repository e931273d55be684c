package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestApprovalStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ApprovalStore Suite")
}

var _ = Describe("lockError", func() {
	It("reports an expired lock wait as a lock timeout conflict", func() {
		err := lockError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})

		Expect(err).To(MatchError(internal.ErrLockTimeout))
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeConflict))
		Expect(appErr.Code).To(Equal(internal.ErrCodeLockTimeout))
	})

	It("passes other errors through", func() {
		deadlock := &pgconn.PgError{Code: "40P01"}
		Expect(lockError(deadlock)).To(BeIdenticalTo(deadlock))

		plain := errors.New("connection reset")
		Expect(lockError(plain)).To(BeIdenticalTo(plain))
	})
})

var _ = Describe("ApprovalStore", func() {
	var (
		ctx   context.Context
		db    *gorm.DB
		store approval.Store
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&expenseDatamodel.Expense{}, &approvalDatamodel.ApprovalRequest{})).To(Succeed())
		store = NewApprovalStore(db, 2*time.Second)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	create := func(description string) *expense.Expense {
		e := &expense.Expense{
			CompanyID:   1,
			UserID:      1,
			Amount:      decimal.RequireFromString("42.00"),
			Currency:    "EUR",
			Category:    "meals",
			Description: description,
			TotalSteps:  1,
			SubmittedAt: time.Now(),
		}
		Expect(store.Atomic(ctx, func(tx approval.Tx) error {
			return tx.CreateExpense(ctx, e)
		})).To(Succeed())
		return e
	}

	It("locks and reads the expense inside a transaction without a lock_timeout on sqlite", func() {
		e := create("team lunch")

		var locked *expense.Expense
		Expect(store.Atomic(ctx, func(tx approval.Tx) error {
			var err error
			locked, err = tx.LockExpense(ctx, e.ID)
			return err
		})).To(Succeed())
		Expect(locked.Description).To(Equal("team lunch"))
	})

	It("reports a missing expense from LockExpense", func() {
		err := store.Atomic(ctx, func(tx approval.Tx) error {
			_, err := tx.LockExpense(ctx, 404)
			return err
		})
		Expect(err).To(MatchError(internal.ErrExpenseNotFound))
	})

	It("loads several expenses in a single query", func() {
		first := create("taxi")
		second := create("hotel")

		queries := 0
		Expect(db.Callback().Query().After("gorm:query").Register("count_queries", func(*gorm.DB) {
			queries++
		})).To(Succeed())

		got, err := store.GetExpenses(ctx, []int64{first.ID, second.ID, 999})
		Expect(err).NotTo(HaveOccurred())
		Expect(queries).To(Equal(1))
		Expect(got).To(HaveLen(2))
		Expect(got[first.ID].Description).To(Equal("taxi"))
		Expect(got[second.ID].Description).To(Equal("hotel"))
	})

	It("skips the query for no ids", func() {
		got, err := store.GetExpenses(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())
	})
})
