package rule

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func TestRule(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rule Suite")
}

type memoryRepo struct {
	rules []*Rule
}

func (m *memoryRepo) Create(_ context.Context, r *Rule) error {
	for _, existing := range m.rules {
		if existing.CompanyID == r.CompanyID && existing.Step == r.Step {
			return ErrDuplicateStep
		}
	}
	r.ID = int64(len(m.rules) + 1)
	m.rules = append(m.rules, r)
	return nil
}

func (m *memoryRepo) ListByCompany(_ context.Context, companyID int64) ([]*Rule, error) {
	var out []*Rule
	for _, r := range m.rules {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetByStep(_ context.Context, companyID int64, step int) (*Rule, error) {
	for _, r := range m.rules {
		if r.CompanyID == companyID && r.Step == step {
			return r, nil
		}
	}
	return nil, nil
}

type directory map[int64]*user.User

func (d directory) GetByID(_ context.Context, id int64) (*user.User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, internal.ErrUserNotFound
}

func pct(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func id(v int64) *int64 { return &v }

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		repo    *memoryRepo
		service *Service
		admin   *auth.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &memoryRepo{}
		dir := directory{
			20: {ID: 20, CompanyID: 1, IsActive: true},
			21: {ID: 21, CompanyID: 1, IsActive: false},
			30: {ID: 30, CompanyID: 2, IsActive: true},
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = NewService(repo, dir, logger)
		admin = &auth.User{ID: 1, CompanyID: 1, Role: internal.RoleAdmin}
	})

	expectCode := func(err error, code internal.ErrorCode) {
		appErr, ok := internal.IsAppError(err)
		ExpectWithOffset(1, ok).To(BeTrue(), "expected AppError, got %v", err)
		ExpectWithOffset(1, appErr.Code).To(Equal(code))
	}

	It("appends dense steps starting at 1", func() {
		first, err := service.CreateRule(ctx, admin, CreateRuleDTO{Step: 1, ApproverID: id(20)})
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Kind()).To(Equal(KindFixed))

		second, err := service.CreateRule(ctx, admin, CreateRuleDTO{Step: 2, PercentageRequired: pct("60")})
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Kind()).To(Equal(KindPercentage))

		rules, err := service.RulesFor(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(rules).To(HaveLen(2))
		Expect(rules[0].Step).To(Equal(1))
		Expect(rules[1].Step).To(Equal(2))
	})

	It("rejects a gap with a configuration error", func() {
		_, err := service.CreateRule(ctx, admin, CreateRuleDTO{Step: 2, ApproverID: id(20)})
		expectCode(err, internal.ErrCodeStepOutOfOrder)
		appErr, _ := internal.IsAppError(err)
		Expect(appErr.Type).To(Equal(internal.ErrorTypeConfiguration))
		Expect(appErr.Message).To(ContainSubstring("expected step 1"))
	})

	It("rejects a duplicate step", func() {
		_, err := service.CreateRule(ctx, admin, CreateRuleDTO{Step: 1, ApproverID: id(20)})
		Expect(err).NotTo(HaveOccurred())

		_, err = service.CreateRule(ctx, admin, CreateRuleDTO{Step: 1, ApproverID: id(20)})
		expectCode(err, internal.ErrCodeStepOutOfOrder)
	})

	It("rejects a rule with neither approver nor percentage", func() {
		_, err := service.CreateRule(ctx, admin, CreateRuleDTO{Step: 1})
		expectCode(err, internal.ErrCodeRuleWithoutApprover)
	})

	It("requires both halves of a hybrid rule", func() {
		_, err := service.CreateRule(ctx, admin, CreateRuleDTO{Step: 1, PercentageRequired: pct("50"), Hybrid: true})
		expectCode(err, internal.ErrCodeHybridIncomplete)
	})

	DescribeTable("bounds the percentage",
		func(value string, ok bool) {
			_, err := service.CreateRule(ctx, admin, CreateRuleDTO{Step: 1, PercentageRequired: pct(value)})
			if ok {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			expectCode(err, internal.ErrCodeInvalidPercentage)
		},
		Entry("zero", "0", false),
		Entry("negative", "-5", false),
		Entry("over one hundred", "100.01", false),
		Entry("too precise", "33.333", false),
		Entry("exactly one hundred", "100", true),
		Entry("fractional", "66.67", true),
	)

	It("refuses approvers from another company", func() {
		_, err := service.CreateRule(ctx, admin, CreateRuleDTO{Step: 1, ApproverID: id(30)})
		Expect(errors.Is(err, internal.ErrCrossCompany)).To(BeTrue())
	})

	It("refuses unknown or inactive approvers", func() {
		_, err := service.CreateRule(ctx, admin, CreateRuleDTO{Step: 1, ApproverID: id(99)})
		expectCode(err, internal.ErrCodeRuleWithoutApprover)

		_, err = service.CreateRule(ctx, admin, CreateRuleDTO{Step: 1, ApproverID: id(21)})
		expectCode(err, internal.ErrCodeRuleWithoutApprover)
	})

	It("is admin only", func() {
		employee := &auth.User{ID: 5, CompanyID: 1, Role: internal.RoleEmployee}
		_, err := service.CreateRule(ctx, employee, CreateRuleDTO{Step: 1, ApproverID: id(20)})
		Expect(errors.Is(err, internal.ErrAdminRequired)).To(BeTrue())
	})

	It("classifies hybrid and combined rules", func() {
		hybrid := &Rule{ApproverID: id(20), PercentageRequired: pct("50"), Hybrid: true}
		combined := &Rule{ApproverID: id(20), PercentageRequired: pct("50")}
		Expect(hybrid.Kind()).To(Equal(KindHybrid))
		Expect(combined.Kind()).To(Equal(KindCombined))
	})
})
