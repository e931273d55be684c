package report

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestReport(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Report Suite")
}

type fakeRepo struct {
	rows        []*Row
	requestedID int64
}

func (f *fakeRepo) ListCompanyExpenses(_ context.Context, companyID int64) ([]*Row, error) {
	f.requestedID = companyID
	return f.rows, nil
}

type fakeStates map[int64]expense.State

func (f fakeStates) StateOf(_ context.Context, e *expense.Expense) (expense.State, error) {
	return f[e.ID], nil
}

var _ = ginkgo.Describe("ExportCompanyExpenses", func() {
	var (
		repo    *fakeRepo
		service *Service
		admin   *auth.User
	)

	ginkgo.BeforeEach(func() {
		repo = &fakeRepo{rows: []*Row{
			{
				ExpenseID:     11,
				CompanyID:     3,
				EmployeeName:  "Asha",
				EmployeeEmail: "asha@example.com",
				Category:      "travel",
				Description:   "flight",
				Amount:        decimal.RequireFromString("250.75"),
				Currency:      "INR",
				TotalSteps:    2,
				SubmittedAt:   time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
			},
			{
				ExpenseID:     12,
				CompanyID:     3,
				EmployeeName:  "Ravi",
				EmployeeEmail: "ravi@example.com",
				Category:      "meals",
				Description:   "team lunch",
				Amount:        decimal.RequireFromString("40"),
				Currency:      "INR",
				AutoApproved:  true,
				SubmittedAt:   time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC),
			},
		}}
		states := fakeStates{
			11: {Status: expense.StatusInProgress, CurrentStep: 2, TotalSteps: 2},
			12: {Status: expense.StatusAutoApproved},
		}
		testLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = NewService(repo, states, testLogger)
		admin = &auth.User{ID: 1, CompanyID: 3, Role: internal.RoleAdmin}
	})

	ginkgo.It("writes one row per expense with its derived status", func() {
		buf, err := service.ExportCompanyExpenses(context.Background(), admin)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(repo.requestedID).To(gomega.Equal(int64(3)))

		f, err := excelize.OpenReader(buf)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		defer f.Close()

		rows, err := f.GetRows(sheetName)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(rows).To(gomega.HaveLen(3))
		gomega.Expect(rows[0][0]).To(gomega.Equal("Expense ID"))
		gomega.Expect(rows[1][2]).To(gomega.Equal("Asha"))
		gomega.Expect(rows[1][6]).To(gomega.Equal("250.75"))
		gomega.Expect(rows[1][8]).To(gomega.Equal("in_progress"))
		gomega.Expect(rows[1][9]).To(gomega.Equal("2"))
		gomega.Expect(rows[2][8]).To(gomega.Equal("auto_approved"))
	})

	ginkgo.It("is restricted to admins", func() {
		_, err := service.ExportCompanyExpenses(context.Background(), &auth.User{ID: 2, CompanyID: 3, Role: internal.RoleManager})
		gomega.Expect(err).To(gomega.MatchError(internal.ErrAdminRequired))
	})
})
