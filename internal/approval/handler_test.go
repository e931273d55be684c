package approval_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubApprovals struct {
	actCalls []string
	actErr   error
	pending  []*approval.PendingItem
	history  *approval.History
}

func (s *stubApprovals) Act(_ context.Context, requestID, actorID int64, action, comment string) (*approval.Outcome, error) {
	s.actCalls = append(s.actCalls, action+":"+comment)
	if s.actErr != nil {
		return nil, s.actErr
	}
	return &approval.Outcome{
		Request:       &approval.Request{ID: requestID, ApproverID: actorID, Step: 1, Status: approval.StatusApproved},
		State:         expense.State{Status: expense.StatusApproved, TotalSteps: 1},
		StepCompleted: true,
	}, nil
}

func (s *stubApprovals) ListPendingFor(_ context.Context, _ int64) ([]*approval.PendingItem, error) {
	return s.pending, nil
}

func (s *stubApprovals) History(_ context.Context, _ int64) (*approval.History, error) {
	return s.history, nil
}

type stubExpenseAccess struct{ err error }

func (s stubExpenseAccess) Get(_ context.Context, _ *auth.User, id int64) (*expense.View, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &expense.View{Expense: &expense.Expense{ID: id}}, nil
}

var _ = Describe("Approval Handler", func() {
	var (
		service *stubApprovals
		access  stubExpenseAccess
		router  chi.Router
		actor   *auth.User
	)

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		if actor != nil {
			req = req.WithContext(auth.ContextWithUser(req.Context(), actor))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		service = &stubApprovals{}
		access = stubExpenseAccess{}
		actor = &auth.User{ID: 7, CompanyID: 1, Role: internal.RoleManager, IsActive: true}
	})

	JustBeforeEach(func() {
		h := approval.NewHandler(service, access)
		r := chi.NewRouter()
		r.Get("/approvals", h.ListPending)
		r.Post("/approvals/{id}", h.Act)
		r.Get("/expenses/{id}/approvals", h.GetHistory)
		router = r
	})

	Describe("POST /approvals/{id}", func() {
		It("applies the action for the authenticated approver", func() {
			rec := serve(http.MethodPost, "/approvals/12", `{"action":"approve","comment":"ok"}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(service.actCalls).To(Equal([]string{"approve:ok"}))

			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("step_completed", true))
			Expect(body["state"]).To(HaveKeyWithValue("status", "approved"))
		})

		It("maps engine errors to their status", func() {
			service.actErr = internal.ErrNotApprover
			rec := serve(http.MethodPost, "/approvals/12", `{"action":"approve"}`)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeNotApprover)))

			service.actErr = internal.ErrInvalidAction
			Expect(serve(http.MethodPost, "/approvals/12", `{"action":"maybe"}`).Code).To(Equal(http.StatusBadRequest))

			service.actErr = internal.ErrRequestResolved
			Expect(serve(http.MethodPost, "/approvals/12", `{"action":"reject"}`).Code).To(Equal(http.StatusConflict))
		})

		It("rejects a malformed id or body before reaching the engine", func() {
			Expect(serve(http.MethodPost, "/approvals/abc", `{"action":"approve"}`).Code).To(Equal(http.StatusBadRequest))
			Expect(serve(http.MethodPost, "/approvals/12", `{`).Code).To(Equal(http.StatusBadRequest))
			Expect(service.actCalls).To(BeEmpty())
		})

		It("requires an authenticated user", func() {
			actor = nil
			Expect(serve(http.MethodPost, "/approvals/12", `{"action":"approve"}`).Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("GET /approvals", func() {
		It("wraps pending items", func() {
			service.pending = []*approval.PendingItem{{
				Request: &approval.Request{ID: 3, ExpenseID: 9, Step: 1, ApproverID: 7, Status: approval.StatusPending},
				Expense: &expense.Expense{ID: 9},
			}}

			rec := serve(http.MethodGet, "/approvals", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body approval.PendingResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Approvals).To(HaveLen(1))
			Expect(body.Approvals[0].Request.ID).To(Equal(int64(3)))
		})
	})

	Describe("GET /expenses/{id}/approvals", func() {
		BeforeEach(func() {
			service.history = &approval.History{
				State: expense.State{Status: expense.StatusInProgress, CurrentStep: 1, TotalSteps: 2},
				Audit: []*approval.AuditEntry{{ExpenseID: 9, Step: 1, Action: approval.AuditSubmitted}},
			}
		})

		It("returns the trail to someone who can see the expense", func() {
			rec := serve(http.MethodGet, "/expenses/9/approvals", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"action":"submitted"`))
		})

		Context("when the expense is not visible to the caller", func() {
			BeforeEach(func() {
				access = stubExpenseAccess{err: internal.ErrExpenseForbidden}
			})

			It("refuses with 403", func() {
				Expect(serve(http.MethodGet, "/expenses/9/approvals", "").Code).To(Equal(http.StatusForbidden))
			})
		})
	})
})
