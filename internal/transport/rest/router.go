package rest

import (
	"log/slog"

	"github.com/frahmantamala/expense-approval/internal/approval"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/category"
	"github.com/frahmantamala/expense-approval/internal/company"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/frahmantamala/expense-approval/internal/report"
	"github.com/frahmantamala/expense-approval/internal/rule"
	"github.com/frahmantamala/expense-approval/internal/transport/middleware"
	"github.com/frahmantamala/expense-approval/internal/transport/swagger"
	"github.com/frahmantamala/expense-approval/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups every HTTP handler mounted by RegisterAllRoutes.
type Handlers struct {
	Health   *HealthHandler
	Auth     *auth.Handler
	RBAC     *auth.RoleAuthorization
	Company  *company.Handler
	User     *user.Handler
	Category *category.Handler
	Rule     *rule.Handler
	Expense  *expense.Handler
	Approval *approval.Handler
	Report   *report.Handler
}

type RouterOptions struct {
	AllowedOrigins string
	Spec           *swagger.Spec
	Logger         *slog.Logger
}

func RegisterAllRoutes(router chi.Router, h Handlers, opts RouterOptions) {
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.TraceID)
	router.Use(middleware.RecoveryMiddleware(opts.Logger))
	router.Use(middleware.LoggingMiddleware(opts.Logger))

	if opts.Spec != nil {
		router.Get("/openapi.yml", opts.Spec.ServeFile)
		router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)

		r.Post("/signup", h.Company.Signup)
		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		r.Get("/categories", h.Category.GetCategories)

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/company", h.Company.GetCompany)
			pr.Get("/users/me", h.User.GetCurrentUser)
			pr.Get("/rules", h.Rule.ListRules)

			pr.Route("/expenses", func(er chi.Router) {
				er.Post("/", h.Expense.SubmitExpense)
				er.Get("/", h.Expense.ListMyExpenses)
				er.Get("/{id}", h.Expense.GetExpense)
				er.Get("/{id}/approvals", h.Approval.GetHistory)
			})

			pr.Get("/approvals", h.Approval.ListPending)
			pr.Post("/approvals/{id}", h.Approval.Act)

			pr.Group(func(ar chi.Router) {
				ar.Use(h.RBAC.RequireAdmin())

				ar.Post("/users", h.User.CreateUser)
				ar.Get("/users", h.User.ListUsers)
				ar.Patch("/users/{id}/manager", h.User.SetManager)

				ar.Post("/approver-pools/{step}/members", h.User.AddPoolMember)
				ar.Get("/approver-pools/{step}", h.User.ListPoolMembers)

				ar.Post("/rules", h.Rule.CreateRule)

				ar.Get("/company/expenses", h.Expense.ListCompanyExpenses)
				ar.Get("/company/expenses/export", h.Report.ExportCompanyExpenses)
			})
		})
	})
}
