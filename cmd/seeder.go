package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	authPostgres "github.com/frahmantamala/expense-approval/internal/auth/postgres"
	"github.com/frahmantamala/expense-approval/internal/category"
	categoryPostgres "github.com/frahmantamala/expense-approval/internal/category/postgres"
	"github.com/frahmantamala/expense-approval/internal/company"
	companyPostgres "github.com/frahmantamala/expense-approval/internal/company/postgres"
	"github.com/frahmantamala/expense-approval/internal/rule"
	rulePostgres "github.com/frahmantamala/expense-approval/internal/rule/postgres"
	"github.com/frahmantamala/expense-approval/internal/user"
	userPostgres "github.com/frahmantamala/expense-approval/internal/user/postgres"
	"github.com/frahmantamala/expense-approval/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const seedPassword = "password123"

var defaultCategories = []*category.Category{
	category.NewCategory("travel", "Flights, trains and ground transport"),
	category.NewCategory("meals", "Client and team meals"),
	category.NewCategory("lodging", "Hotels and short stays"),
	category.NewCategory("office", "Office supplies and equipment"),
	category.NewCategory("software", "Licences and subscriptions"),
	category.NewCategory("other", "Anything not covered above"),
}

// seedTables are truncated by --clear.
var seedTables = []string{
	"approval_audit_log",
	"approval_requests",
	"expenses",
	"approver_pool_members",
	"approval_rules",
	"sessions",
	"users",
	"companies",
	"expense_categories",
}

// clearData truncates every seeded table before seeding.
var clearData bool

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with expense categories and a demo company with a two-step approval chain.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		logger.Init(cfg.Observability.Logging.Env, logger.WithLevel(cfg.Observability.Logging.Level))
		lg := logger.LoggerWrapper()

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGorm(sqlDB)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		ctx := context.Background()
		if clearData {
			if err := clearTables(db); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			lg.Info("existing data cleared")
		}

		if err := category.NewService(categoryPostgres.NewCategoryRepository(db), lg).Seed(ctx, defaultCategories); err != nil {
			log.Fatalf("failed to seed categories: %v", err)
		}

		if err := seedDemoCompany(ctx, db, cfg.Security, lg); err != nil {
			log.Fatalf("failed to seed demo company: %v", err)
		}
		fmt.Println("Seeding completed; every demo user logs in with password", seedPassword)
	},
}

// clearTables truncates rather than deletes: the audit log rejects DELETE.
func clearTables(db *gorm.DB) error {
	return db.Exec("TRUNCATE TABLE " + strings.Join(seedTables, ", ") + " RESTART IDENTITY CASCADE").Error
}

// seedDemoCompany creates Acme with a CFO-approved first step and a 60% hybrid second step.
func seedDemoCompany(ctx context.Context, db *gorm.DB, sec internal.SecurityConfig, lg *slog.Logger) error {
	tokenGen := auth.NewJWTTokenGenerator(sec.AccessTokenSecret, sec.RefreshTokenSecret, sec.AccessTokenDuration, sec.RefreshTokenDuration)
	authService := auth.NewService(authPostgres.NewRepository(db), tokenGen, sec.BCryptCost, lg)
	companyService := company.NewService(companyPostgres.NewCompanyRepository(db), authService, authService, lg)
	userService := user.NewService(userPostgres.NewUserRepository(db), authService, lg)
	ruleService := rule.NewService(rulePostgres.NewRuleRepository(db), userService, lg)

	signup, err := companyService.Signup(ctx, company.SignupDTO{
		CompanyName: "Acme Corp",
		Country:     "US",
		Name:        "Ada Admin",
		Email:       "admin@acme.test",
		Password:    seedPassword,
	})
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok && appErr.Type == internal.ErrorTypeConflict {
			lg.Info("demo company already seeded; skipping")
			return nil
		}
		return err
	}
	admin := actorFor(signup.Admin)

	create := func(email, name string, role internal.Role, managerID *int64) (*user.User, error) {
		u, err := userService.CreateUser(ctx, admin, user.CreateUserDTO{
			Email:     email,
			Name:      name,
			Password:  seedPassword,
			Role:      role.String(),
			ManagerID: managerID,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", email, err)
		}
		lg.Info("user seeded", "email", email, "role", role)
		return u, nil
	}

	cfo, err := create("cfo@acme.test", "Carla CFO", internal.RoleManager, nil)
	if err != nil {
		return err
	}
	manager, err := create("manager@acme.test", "Mark Manager", internal.RoleManager, &cfo.ID)
	if err != nil {
		return err
	}
	var reviewers []*user.User
	for i := 1; i <= 3; i++ {
		r, err := create(fmt.Sprintf("reviewer%d@acme.test", i), fmt.Sprintf("Reviewer %d", i), internal.RoleManager, &cfo.ID)
		if err != nil {
			return err
		}
		reviewers = append(reviewers, r)
	}
	if _, err := create("employee@acme.test", "Eve Employee", internal.RoleEmployee, &manager.ID); err != nil {
		return err
	}

	for _, r := range reviewers {
		if _, err := userService.AddPoolMember(ctx, admin, 2, user.AddPoolMemberDTO{UserID: r.ID}); err != nil {
			return fmt.Errorf("add pool member %d: %w", r.ID, err)
		}
	}

	sixty := decimal.NewFromInt(60)
	steps := []rule.CreateRuleDTO{
		{Step: 1, ApproverID: &cfo.ID},
		{Step: 2, ApproverID: &cfo.ID, PercentageRequired: &sixty, Hybrid: true},
	}
	for _, dto := range steps {
		if _, err := ruleService.CreateRule(ctx, admin, dto); err != nil {
			return fmt.Errorf("create rule step %d: %w", dto.Step, err)
		}
	}

	lg.Info("demo company seeded", "company_id", signup.Company.ID)
	return nil
}

func actorFor(u *user.User) *auth.User {
	return &auth.User{
		ID:        u.ID,
		CompanyID: u.CompanyID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
	}
}
