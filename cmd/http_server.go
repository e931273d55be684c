package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	approvalPostgres "github.com/frahmantamala/expense-approval/internal/approval/postgres"
	"github.com/frahmantamala/expense-approval/internal/auth"
	authPostgres "github.com/frahmantamala/expense-approval/internal/auth/postgres"
	"github.com/frahmantamala/expense-approval/internal/category"
	categoryPostgres "github.com/frahmantamala/expense-approval/internal/category/postgres"
	"github.com/frahmantamala/expense-approval/internal/company"
	companyPostgres "github.com/frahmantamala/expense-approval/internal/company/postgres"
	"github.com/frahmantamala/expense-approval/internal/core/events"
	"github.com/frahmantamala/expense-approval/internal/expense"
	expensePostgres "github.com/frahmantamala/expense-approval/internal/expense/postgres"
	"github.com/frahmantamala/expense-approval/internal/report"
	reportPostgres "github.com/frahmantamala/expense-approval/internal/report/postgres"
	"github.com/frahmantamala/expense-approval/internal/rule"
	rulePostgres "github.com/frahmantamala/expense-approval/internal/rule/postgres"
	"github.com/frahmantamala/expense-approval/internal/transport"
	"github.com/frahmantamala/expense-approval/internal/transport/rest"
	"github.com/frahmantamala/expense-approval/internal/transport/swagger"
	"github.com/frahmantamala/expense-approval/internal/user"
	userPostgres "github.com/frahmantamala/expense-approval/internal/user/postgres"
	"github.com/frahmantamala/expense-approval/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config     *internal.Config
	DB         *sqlx.DB
	Gorm       *gorm.DB
	Dispatcher *events.Dispatcher
	Router     *chi.Mux
	Logger     *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		deps.Logger.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		// drain in-flight event handlers before the pool goes away
		if err := deps.Dispatcher.Shutdown(ctx); err != nil {
			deps.Logger.Error("event dispatcher shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger
	db := deps.Gorm

	eventBus := events.NewEventBus(lg, deps.Dispatcher)
	approval.NewEventHandler(lg).RegisterEventHandlers(eventBus)

	tokenGen := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(db), tokenGen, cfg.Security.BCryptCost, lg)
	companyService := company.NewService(companyPostgres.NewCompanyRepository(db), authService, authService, lg)
	userService := user.NewService(userPostgres.NewUserRepository(db), authService, lg)
	ruleService := rule.NewService(rulePostgres.NewRuleRepository(db), userService, lg)
	categoryService := category.NewService(categoryPostgres.NewCategoryRepository(db), lg)

	builder := approval.NewChainBuilder(ruleService, userService, lg)
	engine := approval.NewEngine(
		approvalPostgres.NewApprovalStore(db, cfg.Approval.LockTimeout),
		builder,
		ruleService,
		approval.NewLocker(),
		eventBus,
		cfg.Approval.LockTimeout,
		lg,
	)

	expenseService := expense.NewService(expensePostgres.NewExpenseRepository(db), engine, categoryService, userService, lg)
	reportService := report.NewService(reportPostgres.NewReportRepository(deps.DB), engine, lg)

	var spec *swagger.Spec
	if cfg.Server.OpenAPISpecPath != "" {
		loaded, err := swagger.LoadSpec(context.Background(), cfg.Server.OpenAPISpecPath)
		if err != nil {
			return fmt.Errorf("load openapi spec: %w", err)
		}
		spec = loaded
	}

	handlers := rest.Handlers{
		Health:   rest.NewHealthHandler(deps.DB, deps.Dispatcher),
		Auth:     auth.NewHandler(authService),
		RBAC:     auth.NewRoleAuthorization(lg),
		Company:  company.NewHandler(companyService),
		User:     user.NewHandler(userService),
		Category: category.NewHandler(transport.NewBaseHandler(lg), categoryService),
		Rule:     rule.NewHandler(ruleService),
		Expense:  expense.NewHandler(expenseService),
		Approval: approval.NewHandler(engine, expenseService),
		Report:   report.NewHandler(reportService),
	}

	rest.RegisterAllRoutes(deps.Router, handlers, rest.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Spec:           spec,
		Logger:         lg,
	})
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logging := config.Observability.Logging
	logger.Init(logging.Env, logger.WithLevel(logging.Level), logger.WithFormat(logging.Format))
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return &Dependencies{
		Config:     config,
		Logger:     lg,
		DB:         db,
		Gorm:       gormDB,
		Dispatcher: events.NewDispatcher(config.Approval.EventWorkers, config.Approval.EventQueueSize, lg),
		Router:     chi.NewRouter(),
	}, nil
}

// initDB opens the shared pgx pool used by both sqlx and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
		TranslateError: true,
	})
}
