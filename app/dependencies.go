package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/card-control-plane/auth"
	"github.com/upb/card-control-plane/config"
	"github.com/upb/card-control-plane/handlers"
	"github.com/upb/card-control-plane/middleware"
	"github.com/upb/card-control-plane/repositories"
	"github.com/upb/card-control-plane/repositories/postgres"
	"github.com/upb/card-control-plane/services/audit"
	"github.com/upb/card-control-plane/services/budget"
	"github.com/upb/card-control-plane/services/card"
	"github.com/upb/card-control-plane/services/ledger"
	"github.com/upb/card-control-plane/services/policy"
	"github.com/upb/card-control-plane/services/scoring"
	"github.com/upb/card-control-plane/services/simulation"
)

// cacheCleanupInterval is how often expired policy cache entries are swept
const cacheCleanupInterval = time.Minute

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Cards        repositories.CardRepository
	Policies     repositories.PolicyRepository
	Transactions repositories.TransactionRepository
	Budgets      repositories.BudgetRepository
	AuditLogs    repositories.AuditRepository
	TxManager    repositories.TransactionManager

	// Services
	Audit      *audit.AuditService
	PolicySvc  *policy.PolicyService
	Scoring    *scoring.Service
	Ledger     *ledger.Service
	CardSvc    *card.Service
	BudgetSvc  *budget.BudgetService
	Simulation *simulation.Service

	// Auth; TokenValidator is nil when no JWT secret is configured
	TokenValidator *auth.Validator
	AuthMiddleware *middleware.AuthMiddleware

	stopBackground context.CancelFunc
	started        bool
}

// NewDependencies opens the database and wires up all application
// dependencies. Background workers are not running until Start.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := factory.GetDB().PingContext(ctx); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize database: database ping failed: %w", err)
	}

	deps, err := NewDependenciesFromFactory(cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesFromFactory wires services over an already opened factory.
func NewDependenciesFromFactory(cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()
	deps.initServices(cfg)
	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Cards = repos.Cards
	d.Policies = repos.Policies
	d.Transactions = repos.Transactions
	d.Budgets = repos.Budgets
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initServices builds the engine and its supporting services
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Audit = audit.NewAuditService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Engine.AuditBufferSize,
		WorkerCount: cfg.Engine.AuditWorkers,
	})

	cache := policy.NewPolicyCache(cfg.Engine.PolicyCacheSize, cfg.Engine.PolicyCacheTTL)
	d.PolicySvc = policy.NewPolicyService(d.Policies, cache, d.Audit, d.Logger)

	d.Scoring = scoring.NewService(d.Cards, d.PolicySvc, nil, d.Audit, d.Logger, scoring.Config{
		SlowDecision: cfg.Engine.SlowDecision,
	})

	ledgerCfg := ledger.DefaultConfig()
	if cfg.Engine.LedgerWorkers > 0 {
		ledgerCfg.Workers = cfg.Engine.LedgerWorkers
	}
	if cfg.Engine.LedgerRetryBuffer > 0 {
		ledgerCfg.RetryBuffer = cfg.Engine.LedgerRetryBuffer
	}
	if cfg.Engine.LedgerMaxAttempts > 0 {
		ledgerCfg.MaxAttempts = cfg.Engine.LedgerMaxAttempts
	}
	if cfg.Engine.LedgerRetryBackoff > 0 {
		ledgerCfg.RetryBackoff = cfg.Engine.LedgerRetryBackoff
	}
	d.Ledger = ledger.NewService(d.TxManager, d.Transactions, d.Cards, d.Budgets, d.Audit, d.Logger, ledgerCfg)

	d.CardSvc = card.NewService(d.Cards, d.Logger)
	d.BudgetSvc = budget.NewBudgetService(d.Budgets, d.Audit, d.Logger)
	d.Simulation = simulation.NewService(d.PolicySvc, d.Ledger, d.Audit, d.Logger)

	d.Logger.Info("services initialized")
}

// initAuth sets up bearer token validation for the management API
func (d *Dependencies) initAuth(cfg *config.Config) error {
	if cfg.Auth.JWTSecret == "" {
		if cfg.IsProduction() {
			return errors.New("JWT secret is required in production")
		}
		d.Logger.Warn("JWT secret not configured, management API disabled")
		// Use reject-all validator so protected routes return 401
		d.AuthMiddleware = middleware.NewAuthMiddleware(rejectAllValidator{}, d.Logger)
		return nil
	}

	validator, err := auth.NewValidator(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   30 * time.Second,
	})
	if err != nil {
		return err
	}
	d.TokenValidator = validator
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	return nil
}

// rejectAllValidator rejects all tokens (used when no JWT secret is set)
type rejectAllValidator struct{}

func (rejectAllValidator) ValidateToken(context.Context, string) (*auth.ParsedClaims, error) {
	return nil, auth.ErrInvalidToken
}

// WebhookConfig returns the authorization webhook settings
func (d *Dependencies) WebhookConfig() handlers.WebhookConfig {
	return handlers.WebhookConfig{
		SigningSecret: d.Config.Webhook.SigningSecret,
		Tolerance:     d.Config.Webhook.Tolerance,
		Deadline:      d.Config.Webhook.Deadline,
		MaxBodyBytes:  d.Config.Webhook.MaxBodyBytes,
	}
}

// Start launches the audit workers, the ledger retry workers and the policy
// cache sweeper.
func (d *Dependencies) Start(ctx context.Context) error {
	if d.started {
		return errors.New("dependencies already started")
	}
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}
	if err := d.Ledger.Start(); err != nil {
		_ = d.Audit.Stop(time.Second)
		return fmt.Errorf("failed to start ledger: %w", err)
	}

	bgCtx, cancel := context.WithCancel(ctx)
	d.stopBackground = cancel
	go d.PolicySvc.StartCacheCleanup(bgCtx, cacheCleanupInterval)

	d.started = true
	return nil
}

// Close gracefully shuts down all dependencies. The ledger stops before
// the audit service so corrections it logs are still written.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	var errs []error

	if d.stopBackground != nil {
		d.stopBackground()
	}
	if d.started {
		if err := d.Ledger.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop ledger: %w", err))
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
		d.started = false
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
