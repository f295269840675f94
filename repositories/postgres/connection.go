package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// WrapDB adapts an existing pool, e.g. one opened by sqlmock in tests.
func WrapDB(db *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

const cardSchema = `
	CREATE TABLE IF NOT EXISTS cards (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		network_card_id VARCHAR(255) NOT NULL UNIQUE,
		nickname VARCHAR(50) NOT NULL,
		last4 CHAR(4) NOT NULL,
		network VARCHAR(20) NOT NULL DEFAULT 'VISA',
		type VARCHAR(20) NOT NULL DEFAULT 'CORPORATE',
		status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
		monthly_limit_cents BIGINT,
		total_spent_cents BIGINT NOT NULL DEFAULT 0,
		last_used_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_cards_org_id ON cards(org_id);
`

const policySchema = `
	CREATE TABLE IF NOT EXISTS policies (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		name VARCHAR(100) NOT NULL,
		expression TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		priority INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_policies_org_order ON policies(org_id, is_active, priority, name);
`

const transactionSchema = `
	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		authorization_id VARCHAR(255) NOT NULL UNIQUE,
		org_id UUID,
		card_id UUID REFERENCES cards(id) ON DELETE SET NULL,
		network_card_id VARCHAR(255) NOT NULL DEFAULT '',
		amount_cents BIGINT NOT NULL,
		merchant VARCHAR(255) NOT NULL,
		category VARCHAR(50) NOT NULL,
		status VARCHAR(20) NOT NULL,
		reason TEXT,
		policy_id UUID,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT declined_has_reason CHECK (status <> 'DECLINED' OR (reason IS NOT NULL AND reason <> ''))
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_org_created ON transactions(org_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_card_id ON transactions(card_id);
`

const budgetSchema = `
	CREATE TABLE IF NOT EXISTS budgets (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		category VARCHAR(50) NOT NULL,
		amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
		period VARCHAR(10) NOT NULL,
		period_key VARCHAR(10) NOT NULL,
		spent_cents BIGINT NOT NULL DEFAULT 0,
		alert_threshold INTEGER NOT NULL DEFAULT 80 CHECK (alert_threshold BETWEEN 0 AND 100),
		last_alert TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (org_id, category)
	);
`

const auditSchema = `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		org_id UUID,
		action VARCHAR(100) NOT NULL,
		resource_type VARCHAR(100) NOT NULL,
		resource_id UUID,
		details JSONB,
		request_id VARCHAR(255),
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		authorization_id VARCHAR(255),
		approved BOOLEAN,
		reason TEXT,
		latency_ms INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_org_id ON audit_logs(org_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_authorization_id ON audit_logs(authorization_id);
`

// InitSchema creates the card, policy, transaction and budget tables. The audit
// table is created too unless withAudit is false (separate audit database).
func (db *DB) InitSchema(ctx context.Context, withAudit bool) error {
	schema := cardSchema + policySchema + transactionSchema + budgetSchema
	if withAudit {
		schema += auditSchema
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// InitAuditSchema initializes the audit database schema.
// Use for the separate audit database when DATABASE_URL_AUDIT is set.
func (db *DB) InitAuditSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	db.logger.Info("audit schema initialized successfully")
	return nil
}
