package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/card-control-plane/config"
	"github.com/upb/card-control-plane/repositories"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db      *DB
	auditDB *DB // separate audit database, nil when audit shares db
	logger  *zap.Logger
}

// NewRepositoryFactory opens the primary pool and, when configured, the
// audit pool.
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	f := &RepositoryFactory{db: db, logger: logger}

	if cfg.AuditDatabase != nil {
		auditDB, err := NewDB(*cfg.AuditDatabase, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		f.auditDB = auditDB
	}

	return f, nil
}

// NewRepositoryFactoryFromDB builds a factory over an existing pool.
func NewRepositoryFactoryFromDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}

// InitSchema creates every table, routing audit_logs to the audit
// database when one is configured.
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	if err := f.db.InitSchema(ctx, f.auditDB == nil); err != nil {
		return err
	}
	if f.auditDB != nil {
		return f.auditDB.InitAuditSchema(ctx)
	}
	return nil
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Cards:        NewCardRepository(f.db, f.logger),
		Policies:     NewPolicyRepository(f.db, f.logger),
		Transactions: NewTransactionRepository(f.db, f.logger),
		Budgets:      NewBudgetRepository(f.db, f.logger),
		AuditLogs:    NewAuditRepository(f.AuditDB(), f.logger),
	}
}

// GetTransactionManager returns a transaction manager
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// AuditDB returns the pool audit logs are written to.
func (f *RepositoryFactory) AuditDB() *DB {
	if f.auditDB != nil {
		return f.auditDB
	}
	return f.db
}

// Close closes the database connection(s)
func (f *RepositoryFactory) Close() error {
	if f.auditDB != nil {
		_ = f.auditDB.Close()
	}
	return f.db.Close()
}
