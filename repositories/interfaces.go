package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/upb/card-control-plane/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// CardRepository handles card data operations
type CardRepository interface {
	// Create registers a new card
	Create(ctx context.Context, card *models.Card) error

	// GetByID retrieves a card by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Card, error)

	// GetByNetworkID retrieves a card by its network-assigned id
	GetByNetworkID(ctx context.Context, networkCardID string) (*models.Card, error)

	// ListByOrg retrieves all cards of an organization
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Card, error)

	// Update updates nickname, status and monthly limit
	Update(ctx context.Context, card *models.Card) error

	// IncrementSpend atomically adds amount to the card's total spend and
	// stamps last use
	IncrementSpend(ctx context.Context, cardID uuid.UUID, amount models.Cents, usedAt time.Time) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) CardRepository
}

// PolicyRepository handles policy data operations
type PolicyRepository interface {
	// Create creates a new policy
	Create(ctx context.Context, policy *models.Policy) error

	// GetByID retrieves a policy by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error)

	// ListByOrg retrieves all policies of an organization in evaluation order
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error)

	// ListActiveByOrg retrieves active policies in evaluation order
	// (priority, then name)
	ListActiveByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error)

	// Update updates a policy
	Update(ctx context.Context, policy *models.Policy) error

	// Delete deletes a policy
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) PolicyRepository
}

// TransactionRepository handles card transaction records
type TransactionRepository interface {
	// CreateIfAbsent inserts the record unless one already exists for its
	// authorization id. It reports whether a row was created.
	CreateIfAbsent(ctx context.Context, txn *models.Transaction) (bool, error)

	// GetByID retrieves a transaction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)

	// GetByAuthorizationID retrieves a transaction by network authorization id
	GetByAuthorizationID(ctx context.Context, authorizationID string) (*models.Transaction, error)

	// List retrieves transactions matching filter, newest first, with the
	// total number of matches
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error)

	// UpdateStatus corrects the status and reason of a transaction
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TxnStatus, reason *string) error

	// SpendByCategory sums approved spend per category for an organization
	SpendByCategory(ctx context.Context, orgID uuid.UUID, start, end *time.Time) ([]models.CategorySpend, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) TransactionRepository
}

// BudgetRepository handles org x category spend budgets
type BudgetRepository interface {
	// Create creates a new budget. A second budget for the same org and
	// category fails with ErrDuplicate.
	Create(ctx context.Context, budget *models.Budget) error

	// GetByID retrieves a budget by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Budget, error)

	// ListByOrg retrieves all budgets of an organization, newest first
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Budget, error)

	// Update writes amount, period, spend and alert threshold
	Update(ctx context.Context, budget *models.Budget) error

	// Delete deletes a budget
	Delete(ctx context.Context, id uuid.UUID) error

	// AddSpend credits an approved amount to the matching budgets and
	// returns those that crossed their alert threshold
	AddSpend(ctx context.Context, orgID uuid.UUID, category models.BudgetCategory, amount models.Cents, at time.Time) ([]models.BudgetAlert, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) BudgetRepository
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByID retrieves an audit log by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)

	// GetByOrgID retrieves audit logs for an organization with pagination
	GetByOrgID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)

	// GetByAuthorizationID retrieves decision logs for an authorization
	GetByAuthorizationID(ctx context.Context, authorizationID string) ([]*models.AuditLog, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) AuditRepository
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Cards        CardRepository
	Policies     PolicyRepository
	Transactions TransactionRepository
	Budgets      BudgetRepository
	AuditLogs    AuditRepository
}
