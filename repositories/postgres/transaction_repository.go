package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/repositories"
)

const transactionColumns = `id, authorization_id, org_id, card_id, network_card_id, amount_cents,
	merchant, category, status, reason, policy_id, description, created_at, updated_at`

// TransactionRepository implements the repositories.TransactionRepository interface
type TransactionRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB, logger *zap.Logger) repositories.TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateIfAbsent inserts the record unless the authorization id is already
// recorded. The unique index on authorization_id is the idempotency
// boundary for replayed webhooks.
func (r *TransactionRepository) CreateIfAbsent(ctx context.Context, txn *models.Transaction) (bool, error) {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (authorization_id) DO NOTHING
	`

	result, err := executorFor(r.db, r.tx).ExecContext(ctx, query,
		txn.ID,
		txn.AuthorizationID,
		txn.OrgID,
		txn.CardID,
		txn.NetworkCardID,
		txn.Amount,
		txn.Merchant,
		txn.Category,
		txn.Status,
		txn.Reason,
		txn.PolicyID,
		txn.Description,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create transaction: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create transaction: %w", err)
	}

	if n == 0 {
		r.logger.Debug("transaction already recorded",
			zap.String("authorization_id", txn.AuthorizationID))
		return false, nil
	}
	return true, nil
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	txn, err := scanTransaction(executorFor(r.db, r.tx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "get transaction")
	}
	return txn, nil
}

// GetByAuthorizationID retrieves a transaction by network authorization id
func (r *TransactionRepository) GetByAuthorizationID(ctx context.Context, authorizationID string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE authorization_id = $1`
	txn, err := scanTransaction(executorFor(r.db, r.tx).QueryRowContext(ctx, query, authorizationID))
	if err != nil {
		return nil, translate(err, "get transaction")
	}
	return txn, nil
}

// List retrieves transactions matching filter, newest first
func (r *TransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error) {
	where, args := transactionWhere(filter)
	executor := executorFor(r.db, r.tx)

	var total int
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)+1, len(args)+2)
	rows, err := executor.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, total, nil
}

// UpdateStatus corrects the status and reason of a transaction
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TxnStatus, reason *string) error {
	query := `UPDATE transactions SET status = $2, reason = $3, updated_at = $4 WHERE id = $1`

	result, err := executorFor(r.db, r.tx).ExecContext(ctx, query, id, status, reason, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	return requireAffected(result, "update transaction status")
}

// SpendByCategory sums approved spend per category for an organization
func (r *TransactionRepository) SpendByCategory(ctx context.Context, orgID uuid.UUID, start, end *time.Time) ([]models.CategorySpend, error) {
	where, args := transactionWhere(models.TransactionFilter{
		OrgID:     orgID,
		StartDate: start,
		EndDate:   end,
		Status:    models.TxnStatusApproved,
	})
	query := `SELECT category, COALESCE(SUM(amount_cents), 0), COUNT(*) FROM transactions ` + where +
		` GROUP BY category ORDER BY category`

	rows, err := executorFor(r.db, r.tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query spend by category: %w", err)
	}
	defer rows.Close()

	var spend []models.CategorySpend
	for rows.Next() {
		var s models.CategorySpend
		if err := rows.Scan(&s.Category, &s.Total, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan spend: %w", err)
		}
		spend = append(spend, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spend: %w", err)
	}

	return spend, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *TransactionRepository) WithTx(tx repositories.Transaction) repositories.TransactionRepository {
	return &TransactionRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}

func transactionWhere(filter models.TransactionFilter) (string, []interface{}) {
	conds := []string{"org_id = $1"}
	args := []interface{}{filter.OrgID}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.StartDate != nil {
		add("created_at >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("created_at <= $%d", *filter.EndDate)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.CardID != nil {
		add("card_id = $%d", *filter.CardID)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanTransaction(s scanner) (*models.Transaction, error) {
	txn := &models.Transaction{}
	err := s.Scan(
		&txn.ID,
		&txn.AuthorizationID,
		&txn.OrgID,
		&txn.CardID,
		&txn.NetworkCardID,
		&txn.Amount,
		&txn.Merchant,
		&txn.Category,
		&txn.Status,
		&txn.Reason,
		&txn.PolicyID,
		&txn.Description,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return txn, nil
}
