package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/repositories"
)

const budgetColumns = `id, org_id, category, amount_cents, period, period_key, spent_cents,
	alert_threshold, last_alert, created_at, updated_at`

// addSpendQuery credits every budget of the org and category in one
// statement. Period keys for each period kind are computed by the caller so
// a budget whose stored key is stale restarts from zero. last_alert is
// stamped only by the update that moves spend across the threshold, and
// those rows are returned.
const addSpendQuery = `
	WITH keys (period, period_key) AS (
		VALUES ('DAILY', $4::text), ('WEEKLY', $5::text), ('MONTHLY', $6::text)
	), updated AS (
		UPDATE budgets b
		SET spent_cents = CASE WHEN b.period_key = k.period_key THEN b.spent_cents ELSE 0 END + $3,
			period_key = k.period_key,
			last_alert = CASE
				WHEN (CASE WHEN b.period_key = k.period_key THEN b.spent_cents ELSE 0 END) * 100 < b.amount_cents * b.alert_threshold
					AND (CASE WHEN b.period_key = k.period_key THEN b.spent_cents ELSE 0 END + $3) * 100 >= b.amount_cents * b.alert_threshold
				THEN $7 ELSE b.last_alert END,
			updated_at = $7
		FROM keys k
		WHERE b.org_id = $1 AND b.category = $2 AND b.period = k.period
		RETURNING b.id, b.period, b.spent_cents, b.amount_cents, b.alert_threshold, b.last_alert
	)
	SELECT id, period, spent_cents, amount_cents, alert_threshold FROM updated WHERE last_alert = $7
`

// BudgetRepository implements the repositories.BudgetRepository interface
type BudgetRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *DB, logger *zap.Logger) repositories.BudgetRepository {
	return &BudgetRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new budget
func (r *BudgetRepository) Create(ctx context.Context, budget *models.Budget) error {
	query := `
		INSERT INTO budgets (` + budgetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := executorFor(r.db, r.tx).ExecContext(ctx, query,
		budget.ID,
		budget.OrgID,
		budget.Category,
		budget.Amount,
		budget.Period,
		budget.PeriodKey,
		budget.Spent,
		budget.AlertThreshold,
		budget.LastAlert,
		budget.CreatedAt,
		budget.UpdatedAt,
	)
	if err != nil {
		return translate(err, "create budget")
	}

	r.logger.Debug("budget created",
		zap.String("id", budget.ID.String()),
		zap.String("category", budget.Category.String()),
	)
	return nil
}

// GetByID retrieves a budget by ID
func (r *BudgetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1`

	budget, err := scanBudget(executorFor(r.db, r.tx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "get budget")
	}
	return budget, nil
}

// ListByOrg retrieves all budgets of an organization, newest first
func (r *BudgetRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE org_id = $1 ORDER BY created_at DESC`

	rows, err := executorFor(r.db, r.tx).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []*models.Budget
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, budget)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}

	return budgets, nil
}

// Update writes amount, period, period key, spend and alert threshold
func (r *BudgetRepository) Update(ctx context.Context, budget *models.Budget) error {
	query := `
		UPDATE budgets
		SET amount_cents = $2, period = $3, period_key = $4, spent_cents = $5,
			alert_threshold = $6, updated_at = $7
		WHERE id = $1
	`

	budget.UpdatedAt = time.Now().UTC()
	result, err := executorFor(r.db, r.tx).ExecContext(ctx, query,
		budget.ID,
		budget.Amount,
		budget.Period,
		budget.PeriodKey,
		budget.Spent,
		budget.AlertThreshold,
		budget.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}

	return requireAffected(result, "update budget")
}

// Delete deletes a budget
func (r *BudgetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := executorFor(r.db, r.tx).ExecContext(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}

	if err := requireAffected(result, "delete budget"); err != nil {
		return err
	}

	r.logger.Debug("budget deleted", zap.String("id", id.String()))
	return nil
}

// AddSpend credits amount to the org's budgets for category, rolling each
// over to the period containing at first. It returns the budgets that
// crossed their alert threshold with this spend.
func (r *BudgetRepository) AddSpend(ctx context.Context, orgID uuid.UUID, category models.BudgetCategory, amount models.Cents, at time.Time) ([]models.BudgetAlert, error) {
	at = at.UTC()
	rows, err := executorFor(r.db, r.tx).QueryContext(ctx, addSpendQuery,
		orgID,
		category,
		amount,
		models.BudgetPeriodDaily.Key(at),
		models.BudgetPeriodWeekly.Key(at),
		models.BudgetPeriodMonthly.Key(at),
		at,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add budget spend: %w", err)
	}
	defer rows.Close()

	var alerts []models.BudgetAlert
	for rows.Next() {
		alert := models.BudgetAlert{OrgID: orgID, Category: category}
		if err := rows.Scan(&alert.BudgetID, &alert.Period, &alert.Spent, &alert.Amount, &alert.AlertThreshold); err != nil {
			return nil, fmt.Errorf("failed to scan budget alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget alerts: %w", err)
	}

	return alerts, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *BudgetRepository) WithTx(tx repositories.Transaction) repositories.BudgetRepository {
	return &BudgetRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}

func scanBudget(s scanner) (*models.Budget, error) {
	budget := &models.Budget{}
	err := s.Scan(
		&budget.ID,
		&budget.OrgID,
		&budget.Category,
		&budget.Amount,
		&budget.Period,
		&budget.PeriodKey,
		&budget.Spent,
		&budget.AlertThreshold,
		&budget.LastAlert,
		&budget.CreatedAt,
		&budget.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return budget, nil
}
