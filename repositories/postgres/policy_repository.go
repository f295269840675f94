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

const policyColumns = `id, org_id, name, expression, is_active, priority, created_at, updated_at`

// policyOrder is the evaluation order contract: explicit priority first,
// then name. With every priority at its default this is plain name order.
const policyOrder = `ORDER BY priority ASC, name ASC`

// PolicyRepository implements the repositories.PolicyRepository interface
type PolicyRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB, logger *zap.Logger) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new policy
func (r *PolicyRepository) Create(ctx context.Context, policy *models.Policy) error {
	query := `
		INSERT INTO policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := executorFor(r.db, r.tx).ExecContext(ctx, query,
		policy.ID,
		policy.OrgID,
		policy.Name,
		policy.Expression,
		policy.IsActive,
		policy.Priority,
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return translate(err, "create policy")
	}

	r.logger.Debug("policy created", zap.String("id", policy.ID.String()))
	return nil
}

// GetByID retrieves a policy by ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`

	policy := &models.Policy{}
	err := executorFor(r.db, r.tx).QueryRowContext(ctx, query, id).Scan(
		&policy.ID,
		&policy.OrgID,
		&policy.Name,
		&policy.Expression,
		&policy.IsActive,
		&policy.Priority,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err, "get policy")
	}

	return policy, nil
}

// ListByOrg retrieves all policies of an organization in evaluation order
func (r *PolicyRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE org_id = $1 ` + policyOrder
	return r.queryPolicies(ctx, query, orgID)
}

// ListActiveByOrg retrieves active policies in evaluation order
func (r *PolicyRepository) ListActiveByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE org_id = $1 AND is_active = true ` + policyOrder
	return r.queryPolicies(ctx, query, orgID)
}

// Update updates a policy
func (r *PolicyRepository) Update(ctx context.Context, policy *models.Policy) error {
	query := `
		UPDATE policies
		SET name = $2, expression = $3, is_active = $4, priority = $5, updated_at = $6
		WHERE id = $1
	`

	policy.UpdatedAt = time.Now()
	result, err := executorFor(r.db, r.tx).ExecContext(ctx, query,
		policy.ID,
		policy.Name,
		policy.Expression,
		policy.IsActive,
		policy.Priority,
		policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	if err := requireAffected(result, "update policy"); err != nil {
		return err
	}

	r.logger.Debug("policy updated", zap.String("id", policy.ID.String()))
	return nil
}

// Delete deletes a policy
func (r *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := executorFor(r.db, r.tx).ExecContext(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	if err := requireAffected(result, "delete policy"); err != nil {
		return err
	}

	r.logger.Debug("policy deleted", zap.String("id", id.String()))
	return nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *PolicyRepository) WithTx(tx repositories.Transaction) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}

// queryPolicies is a helper method to query multiple policies
func (r *PolicyRepository) queryPolicies(ctx context.Context, query string, args ...interface{}) ([]*models.Policy, error) {
	rows, err := executorFor(r.db, r.tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.Policy
	for rows.Next() {
		policy := &models.Policy{}
		err := rows.Scan(
			&policy.ID,
			&policy.OrgID,
			&policy.Name,
			&policy.Expression,
			&policy.IsActive,
			&policy.Priority,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}

	return policies, nil
}
