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

const auditColumns = `id, org_id, action, resource_type, resource_id, details, request_id, timestamp,
	authorization_id, approved, reason, latency_ms`

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	var details []byte
	if len(log.Details) > 0 {
		details = log.Details
	}

	_, err := executorFor(r.db, r.tx).ExecContext(ctx, query,
		log.ID,
		log.OrgID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		details,
		log.RequestID,
		log.Timestamp,
		log.AuthorizationID,
		log.Approved,
		log.Reason,
		log.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// GetByID retrieves an audit log by ID
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE id = $1`

	log, err := scanAuditLog(executorFor(r.db, r.tx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err, "get audit log")
	}
	return log, nil
}

// GetByOrgID retrieves audit logs for an organization with pagination
func (r *AuditRepository) GetByOrgID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE org_id = $1 ORDER BY timestamp DESC LIMIT $2 OFFSET $3`
	return r.queryAuditLogs(ctx, query, orgID, limit, offset)
}

// GetByAuthorizationID retrieves decision logs for an authorization
func (r *AuditRepository) GetByAuthorizationID(ctx context.Context, authorizationID string) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE authorization_id = $1 ORDER BY timestamp ASC`
	return r.queryAuditLogs(ctx, query, authorizationID)
}

// AsyncInsert inserts an audit log entry on its own goroutine with a
// bounded timeout. Failures are logged only.
func (r *AuditRepository) AsyncInsert(log *models.AuditLog) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.Insert(ctx, log); err != nil {
			r.logger.Error("failed to async insert audit log",
				zap.Error(err),
				zap.String("id", log.ID.String()),
				zap.String("action", string(log.Action)),
			)
		}
	}()
}

// WithTx returns a new repository instance bound to the transaction
func (r *AuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	return &AuditRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}

func (r *AuditRepository) queryAuditLogs(ctx context.Context, query string, args ...interface{}) ([]*models.AuditLog, error) {
	rows, err := executorFor(r.db, r.tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return logs, nil
}

func scanAuditLog(s scanner) (*models.AuditLog, error) {
	log := &models.AuditLog{}
	var details []byte
	var requestID *string
	err := s.Scan(
		&log.ID,
		&log.OrgID,
		&log.Action,
		&log.ResourceType,
		&log.ResourceID,
		&details,
		&requestID,
		&log.Timestamp,
		&log.AuthorizationID,
		&log.Approved,
		&log.Reason,
		&log.LatencyMs,
	)
	if err != nil {
		return nil, err
	}
	log.Details = details
	if requestID != nil {
		log.RequestID = *requestID
	}
	return log, nil
}
