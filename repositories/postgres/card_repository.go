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

const cardColumns = `id, org_id, network_card_id, nickname, last4, network, type, status,
	monthly_limit_cents, total_spent_cents, last_used_at, created_at, updated_at`

// CardRepository implements the repositories.CardRepository interface
type CardRepository struct {
	db     *DB
	tx     repositories.Transaction
	logger *zap.Logger
}

// NewCardRepository creates a new card repository
func NewCardRepository(db *DB, logger *zap.Logger) repositories.CardRepository {
	return &CardRepository{
		db:     db,
		logger: logger,
	}
}

// Create registers a new card
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := executorFor(r.db, r.tx).ExecContext(ctx, query,
		card.ID,
		card.OrgID,
		card.NetworkCardID,
		card.Nickname,
		card.Last4,
		card.Network,
		card.Type,
		card.Status,
		card.MonthlyLimit,
		card.TotalSpent,
		card.LastUsedAt,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		return translate(err, "create card")
	}

	r.logger.Debug("card created", zap.String("id", card.ID.String()))
	return nil
}

// GetByID retrieves a card by ID
func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	return r.queryCard(ctx, query, id)
}

// GetByNetworkID retrieves a card by its network-assigned id
func (r *CardRepository) GetByNetworkID(ctx context.Context, networkCardID string) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE network_card_id = $1`
	return r.queryCard(ctx, query, networkCardID)
}

// ListByOrg retrieves all cards of an organization
func (r *CardRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE org_id = $1 ORDER BY created_at DESC`

	rows, err := executorFor(r.db, r.tx).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}

	return cards, nil
}

// Update updates nickname, status and monthly limit
func (r *CardRepository) Update(ctx context.Context, card *models.Card) error {
	query := `
		UPDATE cards
		SET nickname = $2, status = $3, monthly_limit_cents = $4, updated_at = $5
		WHERE id = $1
	`

	card.UpdatedAt = time.Now()
	result, err := executorFor(r.db, r.tx).ExecContext(ctx, query,
		card.ID,
		card.Nickname,
		card.Status,
		card.MonthlyLimit,
		card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}

	return requireAffected(result, "update card")
}

// IncrementSpend adds amount to total_spent_cents in a single statement so
// concurrent approvals on the same card never lose an update.
func (r *CardRepository) IncrementSpend(ctx context.Context, cardID uuid.UUID, amount models.Cents, usedAt time.Time) error {
	query := `
		UPDATE cards
		SET total_spent_cents = total_spent_cents + $2, last_used_at = $3, updated_at = $3
		WHERE id = $1
	`

	result, err := executorFor(r.db, r.tx).ExecContext(ctx, query, cardID, amount, usedAt)
	if err != nil {
		return fmt.Errorf("failed to increment card spend: %w", err)
	}

	return requireAffected(result, "increment card spend")
}

// WithTx returns a new repository instance bound to the transaction
func (r *CardRepository) WithTx(tx repositories.Transaction) repositories.CardRepository {
	return &CardRepository{
		db:     r.db,
		tx:     tx,
		logger: r.logger,
	}
}

func (r *CardRepository) queryCard(ctx context.Context, query string, arg interface{}) (*models.Card, error) {
	card, err := scanCard(executorFor(r.db, r.tx).QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, translate(err, "get card")
	}
	return card, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(s scanner) (*models.Card, error) {
	card := &models.Card{}
	err := s.Scan(
		&card.ID,
		&card.OrgID,
		&card.NetworkCardID,
		&card.Nickname,
		&card.Last4,
		&card.Network,
		&card.Type,
		&card.Status,
		&card.MonthlyLimit,
		&card.TotalSpent,
		&card.LastUsedAt,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return card, nil
}
