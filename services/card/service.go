// Package card registers an organization's issued cards and applies
// management updates to them.
package card

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/repositories"
	"github.com/upb/card-control-plane/services"
)

// MaxNicknameLength bounds card nicknames.
const MaxNicknameLength = 50

// RegisterInput describes a card issued by the network
type RegisterInput struct {
	NetworkCardID string
	Nickname      string
	Last4         string
	Network       models.CardNetwork
	Type          models.CardType
	MonthlyLimit  *models.Cents
}

// UpdateInput carries a partial update; nil fields are left unchanged
type UpdateInput struct {
	Nickname     *string
	MonthlyLimit *models.Cents
	Status       *models.CardStatus
}

// Service manages cards
type Service struct {
	cards  repositories.CardRepository
	logger *zap.Logger
}

// NewService creates a card service
func NewService(cards repositories.CardRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cards:  cards,
		logger: logger.With(zap.String("component", "card_service")),
	}
}

// List returns the organization's cards
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]*models.Card, error) {
	cards, err := s.cards.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if cards == nil {
		cards = []*models.Card{}
	}
	return cards, nil
}

// Get returns a card owned by orgID
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Card, error) {
	c, err := s.cards.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrCardNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if !c.BelongsTo(orgID) {
		return nil, services.ErrCardNotFound
	}
	return c, nil
}

// Register stores a new card. A network card id can only be registered once.
func (s *Service) Register(ctx context.Context, orgID uuid.UUID, in RegisterInput) (*models.Card, error) {
	nickname := strings.TrimSpace(in.Nickname)
	if err := validateNickname(nickname); err != nil {
		return nil, err
	}
	networkID := strings.TrimSpace(in.NetworkCardID)
	if networkID == "" {
		return nil, services.ErrInvalidInput.WithDetail("network_card_id", "network_card_id is required")
	}
	if !validLast4(in.Last4) {
		return nil, services.ErrInvalidInput.WithDetail("last4", "last4 must be exactly 4 digits")
	}
	if err := validateLimit(in.MonthlyLimit); err != nil {
		return nil, err
	}

	c := models.NewCard(orgID, networkID, nickname, in.Last4)
	if in.Network != "" {
		c.Network = in.Network
	}
	if in.Type != "" {
		c.Type = in.Type
	}
	c.MonthlyLimit = in.MonthlyLimit

	if err := s.cards.Create(ctx, c); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateCard.WithDetail("network_card_id", networkID)
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("card registered",
		zap.String("org_id", orgID.String()),
		zap.String("card_id", c.ID.String()),
		zap.String("network_card_id", networkID))

	return c, nil
}

// Update applies a partial update to a card owned by orgID
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, in UpdateInput) (*models.Card, error) {
	c, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if in.Nickname != nil {
		nickname := strings.TrimSpace(*in.Nickname)
		if err := validateNickname(nickname); err != nil {
			return nil, err
		}
		c.Nickname = nickname
	}
	if in.MonthlyLimit != nil {
		if err := validateLimit(in.MonthlyLimit); err != nil {
			return nil, err
		}
		c.MonthlyLimit = in.MonthlyLimit
	}
	if in.Status != nil {
		c.Status = *in.Status
	}

	if err := s.cards.Update(ctx, c); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrCardNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	return c, nil
}

func validateNickname(nickname string) error {
	n := utf8.RuneCountInString(nickname)
	if n == 0 || n > MaxNicknameLength {
		return services.ErrInvalidInput.WithDetail("nickname", "nickname must be between 1 and 50 characters")
	}
	return nil
}

func validateLimit(limit *models.Cents) error {
	if limit != nil && *limit <= 0 {
		return services.ErrInvalidInput.WithDetail("monthly_limit_cents", "monthly_limit_cents must be positive")
	}
	return nil
}

func validLast4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
