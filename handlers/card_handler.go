package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/middleware"
	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/services/card"
	"github.com/upb/card-control-plane/utils"
)

// RegisterCardRequest represents a request to register an issued card
type RegisterCardRequest struct {
	NetworkCardID string             `json:"network_card_id" validate:"required"`
	Nickname      string             `json:"nickname" validate:"required,max=50"`
	Last4         string             `json:"last4" validate:"required,len=4,numeric"`
	Network       models.CardNetwork `json:"network" validate:"omitempty,card_network"`
	Type          models.CardType    `json:"type" validate:"omitempty,card_type"`
	MonthlyLimit  *models.Cents      `json:"monthly_limit_cents,omitempty" validate:"omitempty,gt=0"`
}

// UpdateCardRequest represents a partial card update
type UpdateCardRequest struct {
	Nickname     *string            `json:"nickname,omitempty" validate:"omitempty,min=1,max=50"`
	MonthlyLimit *models.Cents      `json:"monthly_limit_cents,omitempty" validate:"omitempty,gt=0"`
	Status       *models.CardStatus `json:"status,omitempty" validate:"omitempty,card_status"`
}

// CardResponse is a card with its spend rendered in dollars
type CardResponse struct {
	*models.Card
	TotalSpent   string  `json:"total_spent"`
	MonthlyLimit *string `json:"monthly_limit,omitempty"`
}

// CardService defines the card operations the handler needs
type CardService interface {
	List(ctx context.Context, orgID uuid.UUID) ([]*models.Card, error)
	Register(ctx context.Context, orgID uuid.UUID, in card.RegisterInput) (*models.Card, error)
	Update(ctx context.Context, orgID, id uuid.UUID, in card.UpdateInput) (*models.Card, error)
}

// CardHandler handles card-related HTTP requests
type CardHandler struct {
	service CardService
	logger  *zap.Logger
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(service CardService, logger *zap.Logger) *CardHandler {
	return &CardHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListCards handles GET /api/v1/cards
func (h *CardHandler) HandleListCards(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	cards, err := h.service.List(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	responses := make([]CardResponse, len(cards))
	for i, c := range cards {
		responses[i] = cardToResponse(c)
	}
	_ = utils.WriteOK(w, responses)
}

// HandleRegisterCard handles POST /api/v1/cards
func (h *CardHandler) HandleRegisterCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req RegisterCardRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	c, err := h.service.Register(ctx, orgID, card.RegisterInput{
		NetworkCardID: req.NetworkCardID,
		Nickname:      req.Nickname,
		Last4:         req.Last4,
		Network:       req.Network,
		Type:          req.Type,
		MonthlyLimit:  req.MonthlyLimit,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("card registered",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("card_id", c.ID.String()))

	_ = utils.WriteCreated(w, cardToResponse(c))
}

// HandleUpdateCard handles PATCH /api/v1/cards/{id}
func (h *CardHandler) HandleUpdateCard(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateCardRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	c, err := h.service.Update(r.Context(), orgID, id, card.UpdateInput{
		Nickname:     req.Nickname,
		MonthlyLimit: req.MonthlyLimit,
		Status:       req.Status,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, cardToResponse(c))
}

func cardToResponse(c *models.Card) CardResponse {
	resp := CardResponse{
		Card:       c,
		TotalSpent: c.TotalSpent.String(),
	}
	if c.MonthlyLimit != nil {
		limit := c.MonthlyLimit.String()
		resp.MonthlyLimit = &limit
	}
	return resp
}
