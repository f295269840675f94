package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/middleware"
	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/services/budget"
	"github.com/upb/card-control-plane/utils"
)

// CreateBudgetRequest represents a request to create a category budget
type CreateBudgetRequest struct {
	Category       models.BudgetCategory `json:"category" validate:"required,budget_category"`
	Amount         models.Cents          `json:"amount_cents" validate:"required,gt=0"`
	Period         models.BudgetPeriod   `json:"period" validate:"required,budget_period"`
	AlertThreshold *int                  `json:"alert_threshold,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// UpdateBudgetRequest represents a partial budget update
type UpdateBudgetRequest struct {
	Amount         *models.Cents        `json:"amount_cents,omitempty" validate:"omitempty,gt=0"`
	Period         *models.BudgetPeriod `json:"period,omitempty" validate:"omitempty,budget_period"`
	AlertThreshold *int                 `json:"alert_threshold,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// CheckBudgetRequest asks whether a spend would fit the category budget
type CheckBudgetRequest struct {
	Category models.BudgetCategory `json:"category" validate:"required,budget_category"`
	Amount   models.Cents          `json:"amount_cents" validate:"required,gt=0"`
}

// BudgetResponse is a budget with amounts rendered in dollars
type BudgetResponse struct {
	budget.Status
	AmountDisplay    string `json:"amount"`
	SpentDisplay     string `json:"spent"`
	RemainingDisplay string `json:"remaining"`
}

// BudgetService defines the budget operations the handler needs
type BudgetService interface {
	List(ctx context.Context, orgID uuid.UUID) ([]budget.Status, error)
	Create(ctx context.Context, orgID uuid.UUID, in budget.CreateInput, requestID string) (*budget.Status, error)
	Update(ctx context.Context, orgID, id uuid.UUID, in budget.UpdateInput, requestID string) (*budget.Status, error)
	Delete(ctx context.Context, orgID, id uuid.UUID, requestID string) error
	Check(ctx context.Context, orgID uuid.UUID, category models.BudgetCategory, amount models.Cents) (*budget.CheckResult, error)
}

// BudgetHandler handles budget-related HTTP requests
type BudgetHandler struct {
	service BudgetService
	logger  *zap.Logger
}

// NewBudgetHandler creates a new BudgetHandler
func NewBudgetHandler(service BudgetService, logger *zap.Logger) *BudgetHandler {
	return &BudgetHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListBudgets handles GET /api/v1/budgets
func (h *BudgetHandler) HandleListBudgets(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	budgets, err := h.service.List(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	responses := make([]BudgetResponse, len(budgets))
	for i, b := range budgets {
		responses[i] = budgetToResponse(b)
	}
	_ = utils.WriteOK(w, responses)
}

// HandleCreateBudget handles POST /api/v1/budgets
func (h *BudgetHandler) HandleCreateBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateBudgetRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	b, err := h.service.Create(ctx, orgID, budget.CreateInput{
		Category:       req.Category,
		Amount:         req.Amount,
		Period:         req.Period,
		AlertThreshold: req.AlertThreshold,
	}, requestID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("budget created",
		zap.String("request_id", requestID),
		zap.String("budget_id", b.ID.String()))

	_ = utils.WriteCreated(w, budgetToResponse(*b))
}

// HandleUpdateBudget handles PATCH /api/v1/budgets/{id}
func (h *BudgetHandler) HandleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateBudgetRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	b, err := h.service.Update(ctx, orgID, id, budget.UpdateInput{
		Amount:         req.Amount,
		Period:         req.Period,
		AlertThreshold: req.AlertThreshold,
	}, middleware.GetRequestIDFromContext(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, budgetToResponse(*b))
}

// HandleDeleteBudget handles DELETE /api/v1/budgets/{id}
func (h *BudgetHandler) HandleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, orgID, id, requestID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("budget deleted",
		zap.String("request_id", requestID),
		zap.String("budget_id", id.String()))

	utils.WriteNoContent(w)
}

// HandleCheckBudget handles POST /api/v1/budgets/check
func (h *BudgetHandler) HandleCheckBudget(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req CheckBudgetRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	result, err := h.service.Check(r.Context(), orgID, req.Category, req.Amount)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

func budgetToResponse(b budget.Status) BudgetResponse {
	return BudgetResponse{
		Status:           b,
		AmountDisplay:    b.Amount.String(),
		SpentDisplay:     b.Spent.String(),
		RemainingDisplay: b.Remaining.String(),
	}
}
