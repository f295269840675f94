package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	rules "github.com/upb/card-control-plane/internal/policy"
	"github.com/upb/card-control-plane/middleware"
	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/services/policy"
	"github.com/upb/card-control-plane/utils"
)

// maxRequestBytes bounds management API request bodies
const maxRequestBytes = 1 << 20

// CreatePolicyRequest represents a request to create a policy
type CreatePolicyRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Expression string `json:"expression" validate:"required"`
	IsActive   *bool  `json:"is_active,omitempty"`
	Priority   int    `json:"priority" validate:"gte=0"`
}

// UpdatePolicyRequest represents a request to update a policy
type UpdatePolicyRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Expression *string `json:"expression,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
	Priority   *int    `json:"priority,omitempty" validate:"omitempty,gte=0"`
}

// EvaluatePolicyRequest is a sample transaction for a dry run. An empty
// expression evaluates the organization's active policies.
type EvaluatePolicyRequest struct {
	Expression string                `json:"expression"`
	Amount     models.Cents          `json:"amount_cts" validate:"gte=0"`
	Merchant   string                `json:"merchant"`
	Category   models.BudgetCategory `json:"category" validate:"omitempty,budget_category"`
	Time       *time.Time            `json:"time,omitempty"`
	Location   string                `json:"location"`
}

// EvaluatePolicyResponse is the matcher's verdict for a dry run
type EvaluatePolicyResponse struct {
	Approved bool                  `json:"approved"`
	Reason   string                `json:"reason,omitempty"`
	PolicyID *uuid.UUID            `json:"policy_id,omitempty"`
	Skipped  []rules.SkippedPolicy `json:"skipped_policies"`
}

// PolicyService defines the policy operations the handler needs
type PolicyService interface {
	List(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Policy, error)
	Create(ctx context.Context, orgID uuid.UUID, in policy.CreateInput) (*models.Policy, error)
	Update(ctx context.Context, orgID, id uuid.UUID, in policy.UpdateInput) (*models.Policy, error)
	Delete(ctx context.Context, orgID, id uuid.UUID, requestID string) error
	DryRun(ctx context.Context, orgID uuid.UUID, in policy.DryRunInput) (rules.Result, error)
}

// PolicyHandler handles policy-related HTTP requests
type PolicyHandler struct {
	service PolicyService
	logger  *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(service PolicyService, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListPolicies handles GET /api/v1/policies
func (h *PolicyHandler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	policies, err := h.service.List(ctx, orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("listed policies",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.Int("count", len(policies)))

	_ = utils.WriteOK(w, policies)
}

// HandleGetPolicy handles GET /api/v1/policies/{id}
func (h *PolicyHandler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), orgID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, p)
}

// HandleCreatePolicy handles POST /api/v1/policies
func (h *PolicyHandler) HandleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req CreatePolicyRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	p, err := h.service.Create(ctx, orgID, policy.CreateInput{
		Name:       req.Name,
		Expression: req.Expression,
		IsActive:   req.IsActive,
		Priority:   req.Priority,
		RequestID:  requestID,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("policy created",
		zap.String("request_id", requestID),
		zap.String("policy_id", p.ID.String()))

	_ = utils.WriteCreated(w, p)
}

// HandleUpdatePolicy handles PUT /api/v1/policies/{id}
func (h *PolicyHandler) HandleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
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

	var req UpdatePolicyRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	p, err := h.service.Update(ctx, orgID, id, policy.UpdateInput{
		Name:       req.Name,
		Expression: req.Expression,
		IsActive:   req.IsActive,
		Priority:   req.Priority,
		RequestID:  requestID,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("policy updated",
		zap.String("request_id", requestID),
		zap.String("policy_id", p.ID.String()))

	_ = utils.WriteOK(w, p)
}

// HandleDeletePolicy handles DELETE /api/v1/policies/{id}
func (h *PolicyHandler) HandleDeletePolicy(w http.ResponseWriter, r *http.Request) {
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

	h.logger.Info("policy deleted",
		zap.String("request_id", requestID),
		zap.String("policy_id", id.String()))

	utils.WriteNoContent(w)
}

// HandleEvaluatePolicy handles POST /api/v1/policies/evaluate
func (h *PolicyHandler) HandleEvaluatePolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req EvaluatePolicyRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	in := policy.DryRunInput{
		Expression: req.Expression,
		Amount:     req.Amount,
		Merchant:   req.Merchant,
		Category:   req.Category,
		Location:   req.Location,
	}
	if req.Time != nil {
		in.Time = *req.Time
	}

	result, err := h.service.DryRun(r.Context(), orgID, in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	skipped := result.Skipped
	if skipped == nil {
		skipped = []rules.SkippedPolicy{}
	}
	_ = utils.WriteOK(w, EvaluatePolicyResponse{
		Approved: result.Approved,
		Reason:   result.Reason,
		PolicyID: result.PolicyID(),
		Skipped:  skipped,
	})
}

// requireOrg returns the organization of an authenticated request
func requireOrg(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	orgID := middleware.GetOrgIDFromContext(r.Context())
	if orgID == uuid.Nil {
		logger.Error("missing org ID in context",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
		_ = utils.WriteUnauthorized(w, "Missing organization information")
		return uuid.Nil, false
	}
	return orgID, true
}

func pathID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		logger.Debug("invalid path id", zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, false
	}
	return id, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	if err := utils.DecodeJSON(w, r, dst, maxRequestBytes); err != nil {
		logger.Warn("failed to parse request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		logger.Warn("request validation failed",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}
