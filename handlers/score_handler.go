package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/middleware"
	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/services"
	"github.com/upb/card-control-plane/services/scoring"
	"github.com/upb/card-control-plane/utils"
)

// ScoreRequest asks for a decision on one authorization
type ScoreRequest struct {
	ID       string       `json:"id" validate:"required"`
	OrgID    string       `json:"org_id" validate:"required,uuid"`
	Merchant string       `json:"merchant"`
	Amount   models.Cents `json:"amount_cts" validate:"gt=0"`
	Category string       `json:"category"`
}

// ScoreResponse is the decision. Reason is only set when declined.
type ScoreResponse struct {
	Approve bool             `json:"approve"`
	Reason  string           `json:"reason,omitempty"`
	Policy  *TriggeredPolicy `json:"policy,omitempty"`
}

// TriggeredPolicy identifies the policy that declined an authorization
type TriggeredPolicy struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
}

// ScoreHandler exposes the decision engine to the management API
type ScoreHandler struct {
	scorer Scorer
	logger *zap.Logger
}

// NewScoreHandler creates a new ScoreHandler
func NewScoreHandler(scorer Scorer, logger *zap.Logger) *ScoreHandler {
	return &ScoreHandler{
		scorer: scorer,
		logger: logger,
	}
}

// HandleScore handles POST /api/v1/score. Nothing is recorded as a
// transaction; the engine's decision log still applies.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req ScoreRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}
	if requested, err := uuid.Parse(req.OrgID); err != nil || requested != orgID {
		_ = utils.WriteForbidden(w, "org_id does not match the authenticated organization")
		return
	}

	decision, err := h.scorer.Score(ctx, scoring.Request{
		AuthorizationID: "score_" + uuid.NewString(),
		NetworkCardID:   req.ID,
		OrgID:           req.OrgID,
		Merchant:        req.Merchant,
		AmountCents:     req.Amount,
		CategoryCode:    req.Category,
		RequestID:       middleware.GetRequestIDFromContext(ctx),
	})
	if decision == nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	resp := ScoreResponse{Approve: decision.Approve, Reason: decision.Reason}
	if decision.Policy != nil {
		resp.Policy = &TriggeredPolicy{
			ID:         decision.Policy.ID,
			Name:       decision.Policy.Name,
			Expression: decision.Policy.Expression,
		}
	}

	status := http.StatusOK
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		status = statusFor(err)
	}
	_ = utils.WriteJSON(w, status, resp)
}
