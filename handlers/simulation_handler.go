package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/middleware"
	"github.com/upb/card-control-plane/services/simulation"
	"github.com/upb/card-control-plane/utils"
)

// SimulationRequest selects the sample data to generate. Unknown
// industries get the base samples only.
type SimulationRequest struct {
	Industry   string `json:"industry" validate:"max=50"`
	UpdateOnly bool   `json:"update_only"`
}

// Simulator generates sample policies and transactions
type Simulator interface {
	Run(ctx context.Context, orgID uuid.UUID, in simulation.Input) (*simulation.Result, error)
}

// SimulationHandler handles simulation requests
type SimulationHandler struct {
	simulator Simulator
	logger    *zap.Logger
}

// NewSimulationHandler creates a new SimulationHandler
func NewSimulationHandler(simulator Simulator, logger *zap.Logger) *SimulationHandler {
	return &SimulationHandler{
		simulator: simulator,
		logger:    logger,
	}
}

// HandleSimulate handles POST /api/v1/simulation
func (h *SimulationHandler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req SimulationRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	result, err := h.simulator.Run(ctx, orgID, simulation.Input{
		Industry:   req.Industry,
		UpdateOnly: req.UpdateOnly,
		RequestID:  requestID,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("simulation completed",
		zap.String("request_id", requestID),
		zap.String("industry", req.Industry),
		zap.Int("policies", len(result.Policies)),
		zap.Int("transactions", len(result.Transactions)))

	_ = utils.WriteCreated(w, result)
}
