package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/card-control-plane/services/audit"
	"github.com/upb/card-control-plane/services/ledger"
	"github.com/upb/card-control-plane/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Audit     *audit.Stats      `json:"audit,omitempty"`
	Ledger    *ledger.Stats     `json:"ledger,omitempty"`
}

// AuditStats reports the audit pipeline state
type AuditStats interface {
	GetStats() audit.Stats
}

// LedgerStats reports the transaction retry queue state
type LedgerStats interface {
	Stats() ledger.Stats
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     *sql.DB
	audit  AuditStats
	ledger LedgerStats
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Any dependency may be nil.
func NewHealthHandler(db *sql.DB, audit AuditStats, ledger LedgerStats, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		audit:  audit,
		ledger: ledger,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only; returns 200 while the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - validates the database and reports pipeline stats
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	response := HealthResponse{Checks: checks}

	if h.audit != nil {
		stats := h.audit.GetStats()
		response.Audit = &stats
		if stats.Started {
			checks["audit"] = "healthy"
		} else {
			checks["audit"] = "stopped"
			allHealthy = false
		}
	}

	if h.ledger != nil {
		stats := h.ledger.Stats()
		response.Ledger = &stats
		// A full retry queue means new persistence failures are lost
		if stats.Buffer > 0 && stats.Pending >= stats.Buffer {
			checks["ledger"] = "saturated"
			allHealthy = false
		} else {
			checks["ledger"] = "healthy"
		}
	}

	response.Status = "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		response.Status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil // No database configured
	}

	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
