package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/middleware"
	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/utils"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// CorrectTransactionRequest overrides the recorded status of a transaction
type CorrectTransactionRequest struct {
	Status models.TxnStatus `json:"status" validate:"required,txn_status"`
	Reason string           `json:"reason"`
}

// ListTransactionsResponse is one page of transactions
type ListTransactionsResponse struct {
	Data   []*models.Transaction `json:"data"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// CategorySpendResponse is approved spend for one budget category
type CategorySpendResponse struct {
	Category   models.BudgetCategory `json:"category"`
	TotalCents models.Cents          `json:"total_cents"`
	Total      string                `json:"total"`
	Count      int                   `json:"count"`
}

// SpendSummaryResponse is approved spend per budget category
type SpendSummaryResponse struct {
	Categories []CategorySpendResponse `json:"categories"`
	TotalCents models.Cents            `json:"total_cents"`
	Total      string                  `json:"total"`
}

// TransactionService defines the ledger operations the handler needs
type TransactionService interface {
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error)
	Correct(ctx context.Context, orgID, id uuid.UUID, status models.TxnStatus, reason, requestID string) (*models.Transaction, error)
	Summary(ctx context.Context, orgID uuid.UUID, start, end *time.Time) ([]models.CategorySpend, error)
}

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	service TransactionService
	logger  *zap.Logger
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(service TransactionService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListTransactions handles GET /api/v1/transactions
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	filter, details := parseTransactionFilter(r.URL.Query())
	if len(details) > 0 {
		_ = utils.WriteBadRequest(w, "Invalid query parameters", details)
		return
	}
	filter.OrgID = orgID

	txns, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, ListTransactionsResponse{
		Data:   txns,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// HandleCorrectTransaction handles PATCH /api/v1/transactions/{id}
func (h *TransactionHandler) HandleCorrectTransaction(w http.ResponseWriter, r *http.Request) {
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

	var req CorrectTransactionRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	txn, err := h.service.Correct(ctx, orgID, id, req.Status, req.Reason, requestID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("transaction corrected",
		zap.String("request_id", requestID),
		zap.String("transaction_id", id.String()),
		zap.String("status", string(txn.Status)))

	_ = utils.WriteOK(w, txn)
}

// HandleSpendSummary handles GET /api/v1/transactions/summary
func (h *TransactionHandler) HandleSpendSummary(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	details := map[string]interface{}{}
	start := parseTime(r.URL.Query(), "start_date", details)
	end := parseTime(r.URL.Query(), "end_date", details)
	if len(details) > 0 {
		_ = utils.WriteBadRequest(w, "Invalid query parameters", details)
		return
	}

	spend, err := h.service.Summary(r.Context(), orgID, start, end)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	resp := SpendSummaryResponse{Categories: make([]CategorySpendResponse, 0, len(spend))}
	for _, s := range spend {
		resp.Categories = append(resp.Categories, CategorySpendResponse{
			Category:   s.Category,
			TotalCents: s.Total,
			Total:      s.Total.String(),
			Count:      s.Count,
		})
		resp.TotalCents += s.Total
	}
	resp.Total = resp.TotalCents.String()

	_ = utils.WriteOK(w, resp)
}

// parseTransactionFilter reads list filters; details maps each invalid
// parameter to its problem.
func parseTransactionFilter(q url.Values) (models.TransactionFilter, map[string]interface{}) {
	details := map[string]interface{}{}
	filter := models.TransactionFilter{
		Limit:     defaultPageLimit,
		StartDate: parseTime(q, "start_date", details),
		EndDate:   parseTime(q, "end_date", details),
	}

	if v := q.Get("status"); v != "" {
		filter.Status = models.TxnStatus(v)
		if !filter.Status.IsValid() {
			details["status"] = "must be PENDING, APPROVED or DECLINED"
		}
	}
	if v := q.Get("category"); v != "" {
		filter.Category = models.BudgetCategory(v)
		if !filter.Category.IsValid() {
			details["category"] = "must be a budget category"
		}
	}
	if v := q.Get("card_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			details["card_id"] = "must be a valid UUID"
		} else {
			filter.CardID = &id
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageLimit {
			details["limit"] = "must be between 1 and 100"
		} else {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			details["offset"] = "must be zero or greater"
		} else {
			filter.Offset = n
		}
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		details["end_date"] = "must not be before start_date"
	}

	return filter, details
}

func parseTime(q url.Values, key string, details map[string]interface{}) *time.Time {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		details[key] = "must be an RFC3339 timestamp"
		return nil
	}
	return &t
}
