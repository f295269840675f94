package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/internal/mcc"
	"github.com/upb/card-control-plane/internal/observability"
	"github.com/upb/card-control-plane/middleware"
	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/services"
	"github.com/upb/card-control-plane/services/scoring"
	"github.com/upb/card-control-plane/utils"
)

const (
	// EventAuthorizationRequest is the only event type that gets a decision
	EventAuthorizationRequest = "issuing_authorization.request"

	// SignatureHeader carries the webhook signature
	SignatureHeader = "Stripe-Signature"

	// FallbackDeclineReason is returned when no decision could be made in time
	FallbackDeclineReason = "Authorization could not be completed"

	// UnknownMerchant names merchants the network did not identify
	UnknownMerchant = "Unknown Merchant"
)

// Scorer decides authorizations. *scoring.Service satisfies it.
type Scorer interface {
	Score(ctx context.Context, req scoring.Request) (*scoring.Decision, error)
}

// TransactionRecorder persists decided authorizations without blocking on
// store outages. *ledger.Service satisfies it.
type TransactionRecorder interface {
	RecordOrEnqueue(ctx context.Context, txn *models.Transaction) error

	// Previous returns the recorded outcome of an authorization id, or nil
	// when it has not been decided before.
	Previous(ctx context.Context, authorizationID string) (*models.Transaction, error)
}

// WebhookConfig configures signature checks and the decision deadline
type WebhookConfig struct {
	SigningSecret string
	Tolerance     time.Duration
	Deadline      time.Duration
	MaxBodyBytes  int64
}

// AuthorizationResponse is the only body the card network ever receives
// for an authorization request.
type AuthorizationResponse struct {
	Approve       bool   `json:"approve"`
	DeclineReason string `json:"decline_reason,omitempty"`
}

type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object authorizationObject `json:"object"`
	} `json:"data"`
}

type authorizationObject struct {
	ID      string `json:"id"`
	Amount  int64  `json:"amount"`
	Created int64  `json:"created"`
	Card    struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	} `json:"card"`
	MerchantData struct {
		Name     *string `json:"name"`
		Category string  `json:"category"`
		City     string  `json:"city"`
		Country  string  `json:"country"`
	} `json:"merchant_data"`
}

func (a authorizationObject) merchant() string {
	if a.MerchantData.Name == nil || *a.MerchantData.Name == "" {
		return UnknownMerchant
	}
	return *a.MerchantData.Name
}

// WebhookHandler answers the card network's real-time authorization
// requests.
type WebhookHandler struct {
	scorer Scorer
	ledger TransactionRecorder
	cfg    WebhookConfig
	logger *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(scorer Scorer, ledger TransactionRecorder, cfg WebhookConfig, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 1500 * time.Millisecond
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &WebhookHandler{
		scorer: scorer,
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}
}

// HandleAuthorization handles POST /webhooks/issuing/authorization
func (h *WebhookHandler) HandleAuthorization(w http.ResponseWriter, r *http.Request) {
	received := time.Now().UTC()
	logger := observability.FromContext(r.Context(), h.logger)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			logger.Warn("webhook body too large", zap.Int64("limit", maxErr.Limit))
			_ = utils.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
			return
		}
		_ = utils.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	err = webhook.ValidatePayloadWithTolerance(payload, r.Header.Get(SignatureHeader), h.cfg.SigningSecret, h.cfg.Tolerance)
	if err != nil {
		logger.Warn("webhook signature verification failed", zap.Error(err))
		_ = utils.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": services.ErrInvalidSignature.Message})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		logger.Warn("malformed webhook event", zap.Error(err))
		_ = utils.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": services.ErrMalformedEvent.Message})
		return
	}

	if event.Type != EventAuthorizationRequest {
		logger.Debug("ignoring webhook event", zap.String("type", event.Type), zap.String("event_id", event.ID))
		_ = utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	resp := h.authorize(r.Context(), event.Data.Object, received, logger)
	if err := utils.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error("failed to write authorization response", zap.Error(err))
	}
}

type decideResult struct {
	decision *scoring.Decision
	err      error
}

// authorize decides and records one authorization. A redelivered
// authorization id is answered from its record. Scoring runs on its own
// goroutine and the response never waits past the configured deadline.
func (h *WebhookHandler) authorize(parent context.Context, obj authorizationObject, received time.Time, logger *zap.Logger) AuthorizationResponse {
	ctx, cancel := context.WithTimeout(parent, h.cfg.Deadline)
	defer cancel()

	if resp, ok := h.replay(ctx, obj.ID, logger); ok {
		return resp
	}

	// Policies see hour and dayOfWeek in UTC regardless of the host zone.
	decidedAt := received
	if obj.Created > 0 {
		decidedAt = time.Unix(obj.Created, 0).UTC()
	}

	req := scoring.Request{
		AuthorizationID: obj.ID,
		NetworkCardID:   obj.Card.ID,
		OrgID:           strings.TrimSpace(obj.Card.Metadata["orgId"]),
		Merchant:        obj.merchant(),
		AmountCents:     models.Cents(obj.Amount),
		CategoryCode:    obj.MerchantData.Category,
		Time:            decidedAt,
		RequestID:       middleware.GetRequestIDFromContext(parent),
	}

	done := make(chan decideResult, 1)
	go func() {
		d, err := h.scorer.Score(ctx, req)
		done <- decideResult{decision: d, err: err}
	}()

	var res decideResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = decideResult{err: ctx.Err()}
	}

	txn := models.NewTransaction(obj.ID, req.AmountCents, req.Merchant, mcc.Classify(req.CategoryCode)).
		WithOwner(nil, nil, obj.Card.ID)
	resp := AuthorizationResponse{}

	switch {
	case res.decision != nil:
		d := res.decision
		var cardID *uuid.UUID
		if d.Card != nil && d.OrgID != nil && d.Card.BelongsTo(*d.OrgID) {
			id := d.Card.ID
			cardID = &id
		}
		txn.WithOwner(d.OrgID, cardID, obj.Card.ID)
		txn.Category = d.Category
		if d.Approve {
			txn.Approve()
			resp.Approve = true
		} else {
			txn.Decline(d.Reason, d.PolicyID())
			resp.DeclineReason = d.Reason
		}
	default:
		logger.Error("authorization decision failed, declining",
			zap.String("authorization_id", obj.ID),
			zap.Duration("elapsed", time.Since(received)),
			zap.Error(res.err))
		if orgID, err := uuid.Parse(req.OrgID); err == nil {
			txn.OrgID = &orgID
		}
		txn.Decline(FallbackDeclineReason, nil)
		resp.DeclineReason = FallbackDeclineReason
	}

	if err := h.ledger.RecordOrEnqueue(ctx, txn); err != nil {
		logger.Error("transaction lost: record and retry queue both failed",
			zap.String("authorization_id", obj.ID),
			zap.Error(err))
	}

	return resp
}

// replay answers with the recorded outcome when the authorization id was
// already decided. A failed lookup falls through to a fresh decision.
func (h *WebhookHandler) replay(ctx context.Context, authorizationID string, logger *zap.Logger) (AuthorizationResponse, bool) {
	if authorizationID == "" {
		return AuthorizationResponse{}, false
	}

	prev, err := h.ledger.Previous(ctx, authorizationID)
	if err != nil {
		logger.Warn("replay lookup failed, deciding afresh",
			zap.String("authorization_id", authorizationID),
			zap.Error(err))
		return AuthorizationResponse{}, false
	}
	if prev == nil {
		return AuthorizationResponse{}, false
	}

	switch prev.Status {
	case models.TxnStatusApproved:
		logger.Info("authorization redelivered, answering from record",
			zap.String("authorization_id", authorizationID),
			zap.String("status", string(prev.Status)))
		return AuthorizationResponse{Approve: true}, true
	case models.TxnStatusDeclined:
		logger.Info("authorization redelivered, answering from record",
			zap.String("authorization_id", authorizationID),
			zap.String("status", string(prev.Status)))
		reason := FallbackDeclineReason
		if prev.Reason != nil && *prev.Reason != "" {
			reason = *prev.Reason
		}
		return AuthorizationResponse{DeclineReason: reason}, true
	default:
		return AuthorizationResponse{}, false
	}
}
