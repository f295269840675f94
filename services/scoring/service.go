// Package scoring is the authorization decision engine. It resolves the
// card, checks organization ownership, classifies the merchant category,
// runs the organization's policies through the matcher and reports whether
// the authorization is approved.
package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/internal/expression"
	"github.com/upb/card-control-plane/internal/mcc"
	rules "github.com/upb/card-control-plane/internal/policy"
	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/repositories"
	"github.com/upb/card-control-plane/services"
)

// PolicySource yields an organization's active policies in evaluation order.
type PolicySource interface {
	ActivePolicies(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error)
}

// AuditSink receives decision records. Implementations must not block.
type AuditSink interface {
	LogDecision(log *models.AuditLog) error
}

// Config tunes the engine.
type Config struct {
	// SlowDecision is the latency above which a decision is logged at warn.
	SlowDecision time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{SlowDecision: 250 * time.Millisecond}
}

// Request is an authorization to decide.
type Request struct {
	AuthorizationID string
	NetworkCardID   string
	OrgID           string // raw card metadata, parsed here
	Merchant        string
	AmountCents     models.Cents
	CategoryCode    string
	Time            time.Time // zero means now
	RequestID       string
}

// Decision is the engine's verdict.
type Decision struct {
	Approve  bool
	Reason   string // empty when approved
	Policy   *models.Policy
	Category models.BudgetCategory
	Card     *models.Card
	OrgID    *uuid.UUID
	Skipped  []rules.SkippedPolicy
}

// PolicyID returns the id of the triggered policy, or nil.
func (d *Decision) PolicyID() *uuid.UUID {
	if d == nil || d.Policy == nil {
		return nil
	}
	id := d.Policy.ID
	return &id
}

// Service decides authorizations
type Service struct {
	cards    repositories.CardRepository
	policies PolicySource
	matcher  *rules.Matcher
	audit    AuditSink
	logger   *zap.Logger
	config   Config
}

// NewService creates the decision engine. audit may be nil.
func NewService(cards repositories.CardRepository, policies PolicySource, matcher *rules.Matcher, audit AuditSink, logger *zap.Logger, config Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if matcher == nil {
		matcher = rules.NewMatcher(logger)
	}
	return &Service{
		cards:    cards,
		policies: policies,
		matcher:  matcher,
		audit:    audit,
		logger:   logger.With(zap.String("component", "scoring")),
		config:   config,
	}
}

// Score decides one authorization. For a missing organization, an unknown
// card or an organization mismatch it returns both a declined Decision,
// carrying the error text as its reason, and the matching domain error.
// Store failures and an expired ctx return a nil Decision.
func (s *Service) Score(ctx context.Context, req Request) (*Decision, error) {
	start := time.Now()
	category := mcc.Classify(req.CategoryCode)
	decision := &Decision{Category: category}

	orgID, err := uuid.Parse(req.OrgID)
	if req.OrgID == "" || err != nil {
		return s.reject(req, decision, services.ErrMissingOrganization, start)
	}
	decision.OrgID = &orgID

	card, err := s.cards.GetByNetworkID(ctx, req.NetworkCardID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return s.reject(req, decision, services.ErrCardNotFound, start)
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	decision.Card = card

	if !card.BelongsTo(orgID) {
		return s.reject(req, decision, services.ErrOrganizationMismatch, start)
	}

	policies, err := s.policies.ActivePolicies(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	at := req.Time
	if at.IsZero() {
		at = start.UTC()
	}

	result := s.matcher.Match(policies, expression.Context{
		Amount:   int64(req.AmountCents),
		Merchant: req.Merchant,
		Category: string(category),
		Time:     at,
	})

	decision.Approve = result.Approved
	decision.Policy = result.Policy
	decision.Skipped = result.Skipped
	if !result.Approved {
		decision.Reason = result.Reason
	}

	s.record(req, decision, start)
	return decision, nil
}

func (s *Service) reject(req Request, decision *Decision, cause *services.DomainError, start time.Time) (*Decision, error) {
	decision.Approve = false
	decision.Reason = cause.Message
	s.record(req, decision, start)
	return decision, cause
}

func (s *Service) record(req Request, d *Decision, start time.Time) {
	latency := time.Since(start)

	fields := []zap.Field{
		zap.String("authorization_id", req.AuthorizationID),
		zap.String("network_card_id", req.NetworkCardID),
		zap.String("merchant", req.Merchant),
		zap.Int64("amount_cents", int64(req.AmountCents)),
		zap.String("category", string(d.Category)),
		zap.Bool("approve", d.Approve),
		zap.Duration("latency", latency),
	}
	if d.Reason != "" {
		fields = append(fields, zap.String("reason", d.Reason))
	}
	if s.config.SlowDecision > 0 && latency > s.config.SlowDecision {
		s.logger.Warn("slow authorization decision", fields...)
	} else {
		s.logger.Info("authorization decision", fields...)
	}

	if s.audit == nil {
		return
	}

	details := models.DecisionDetails{
		NetworkCardID:   req.NetworkCardID,
		Merchant:        req.Merchant,
		Amount:          req.AmountCents,
		Category:        d.Category,
		PolicyID:        d.PolicyID(),
		SkippedPolicies: len(d.Skipped),
	}
	if d.Policy != nil {
		details.PolicyName = d.Policy.Name
	}

	log := models.NewAuditLog(d.OrgID, models.AuditActionAuthorizationDecision, "authorization").
		WithRequest(req.RequestID).
		WithDecision(req.AuthorizationID, d.Approve, d.Reason, int(latency.Milliseconds())).
		WithDetails(details)
	if d.Card != nil {
		log.WithResource(d.Card.ID)
	}

	if err := s.audit.LogDecision(log); err != nil {
		s.logger.Error("failed to enqueue decision audit log",
			zap.String("authorization_id", req.AuthorizationID),
			zap.Error(err))
	}
}
