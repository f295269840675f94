// Package policy manages an organization's authorization policies and
// serves the ordered active set to the decision engine through a per-org
// LRU cache.
package policy

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/internal/expression"
	rules "github.com/upb/card-control-plane/internal/policy"
	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/repositories"
	"github.com/upb/card-control-plane/services"
)

// MaxNameLength bounds policy names.
const MaxNameLength = 100

// AuditRecorder receives policy lifecycle events. *audit.AuditService
// satisfies it.
type AuditRecorder interface {
	LogPolicyCreated(policy *models.Policy, requestID string) error
	LogPolicyUpdated(policy *models.Policy, requestID string, changes map[string]interface{}) error
	LogPolicyDeleted(orgID, policyID uuid.UUID, requestID string) error
}

// CreateInput describes a new policy
type CreateInput struct {
	Name       string
	Expression string
	IsActive   *bool
	Priority   int
	RequestID  string
}

// UpdateInput carries a partial update; nil fields are left unchanged
type UpdateInput struct {
	Name       *string
	Expression *string
	IsActive   *bool
	Priority   *int
	RequestID  string
}

// DryRunInput is a sample transaction for evaluating policies without
// recording anything. An empty Expression evaluates the org's active set.
type DryRunInput struct {
	Expression string
	Amount     models.Cents
	Merchant   string
	Category   models.BudgetCategory
	Time       time.Time
	Location   string
}

// PolicyService handles policy management and lookup
type PolicyService struct {
	policyRepo repositories.PolicyRepository
	cache      *PolicyCache
	matcher    *rules.Matcher
	audit      AuditRecorder
	logger     *zap.Logger
}

// NewPolicyService creates a new PolicyService instance. audit may be nil.
func NewPolicyService(policyRepo repositories.PolicyRepository, cache *PolicyCache, audit AuditRecorder, logger *zap.Logger) *PolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{
		policyRepo: policyRepo,
		cache:      cache,
		matcher:    rules.NewMatcher(logger),
		audit:      audit,
		logger:     logger.With(zap.String("component", "policy_service")),
	}
}

// ActivePolicies returns the organization's active policies in evaluation
// order, served from cache when possible.
func (s *PolicyService) ActivePolicies(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	if cached, ok := s.cache.Get(orgID); ok {
		s.logger.Debug("cache hit for policies", zap.String("org_id", orgID.String()))
		return cached, nil
	}

	gen := s.cache.Generation(orgID)
	policies, err := s.policyRepo.ListActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	// A write that landed during the read invalidated gen; the list may
	// predate it, so serve it once without caching.
	s.cache.SetIfCurrent(orgID, gen, policies)

	s.logger.Debug("cache miss for policies, fetched from database",
		zap.String("org_id", orgID.String()),
		zap.Int("count", len(policies)))

	return policies, nil
}

// List returns every policy of an organization in evaluation order
func (s *PolicyService) List(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	policies, err := s.policyRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if policies == nil {
		policies = []*models.Policy{}
	}
	return policies, nil
}

// Get returns a policy owned by orgID. Policies of other organizations are
// reported as not found.
func (s *PolicyService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Policy, error) {
	p, err := s.policyRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrPolicyNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if p.OrgID != orgID {
		return nil, services.ErrPolicyNotFound
	}
	return p, nil
}

// Create validates and stores a new policy
func (s *PolicyService) Create(ctx context.Context, orgID uuid.UUID, in CreateInput) (*models.Policy, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateExpression(in.Expression); err != nil {
		return nil, err
	}

	p := models.NewPolicy(orgID, name, strings.TrimSpace(in.Expression))
	p.Priority = in.Priority
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	if err := s.policyRepo.Create(ctx, p); err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	s.cache.Invalidate(orgID)
	s.logger.Info("policy created",
		zap.String("org_id", orgID.String()),
		zap.String("policy_id", p.ID.String()),
		zap.String("name", p.Name))

	if s.audit != nil {
		_ = s.audit.LogPolicyCreated(p, in.RequestID)
	}
	return p, nil
}

// Update applies a partial update to a policy
func (s *PolicyService) Update(ctx context.Context, orgID, id uuid.UUID, in UpdateInput) (*models.Policy, error) {
	p, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]interface{})
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		if name != p.Name {
			changes["name"] = name
		}
		p.Name = name
	}
	if in.Expression != nil {
		if err := validateExpression(*in.Expression); err != nil {
			return nil, err
		}
		expr := strings.TrimSpace(*in.Expression)
		if expr != p.Expression {
			changes["expression"] = expr
		}
		p.Expression = expr
	}
	if in.IsActive != nil && *in.IsActive != p.IsActive {
		changes["is_active"] = *in.IsActive
		p.IsActive = *in.IsActive
	}
	if in.Priority != nil && *in.Priority != p.Priority {
		changes["priority"] = *in.Priority
		p.Priority = *in.Priority
	}

	if err := s.policyRepo.Update(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrPolicyNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	s.cache.Invalidate(orgID)
	s.logger.Info("policy updated",
		zap.String("org_id", orgID.String()),
		zap.String("policy_id", p.ID.String()),
		zap.Int("changes", len(changes)))

	if s.audit != nil {
		_ = s.audit.LogPolicyUpdated(p, in.RequestID, changes)
	}
	return p, nil
}

// Delete removes a policy owned by orgID
func (s *PolicyService) Delete(ctx context.Context, orgID, id uuid.UUID, requestID string) error {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return err
	}

	if err := s.policyRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrPolicyNotFound
		}
		return services.ErrDatabaseError.Wrap(err)
	}

	s.cache.Invalidate(orgID)
	s.logger.Info("policy deleted",
		zap.String("org_id", orgID.String()),
		zap.String("policy_id", id.String()))

	if s.audit != nil {
		_ = s.audit.LogPolicyDeleted(orgID, id, requestID)
	}
	return nil
}

// DryRun evaluates a sample transaction without recording it
func (s *PolicyService) DryRun(ctx context.Context, orgID uuid.UUID, in DryRunInput) (rules.Result, error) {
	evalCtx := expression.Context{
		Amount:   int64(in.Amount),
		Merchant: in.Merchant,
		Category: string(in.Category),
		Time:     in.Time,
		Location: in.Location,
	}
	if evalCtx.Time.IsZero() {
		evalCtx.Time = time.Now()
	}

	if strings.TrimSpace(in.Expression) != "" {
		if err := validateExpression(in.Expression); err != nil {
			return rules.Result{}, err
		}
		candidate := models.NewPolicy(orgID, "dry-run", strings.TrimSpace(in.Expression))
		return s.matcher.Match([]*models.Policy{candidate}, evalCtx), nil
	}

	policies, err := s.ActivePolicies(ctx, orgID)
	if err != nil {
		return rules.Result{}, err
	}
	return s.matcher.Match(policies, evalCtx), nil
}

// InvalidateCache drops the cached policy set of an organization
func (s *PolicyService) InvalidateCache(orgID uuid.UUID) {
	s.cache.Invalidate(orgID)
	s.logger.Debug("invalidated cache for org", zap.String("org_id", orgID.String()))
}

// GetCacheStats returns cache statistics
func (s *PolicyService) GetCacheStats() CacheStats {
	return s.cache.Stats()
}

// StartCacheCleanup sweeps expired cache entries until ctx is done
func (s *PolicyService) StartCacheCleanup(ctx context.Context, interval time.Duration) {
	s.logger.Info("started cache cleanup worker", zap.Duration("interval", interval))
	s.cache.StartCleanupWorker(ctx, interval)
}

func validateName(name string) error {
	if name == "" || len([]rune(name)) > MaxNameLength {
		return services.ErrInvalidInput.WithDetail("name", "must be 1 to 100 characters")
	}
	return nil
}

func validateExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return services.ErrInvalidExpression.WithDetail("error", "expression is required")
	}
	if err := rules.Validate(expr); err != nil {
		return services.ErrInvalidExpression.WithDetail("error", err.Error())
	}
	return nil
}
