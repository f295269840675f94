// Package budget manages per-organization spend budgets. Each budget caps
// approved spend in one category over a daily, weekly or monthly period;
// the ledger credits spend to it when an approval is recorded.
package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/repositories"
	"github.com/upb/card-control-plane/services"
)

// Auditor records budget changes
type Auditor interface {
	LogBudgetChange(budget *models.Budget, action models.AuditAction, requestID string) error
}

// CreateInput describes a new budget. AlertThreshold defaults to
// models.DefaultAlertThreshold when nil.
type CreateInput struct {
	Category       models.BudgetCategory
	Amount         models.Cents
	Period         models.BudgetPeriod
	AlertThreshold *int
}

// UpdateInput carries a partial update; nil fields are left unchanged
type UpdateInput struct {
	Amount         *models.Cents
	Period         *models.BudgetPeriod
	AlertThreshold *int
}

// Status is a budget viewed in the current period
type Status struct {
	models.Budget
	Utilization float64      `json:"utilization"` // percent
	Remaining   models.Cents `json:"remaining_cents"`
	Alerting    bool         `json:"alerting"`
}

// CheckResult reports whether a prospective spend fits the category budget
type CheckResult struct {
	Allowed         bool         `json:"allowed"`
	Budget          *Status      `json:"budget,omitempty"`
	ViolationReason string       `json:"violation_reason,omitempty"`
	Requested       models.Cents `json:"requested_cents"`
}

// BudgetService manages budgets
type BudgetService struct {
	budgets repositories.BudgetRepository
	audit   Auditor
	logger  *zap.Logger
	now     func() time.Time
}

// NewBudgetService creates a budget service. audit may be nil.
func NewBudgetService(budgets repositories.BudgetRepository, audit Auditor, logger *zap.Logger) *BudgetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BudgetService{
		budgets: budgets,
		audit:   audit,
		logger:  logger.With(zap.String("component", "budget_service")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// StatusAt views b in the period containing now. Spend recorded in an
// earlier period reads as zero.
func StatusAt(b *models.Budget, now time.Time) Status {
	view := *b
	view.Rollover(now)
	return Status{
		Budget:      view,
		Utilization: view.Utilization(),
		Remaining:   view.Remaining(),
		Alerting:    view.Alerting(),
	}
}

// List returns the organization's budgets, newest first
func (s *BudgetService) List(ctx context.Context, orgID uuid.UUID) ([]Status, error) {
	budgets, err := s.budgets.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	now := s.now()
	out := make([]Status, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, StatusAt(b, now))
	}
	return out, nil
}

// Get returns a budget owned by orgID
func (s *BudgetService) Get(ctx context.Context, orgID, id uuid.UUID) (*Status, error) {
	b, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	status := StatusAt(b, s.now())
	return &status, nil
}

// Create stores a new budget. An organization has at most one budget per
// category.
func (s *BudgetService) Create(ctx context.Context, orgID uuid.UUID, in CreateInput, requestID string) (*Status, error) {
	if !in.Category.IsValid() {
		return nil, services.ErrInvalidInput.WithDetail("category", "unknown budget category")
	}
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	if !in.Period.IsValid() {
		return nil, services.ErrInvalidInput.WithDetail("period", "must be DAILY, WEEKLY or MONTHLY")
	}

	b := models.NewBudget(orgID, in.Category, in.Amount, in.Period)
	if in.AlertThreshold != nil {
		if err := validateThreshold(*in.AlertThreshold); err != nil {
			return nil, err
		}
		b.AlertThreshold = *in.AlertThreshold
	}

	if err := s.budgets.Create(ctx, b); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateBudget.WithDetail("category", in.Category)
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("budget created",
		zap.String("org_id", orgID.String()),
		zap.String("budget_id", b.ID.String()),
		zap.String("category", b.Category.String()),
		zap.String("period", string(b.Period)))
	s.logChange(b, models.AuditActionBudgetCreated, requestID)

	status := StatusAt(b, s.now())
	return &status, nil
}

// Update applies a partial update. Changing the period restarts spend in
// the new period.
func (s *BudgetService) Update(ctx context.Context, orgID, id uuid.UUID, in UpdateInput, requestID string) (*Status, error) {
	b, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	b.Rollover(now)

	if in.Amount != nil {
		if err := validateAmount(*in.Amount); err != nil {
			return nil, err
		}
		b.Amount = *in.Amount
	}
	if in.Period != nil && *in.Period != b.Period {
		if !in.Period.IsValid() {
			return nil, services.ErrInvalidInput.WithDetail("period", "must be DAILY, WEEKLY or MONTHLY")
		}
		b.Period = *in.Period
		b.PeriodKey = b.Period.Key(now)
		b.Spent = 0
	}
	if in.AlertThreshold != nil {
		if err := validateThreshold(*in.AlertThreshold); err != nil {
			return nil, err
		}
		b.AlertThreshold = *in.AlertThreshold
	}

	if err := s.budgets.Update(ctx, b); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrBudgetNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("budget updated",
		zap.String("org_id", orgID.String()),
		zap.String("budget_id", b.ID.String()))
	s.logChange(b, models.AuditActionBudgetUpdated, requestID)

	status := StatusAt(b, now)
	return &status, nil
}

// Delete removes a budget owned by orgID
func (s *BudgetService) Delete(ctx context.Context, orgID, id uuid.UUID, requestID string) error {
	b, err := s.get(ctx, orgID, id)
	if err != nil {
		return err
	}

	if err := s.budgets.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrBudgetNotFound
		}
		return services.ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("budget deleted",
		zap.String("org_id", orgID.String()),
		zap.String("budget_id", id.String()))
	s.logChange(b, models.AuditActionBudgetDeleted, requestID)
	return nil
}

// Check reports whether spending amount in category would stay within the
// organization's budget for the current period. Categories without a
// budget are always allowed.
func (s *BudgetService) Check(ctx context.Context, orgID uuid.UUID, category models.BudgetCategory, amount models.Cents) (*CheckResult, error) {
	if !category.IsValid() {
		return nil, services.ErrInvalidInput.WithDetail("category", "unknown budget category")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	budgets, err := s.budgets.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	result := &CheckResult{Allowed: true, Requested: amount}
	for _, b := range budgets {
		if b.Category != category {
			continue
		}
		status := StatusAt(b, s.now())
		result.Budget = &status
		if status.Spent+amount > status.Amount {
			result.Allowed = false
			result.ViolationReason = fmt.Sprintf("would exceed %s budget of %s for %s (current: %s, request: %s)",
				status.Period, status.Amount, category, status.Spent, amount)
		}
		break
	}
	return result, nil
}

func (s *BudgetService) get(ctx context.Context, orgID, id uuid.UUID) (*models.Budget, error) {
	b, err := s.budgets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrBudgetNotFound
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	if b.OrgID != orgID {
		return nil, services.ErrBudgetNotFound
	}
	return b, nil
}

func (s *BudgetService) logChange(b *models.Budget, action models.AuditAction, requestID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogBudgetChange(b, action, requestID); err != nil {
		s.logger.Warn("failed to audit budget change", zap.Error(err))
	}
}

func validateAmount(amount models.Cents) error {
	if amount <= 0 {
		return services.ErrInvalidInput.WithDetail("amount_cents", "amount must be positive")
	}
	return nil
}

func validateThreshold(threshold int) error {
	if threshold < 0 || threshold > 100 {
		return services.ErrInvalidInput.WithDetail("alert_threshold", "alert threshold must be between 0 and 100")
	}
	return nil
}
