package policy

import (
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/internal/expression"
	"github.com/upb/card-control-plane/models"
)

// Matcher runs the first-match-wins policy evaluation.
type Matcher struct {
	logger *zap.Logger
}

// NewMatcher creates a matcher that logs skipped policies to logger.
func NewMatcher(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{logger: logger.With(zap.String("component", "policy_matcher"))}
}

// Match evaluates policies in the given order. Inactive policies are
// ignored, scoped policies only apply to their merchant, and policies that
// fail to evaluate are skipped. The first policy evaluating to true
// declines the transaction.
func (m *Matcher) Match(policies []*models.Policy, ctx expression.Context) Result {
	result := Result{Approved: true, Reason: ApprovedReason}

	for _, p := range policies {
		if p == nil || !p.IsActive {
			continue
		}

		scope, body := SplitScope(p.Expression)
		if scope != "" && !MerchantMatches(scope, ctx.Merchant) {
			continue
		}

		triggered, err := expression.Evaluate(body, ctx)
		if err != nil {
			m.logger.Warn("policy evaluation failed, skipping",
				zap.String("policy_id", p.ID.String()),
				zap.String("policy_name", p.Name),
				zap.String("expression", p.Expression),
				zap.Error(err),
			)
			result.Skipped = append(result.Skipped, SkippedPolicy{
				PolicyID: p.ID,
				Name:     p.Name,
				Error:    err.Error(),
			})
			continue
		}

		if triggered {
			result.Approved = false
			result.Reason = TriggeredReason(p)
			result.Policy = p
			return result
		}
	}

	return result
}
