package policy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/upb/card-control-plane/models"
)

// ApprovedReason is the reason reported when no policy triggers.
const ApprovedReason = "Approved"

// Result is the outcome of matching a transaction against a policy list.
type Result struct {
	Approved bool
	Reason   string
	Policy   *models.Policy // Nil when approved
	Skipped  []SkippedPolicy
}

// SkippedPolicy records a policy that could not be evaluated.
type SkippedPolicy struct {
	PolicyID uuid.UUID `json:"policy_id"`
	Name     string    `json:"name"`
	Error    string    `json:"error"`
}

// PolicyID returns the triggered policy's id, or nil.
func (r Result) PolicyID() *uuid.UUID {
	if r.Policy == nil {
		return nil
	}
	id := r.Policy.ID
	return &id
}

// TriggeredReason formats the decline reason for a triggered policy.
func TriggeredReason(p *models.Policy) string {
	return fmt.Sprintf("Policy triggered: %s (%s)", p.Name, p.Expression)
}
