package models

import (
	"time"

	"github.com/google/uuid"
)

// Policy is an organization-authored rule. When its expression evaluates to
// true for a transaction, the authorization is declined.
type Policy struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OrgID      uuid.UUID `json:"org_id" db:"org_id"`
	Name       string    `json:"name" db:"name"`
	Expression string    `json:"expression" db:"expression"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	Priority   int       `json:"priority" db:"priority"` // Lower runs first; ties break on name
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Policy model
func (Policy) TableName() string {
	return "policies"
}

// NewPolicy creates an active policy with the default priority.
func NewPolicy(orgID uuid.UUID, name, expression string) *Policy {
	now := time.Now()
	return &Policy{
		ID:         uuid.New(),
		OrgID:      orgID,
		Name:       name,
		Expression: expression,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
