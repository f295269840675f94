package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionAuthorizationDecision AuditAction = "authorization_decision"
	AuditActionPolicyCreated         AuditAction = "policy_created"
	AuditActionPolicyUpdated         AuditAction = "policy_updated"
	AuditActionPolicyDeleted         AuditAction = "policy_deleted"
	AuditActionTransactionCorrected  AuditAction = "transaction_corrected"
	AuditActionSimulationRun         AuditAction = "simulation_run"
	AuditActionBudgetCreated         AuditAction = "budget_created"
	AuditActionBudgetUpdated         AuditAction = "budget_updated"
	AuditActionBudgetDeleted         AuditAction = "budget_deleted"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrgID        *uuid.UUID      `json:"org_id,omitempty" db:"org_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"` // policy, transaction, authorization, budget
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details" db:"details"` // JSONB for flexible metadata
	RequestID    string          `json:"request_id" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`

	// Authorization decision fields
	AuthorizationID *string `json:"authorization_id,omitempty" db:"authorization_id"`
	Approved        *bool   `json:"approved,omitempty" db:"approved"`
	Reason          *string `json:"reason,omitempty" db:"reason"`
	LatencyMs       *int    `json:"latency_ms,omitempty" db:"latency_ms"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(orgID *uuid.UUID, action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		OrgID:        orgID,
		Action:       action,
		ResourceType: resourceType,
		Timestamp:    time.Now(),
	}
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets the request id the entry originated from
func (a *AuditLog) WithRequest(requestID string) *AuditLog {
	a.RequestID = requestID
	return a
}

// WithDecision records the outcome of an authorization decision
func (a *AuditLog) WithDecision(authorizationID string, approved bool, reason string, latencyMs int) *AuditLog {
	a.AuthorizationID = &authorizationID
	a.Approved = &approved
	if reason != "" {
		a.Reason = &reason
	}
	a.LatencyMs = &latencyMs
	return a
}

// DecisionDetails is the Details payload of an authorization_decision entry.
type DecisionDetails struct {
	NetworkCardID   string         `json:"network_card_id"`
	Merchant        string         `json:"merchant"`
	Amount          Cents          `json:"amount_cents"`
	Category        BudgetCategory `json:"category"`
	PolicyID        *uuid.UUID     `json:"policy_id,omitempty"`
	PolicyName      string         `json:"policy_name,omitempty"`
	SkippedPolicies int            `json:"skipped_policies"`
}
