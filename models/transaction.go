package models

import (
	"time"

	"github.com/google/uuid"
)

// TxnStatus is the outcome recorded for an authorization attempt
type TxnStatus string

const (
	TxnStatusPending  TxnStatus = "PENDING"
	TxnStatusApproved TxnStatus = "APPROVED"
	TxnStatusDeclined TxnStatus = "DECLINED"
)

// IsValid reports whether s is a known status.
func (s TxnStatus) IsValid() bool {
	switch s {
	case TxnStatusPending, TxnStatusApproved, TxnStatusDeclined:
		return true
	}
	return false
}

// Transaction is the durable record of one authorization attempt. OrgID and
// CardID are nil when the attempt could not be attributed (missing
// organization metadata or unknown card).
type Transaction struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	AuthorizationID string         `json:"authorization_id" db:"authorization_id"`
	OrgID           *uuid.UUID     `json:"org_id,omitempty" db:"org_id"`
	CardID          *uuid.UUID     `json:"card_id,omitempty" db:"card_id"`
	NetworkCardID   string         `json:"network_card_id" db:"network_card_id"`
	Amount          Cents          `json:"amount_cents" db:"amount_cents"`
	Merchant        string         `json:"merchant" db:"merchant"`
	Category        BudgetCategory `json:"category" db:"category"`
	Status          TxnStatus      `json:"status" db:"status"`
	Reason          *string        `json:"reason,omitempty" db:"reason"`
	PolicyID        *uuid.UUID     `json:"policy_id,omitempty" db:"policy_id"`
	Description     string         `json:"description,omitempty" db:"description"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// NewTransaction creates a pending transaction for an authorization id.
func NewTransaction(authorizationID string, amount Cents, merchant string, category BudgetCategory) *Transaction {
	now := time.Now()
	return &Transaction{
		ID:              uuid.New(),
		AuthorizationID: authorizationID,
		Amount:          amount,
		Merchant:        merchant,
		Category:        category,
		Status:          TxnStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Approve marks the transaction approved and clears any reason.
func (t *Transaction) Approve() *Transaction {
	t.Status = TxnStatusApproved
	t.Reason = nil
	return t
}

// Decline marks the transaction declined. An empty reason is replaced with
// a generic one so declined records always explain themselves.
func (t *Transaction) Decline(reason string, policyID *uuid.UUID) *Transaction {
	if reason == "" {
		reason = "Declined"
	}
	t.Status = TxnStatusDeclined
	t.Reason = &reason
	t.PolicyID = policyID
	return t
}

// WithOwner attributes the transaction to an organization and card.
func (t *Transaction) WithOwner(orgID, cardID *uuid.UUID, networkCardID string) *Transaction {
	t.OrgID = orgID
	t.CardID = cardID
	t.NetworkCardID = networkCardID
	return t
}

// TransactionFilter narrows a transaction listing. Zero values mean "any".
type TransactionFilter struct {
	OrgID     uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	Status    TxnStatus
	Category  BudgetCategory
	CardID    *uuid.UUID
	Limit     int
	Offset    int
}

// CategorySpend is the approved spend total for one budget category.
type CategorySpend struct {
	Category BudgetCategory `json:"category"`
	Total    Cents          `json:"total_cents"`
	Count    int            `json:"count"`
}
