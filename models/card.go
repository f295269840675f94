package models

import (
	"time"

	"github.com/google/uuid"
)

// CardStatus is the lifecycle state of an issued card
type CardStatus string

const (
	CardStatusActive    CardStatus = "ACTIVE"
	CardStatusInactive  CardStatus = "INACTIVE"
	CardStatusSuspended CardStatus = "SUSPENDED"
	CardStatusCanceled  CardStatus = "CANCELED"
)

// CardNetwork is the payment network a card runs on
type CardNetwork string

const (
	CardNetworkVisa       CardNetwork = "VISA"
	CardNetworkMastercard CardNetwork = "MASTERCARD"
	CardNetworkAmex       CardNetwork = "AMEX"
)

// CardType distinguishes shared corporate cards from employee cards
type CardType string

const (
	CardTypeCorporate CardType = "CORPORATE"
	CardTypeEmployee  CardType = "EMPLOYEE"
)

// Card is an issued payment card. TotalSpent and LastUsedAt are only
// changed by approved authorizations.
type Card struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	OrgID         uuid.UUID   `json:"org_id" db:"org_id"`
	NetworkCardID string      `json:"network_card_id" db:"network_card_id"`
	Nickname      string      `json:"nickname" db:"nickname"`
	Last4         string      `json:"last4" db:"last4"`
	Network       CardNetwork `json:"network" db:"network"`
	Type          CardType    `json:"type" db:"type"`
	Status        CardStatus  `json:"status" db:"status"`
	MonthlyLimit  *Cents      `json:"monthly_limit_cents,omitempty" db:"monthly_limit_cents"`
	TotalSpent    Cents       `json:"total_spent_cents" db:"total_spent_cents"`
	LastUsedAt    *time.Time  `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Card model
func (Card) TableName() string {
	return "cards"
}

// NewCard creates an active corporate VISA card for an organization.
func NewCard(orgID uuid.UUID, networkCardID, nickname, last4 string) *Card {
	now := time.Now()
	return &Card{
		ID:            uuid.New(),
		OrgID:         orgID,
		NetworkCardID: networkCardID,
		Nickname:      nickname,
		Last4:         last4,
		Network:       CardNetworkVisa,
		Type:          CardTypeCorporate,
		Status:        CardStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// BelongsTo reports whether the card is owned by orgID.
func (c *Card) BelongsTo(orgID uuid.UUID) bool {
	return c.OrgID == orgID
}
