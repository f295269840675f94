package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetPeriod is the window a budget's spend accumulates over.
type BudgetPeriod string

const (
	BudgetPeriodDaily   BudgetPeriod = "DAILY"
	BudgetPeriodWeekly  BudgetPeriod = "WEEKLY"
	BudgetPeriodMonthly BudgetPeriod = "MONTHLY"
)

// DefaultAlertThreshold is the utilization percent that triggers an alert
// when none is configured.
const DefaultAlertThreshold = 80

// AllBudgetPeriods returns the supported periods.
func AllBudgetPeriods() []BudgetPeriod {
	return []BudgetPeriod{BudgetPeriodDaily, BudgetPeriodWeekly, BudgetPeriodMonthly}
}

// IsValid reports whether p is a supported period.
func (p BudgetPeriod) IsValid() bool {
	switch p {
	case BudgetPeriodDaily, BudgetPeriodWeekly, BudgetPeriodMonthly:
		return true
	}
	return false
}

// Key identifies the period containing t, in UTC. Weekly keys use ISO weeks
// ("2024-W07"), so a week spanning new year belongs to one key.
func (p BudgetPeriod) Key(t time.Time) string {
	t = t.UTC()
	switch p {
	case BudgetPeriodDaily:
		return t.Format("2006-01-02")
	case BudgetPeriodWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return t.Format("2006-01")
	}
}

// Budget caps an organization's approved spend in one category per period.
// Spent accumulates within PeriodKey and restarts when a new period begins.
type Budget struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	OrgID          uuid.UUID      `json:"org_id" db:"org_id"`
	Category       BudgetCategory `json:"category" db:"category"`
	Amount         Cents          `json:"amount_cents" db:"amount_cents"`
	Period         BudgetPeriod   `json:"period" db:"period"`
	PeriodKey      string         `json:"period_key" db:"period_key"`
	Spent          Cents          `json:"spent_cents" db:"spent_cents"`
	AlertThreshold int            `json:"alert_threshold" db:"alert_threshold"` // percent
	LastAlert      *time.Time     `json:"last_alert,omitempty" db:"last_alert"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Budget model
func (Budget) TableName() string {
	return "budgets"
}

// NewBudget creates a budget starting in the current period with the
// default alert threshold.
func NewBudget(orgID uuid.UUID, category BudgetCategory, amount Cents, period BudgetPeriod) *Budget {
	now := time.Now().UTC()
	return &Budget{
		ID:             uuid.New(),
		OrgID:          orgID,
		Category:       category,
		Amount:         amount,
		Period:         period,
		PeriodKey:      period.Key(now),
		AlertThreshold: DefaultAlertThreshold,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Rollover moves the budget into the period containing now, clearing spend
// accumulated in an earlier period.
func (b *Budget) Rollover(now time.Time) {
	key := b.Period.Key(now)
	if b.PeriodKey != key {
		b.PeriodKey = key
		b.Spent = 0
	}
}

// Utilization is spent as a percent of the budget amount, rounded to one
// decimal place.
func (b *Budget) Utilization() float64 {
	if b.Amount <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(b.Spent)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(b.Amount))).
		Round(1).
		InexactFloat64()
}

// Remaining is the unspent amount. It is negative once the budget is exceeded.
func (b *Budget) Remaining() Cents {
	return b.Amount - b.Spent
}

// Alerting reports whether utilization has reached the alert threshold.
func (b *Budget) Alerting() bool {
	return int64(b.Spent)*100 >= int64(b.Amount)*int64(b.AlertThreshold)
}

// BudgetAlert reports a budget whose spend crossed its alert threshold.
type BudgetAlert struct {
	BudgetID       uuid.UUID      `json:"budget_id"`
	OrgID          uuid.UUID      `json:"org_id"`
	Category       BudgetCategory `json:"category"`
	Period         BudgetPeriod   `json:"period"`
	Spent          Cents          `json:"spent_cents"`
	Amount         Cents          `json:"amount_cents"`
	AlertThreshold int            `json:"alert_threshold"`
}
