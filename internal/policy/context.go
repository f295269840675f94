package policy

import (
	"time"

	"github.com/upb/card-control-plane/internal/expression"
	"github.com/upb/card-control-plane/models"
)

// EvaluationContext builds the expression bindings for a recorded
// transaction decided at the given time.
func EvaluationContext(txn *models.Transaction, at time.Time) expression.Context {
	return expression.Context{
		Amount:   int64(txn.Amount),
		Merchant: txn.Merchant,
		Category: string(txn.Category),
		Time:     at,
	}
}
