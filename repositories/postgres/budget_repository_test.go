package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/repositories"
)

var budgetRowColumns = []string{
	"id", "org_id", "category", "amount_cents", "period", "period_key", "spent_cents",
	"alert_threshold", "last_alert", "created_at", "updated_at",
}

func budgetRow(rows *sqlmock.Rows, b *models.Budget) *sqlmock.Rows {
	return rows.AddRow(
		b.ID.String(), b.OrgID.String(), string(b.Category), int64(b.Amount), string(b.Period),
		b.PeriodKey, int64(b.Spent), b.AlertThreshold, nil, b.CreatedAt, b.UpdatedAt,
	)
}

func TestBudgetRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBudgetRepository(db, zap.NewNop())
	budget := models.NewBudget(uuid.New(), models.CategoryTravel, 50000, models.BudgetPeriodMonthly)

	t.Run("inserted", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO budgets")).
			WithArgs(budget.ID, budget.OrgID, budget.Category, budget.Amount, budget.Period,
				budget.PeriodKey, budget.Spent, budget.AlertThreshold, budget.LastAlert,
				budget.CreatedAt, budget.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), budget))
	})

	t.Run("same org and category", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO budgets")).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(context.Background(), budget)

		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetRepository_ListByOrg(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBudgetRepository(db, zap.NewNop())
	orgID := uuid.New()
	travel := models.NewBudget(orgID, models.CategoryTravel, 50000, models.BudgetPeriodMonthly)
	travel.Spent = 12000
	training := models.NewBudget(orgID, models.CategoryTraining, 10000, models.BudgetPeriodWeekly)

	rows := sqlmock.NewRows(budgetRowColumns)
	budgetRow(rows, training)
	budgetRow(rows, travel)
	mock.ExpectQuery(regexp.QuoteMeta("FROM budgets WHERE org_id = $1 ORDER BY created_at DESC")).
		WithArgs(orgID).
		WillReturnRows(rows)

	got, err := repo.ListByOrg(context.Background(), orgID)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.CategoryTraining, got[0].Category)
	assert.Equal(t, models.BudgetPeriodWeekly, got[0].Period)
	assert.Equal(t, models.Cents(12000), got[1].Spent)
	assert.Nil(t, got[1].LastAlert)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetRepository_UpdateAndDelete_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBudgetRepository(db, zap.NewNop())
	budget := models.NewBudget(uuid.New(), models.CategoryTravel, 50000, models.BudgetPeriodMonthly)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE budgets")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM budgets WHERE id = $1")).
		WithArgs(budget.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Update(context.Background(), budget), repositories.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), budget.ID), repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetRepository_AddSpend(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBudgetRepository(db, zap.NewNop())
	orgID := uuid.New()
	budgetID := uuid.New()
	// 19:00 on a Sunday at UTC-5 is Monday in UTC, a new ISO week.
	at := time.Date(2024, 2, 11, 19, 0, 0, 0, time.FixedZone("UTC-5", -5*3600))

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE budgets b")).
		WithArgs(orgID, models.CategoryTravel, models.Cents(4500),
			"2024-02-12", "2024-W07", "2024-02", at.UTC()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "period", "spent_cents", "amount_cents", "alert_threshold"}).
			AddRow(budgetID.String(), "MONTHLY", int64(42000), int64(50000), 80))

	alerts, err := repo.AddSpend(context.Background(), orgID, models.CategoryTravel, 4500, at)

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, budgetID, alerts[0].BudgetID)
	assert.Equal(t, orgID, alerts[0].OrgID)
	assert.Equal(t, models.CategoryTravel, alerts[0].Category)
	assert.Equal(t, models.BudgetPeriodMonthly, alerts[0].Period)
	assert.Equal(t, models.Cents(42000), alerts[0].Spent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetRepository_AddSpend_RunsInBoundTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())
	orgID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE budgets b")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "period", "spent_cents", "amount_cents", "alert_threshold"}))
	mock.ExpectCommit()

	tx, err := tm.Begin(context.Background())
	require.NoError(t, err)

	alerts, err := NewBudgetRepository(db, zap.NewNop()).WithTx(tx).
		AddSpend(context.Background(), orgID, models.CategoryTraining, 100, time.Now())

	require.NoError(t, err)
	assert.Empty(t, alerts)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
