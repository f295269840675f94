package postgres

import (
	"context"
	"database/sql"
	"errors"
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

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return WrapDB(db, zap.NewNop()), mock
}

func cardRow(card *models.Card) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "org_id", "network_card_id", "nickname", "last4", "network", "type", "status",
		"monthly_limit_cents", "total_spent_cents", "last_used_at", "created_at", "updated_at",
	}).AddRow(
		card.ID.String(), card.OrgID.String(), card.NetworkCardID, card.Nickname, card.Last4,
		string(card.Network), string(card.Type), string(card.Status),
		nil, int64(card.TotalSpent), nil, card.CreatedAt, card.UpdatedAt,
	)
}

func TestCardRepository_GetByNetworkID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCardRepository(db, zap.NewNop())
	card := models.NewCard(uuid.New(), "ic_123", "Ops", "4242")
	card.TotalSpent = 1250

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM cards WHERE network_card_id = $1")).
			WithArgs("ic_123").
			WillReturnRows(cardRow(card))

		got, err := repo.GetByNetworkID(context.Background(), "ic_123")

		require.NoError(t, err)
		assert.Equal(t, card.ID, got.ID)
		assert.Equal(t, card.OrgID, got.OrgID)
		assert.Equal(t, models.Cents(1250), got.TotalSpent)
		assert.Equal(t, models.CardStatusActive, got.Status)
		assert.Nil(t, got.MonthlyLimit)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM cards WHERE network_card_id = $1")).
			WithArgs("ic_missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByNetworkID(context.Background(), "ic_missing")

		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_Create_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCardRepository(db, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cards")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), models.NewCard(uuid.New(), "ic_dup", "Dup", "0000"))

	assert.ErrorIs(t, err, repositories.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_IncrementSpend(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCardRepository(db, zap.NewNop())
	cardID := uuid.New()
	usedAt := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET total_spent_cents = total_spent_cents + $2")).
		WithArgs(cardID, int64(5000), usedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET total_spent_cents = total_spent_cents + $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.IncrementSpend(context.Background(), cardID, 5000, usedAt))

	err := repo.IncrementSpend(context.Background(), uuid.New(), 100, usedAt)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepository_ListActiveByOrg_Order(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPolicyRepository(db, zap.NewNop())
	orgID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "org_id", "name", "expression", "is_active", "priority", "created_at", "updated_at"}).
		AddRow(uuid.NewString(), orgID.String(), "Block Travel", "category == 'TRAVEL'", true, 0, now, now).
		AddRow(uuid.NewString(), orgID.String(), "Cap", "amount > 100000", true, 0, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE org_id = $1 AND is_active = true ORDER BY priority ASC, name ASC")).
		WithArgs(orgID).
		WillReturnRows(rows)

	policies, err := repo.ListActiveByOrg(context.Background(), orgID)

	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "Block Travel", policies[0].Name)
	assert.Equal(t, "amount > 100000", policies[1].Expression)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepository_Delete_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPolicyRepository(db, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM policies")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), uuid.New())

	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_CreateIfAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db, zap.NewNop())
	txn := models.NewTransaction("iauth_1", 2500, "Acme", models.CategoryEquipment)
	txn.Approve()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (authorization_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (authorization_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateIfAbsent(context.Background(), txn)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(context.Background(), txn)
	require.NoError(t, err)
	assert.False(t, created, "replayed authorization must not create a second row")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db, zap.NewNop())
	orgID := uuid.New()
	cardID := uuid.New()
	start := time.Now().Add(-24 * time.Hour)
	now := time.Now()

	filter := models.TransactionFilter{
		OrgID:     orgID,
		StartDate: &start,
		Status:    models.TxnStatusDeclined,
		CardID:    &cardID,
		Limit:     10,
		Offset:    20,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transactions WHERE org_id = $1 AND created_at >= $2 AND status = $3 AND card_id = $4")).
		WithArgs(orgID, start, models.TxnStatusDeclined, cardID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	rows := sqlmock.NewRows([]string{
		"id", "authorization_id", "org_id", "card_id", "network_card_id", "amount_cents",
		"merchant", "category", "status", "reason", "policy_id", "description", "created_at", "updated_at",
	}).AddRow(
		uuid.NewString(), "iauth_9", orgID.String(), cardID.String(), "ic_1", int64(120000),
		"Airline", "TRAVEL", "DECLINED", "Policy triggered: Cap (amount > 100000)", nil, "", now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $5 OFFSET $6")).
		WithArgs(orgID, start, models.TxnStatusDeclined, cardID, 10, 20).
		WillReturnRows(rows)

	txns, total, err := repo.List(context.Background(), filter)

	require.NoError(t, err)
	assert.Equal(t, 21, total)
	require.Len(t, txns, 1)
	assert.Equal(t, models.Cents(120000), txns[0].Amount)
	assert.Equal(t, models.CategoryTravel, txns[0].Category)
	require.NotNil(t, txns[0].Reason)
	assert.Nil(t, txns[0].PolicyID)
	assert.Equal(t, cardID, *txns[0].CardID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_SpendByCategory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db, zap.NewNop())
	orgID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY category")).
		WithArgs(orgID, models.TxnStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"category", "sum", "count"}).
			AddRow("EQUIPMENT", int64(30000), 2).
			AddRow("TRAVEL", int64(7500), 1))

	spend, err := repo.SpendByCategory(context.Background(), orgID, nil, nil)

	require.NoError(t, err)
	require.Len(t, spend, 2)
	assert.Equal(t, models.CategoryEquipment, spend[0].Category)
	assert.Equal(t, models.Cents(30000), spend[0].Total)
	assert.Equal(t, 2, spend[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_InsertAndRead(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db, zap.NewNop())

	log := models.NewAuditLog(nil, models.AuditActionAuthorizationDecision, "authorization").
		WithDecision("iauth_1", false, "Card not found", 4)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), log))

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE authorization_id = $1")).
		WithArgs("iauth_1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "org_id", "action", "resource_type", "resource_id", "details", "request_id", "timestamp",
			"authorization_id", "approved", "reason", "latency_ms",
		}).AddRow(
			log.ID.String(), nil, "authorization_decision", "authorization", nil, nil, nil, log.Timestamp,
			"iauth_1", false, "Card not found", 4,
		))

	logs, err := repo.GetByAuthorizationID(context.Background(), "iauth_1")

	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].OrgID)
	assert.Equal(t, models.AuditActionAuthorizationDecision, logs[0].Action)
	assert.False(t, *logs[0].Approved)
	assert.Equal(t, "Card not found", *logs[0].Reason)
	assert.Empty(t, logs[0].RequestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_BoundRepositoriesShareTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())
	cards := NewCardRepository(db, zap.NewNop())
	txns := NewTransactionRepository(db, zap.NewNop())
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE cards")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := tm.Begin(ctx)
		require.NoError(t, err)
		_, err = txns.WithTx(tx).CreateIfAbsent(ctx, models.NewTransaction("iauth_2", 100, "A", models.CategoryTravel))
		require.NoError(t, err)
		require.NoError(t, cards.WithTx(tx).IncrementSpend(ctx, uuid.New(), 100, time.Now()))
		require.NoError(t, tx.Commit())
	})

	t.Run("rolls back, and a second rollback is a no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE cards")).WillReturnError(errors.New("deadlock"))
		mock.ExpectRollback()

		tx, err := tm.Begin(ctx)
		require.NoError(t, err)
		assert.Error(t, cards.WithTx(tx).IncrementSpend(ctx, uuid.New(), 100, time.Now()))
		require.NoError(t, tx.Rollback())
		assert.NoError(t, tx.Rollback())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_HealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := WrapDB(sqlDB, nil)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
