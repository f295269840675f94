package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/services"
)

// MockTransactionService is a mock implementation of TransactionService
type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Transaction), args.Int(1), args.Error(2)
}

func (m *MockTransactionService) Correct(ctx context.Context, orgID, id uuid.UUID, status models.TxnStatus, reason, requestID string) (*models.Transaction, error) {
	args := m.Called(ctx, orgID, id, status, reason, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionService) Summary(ctx context.Context, orgID uuid.UUID, start, end *time.Time) ([]models.CategorySpend, error) {
	args := m.Called(ctx, orgID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CategorySpend), args.Error(1)
}

func TestHandleListTransactions(t *testing.T) {
	orgID := uuid.New()
	cardID := uuid.New()

	t.Run("defaults", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc, zap.NewNop())
		txn := models.NewTransaction("iauth_1", 2500, "Acme", models.CategoryEquipment).Approve()
		svc.On("List", mock.Anything, models.TransactionFilter{OrgID: orgID, Limit: 50}).
			Return([]*models.Transaction{txn}, 1, nil)

		w := httptest.NewRecorder()
		handler.HandleListTransactions(w, withOrg(httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil), orgID))

		assert.Equal(t, http.StatusOK, w.Code)
		var got ListTransactionsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 1, got.Total)
		assert.Equal(t, 50, got.Limit)
		assert.Equal(t, 0, got.Offset)
		require.Len(t, got.Data, 1)
		assert.Equal(t, "iauth_1", got.Data[0].AuthorizationID)
		svc.AssertExpectations(t)
	})

	t.Run("all filters", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc, zap.NewNop())
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		svc.On("List", mock.Anything, mock.MatchedBy(func(f models.TransactionFilter) bool {
			return f.OrgID == orgID &&
				f.StartDate != nil && f.StartDate.Equal(start) &&
				f.EndDate != nil && f.EndDate.Equal(end) &&
				f.Status == models.TxnStatusDeclined &&
				f.Category == models.CategoryTravel &&
				f.CardID != nil && *f.CardID == cardID &&
				f.Limit == 10 && f.Offset == 20
		})).Return([]*models.Transaction{}, 0, nil)

		target := "/api/v1/transactions?start_date=2024-01-01T00:00:00Z&end_date=2024-02-01T00:00:00Z" +
			"&status=DECLINED&category=TRAVEL&card_id=" + cardID.String() + "&limit=10&offset=20"
		w := httptest.NewRecorder()
		handler.HandleListTransactions(w, withOrg(httptest.NewRequest(http.MethodGet, target, nil), orgID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[],"total":0,"limit":10,"offset":20}`, w.Body.String())
		svc.AssertExpectations(t)
	})

	invalid := []struct {
		name  string
		query string
		field string
	}{
		{"limit zero", "limit=0", "limit"},
		{"limit too large", "limit=101", "limit"},
		{"limit not a number", "limit=ten", "limit"},
		{"negative offset", "offset=-1", "offset"},
		{"bad start date", "start_date=2024-01-01", "start_date"},
		{"end before start", "start_date=2024-02-01T00:00:00Z&end_date=2024-01-01T00:00:00Z", "end_date"},
		{"unknown status", "status=REFUNDED", "status"},
		{"unknown category", "category=GROCERIES", "category"},
		{"bad card id", "card_id=ic_123", "card_id"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockTransactionService)
			handler := NewTransactionHandler(svc, zap.NewNop())

			w := httptest.NewRecorder()
			handler.HandleListTransactions(w, withOrg(httptest.NewRequest(http.MethodGet, "/api/v1/transactions?"+tc.query, nil), orgID))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			details, ok := body["details"].(map[string]interface{})
			require.True(t, ok)
			assert.Contains(t, details, tc.field)
			svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleCorrectTransaction(t *testing.T) {
	orgID := uuid.New()
	id := uuid.New()

	t.Run("declines with reason", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc, zap.NewNop())
		corrected := models.NewTransaction("iauth_1", 100, "Acme", models.CategoryTravel).Decline("Fraud", nil)
		svc.On("Correct", mock.Anything, orgID, id, models.TxnStatusDeclined, "Fraud", mock.Anything).Return(corrected, nil)

		req := jsonRequest(http.MethodPatch, "/api/v1/transactions/"+id.String(), `{"status":"DECLINED","reason":"Fraud"}`)
		w := httptest.NewRecorder()
		handler.HandleCorrectTransaction(w, withURLParam(withOrg(req, orgID), "id", id.String()))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"DECLINED"`)
		svc.AssertExpectations(t)
	})

	t.Run("decline without reason", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc, zap.NewNop())
		svc.On("Correct", mock.Anything, orgID, id, models.TxnStatusDeclined, "", mock.Anything).Return(nil, services.ErrReasonRequired)

		req := jsonRequest(http.MethodPatch, "/api/v1/transactions/"+id.String(), `{"status":"DECLINED"}`)
		w := httptest.NewRecorder()
		handler.HandleCorrectTransaction(w, withURLParam(withOrg(req, orgID), "id", id.String()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "declined transactions require a reason")
	})

	t.Run("unknown status", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc, zap.NewNop())

		req := jsonRequest(http.MethodPatch, "/api/v1/transactions/"+id.String(), `{"status":"REFUNDED"}`)
		w := httptest.NewRecorder()
		handler.HandleCorrectTransaction(w, withURLParam(withOrg(req, orgID), "id", id.String()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Correct", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc, zap.NewNop())
		svc.On("Correct", mock.Anything, orgID, id, models.TxnStatusApproved, "", mock.Anything).Return(nil, services.ErrTransactionNotFound)

		req := jsonRequest(http.MethodPatch, "/api/v1/transactions/"+id.String(), `{"status":"APPROVED"}`)
		w := httptest.NewRecorder()
		handler.HandleCorrectTransaction(w, withURLParam(withOrg(req, orgID), "id", id.String()))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleSpendSummary(t *testing.T) {
	orgID := uuid.New()

	t.Run("totals in cents and dollars", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc, zap.NewNop())
		svc.On("Summary", mock.Anything, orgID, (*time.Time)(nil), (*time.Time)(nil)).Return([]models.CategorySpend{
			{Category: models.CategoryTravel, Total: 15050, Count: 2},
			{Category: models.CategoryEquipment, Total: 99, Count: 1},
		}, nil)

		w := httptest.NewRecorder()
		handler.HandleSpendSummary(w, withOrg(httptest.NewRequest(http.MethodGet, "/api/v1/transactions/summary", nil), orgID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":{
			"categories":[
				{"category":"TRAVEL","total_cents":15050,"total":"150.50","count":2},
				{"category":"EQUIPMENT","total_cents":99,"total":"0.99","count":1}
			],
			"total_cents":15149,
			"total":"151.49"
		}}`, w.Body.String())
	})

	t.Run("date range is passed through", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc, zap.NewNop())
		svc.On("Summary", mock.Anything, orgID, mock.MatchedBy(func(s *time.Time) bool { return s != nil }), (*time.Time)(nil)).
			Return([]models.CategorySpend{}, nil)

		w := httptest.NewRecorder()
		handler.HandleSpendSummary(w, withOrg(httptest.NewRequest(http.MethodGet, "/api/v1/transactions/summary?start_date=2024-01-01T00:00:00Z", nil), orgID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"categories":[]`)
		svc.AssertExpectations(t)
	})

	t.Run("bad date", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc, zap.NewNop())

		w := httptest.NewRecorder()
		handler.HandleSpendSummary(w, withOrg(httptest.NewRequest(http.MethodGet, "/api/v1/transactions/summary?end_date=yesterday", nil), orgID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
