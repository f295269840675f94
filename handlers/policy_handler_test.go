package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	rules "github.com/upb/card-control-plane/internal/policy"
	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/services"
	"github.com/upb/card-control-plane/services/policy"
)

// MockPolicyService is a mock implementation of PolicyService
type MockPolicyService struct {
	mock.Mock
}

func (m *MockPolicyService) List(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Policy), args.Error(1)
}

func (m *MockPolicyService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Policy, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Policy), args.Error(1)
}

func (m *MockPolicyService) Create(ctx context.Context, orgID uuid.UUID, in policy.CreateInput) (*models.Policy, error) {
	args := m.Called(ctx, orgID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Policy), args.Error(1)
}

func (m *MockPolicyService) Update(ctx context.Context, orgID, id uuid.UUID, in policy.UpdateInput) (*models.Policy, error) {
	args := m.Called(ctx, orgID, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Policy), args.Error(1)
}

func (m *MockPolicyService) Delete(ctx context.Context, orgID, id uuid.UUID, requestID string) error {
	args := m.Called(ctx, orgID, id, requestID)
	return args.Error(0)
}

func (m *MockPolicyService) DryRun(ctx context.Context, orgID uuid.UUID, in policy.DryRunInput) (rules.Result, error) {
	args := m.Called(ctx, orgID, in)
	return args.Get(0).(rules.Result), args.Error(1)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func TestHandleListPolicies(t *testing.T) {
	logger := zap.NewNop()
	orgID := uuid.New()

	t.Run("lists org policies", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)
		policies := []*models.Policy{
			models.NewPolicy(orgID, "Cap", "amount > 10000"),
			models.NewPolicy(orgID, "Travel", "category == 'TRAVEL'"),
		}
		svc.On("List", mock.Anything, orgID).Return(policies, nil)

		w := httptest.NewRecorder()
		handler.HandleListPolicies(w, withOrg(httptest.NewRequest(http.MethodGet, "/api/v1/policies", nil), orgID))

		assert.Equal(t, http.StatusOK, w.Code)
		var got []models.Policy
		decodeData(t, w, &got)
		require.Len(t, got, 2)
		assert.Equal(t, "Cap", got[0].Name)
		svc.AssertExpectations(t)
	})

	t.Run("missing organization", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleListPolicies(w, httptest.NewRequest(http.MethodGet, "/api/v1/policies", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)
		svc.On("List", mock.Anything, orgID).Return(nil, services.ErrDatabaseError)

		w := httptest.NewRecorder()
		handler.HandleListPolicies(w, withOrg(httptest.NewRequest(http.MethodGet, "/api/v1/policies", nil), orgID))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "database")
	})
}

func TestHandleGetPolicy(t *testing.T) {
	logger := zap.NewNop()
	orgID := uuid.New()
	p := models.NewPolicy(orgID, "Cap", "amount > 10000")

	tests := []struct {
		name       string
		id         string
		setup      func(svc *MockPolicyService)
		wantStatus int
	}{
		{
			name: "found",
			id:   p.ID.String(),
			setup: func(svc *MockPolicyService) {
				svc.On("Get", mock.Anything, orgID, p.ID).Return(p, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not found",
			id:   p.ID.String(),
			setup: func(svc *MockPolicyService) {
				svc.On("Get", mock.Anything, orgID, p.ID).Return(nil, services.ErrPolicyNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid id",
			id:         "not-a-uuid",
			setup:      func(svc *MockPolicyService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPolicyService)
			tt.setup(svc)
			handler := NewPolicyHandler(svc, logger)

			req := withURLParam(withOrg(httptest.NewRequest(http.MethodGet, "/api/v1/policies/"+tt.id, nil), orgID), "id", tt.id)
			w := httptest.NewRecorder()
			handler.HandleGetPolicy(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandleCreatePolicy(t *testing.T) {
	logger := zap.NewNop()
	orgID := uuid.New()

	t.Run("creates policy", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)
		created := models.NewPolicy(orgID, "Cap", "amount > 10000")
		created.Priority = 3
		svc.On("Create", mock.Anything, orgID, mock.MatchedBy(func(in policy.CreateInput) bool {
			return in.Name == "Cap" && in.Expression == "amount > 10000" && in.Priority == 3 && in.IsActive == nil
		})).Return(created, nil)

		w := httptest.NewRecorder()
		handler.HandleCreatePolicy(w, withOrg(jsonRequest(http.MethodPost, "/api/v1/policies",
			`{"name":"Cap","expression":"amount > 10000","priority":3}`), orgID))

		assert.Equal(t, http.StatusCreated, w.Code)
		var got models.Policy
		decodeData(t, w, &got)
		assert.Equal(t, created.ID, got.ID)
		assert.True(t, got.IsActive)
		svc.AssertExpectations(t)
	})

	t.Run("invalid expression", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)
		svc.On("Create", mock.Anything, orgID, mock.Anything).
			Return(nil, services.ErrInvalidExpression.WithDetail("error", "unexpected end of expression"))

		w := httptest.NewRecorder()
		handler.HandleCreatePolicy(w, withOrg(jsonRequest(http.MethodPost, "/api/v1/policies",
			`{"name":"Bad","expression":"amount >"}`), orgID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unexpected end of expression")
	})

	validationCases := []struct {
		name string
		body string
	}{
		{"missing name", `{"expression":"amount > 1"}`},
		{"missing expression", `{"name":"Cap"}`},
		{"name too long", `{"name":"` + strings.Repeat("n", 101) + `","expression":"amount > 1"}`},
		{"negative priority", `{"name":"Cap","expression":"amount > 1","priority":-1}`},
		{"unknown field", `{"name":"Cap","expression":"amount > 1","enabled":true}`},
		{"invalid json", `{"name":`},
		{"empty body", ``},
	}
	for _, tc := range validationCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockPolicyService)
			handler := NewPolicyHandler(svc, logger)

			w := httptest.NewRecorder()
			handler.HandleCreatePolicy(w, withOrg(jsonRequest(http.MethodPost, "/api/v1/policies", tc.body), orgID))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandleUpdatePolicy(t *testing.T) {
	logger := zap.NewNop()
	orgID := uuid.New()
	p := models.NewPolicy(orgID, "Cap", "amount > 20000")

	svc := new(MockPolicyService)
	handler := NewPolicyHandler(svc, logger)
	svc.On("Update", mock.Anything, orgID, p.ID, mock.MatchedBy(func(in policy.UpdateInput) bool {
		return in.Name == nil && in.Expression != nil && *in.Expression == "amount > 20000" &&
			in.IsActive != nil && !*in.IsActive
	})).Return(p, nil)

	req := jsonRequest(http.MethodPut, "/api/v1/policies/"+p.ID.String(), `{"expression":"amount > 20000","is_active":false}`)
	w := httptest.NewRecorder()
	handler.HandleUpdatePolicy(w, withURLParam(withOrg(req, orgID), "id", p.ID.String()))

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandleDeletePolicy(t *testing.T) {
	logger := zap.NewNop()
	orgID := uuid.New()
	id := uuid.New()

	t.Run("deletes", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)
		svc.On("Delete", mock.Anything, orgID, id, mock.Anything).Return(nil)

		w := httptest.NewRecorder()
		req := withURLParam(withOrg(httptest.NewRequest(http.MethodDelete, "/api/v1/policies/"+id.String(), nil), orgID), "id", id.String())
		handler.HandleDeletePolicy(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("other organization's policy", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)
		svc.On("Delete", mock.Anything, orgID, id, mock.Anything).Return(services.ErrPolicyNotFound)

		w := httptest.NewRecorder()
		req := withURLParam(withOrg(httptest.NewRequest(http.MethodDelete, "/api/v1/policies/"+id.String(), nil), orgID), "id", id.String())
		handler.HandleDeletePolicy(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleEvaluatePolicy(t *testing.T) {
	logger := zap.NewNop()
	orgID := uuid.New()

	t.Run("dry run declines", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)
		triggered := models.NewPolicy(orgID, "dry-run", "amount > 100")
		skippedID := uuid.New()
		svc.On("DryRun", mock.Anything, orgID, mock.MatchedBy(func(in policy.DryRunInput) bool {
			return in.Expression == "amount > 100" && in.Amount == 500 && in.Category == models.CategoryTravel
		})).Return(rules.Result{
			Reason:  "Policy triggered: dry-run (amount > 100)",
			Policy:  triggered,
			Skipped: []rules.SkippedPolicy{{PolicyID: skippedID, Name: "Broken", Error: "non-boolean result"}},
		}, nil)

		w := httptest.NewRecorder()
		handler.HandleEvaluatePolicy(w, withOrg(jsonRequest(http.MethodPost, "/api/v1/policies/evaluate",
			`{"expression":"amount > 100","amount_cts":500,"merchant":"Acme","category":"TRAVEL"}`), orgID))

		assert.Equal(t, http.StatusOK, w.Code)
		var got EvaluatePolicyResponse
		decodeData(t, w, &got)
		assert.False(t, got.Approved)
		assert.Equal(t, "Policy triggered: dry-run (amount > 100)", got.Reason)
		require.NotNil(t, got.PolicyID)
		assert.Equal(t, triggered.ID, *got.PolicyID)
		require.Len(t, got.Skipped, 1)
		assert.Equal(t, skippedID, got.Skipped[0].PolicyID)
	})

	t.Run("approved run reports empty skipped list", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)
		svc.On("DryRun", mock.Anything, orgID, mock.Anything).Return(rules.Result{Approved: true, Reason: "Approved"}, nil)

		w := httptest.NewRecorder()
		handler.HandleEvaluatePolicy(w, withOrg(jsonRequest(http.MethodPost, "/api/v1/policies/evaluate", `{"amount_cts":1}`), orgID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"skipped_policies":[]`)
		assert.NotContains(t, w.Body.String(), "policy_id")
	})

	t.Run("unknown category", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleEvaluatePolicy(w, withOrg(jsonRequest(http.MethodPost, "/api/v1/policies/evaluate",
			`{"amount_cts":1,"category":"GROCERIES"}`), orgID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "DryRun", mock.Anything, mock.Anything, mock.Anything)
	})
}
