package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/upb/card-control-plane/middleware"
	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/repositories"
)

// fakeCards serves cards by network id; other methods are not used here.
type fakeCards struct {
	repositories.CardRepository
	byNetworkID map[string]*models.Card
	err         error
}

func (f *fakeCards) GetByNetworkID(ctx context.Context, networkCardID string) (*models.Card, error) {
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.byNetworkID[networkCardID]; ok {
		return c, nil
	}
	return nil, repositories.ErrNotFound
}

type stubPolicies struct {
	policies []*models.Policy
	err      error
}

func (s stubPolicies) ActivePolicies(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	return s.policies, s.err
}

// recordingLedger captures recorded transactions and answers lookups from
// them the way the store would
type recordingLedger struct {
	mu      sync.Mutex
	txns    []*models.Transaction
	err     error
	prevErr error
}

func (r *recordingLedger) Previous(ctx context.Context, authorizationID string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prevErr != nil {
		return nil, r.prevErr
	}
	for _, txn := range r.txns {
		if txn.AuthorizationID == authorizationID {
			return txn, nil
		}
	}
	return nil, nil
}

func (r *recordingLedger) RecordOrEnqueue(ctx context.Context, txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns = append(r.txns, txn)
	return r.err
}

func (r *recordingLedger) recorded() []*models.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Transaction(nil), r.txns...)
}

// withOrg scopes a request to orgID the way RequireAuth does
func withOrg(r *http.Request, orgID uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithOrgID(r.Context(), orgID))
}

// withURLParam sets a chi URL parameter on the request
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func ptr[T any](v T) *T {
	return &v
}
