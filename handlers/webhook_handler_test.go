package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/models"
	"github.com/upb/card-control-plane/services"
	"github.com/upb/card-control-plane/services/scoring"
)

const testSecret = "whsec_test_secret"

func signPayload(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts.Unix())))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

type authEvent struct {
	eventType string
	authID    string
	cardID    string
	orgID     string
	merchant  *string
	category  string
	amount    int64
	created   int64
}

func (e authEvent) payload() []byte {
	if e.eventType == "" {
		e.eventType = EventAuthorizationRequest
	}
	metadata := map[string]string{}
	if e.orgID != "" {
		metadata["orgId"] = e.orgID
	}
	merchantData := map[string]interface{}{"category": e.category}
	if e.merchant != nil {
		merchantData["name"] = *e.merchant
	}
	object := map[string]interface{}{
		"id":            e.authID,
		"amount":        e.amount,
		"card":          map[string]interface{}{"id": e.cardID, "metadata": metadata},
		"merchant_data": merchantData,
	}
	if e.created != 0 {
		object["created"] = e.created
	}
	body, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_1",
		"type": e.eventType,
		"data": map[string]interface{}{"object": object},
	})
	return body
}

type webhookFixture struct {
	orgID   uuid.UUID
	card    *models.Card
	cards   *fakeCards
	ledger  *recordingLedger
	handler *WebhookHandler
}

func newWebhookFixture(policies ...*models.Policy) *webhookFixture {
	orgID := uuid.New()
	card := models.NewCard(orgID, "ic_123", "Ops", "4242")
	cards := &fakeCards{byNetworkID: map[string]*models.Card{"ic_123": card}}
	engine := scoring.NewService(cards, stubPolicies{policies: policies}, nil, nil, zap.NewNop(), scoring.DefaultConfig())
	ledger := &recordingLedger{}
	return &webhookFixture{
		orgID:  orgID,
		card:   card,
		cards:  cards,
		ledger: ledger,
		handler: NewWebhookHandler(engine, ledger, WebhookConfig{
			SigningSecret: testSecret,
			Tolerance:     5 * time.Minute,
			Deadline:      time.Second,
		}, zap.NewNop()),
	}
}

func (f *webhookFixture) event(amount int64, merchant, category string) authEvent {
	return authEvent{authID: "iauth_1", cardID: "ic_123", orgID: f.orgID.String(), merchant: &merchant, category: category, amount: amount}
}

func post(h http.HandlerFunc, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/issuing/authorization", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func postSigned(h http.HandlerFunc, payload []byte) *httptest.ResponseRecorder {
	return post(h, payload, signPayload(testSecret, payload, time.Now()))
}

func TestWebhook_Decisions(t *testing.T) {
	tests := []struct {
		name         string
		policies     []*models.Policy
		event        func(f *webhookFixture) authEvent
		wantBody     string
		wantStatus   models.TxnStatus
		wantCategory models.BudgetCategory
		wantCard     bool
		wantOrg      bool
	}{
		{
			name:         "no policies approves",
			event:        func(f *webhookFixture) authEvent { return f.event(5000, "Acme", "commercial_equipment") },
			wantBody:     `{"approve":true}`,
			wantStatus:   models.TxnStatusApproved,
			wantCategory: models.CategoryEquipment,
			wantCard:     true,
			wantOrg:      true,
		},
		{
			name:         "triggered policy declines with its name and expression",
			policies:     []*models.Policy{models.NewPolicy(uuid.Nil, "Large purchase", "amount > 10000")},
			event:        func(f *webhookFixture) authEvent { return f.event(15000, "Acme", "commercial_equipment") },
			wantBody:     `{"approve":false,"decline_reason":"Policy triggered: Large purchase (amount > 10000)"}`,
			wantStatus:   models.TxnStatusDeclined,
			wantCategory: models.CategoryEquipment,
			wantCard:     true,
			wantOrg:      true,
		},
		{
			name:         "merchant scoped policy for another merchant is skipped",
			policies:     []*models.Policy{models.NewPolicy(uuid.Nil, "Coffee", "Coffee Shop: amount > 500")},
			event:        func(f *webhookFixture) authEvent { return f.event(10000, "Gas Station", "service_stations") },
			wantBody:     `{"approve":true}`,
			wantStatus:   models.TxnStatusApproved,
			wantCategory: models.CategoryRetailSpace,
			wantCard:     true,
			wantOrg:      true,
		},
		{
			name: "unknown card declines and is still recorded",
			event: func(f *webhookFixture) authEvent {
				e := f.event(5000, "Acme", "commercial_equipment")
				e.cardID = "ic_unknown"
				return e
			},
			wantBody:     `{"approve":false,"decline_reason":"Card not found"}`,
			wantStatus:   models.TxnStatusDeclined,
			wantCategory: models.CategoryEquipment,
			wantOrg:      true,
		},
		{
			name:         "grocery code classifies as retail space",
			event:        func(f *webhookFixture) authEvent { return f.event(2500, "FreshMart", "grocery_stores_supermarkets") },
			wantBody:     `{"approve":true}`,
			wantStatus:   models.TxnStatusApproved,
			wantCategory: models.CategoryRetailSpace,
			wantCard:     true,
			wantOrg:      true,
		},
		{
			name: "missing organization",
			event: func(f *webhookFixture) authEvent {
				e := f.event(5000, "Acme", "commercial_equipment")
				e.orgID = ""
				return e
			},
			wantBody:     `{"approve":false,"decline_reason":"Missing organization ID"}`,
			wantStatus:   models.TxnStatusDeclined,
			wantCategory: models.CategoryEquipment,
		},
		{
			name: "non-uuid organization",
			event: func(f *webhookFixture) authEvent {
				e := f.event(5000, "Acme", "commercial_equipment")
				e.orgID = "org_123"
				return e
			},
			wantBody:     `{"approve":false,"decline_reason":"Missing organization ID"}`,
			wantStatus:   models.TxnStatusDeclined,
			wantCategory: models.CategoryEquipment,
		},
		{
			name: "organization mismatch",
			event: func(f *webhookFixture) authEvent {
				e := f.event(5000, "Acme", "commercial_equipment")
				e.orgID = uuid.NewString()
				return e
			},
			wantBody:     `{"approve":false,"decline_reason":"Organization mismatch"}`,
			wantStatus:   models.TxnStatusDeclined,
			wantCategory: models.CategoryEquipment,
			wantOrg:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(tt.policies...)

			w := postSigned(f.handler.HandleAuthorization, tt.event(f).payload())

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())

			recorded := f.ledger.recorded()
			require.Len(t, recorded, 1)
			txn := recorded[0]
			assert.Equal(t, "iauth_1", txn.AuthorizationID)
			assert.Equal(t, tt.wantStatus, txn.Status)
			assert.Equal(t, tt.wantCategory, txn.Category)
			if tt.wantStatus == models.TxnStatusDeclined {
				require.NotNil(t, txn.Reason)
				var resp AuthorizationResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, resp.DeclineReason, *txn.Reason)
			} else {
				assert.Nil(t, txn.Reason)
			}
			if tt.wantCard {
				require.NotNil(t, txn.CardID)
				assert.Equal(t, f.card.ID, *txn.CardID)
			} else {
				assert.Nil(t, txn.CardID)
			}
			assert.Equal(t, tt.wantOrg, txn.OrgID != nil)
		})
	}
}

func TestWebhook_ResponseHasNoExtraFields(t *testing.T) {
	f := newWebhookFixture(models.NewPolicy(uuid.Nil, "Cap", "amount > 1"))

	w := postSigned(f.handler.HandleAuthorization, f.event(500, "Acme", "").payload())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body, 2)
	assert.Contains(t, body, "approve")
	assert.Contains(t, body, "decline_reason")
}

func TestWebhook_TriggeredPolicyRecorded(t *testing.T) {
	p := models.NewPolicy(uuid.Nil, "Cap", "amount > 1")
	f := newWebhookFixture(p)

	postSigned(f.handler.HandleAuthorization, f.event(500, "Acme", "").payload())

	recorded := f.ledger.recorded()
	require.Len(t, recorded, 1)
	require.NotNil(t, recorded[0].PolicyID)
	assert.Equal(t, p.ID, *recorded[0].PolicyID)
	assert.Equal(t, models.DefaultBudgetCategory, recorded[0].Category)
}

func TestWebhook_UnknownMerchant(t *testing.T) {
	f := newWebhookFixture()
	e := f.event(500, "", "")
	e.merchant = nil

	postSigned(f.handler.HandleAuthorization, e.payload())

	recorded := f.ledger.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, UnknownMerchant, recorded[0].Merchant)
}

func TestWebhook_Rejections(t *testing.T) {
	f := newWebhookFixture()
	payload := f.event(500, "Acme", "").payload()

	tests := []struct {
		name       string
		payload    []byte
		signature  string
		wantStatus int
		wantBody   string
	}{
		{"missing signature", payload, "", http.StatusBadRequest, `{"error":"invalid signature"}`},
		{"wrong secret", payload, signPayload("whsec_other", payload, time.Now()), http.StatusBadRequest, `{"error":"invalid signature"}`},
		{"tampered body", append([]byte(nil), bytes.Replace(payload, []byte("500"), []byte("5"), 1)...), signPayload(testSecret, payload, time.Now()), http.StatusBadRequest, `{"error":"invalid signature"}`},
		{"stale timestamp", payload, signPayload(testSecret, payload, time.Now().Add(-time.Hour)), http.StatusBadRequest, `{"error":"invalid signature"}`},
		{"garbage header", payload, "v1=deadbeef", http.StatusBadRequest, `{"error":"invalid signature"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(f.handler.HandleAuthorization, tt.payload, tt.signature)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
	assert.Empty(t, f.ledger.recorded())
}

func TestWebhook_MalformedEventAfterValidSignature(t *testing.T) {
	f := newWebhookFixture()

	w := postSigned(f.handler.HandleAuthorization, []byte(`{"type":"issuing_authorization.request","data":`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.ledger.recorded())
}

func TestWebhook_UnsupportedEventType(t *testing.T) {
	f := newWebhookFixture()
	e := f.event(500, "Acme", "")
	e.eventType = "issuing_authorization.created"

	w := postSigned(f.handler.HandleAuthorization, e.payload())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Empty(t, f.ledger.recorded())
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	f := newWebhookFixture()
	f.handler.cfg.MaxBodyBytes = 64
	payload := []byte(`{"type":"` + strings.Repeat("x", 128) + `"}`)

	w := postSigned(f.handler.HandleAuthorization, payload)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, f.ledger.recorded())
}

type funcScorer func(ctx context.Context, req scoring.Request) (*scoring.Decision, error)

func (f funcScorer) Score(ctx context.Context, req scoring.Request) (*scoring.Decision, error) {
	return f(ctx, req)
}

func TestWebhook_DeadlineDeclines(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ledger := &recordingLedger{}
	blocking := funcScorer(func(ctx context.Context, req scoring.Request) (*scoring.Decision, error) {
		<-release
		return &scoring.Decision{Approve: true}, nil
	})
	h := NewWebhookHandler(blocking, ledger, WebhookConfig{SigningSecret: testSecret, Tolerance: time.Minute, Deadline: 50 * time.Millisecond}, zap.NewNop())
	orgID := uuid.New()
	merchant := "Acme"
	payload := authEvent{authID: "iauth_slow", cardID: "ic_1", orgID: orgID.String(), merchant: &merchant, amount: 100}.payload()

	start := time.Now()
	w := postSigned(h.HandleAuthorization, payload)

	assert.Less(t, time.Since(start), time.Second)
	assert.JSONEq(t, `{"approve":false,"decline_reason":"Authorization could not be completed"}`, w.Body.String())
	recorded := ledger.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, models.TxnStatusDeclined, recorded[0].Status)
	assert.Equal(t, FallbackDeclineReason, *recorded[0].Reason)
	require.NotNil(t, recorded[0].OrgID)
	assert.Equal(t, orgID, *recorded[0].OrgID)
}

func TestWebhook_EngineErrorDeclines(t *testing.T) {
	ledger := &recordingLedger{}
	failing := funcScorer(func(ctx context.Context, req scoring.Request) (*scoring.Decision, error) {
		return nil, services.ErrDatabaseError.Wrap(errors.New("connection refused"))
	})
	h := NewWebhookHandler(failing, ledger, WebhookConfig{SigningSecret: testSecret, Tolerance: time.Minute}, zap.NewNop())
	merchant := "Acme"
	payload := authEvent{authID: "iauth_2", cardID: "ic_1", orgID: uuid.NewString(), merchant: &merchant, amount: 100}.payload()

	w := postSigned(h.HandleAuthorization, payload)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"approve":false,"decline_reason":"Authorization could not be completed"}`, w.Body.String())
	assert.Len(t, ledger.recorded(), 1)
}

func TestWebhook_PersistenceFailureStillResponds(t *testing.T) {
	f := newWebhookFixture()
	f.ledger.err = services.ErrQueueFull

	w := postSigned(f.handler.HandleAuthorization, f.event(500, "Acme", "").payload())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"approve":true}`, w.Body.String())
}

// swapPolicies lets a test change the active policies between deliveries
type swapPolicies struct {
	mu       sync.Mutex
	policies []*models.Policy
}

func (s *swapPolicies) ActivePolicies(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policies, nil
}

func (s *swapPolicies) set(policies ...*models.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = policies
}

func TestWebhook_RedeliveryAnsweredFromRecord(t *testing.T) {
	capPolicy := models.NewPolicy(uuid.Nil, "Cap", "amount > 10000")

	tests := []struct {
		name     string
		first    []*models.Policy
		then     []*models.Policy
		wantBody string
	}{
		{
			name:     "decline stays declined after the policy is removed",
			first:    []*models.Policy{capPolicy},
			wantBody: `{"approve":false,"decline_reason":"Policy triggered: Cap (amount > 10000)"}`,
		},
		{
			name:     "approval stays approved after a policy is added",
			then:     []*models.Policy{capPolicy},
			wantBody: `{"approve":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture()
			source := &swapPolicies{}
			source.set(tt.first...)
			engine := scoring.NewService(f.cards, source, nil, nil, zap.NewNop(), scoring.DefaultConfig())
			h := NewWebhookHandler(engine, f.ledger, f.handler.cfg, zap.NewNop())
			payload := f.event(15000, "Acme", "").payload()

			first := postSigned(h.HandleAuthorization, payload)
			source.set(tt.then...)
			second := postSigned(h.HandleAuthorization, payload)

			assert.JSONEq(t, tt.wantBody, first.Body.String())
			assert.JSONEq(t, tt.wantBody, second.Body.String())
			assert.Len(t, f.ledger.recorded(), 1)
		})
	}
}

func TestWebhook_RedeliveryLookupFailureDecidesAfresh(t *testing.T) {
	f := newWebhookFixture()
	f.ledger.prevErr = errors.New("connection refused")

	w := postSigned(f.handler.HandleAuthorization, f.event(500, "Acme", "").payload())

	assert.JSONEq(t, `{"approve":true}`, w.Body.String())
	assert.Len(t, f.ledger.recorded(), 1)
}

func TestWebhook_TimeFieldsUseUTC(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("UTC-5", -5*60*60)
	t.Cleanup(func() { time.Local = local })

	f := newWebhookFixture(models.NewPolicy(uuid.Nil, "Midnight", "hour == 0 && dayOfWeek == 'TUESDAY'"))
	e := f.event(500, "Acme", "")
	e.created = time.Date(2023, 11, 14, 0, 30, 0, 0, time.UTC).Unix()

	w := postSigned(f.handler.HandleAuthorization, e.payload())

	assert.JSONEq(t, `{"approve":false,"decline_reason":"Policy triggered: Midnight (hour == 0 && dayOfWeek == 'TUESDAY')"}`, w.Body.String())
}
