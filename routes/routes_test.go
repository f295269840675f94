package routes

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/card-control-plane/app"
	"github.com/upb/card-control-plane/config"
	"github.com/upb/card-control-plane/repositories/postgres"
)

func newTestRouter(t *testing.T) (http.Handler, *app.Dependencies) {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{CORSAllowedOrigins: []string{"http://localhost:3000"}},
		Webhook:     config.WebhookConfig{SigningSecret: "whsec_test", Tolerance: time.Minute},
		Auth:        config.AuthConfig{JWTSecret: "test-secret"},
		Engine:      config.EngineConfig{PolicyCacheSize: 10, PolicyCacheTTL: time.Second, AuditBufferSize: 10, AuditWorkers: 1},
	}
	logger := zap.NewNop()
	factory := postgres.NewRepositoryFactoryFromDB(postgres.WrapDB(db, logger), logger)
	deps, err := app.NewDependenciesFromFactory(cfg, factory, logger)
	require.NoError(t, err)
	return SetupRoutes(deps), deps
}

func TestSetupRoutes(t *testing.T) {
	router, deps := newTestRouter(t)
	token, err := deps.TokenValidator.IssueToken("operator", uuid.New(), time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{name: "liveness", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "webhook requires signature", method: http.MethodPost, path: "/webhooks/issuing/authorization", body: `{}`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"invalid signature"}`},
		{name: "legacy webhook path", method: http.MethodPost, path: "/api/jit", body: `{}`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"invalid signature"}`},
		{name: "management api requires token", method: http.MethodGet, path: "/api/v1/policies", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", method: http.MethodGet, path: "/api/v1/cards", token: "garbage", wantStatus: http.StatusUnauthorized},
		{name: "score for another organization", method: http.MethodPost, path: "/api/v1/score", token: token,
			body: `{"id":"ic_1","org_id":"` + uuid.NewString() + `","merchant":"Acme","amount_cts":100,"category":""}`, wantStatus: http.StatusForbidden},
		{name: "invalid policy id", method: http.MethodGet, path: "/api/v1/policies/not-a-uuid", token: token, wantStatus: http.StatusBadRequest},
		{name: "invalid budget id", method: http.MethodDelete, path: "/api/v1/budgets/not-a-uuid", token: token, wantStatus: http.StatusBadRequest},
		{name: "budgets require token", method: http.MethodGet, path: "/api/v1/budgets", wantStatus: http.StatusUnauthorized},
		{name: "wrong method", method: http.MethodDelete, path: "/api/v1/cards/" + uuid.NewString(), token: token, wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown route", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound, wantBody: `{"error":"endpoint not found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestSetupRoutes_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/policies", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
