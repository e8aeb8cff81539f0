package rest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/infra/audit"
	"github.com/spounge-ai/auditchain/internal/infra/persistence"
	"github.com/spounge-ai/auditchain/internal/service"
	"github.com/spounge-ai/auditchain/internal/validation"
	"github.com/spounge-ai/auditchain/pkg/patterns/lifecycle"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newRouter(t *testing.T, health HealthFunc) (*mux.Router, service.AuditService) {
	t.Helper()
	repo := persistence.NewMemoryStore()
	signer, err := core.NewSigner([]byte("rest-test-secret-0123456789abcdef"))
	require.NoError(t, err)
	v, err := validation.NewRequestValidator()
	require.NoError(t, err)
	ledger := audit.NewLedger(repo, signer, v, nil, testLogger, audit.LedgerConfig{})
	svc := service.NewAuditService(service.Config{}, ledger, repo, signer, nil, testLogger)

	router := mux.NewRouter()
	SetupRoutes(router, NewHandler(svc, health, app_errors.NewErrorClassifier(testLogger)), "/metrics")
	return router, svc
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestExportEndpoint(t *testing.T) {
	router, svc := newRouter(t, nil)
	for _, typ := range []string{"LOGIN_SUCCESS", "LOGIN_FAILED", "DATA_DELETE"} {
		_, err := svc.Ingest(context.Background(), &domain.IngestRequest{
			EventType: typ, Action: typ, Actor: &domain.Actor{UserID: "kim"},
		})
		require.NoError(t, err)
	}

	t.Run("json with filter", func(t *testing.T) {
		rec := get(router, "/v1/audit/export?eventCategory=auth&sort=timestamp&ascending=true")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "2", rec.Header().Get("X-Export-Count"))

		var entries []domain.AuditEntry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, domain.EventLoginSuccess, entries[0].EventType)
	})

	t.Run("csv", func(t *testing.T) {
		rec := get(router, "/v1/audit/export?format=csv&severity=critical")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")

		rows, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "DATA_DELETE", rows[1][2])
	})

	t.Run("time range", func(t *testing.T) {
		future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		rec := get(router, "/v1/audit/export?start="+future)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-Export-Count"))
	})

	tests := []struct {
		name   string
		target string
	}{
		{"unknown format", "/v1/audit/export?format=xml"},
		{"bad timestamp", "/v1/audit/export?start=yesterday"},
		{"unknown event type", "/v1/audit/export?eventType=NOPE"},
		{"bad boolean", "/v1/audit/export?ascending=maybe"},
		{"unknown sort", "/v1/audit/export?sort=actor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(router, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHealthz(t *testing.T) {
	healthy := true
	router, _ := newRouter(t, func(*http.Request) (bool, map[string]lifecycle.HealthStatus) {
		return healthy, map[string]lifecycle.HealthStatus{"store": {Ready: healthy}}
	})

	rec := get(router, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	healthy = false
	rec = get(router, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestMetricsEndpoint(t *testing.T) {
	router, svc := newRouter(t, nil)
	_, err := svc.Ingest(context.Background(), &domain.IngestRequest{EventType: "LOGOUT", Action: "logout"})
	require.NoError(t, err)

	rec := get(router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "auditchain_entries_ingested_total")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/audit/export", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
