package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/uprl/internal/clock"
	"github.com/smallbiznis/uprl/internal/config"
	dlqdomain "github.com/smallbiznis/uprl/internal/dlq/domain"
	dlqservice "github.com/smallbiznis/uprl/internal/dlq/service"
	"github.com/smallbiznis/uprl/internal/factstore"
	ingestservice "github.com/smallbiznis/uprl/internal/ingest/service"
	"github.com/smallbiznis/uprl/internal/observability"
	paymentdomain "github.com/smallbiznis/uprl/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/uprl/internal/pricing/domain"
	projectionservice "github.com/smallbiznis/uprl/internal/projection/service"
	refunddomain "github.com/smallbiznis/uprl/internal/refund/domain"
	"github.com/smallbiznis/uprl/internal/scopelock"
	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
	"github.com/smallbiznis/uprl/internal/version"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:server_%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&pricingdomain.PricingComponentFact{},
		&paymentdomain.PaymentTimelineFact{},
		&supplierdomain.SupplierTimelineFact{},
		&supplierdomain.SupplierPayableLine{},
		&refunddomain.RefundTimelineFact{},
		&dlqdomain.Entry{},
	))

	store := factstore.New(conn)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	cfg := config.Config{
		EventTimeout:   30 * time.Second,
		StorageTimeout: 5 * time.Second,
		StorageRetries: 1,
	}

	dlq := dlqservice.NewService(dlqservice.Params{
		DB:    conn,
		Log:   log,
		Store: store,
		Clock: fake,
	})
	ingest := ingestservice.NewService(ingestservice.Params{
		Log:      log,
		Config:   cfg,
		Store:    store,
		Registry: version.NewRegistry(store),
		Locks:    scopelock.NewKeyed(),
		DLQ:      dlq,
		Clock:    fake,
	})
	projection := projectionservice.NewService(projectionservice.Params{
		Log:   log,
		Store: store,
	})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	engine := NewEngine(observability.Config{}, nil, node)
	return NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		IngestSvc:     ingest,
		ProjectionSvc: projection,
		DLQSvc:        dlq,
	})
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed),
			"response body should be JSON: %s", rec.Body.String())
	}
	return rec, parsed
}

const pricingEvent = `{
	"event_id": "evt-price-1",
	"event_type": "PricingUpdated",
	"schema_version": "pricing.commerce.v1",
	"order_id": "ORD-1",
	"emitted_at": "2025-06-01T08:59:00Z",
	"components": [
		{"component_type": "BASE_FARE", "amount": 1000000, "currency": "IDR",
		 "dimensions": {"order_detail_id": "OD-1"}},
		{"component_type": "Tax", "amount": 110000, "currency": "IDR",
		 "dimensions": {"order_detail_id": "OD-1"}},
		{"component_type": "CONVENIENCE_FEE", "amount": 50000, "currency": "IDR"}
	],
	"totals": {"customer_total": 1160000, "currency": "IDR"}
}`

func TestIngestEndpoint_Committed(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodPost, "/v1/events", pricingEvent)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "committed", body["status"])
	assert.Equal(t, "evt-price-1", body["event_id"])
	assert.Equal(t, "ORD-1", body["order_id"])
	assert.EqualValues(t, 1, body["version"])
}

func TestIngestEndpoint_DuplicateReturns200(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/v1/events", pricingEvent)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, srv, http.MethodPost, "/v1/events", pricingEvent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", body["status"])
}

func TestIngestEndpoint_MalformedParksWith422(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodPost, "/v1/events", `{"event_id": "evt-bad-1"`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "parked", body["status"])
	assert.Equal(t, string(dlqdomain.ErrorKindValidation), body["error_kind"])
	assert.NotEmpty(t, body["dlq_id"])

	rec, list := doJSON(t, srv, http.MethodGet, "/v1/dlq", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries, ok := list["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
}

func TestDLQReplay(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodPost, "/v1/events", `{"event_id": "evt-bad-2"`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	dlqID, ok := body["dlq_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, dlqID)

	// The payload is still malformed so the replay parks again and the
	// retry counter moves.
	rec, body = doJSON(t, srv, http.MethodPost, "/v1/dlq/"+dlqID+"/replay", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "parked", body["status"])

	rec, list := doJSON(t, srv, http.MethodGet, "/v1/dlq", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries, ok := list["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 2)

	found := false
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		require.True(t, ok)
		if entry["dlq_id"] == dlqID {
			assert.EqualValues(t, 1, entry["retry_count"])
			found = true
		}
	}
	assert.True(t, found)

	rec, _ = doJSON(t, srv, http.MethodPost, "/v1/dlq/no-such-id/replay", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestEndpoint_EmptyBody(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodPost, "/v1/events", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "validation_error", errObj["type"])
}

func TestOrderReads(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/v1/events", pricingEvent)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, dir := doJSON(t, srv, http.MethodGet, "/v1/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"ORD-1"}, dir["order_ids"])

	rec, view := doJSON(t, srv, http.MethodGet, "/v1/orders/ORD-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ORD-1", view["order_id"])
	latest, ok := view["pricing_latest"].([]any)
	require.True(t, ok)
	assert.Len(t, latest, 3)

	rec, hist := doJSON(t, srv, http.MethodGet, "/v1/orders/ORD-1/pricing/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	versions, ok := hist["versions"].([]any)
	require.True(t, ok)
	require.Len(t, versions, 1)
	first, ok := versions[0].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1160000, first["total_amount"])
	assert.EqualValues(t, 3, first["component_count"])
}

func TestFamilyHistory(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/v1/events", pricingEvent)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, srv, http.MethodGet, "/v1/orders/ORD-1/history/pricing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pricing", body["family"])
	rows, ok := body["pricing"].([]any)
	require.True(t, ok)
	assert.Len(t, rows, 3)
}

func TestFamilyHistory_UnknownFamily(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/v1/orders/ORD-1/history/loyalty", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "validation_error", errObj["type"])
}

func TestFamilyHistory_BadVersionBound(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/v1/orders/ORD-1/history/pricing?from_version=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "validation_error", errObj["type"])
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(metricsRec, req)
	assert.Equal(t, http.StatusOK, metricsRec.Code)
}

func TestEffectivePayablesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	supplierEvent := `{
		"event_id": "evt-sup-1",
		"event_type": "SupplierLifecycleEvent",
		"schema_version": "supplier.timeline.v2",
		"order_id": "ORD-1",
		"order_detail_id": "OD-1",
		"supplier": {
			"supplier_id": "SUP-1", "supplier_ref": "BK-1", "status": "Confirmed",
			"amount_due": 300000, "amount_basis": "net", "currency": "IDR"
		},
		"parties": [
			{"party_type": "SUPPLIER", "party_id": "SUP-1", "lines": [
				{"obligation_type": "COMMISSION", "amount": 45000, "currency": "IDR", "amount_effect": "DECREASES_PAYABLE"}
			]},
			{"party_type": "TAX_AUTHORITY", "party_id": "DJP", "lines": [
				{"obligation_type": "VAT_ON_COMMISSION", "amount": 4950, "currency": "IDR", "amount_effect": "INCREASES_PAYABLE"}
			]}
		]
	}`

	rec, body := doJSON(t, srv, http.MethodPost, "/v1/events", supplierEvent)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "committed", body["status"])

	rec, payables := doJSON(t, srv, http.MethodGet, "/v1/orders/ORD-1/payables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ORD-1", payables["order_id"])
	assert.EqualValues(t, 300000-45000+4950, payables["total_payable"])

	rec, timeline := doJSON(t, srv, http.MethodGet, "/v1/orders/ORD-1/payables/timeline", "")
	require.Equal(t, http.StatusOK, rec.Code)
	lines, ok := timeline["lines"].([]any)
	require.True(t, ok)
	assert.Len(t, lines, 2)
}

func TestRequestIDStamping(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-supplied")
	rec = httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, "req-supplied", rec.Header().Get("X-Request-Id"))
}
