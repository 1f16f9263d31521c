package service

import (
	"context"
	"fmt"
	"testing"
	"time"

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
	"github.com/smallbiznis/uprl/internal/identity"
	ingestdomain "github.com/smallbiznis/uprl/internal/ingest/domain"
	paymentdomain "github.com/smallbiznis/uprl/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/uprl/internal/pricing/domain"
	refunddomain "github.com/smallbiznis/uprl/internal/refund/domain"
	"github.com/smallbiznis/uprl/internal/scopelock"
	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
	"github.com/smallbiznis/uprl/internal/version"
)

type testHarness struct {
	svc   ingestdomain.Service
	db    *gorm.DB
	store *factstore.Store
	clock *clock.FakeClock
}

func newTestService(t *testing.T) *testHarness {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:ingest_%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
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

	dlq := dlqservice.NewService(dlqservice.Params{
		DB:    conn,
		Log:   log,
		Store: store,
		Clock: fake,
	})

	cfg := config.Config{
		EventTimeout:   30 * time.Second,
		StorageTimeout: 5 * time.Second,
		StorageRetries: 1,
	}

	svc := NewService(Params{
		Log:      log,
		Config:   cfg,
		Store:    store,
		Registry: version.NewRegistry(store),
		Locks:    scopelock.NewKeyed(),
		DLQ:      dlq,
		Clock:    fake,
	})

	return &testHarness{svc: svc, db: conn, store: store, clock: fake}
}

func (h *testHarness) dlqEntries(t *testing.T) []dlqdomain.Entry {
	t.Helper()
	var entries []dlqdomain.Entry
	require.NoError(t, h.db.Find(&entries).Error)
	return entries
}

func TestIngest_PricingCommitted(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{
		"event_id": "evt-price-1",
		"event_type": "PricingUpdated",
		"schema_version": "pricing.commerce.v1",
		"order_id": "ORD-1",
		"emitted_at": "2025-06-01T08:59:00Z",
		"vertical": "attraction",
		"components": [
			{"component_type": "BASE_FARE", "amount": 1000000, "currency": "IDR",
			 "dimensions": {"order_detail_id": "OD-1", "pax_type": "adult"}},
			{"component_type": "Tax", "amount": 110000, "currency": "IDR",
			 "dimensions": {"order_detail_id": "OD-1"}},
			{"component_type": "CONVENIENCE_FEE", "amount": 50000, "currency": "IDR",
			 "dimensions": {}}
		],
		"totals": {"customer_total": 1160000, "currency": "IDR"},
		"detail_contexts": [
			{"order_detail_id": "OD-1", "entity_context": {"entity": "ID"}, "fx_context": {"rate": 1}}
		]
	}`)

	res, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusCommitted, res.Status)
	assert.Equal(t, "evt-price-1", res.EventID)
	assert.Equal(t, "ORD-1", res.OrderID)
	assert.Equal(t, int64(1), res.Version)
	assert.Empty(t, res.Warnings)

	rows, err := h.store.PricingComponents(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for _, row := range rows {
		assert.Equal(t, int64(1), row.Version)
		assert.Equal(t, "evt-price-1", row.EventID)
		assert.NotEmpty(t, row.PricingSnapshotID)
		assert.NotEqual(t, row.ComponentSemanticID, row.ComponentInstanceID)

		semantic, err := identity.SemanticID("ORD-1", "", map[string]any(row.Dimensions), row.ComponentType)
		require.NoError(t, err)
		assert.Equal(t, semantic, row.ComponentSemanticID)
	}

	byType := map[string]*pricingdomain.PricingComponentFact{}
	for i := range rows {
		byType[rows[i].ComponentType] = &rows[i]
	}
	require.Contains(t, byType, "Tax")
	assert.Equal(t, "OD-1", byType["Tax"].OrderDetailID)
	assert.Equal(t, "ID", byType["Tax"].EntityContext["entity"])
	assert.Equal(t, "", byType["CONVENIENCE_FEE"].OrderDetailID)
	assert.Equal(t, "Tax", byType["Tax"].CanonicalComponentType)
	assert.Equal(t, pricingdomain.CanonicalComponentTypeOther, byType["BASE_FARE"].CanonicalComponentType,
		"free-string types fall back to Other in the canonical column")
}

func TestIngest_PricingVersionsAdvance(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		raw := []byte(fmt.Sprintf(`{
			"event_id": "evt-price-%d",
			"event_type": "PricingUpdated",
			"schema_version": "pricing.commerce.v1",
			"order_id": "ORD-1",
			"components": [{"component_type": "BASE_FARE", "amount": %d, "currency": "IDR"}]
		}`, i, i*1000))
		res, err := h.svc.Ingest(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, int64(i), res.Version)
	}
}

func TestIngest_DuplicateEventSkipped(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{
		"event_id": "evt-dup-1",
		"event_type": "PricingUpdated",
		"schema_version": "pricing.commerce.v1",
		"order_id": "ORD-1",
		"components": [{"component_type": "BASE_FARE", "amount": 500, "currency": "IDR"}]
	}`)

	first, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusCommitted, first.Status)

	second, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusDuplicate, second.Status)
	assert.Equal(t, "evt-dup-1", second.EventID)

	rows, err := h.store.PricingComponents(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "the prior commit stands, nothing was rewritten")
	assert.Empty(t, h.dlqEntries(t))
}

func TestIngest_GeneratesEventID(t *testing.T) {
	h := newTestService(t)

	raw := []byte(`{
		"event_type": "PricingUpdated",
		"schema_version": "pricing.commerce.v1",
		"order_id": "ORD-1",
		"components": [{"component_type": "BASE_FARE", "amount": 500, "currency": "IDR"}]
	}`)

	res, err := h.svc.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusCommitted, res.Status)
	assert.NotEmpty(t, res.EventID)
}

func TestIngest_TotalsMismatchWarnsButCommits(t *testing.T) {
	h := newTestService(t)

	raw := []byte(`{
		"event_id": "evt-warn-1",
		"event_type": "PricingUpdated",
		"schema_version": "pricing.commerce.v1",
		"order_id": "ORD-1",
		"components": [{"component_type": "BASE_FARE", "amount": 900, "currency": "IDR"}],
		"totals": {"customer_total": 1000, "currency": "IDR"}
	}`)

	res, err := h.svc.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusCommitted, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "does not match customer_total")
}

func TestIngest_MalformedJSONParks(t *testing.T) {
	h := newTestService(t)

	res, err := h.svc.Ingest(context.Background(), []byte(`{not json`))
	require.NoError(t, err, "a bad event is not an infrastructure failure")
	assert.Equal(t, ingestdomain.StatusParked, res.Status)
	assert.Equal(t, string(dlqdomain.ErrorKindValidation), res.ErrorKind)
	assert.NotEmpty(t, res.DLQID)

	entries := h.dlqEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, dlqdomain.ErrorKindValidation, entries[0].ErrorKind)
	assert.Equal(t, "{not json", entries[0].RawEvent)
}

func TestIngest_EmptyComponentsParksValidation(t *testing.T) {
	h := newTestService(t)

	raw := []byte(`{
		"event_id": "evt-empty-1",
		"event_type": "PricingUpdated",
		"schema_version": "pricing.commerce.v1",
		"order_id": "ORD-1",
		"components": []
	}`)

	res, err := h.svc.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusParked, res.Status)
	assert.Equal(t, string(dlqdomain.ErrorKindValidation), res.ErrorKind)

	entries := h.dlqEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-empty-1", entries[0].EventID)
	assert.Equal(t, "ORD-1", entries[0].OrderID)
	assert.JSONEq(t, string(raw), entries[0].RawEvent, "raw payload is kept verbatim for replay")

	rows, err := h.store.PricingComponents(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestIngest_NonScalarDimensionParksIdentity(t *testing.T) {
	h := newTestService(t)

	raw := []byte(`{
		"event_id": "evt-ident-1",
		"event_type": "PricingUpdated",
		"schema_version": "pricing.commerce.v1",
		"order_id": "ORD-1",
		"components": [
			{"component_type": "BASE_FARE", "amount": 500, "currency": "IDR",
			 "dimensions": {"nested": {"not": "scalar"}}}
		]
	}`)

	res, err := h.svc.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusParked, res.Status)
	assert.Equal(t, string(dlqdomain.ErrorKindIdentity), res.ErrorKind)
	assert.Contains(t, res.Detail, "components[0]")
}

func TestIngest_PaymentCapturedTotalAccumulates(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	payment := func(eventID string, body string) []byte {
		return []byte(fmt.Sprintf(`{
			"event_id": %q,
			"event_type": "PaymentLifecycle",
			"schema_version": "payment.timeline.v1",
			"order_id": "ORD-1",
			"payment": %s
		}`, eventID, body))
	}

	res, err := h.svc.Ingest(ctx, payment("evt-pay-1",
		`{"status": "Authorized", "authorized_amount": 1160000, "currency": "IDR",
		  "payment_method": {"channel": "VA", "provider": "bca"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Version)

	res, err = h.svc.Ingest(ctx, payment("evt-pay-2",
		`{"status": "Captured", "captured_amount": 600000, "currency": "IDR"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Version)

	res, err = h.svc.Ingest(ctx, payment("evt-pay-3",
		`{"status": "Captured", "captured_amount": 560000, "currency": "IDR"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Version)

	latest, err := h.store.LatestPaymentEvent(ctx, "ORD-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(1160000), latest.CapturedAmountTotal)
	assert.Equal(t, paymentdomain.PaymentStatusCaptured, latest.Status)
}

func TestIngest_PaymentExplicitTotalWins(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{
		"event_id": "evt-pay-explicit",
		"event_type": "PaymentLifecycle",
		"schema_version": "payment.timeline.v1",
		"order_id": "ORD-1",
		"payment": {"status": "Captured", "captured_amount": 100,
			"captured_amount_total": 999, "currency": "IDR"}
	}`)

	_, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)

	latest, err := h.store.LatestPaymentEvent(ctx, "ORD-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(999), latest.CapturedAmountTotal)
}

func TestIngest_PaymentBadInstrumentParks(t *testing.T) {
	h := newTestService(t)

	raw := []byte(`{
		"event_id": "evt-pay-bad",
		"event_type": "PaymentLifecycle",
		"schema_version": "payment.timeline.v1",
		"order_id": "ORD-1",
		"payment": {"status": "Captured", "currency": "IDR",
			"instrument": {"type": "CARD", "ewallet": {"provider": "ovo"}}}
	}`)

	res, err := h.svc.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusParked, res.Status)
	assert.Equal(t, string(dlqdomain.ErrorKindValidation), res.ErrorKind)
}

func TestIngest_SupplierVersionsParentAndLines(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{
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
				{"obligation_type": "NET_RATE", "amount": 300000, "currency": "IDR", "amount_effect": "INCREASES_PAYABLE"},
				{"obligation_type": "COMMISSION", "amount": 45000, "currency": "IDR", "amount_effect": "DECREASES_PAYABLE",
				 "calculation": {"basis": "gross", "rate": 0.15}}
			]},
			{"party_type": "TAX_AUTHORITY", "party_id": "DJP", "lines": [
				{"obligation_type": "VAT_ON_COMMISSION", "amount": 4950, "currency": "IDR", "amount_effect": "INCREASES_PAYABLE"}
			]}
		]
	}`)

	res, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusCommitted, res.Status)
	assert.Equal(t, "SupplierLifecycleEvent", res.EventType, "the producer's literal type is preserved")
	assert.Equal(t, int64(1), res.Version)

	timeline, err := h.store.SupplierTimeline(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, supplierdomain.BookingLevelKey, timeline[0].FulfillmentInstanceKey)
	assert.Equal(t, int64(300000), timeline[0].Amount)

	lines, err := h.store.PayableLines(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Equal(t, int64(1), line.SupplierTimelineVersion)
		assert.Equal(t, "evt-sup-1", line.EventID)
		assert.Equal(t, "BK-1", line.SupplierReferenceID)
	}
}

func TestIngest_SupplierInstancesVersionIndependently(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	supplier := func(eventID, instance string) []byte {
		return []byte(fmt.Sprintf(`{
			"event_id": %q,
			"event_type": "IssuanceSupplierLifecycle",
			"schema_version": "supplier.timeline.v2",
			"order_id": "ORD-1",
			"order_detail_id": "OD-1",
			"supplier": {
				"supplier_id": "SUP-1", "supplier_ref": "BK-1", "status": "ISSUED",
				"fulfillment_instance_id": %q,
				"amount_due": 127500, "amount_basis": "redemption-triggered", "currency": "IDR"
			}
		}`, eventID, instance))
	}

	res, err := h.svc.Ingest(ctx, supplier("evt-t1", "ticket_1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Version)

	res, err = h.svc.Ingest(ctx, supplier("evt-t2", "ticket_2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Version, "each redemption instance has its own counter")

	res, err = h.svc.Ingest(ctx, supplier("evt-t1b", "ticket_1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Version)
}

func TestIngest_SupplierV1LegacyShape(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{
		"event_id": "evt-sup-legacy",
		"event_type": "SupplierLifecycleEvent",
		"schema_version": "supplier.timeline.v1",
		"order_id": "ORD-1",
		"order_detail_id": "OD-1",
		"supplier": {
			"supplier_id": "SUP-1", "booking_code": "BKC-77", "status": "Confirmed",
			"amount_due": 180.00, "amount_basis": "net", "currency": "IDR"
		}
	}`)

	res, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusCommitted, res.Status)

	timeline, err := h.store.SupplierTimeline(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, "BKC-77", timeline[0].SupplierReferenceID, "booking_code backfills the reference id")
	assert.Equal(t, int64(180), timeline[0].Amount)
}

func TestIngest_CancellationFeeSynthesized(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{
		"event_id": "evt-cancel-1",
		"event_type": "IssuanceSupplierLifecycle",
		"schema_version": "supplier.timeline.v2",
		"order_id": "ORD-1",
		"order_detail_id": "OD-1",
		"supplier": {
			"supplier_id": "SUP-1", "supplier_ref": "BK-1", "status": "CancelledWithFee",
			"amount_due": 0, "amount_basis": "net", "currency": "IDR",
			"cancellation": {"fee_amount": 50000, "reason": "late cancellation"}
		}
	}`)

	res, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusCommitted, res.Status)

	lines, err := h.store.PayableLines(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, supplierdomain.ObligationTypeCancellationFee, line.ObligationType)
	assert.Equal(t, int64(50000), line.Amount)
	assert.Equal(t, supplierdomain.AmountEffectIncreases, line.AmountEffect)
	assert.Equal(t, supplierdomain.PartyTypeSupplier, line.PartyType)
	assert.Equal(t, "SUP-1", line.PartyID)
	assert.Equal(t, "IDR", line.Currency, "fee currency falls back to the supplier currency")
	assert.Equal(t, "late cancellation", line.CalculationDescription)

	timeline, err := h.store.SupplierTimeline(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	require.NotNil(t, timeline[0].CancellationFeeAmount)
	assert.Equal(t, int64(50000), *timeline[0].CancellationFeeAmount)
}

func TestIngest_CancellationFeeNotDuplicated(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{
		"event_id": "evt-cancel-2",
		"event_type": "IssuanceSupplierLifecycle",
		"schema_version": "supplier.timeline.v2",
		"order_id": "ORD-1",
		"order_detail_id": "OD-1",
		"supplier": {
			"supplier_id": "SUP-1", "supplier_ref": "BK-1", "status": "CancelledWithFee",
			"amount_due": 0, "amount_basis": "net", "currency": "IDR",
			"cancellation": {"fee_amount": 50000}
		},
		"parties": [
			{"party_type": "SUPPLIER", "party_id": "SUP-1", "lines": [
				{"obligation_type": "CANCELLATION_FEE", "amount": 50000, "currency": "IDR", "amount_effect": "INCREASES_PAYABLE"}
			]}
		]
	}`)

	_, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)

	lines, err := h.store.PayableLines(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Len(t, lines, 1, "an explicit fee line suppresses synthesis")
}

func TestIngest_PartnerAdjustmentStandalone(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{
		"event_id": "evt-adj-1",
		"event_type": "PartnerAdjustmentEvent",
		"schema_version": "partner.adjustment.v1",
		"order_id": "ORD-1",
		"order_detail_id": "OD-1",
		"supplier_reference_id": "BK-1",
		"party": {"party_type": "AFFILIATE", "party_id": "AFF-9", "party_name": "Partner X"},
		"line": {"obligation_type": "AFFILIATE_COMMISSION", "amount": 25000, "currency": "IDR",
			"amount_effect": "DECREASES_PAYABLE"}
	}`)

	res, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusCommitted, res.Status)
	assert.Equal(t, supplierdomain.StandaloneVersion, res.Version)

	lines, err := h.store.PayableLines(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, supplierdomain.StandaloneVersion, lines[0].SupplierTimelineVersion)
	assert.True(t, lines[0].Standalone())
	assert.Equal(t, supplierdomain.BookingLevelKey, lines[0].FulfillmentInstanceKey)

	timeline, err := h.store.SupplierTimeline(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Empty(t, timeline, "adjustments write no supplier timeline fact")
}

func TestIngest_RefundIssuedLineage(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	base := []byte(`{
		"event_id": "evt-base-1",
		"event_type": "PricingUpdated",
		"schema_version": "pricing.commerce.v1",
		"order_id": "ORD-1",
		"components": [{"component_type": "BASE_FARE", "amount": 660000, "currency": "IDR",
			"dimensions": {"order_detail_id": "OD-1"}}]
	}`)
	_, err := h.svc.Ingest(ctx, base)
	require.NoError(t, err)

	rows, err := h.store.PricingComponents(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	baseSemantic := rows[0].ComponentSemanticID

	refund := []byte(fmt.Sprintf(`{
		"event_id": "evt-refund-1",
		"event_type": "refund.issued",
		"schema_version": "refund.components.v1",
		"order_id": "ORD-1",
		"refund_id": "RF-1",
		"components": [{"component_type": "BASE_FARE", "amount": -660000, "currency": "IDR",
			"dimensions": {"order_detail_id": "OD-1"},
			"refund_of_component_semantic_id": %q}]
	}`, baseSemantic))

	res, err := h.svc.Ingest(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, ingestdomain.StatusCommitted, res.Status)
	assert.Equal(t, int64(2), res.Version, "refund snapshots share the pricing counter")

	rows, err = h.store.PricingComponents(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var refundRow *pricingdomain.PricingComponentFact
	for i := range rows {
		if rows[i].IsRefund {
			refundRow = &rows[i]
		}
	}
	require.NotNil(t, refundRow)
	assert.Equal(t, int64(-660000), refundRow.Amount)
	require.NotNil(t, refundRow.RefundID)
	assert.Equal(t, "RF-1", *refundRow.RefundID)
	require.NotNil(t, refundRow.RefundOfComponentSemanticID)
	assert.Equal(t, baseSemantic, *refundRow.RefundOfComponentSemanticID)
	assert.NotEqual(t, baseSemantic, refundRow.ComponentSemanticID,
		"refund_id is an identity dimension, so refund rows never collide with originals")
}

func TestIngest_RefundLifecycleVersionsPerRefund(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	lifecycle := func(eventID, refundID, status, schema string) []byte {
		return []byte(fmt.Sprintf(`{
			"event_id": %q,
			"event_type": "RefundLifecycle",
			"schema_version": %q,
			"order_id": "ORD-1",
			"refund_id": %q,
			"status": %q,
			"refund_amount": 660000,
			"currency": "IDR"
		}`, eventID, schema, refundID, status))
	}

	res, err := h.svc.Ingest(ctx, lifecycle("evt-rl-1", "RF-1", "Initiated", "refund.timeline.v1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Version, "the legacy schema token still ingests")

	res, err = h.svc.Ingest(ctx, lifecycle("evt-rl-2", "RF-1", "Settled", "refund.lifecycle.v1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Version)

	res, err = h.svc.Ingest(ctx, lifecycle("evt-rl-3", "RF-2", "Initiated", "refund.lifecycle.v1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Version, "each refund_id carries its own timeline")
}

func TestIngest_UnknownEnvelopeFieldsLandInMetadata(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{
		"event_id": "evt-meta-1",
		"event_type": "PricingUpdated",
		"schema_version": "pricing.commerce.v1",
		"order_id": "ORD-1",
		"campaign_ref": "SUMMER25",
		"components": [{"component_type": "BASE_FARE", "amount": 500, "currency": "IDR"}]
	}`)

	_, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)

	rows, err := h.store.PricingComponents(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SUMMER25", rows[0].Metadata["campaign_ref"])
}

func TestIngest_EmittedAtDefaultsToIngestClock(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{
		"event_id": "evt-clock-1",
		"event_type": "PricingUpdated",
		"schema_version": "pricing.commerce.v1",
		"order_id": "ORD-1",
		"components": [{"component_type": "BASE_FARE", "amount": 500, "currency": "IDR"}]
	}`)

	_, err := h.svc.Ingest(ctx, raw)
	require.NoError(t, err)

	rows, err := h.store.PricingComponents(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].EmittedAt.Equal(h.clock.Now()),
		"an absent emitted_at falls back to the ingest clock")
}
