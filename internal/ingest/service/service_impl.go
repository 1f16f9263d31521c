package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/smallbiznis/uprl/internal/clock"
	"github.com/smallbiznis/uprl/internal/config"
	dlqdomain "github.com/smallbiznis/uprl/internal/dlq/domain"
	"github.com/smallbiznis/uprl/internal/event"
	"github.com/smallbiznis/uprl/internal/factstore"
	"github.com/smallbiznis/uprl/internal/identity"
	ingestdomain "github.com/smallbiznis/uprl/internal/ingest/domain"
	"github.com/smallbiznis/uprl/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/uprl/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/uprl/internal/pricing/domain"
	refunddomain "github.com/smallbiznis/uprl/internal/refund/domain"
	"github.com/smallbiznis/uprl/internal/scopelock"
	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
	"github.com/smallbiznis/uprl/internal/version"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   config.Config
	Store    *factstore.Store
	Registry *version.Registry
	Locks    scopelock.Locker
	DLQ      dlqdomain.Service
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	cfg      config.Config
	store    *factstore.Store
	registry *version.Registry
	locks    scopelock.Locker
	dlq      dlqdomain.Service
	clock    clock.Clock
	metrics  *metrics.Metrics
}

func NewService(p Params) ingestdomain.Service {
	return &Service{
		log:      p.Log.Named("ingest.service"),
		cfg:      p.Config,
		store:    p.Store,
		registry: p.Registry,
		locks:    p.Locks,
		dlq:      p.DLQ,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

// Ingest runs one raw envelope through decode, routing, versioning and
// commit. Malformed events park in the DLQ; the pipeline itself only
// errors when infrastructure is down.
func (s *Service) Ingest(ctx context.Context, raw []byte) (ingestdomain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EventTimeout)
	defer cancel()

	env, err := event.Decode(raw)
	if err != nil {
		probe := probeEnvelope(raw)
		return s.park(ctx, raw, probe.EventID, probe.EventType, probe.OrderID, err), nil
	}
	if env.EventID == "" {
		env.EventID = uuid.NewString()
	}

	switch env.Kind {
	case event.KindPricingUpdated:
		return s.handlePricing(ctx, env)
	case event.KindRefundIssued:
		return s.handleRefundIssued(ctx, env)
	case event.KindPaymentLifecycle:
		return s.handlePayment(ctx, env)
	case event.KindSupplierLifecycle:
		return s.handleSupplier(ctx, env)
	case event.KindRefundLifecycle:
		return s.handleRefundLifecycle(ctx, env)
	case event.KindPartnerAdjustment:
		return s.handlePartnerAdjustment(ctx, env)
	default:
		return s.park(ctx, raw, env.EventID, env.RawType, env.OrderID,
			fmt.Errorf("%w: %w: %s", event.ErrValidation, event.ErrUnknownEventType, env.RawType)), nil
	}
}

func (s *Service) handlePricing(ctx context.Context, env *event.Envelope) (ingestdomain.Result, error) {
	payload, err := env.Pricing()
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}

	if dup, res, err := s.skipDuplicate(ctx, env, s.store.HasPricingEvent); dup || err != nil {
		return res, err
	}

	snapshotID := uuid.NewString()
	rows, err := s.buildComponentRows(env, payload.Components, payload, "", snapshotID)
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}

	warnings := totalsWarning(payload)
	if len(warnings) > 0 {
		s.log.Warn("pricing totals mismatch",
			zap.String("event_id", env.EventID),
			zap.String("order_id", env.OrderID),
			zap.Strings("warnings", warnings))
	}

	scope := version.PricingScope(env.OrderID)
	assigned, err := s.commitVersioned(ctx, env, version.FamilyPricing, scope, func(tx *factstore.Store, next int64) error {
		for _, row := range rows {
			row.Version = next
		}
		return tx.AppendPricingComponents(ctx, rows)
	})
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}
	return s.committed(ctx, env, assigned, warnings), nil
}

func (s *Service) handleRefundIssued(ctx context.Context, env *event.Envelope) (ingestdomain.Result, error) {
	payload, err := env.RefundIssued()
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}

	if dup, res, err := s.skipDuplicate(ctx, env, s.store.HasPricingEvent); dup || err != nil {
		return res, err
	}

	snapshotID := uuid.NewString()
	rows, err := s.buildComponentRows(env, payload.Components, nil, payload.RefundID, snapshotID)
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}

	scope := version.PricingScope(env.OrderID)
	assigned, err := s.commitVersioned(ctx, env, version.FamilyPricing, scope, func(tx *factstore.Store, next int64) error {
		for _, row := range rows {
			row.Version = next
		}
		return tx.AppendPricingComponents(ctx, rows)
	})
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}
	return s.committed(ctx, env, assigned, nil), nil
}

func (s *Service) handlePayment(ctx context.Context, env *event.Envelope) (ingestdomain.Result, error) {
	payload, err := env.Payment()
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}

	if dup, res, err := s.skipDuplicate(ctx, env, s.store.HasPaymentEvent); dup || err != nil {
		return res, err
	}

	row := &paymentdomain.PaymentTimelineFact{
		EventID:          env.EventID,
		OrderID:          env.OrderID,
		Status:           payload.Status,
		PaymentIntentID:  payload.PaymentID,
		AuthorizedAmount: payload.AuthorizedAmount.Int64Ptr(),
		CapturedAmount:   payload.CapturedAmount.Int64Ptr(),
		Currency:         payload.Currency,
		Instrument:       datatypes.JSONMap(payload.Instrument),
		BNPLPlan:         datatypes.JSONMap(payload.BNPLPlan),
		PGReferenceID:    payload.PGReferenceID,
		EmitterService:   env.EmitterService,
		Metadata:         datatypes.JSONMap(env.Metadata()),
		EmittedAt:        s.emittedAt(env),
		IngestedAt:       s.clock.Now(),
	}
	if payload.PaymentMethod != nil {
		row.PaymentMethodChannel = payload.PaymentMethod.Channel
		row.PaymentMethodProvider = payload.PaymentMethod.Provider
		row.PaymentMethodBrand = payload.PaymentMethod.Brand
	}

	scope := version.PaymentScope(env.OrderID)
	assigned, err := s.commitVersioned(ctx, env, version.FamilyPayment, scope, func(tx *factstore.Store, next int64) error {
		row.TimelineVersion = next
		total, err := s.capturedTotal(ctx, tx, env.OrderID, payload)
		if err != nil {
			return err
		}
		row.CapturedAmountTotal = total
		return tx.AppendPaymentEvent(ctx, row)
	})
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}
	return s.committed(ctx, env, assigned, nil), nil
}

// capturedTotal maintains the running capture total. An explicit
// captured_amount_total from the producer wins; otherwise a Captured
// event adds its captured_amount onto the prior total.
func (s *Service) capturedTotal(ctx context.Context, tx *factstore.Store, orderID string, payload *event.PaymentPayload) (int64, error) {
	if payload.CapturedAmountTotal != nil {
		return payload.CapturedAmountTotal.Int64(), nil
	}
	var prior int64
	latest, err := tx.LatestPaymentEvent(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if latest != nil {
		prior = latest.CapturedAmountTotal
	}
	if payload.Status == paymentdomain.PaymentStatusCaptured && payload.CapturedAmount != nil {
		return prior + payload.CapturedAmount.Int64(), nil
	}
	return prior, nil
}

func (s *Service) handleSupplier(ctx context.Context, env *event.Envelope) (ingestdomain.Result, error) {
	payload, err := env.Supplier()
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}

	if dup, res, err := s.skipDuplicate(ctx, env, s.store.HasSupplierEvent); dup || err != nil {
		return res, err
	}

	sup := &payload.Supplier
	referenceID := sup.ReferenceID()
	instanceKey := supplierdomain.InstanceKey(sup.FulfillmentInstanceID)
	now := s.clock.Now()

	parent := &supplierdomain.SupplierTimelineFact{
		EventID:                env.EventID,
		OrderID:                env.OrderID,
		OrderDetailID:          payload.OrderDetailID,
		SupplierReferenceID:    referenceID,
		FulfillmentInstanceID:  sup.FulfillmentInstanceID,
		FulfillmentInstanceKey: instanceKey,
		SupplierID:             sup.SupplierID,
		Status:                 sup.Status,
		Amount:                 sup.AmountDue.Int64(),
		AmountBasis:            sup.AmountBasis,
		Currency:               sup.Currency,
		FXContext:              datatypes.JSONMap(sup.FXContext),
		EntityContext:          datatypes.JSONMap(sup.EntityContext),
		EmitterService:         env.EmitterService,
		Metadata:               datatypes.JSONMap(env.Metadata()),
		EmittedAt:              s.emittedAt(env),
		IngestedAt:             now,
	}
	if sup.Cancellation != nil {
		fee := sup.Cancellation.FeeAmount.Int64()
		parent.CancellationFeeAmount = &fee
		currency := sup.Cancellation.FeeCurrency
		if currency == "" {
			currency = sup.Currency
		}
		parent.CancellationFeeCurrency = &currency
	}

	lines := s.buildPayableLines(env, payload, referenceID, instanceKey, now)

	scope := version.SupplierScope(env.OrderID, payload.OrderDetailID, referenceID, sup.FulfillmentInstanceID)
	assigned, err := s.commitVersioned(ctx, env, version.FamilySupplier, scope, func(tx *factstore.Store, next int64) error {
		parent.SupplierTimelineVersion = next
		for _, line := range lines {
			line.SupplierTimelineVersion = next
		}
		if err := tx.AppendSupplierEvent(ctx, parent); err != nil {
			return err
		}
		return tx.AppendPayableLines(ctx, lines)
	})
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}
	return s.committed(ctx, env, assigned, nil), nil
}

// buildPayableLines flattens parties into line rows and synthesizes the
// cancellation fee obligation when a CancelledWithFee event carries a
// fee but no explicit CANCELLATION_FEE line.
func (s *Service) buildPayableLines(env *event.Envelope, payload *event.SupplierPayload, referenceID, instanceKey string, now time.Time) []*supplierdomain.SupplierPayableLine {
	sup := &payload.Supplier
	var lines []*supplierdomain.SupplierPayableLine
	hasFeeLine := false

	newLine := func() *supplierdomain.SupplierPayableLine {
		return &supplierdomain.SupplierPayableLine{
			LineID:                 ulid.Make().String(),
			EventID:                env.EventID,
			OrderID:                env.OrderID,
			OrderDetailID:          payload.OrderDetailID,
			SupplierReferenceID:    referenceID,
			FulfillmentInstanceID:  sup.FulfillmentInstanceID,
			FulfillmentInstanceKey: instanceKey,
			IngestedAt:             now,
		}
	}

	for _, party := range payload.Parties {
		for _, pl := range party.Lines {
			line := newLine()
			line.PartyType = party.PartyType
			line.PartyID = party.PartyID
			line.PartyName = party.PartyName
			line.ObligationType = pl.ObligationType
			line.Amount = pl.Amount.Int64()
			line.AmountEffect = pl.AmountEffect
			line.Currency = pl.Currency
			if line.Currency == "" {
				line.Currency = sup.Currency
			}
			if pl.Calculation != nil {
				line.CalculationBasis = pl.Calculation.Basis
				line.CalculationRate = pl.Calculation.Rate
				line.CalculationDescription = pl.Calculation.Description
			}
			if pl.ObligationType == supplierdomain.ObligationTypeCancellationFee {
				hasFeeLine = true
			}
			lines = append(lines, line)
		}
	}

	if sup.Status == supplierdomain.SupplierStatusCancelledWithFee && !hasFeeLine &&
		sup.Cancellation != nil && sup.Cancellation.FeeAmount > 0 {
		line := newLine()
		line.PartyType = supplierdomain.PartyTypeSupplier
		line.PartyID = sup.SupplierID
		line.ObligationType = supplierdomain.ObligationTypeCancellationFee
		line.Amount = sup.Cancellation.FeeAmount.Int64()
		line.AmountEffect = supplierdomain.AmountEffectIncreases
		line.Currency = sup.Cancellation.FeeCurrency
		if line.Currency == "" {
			line.Currency = sup.Currency
		}
		line.CalculationDescription = sup.Cancellation.Reason
		lines = append(lines, line)
	}

	return lines
}

func (s *Service) handleRefundLifecycle(ctx context.Context, env *event.Envelope) (ingestdomain.Result, error) {
	payload, err := env.RefundLifecycle()
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}

	if dup, res, err := s.skipDuplicate(ctx, env, s.store.HasRefundEvent); dup || err != nil {
		return res, err
	}

	row := &refunddomain.RefundTimelineFact{
		EventID:        env.EventID,
		OrderID:        env.OrderID,
		RefundID:       payload.RefundID,
		Status:         payload.Status,
		RefundAmount:   payload.RefundAmount.Int64(),
		Currency:       payload.Currency,
		Reason:         payload.RefundReason,
		EmitterService: env.EmitterService,
		Metadata:       datatypes.JSONMap(env.Metadata()),
		EmittedAt:      s.emittedAt(env),
		IngestedAt:     s.clock.Now(),
	}

	scope := version.RefundScope(env.OrderID, payload.RefundID)
	assigned, err := s.commitVersioned(ctx, env, version.FamilyRefund, scope, func(tx *factstore.Store, next int64) error {
		row.RefundTimelineVersion = next
		return tx.AppendRefundEvent(ctx, row)
	})
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}
	return s.committed(ctx, env, assigned, nil), nil
}

func (s *Service) handlePartnerAdjustment(ctx context.Context, env *event.Envelope) (ingestdomain.Result, error) {
	payload, err := env.PartnerAdjustment()
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}

	if dup, res, err := s.skipDuplicate(ctx, env, s.store.HasPayableLineEvent); dup || err != nil {
		return res, err
	}

	line := &supplierdomain.SupplierPayableLine{
		LineID:                  ulid.Make().String(),
		EventID:                 env.EventID,
		OrderID:                 env.OrderID,
		OrderDetailID:           payload.OrderDetailID,
		SupplierReferenceID:     payload.SupplierReferenceID,
		FulfillmentInstanceID:   payload.FulfillmentInstanceID,
		FulfillmentInstanceKey:  supplierdomain.InstanceKey(payload.FulfillmentInstanceID),
		SupplierTimelineVersion: supplierdomain.StandaloneVersion,
		PartyType:               payload.Party.PartyType,
		PartyID:                 payload.Party.PartyID,
		PartyName:               payload.Party.PartyName,
		ObligationType:          payload.Line.ObligationType,
		Amount:                  payload.Line.Amount.Int64(),
		AmountEffect:            payload.Line.AmountEffect,
		Currency:                payload.Line.Currency,
		Metadata:                datatypes.JSONMap(env.Metadata()),
		IngestedAt:              s.clock.Now(),
	}
	if payload.Line.Calculation != nil {
		line.CalculationBasis = payload.Line.Calculation.Basis
		line.CalculationRate = payload.Line.Calculation.Rate
		line.CalculationDescription = payload.Line.Calculation.Description
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.store.AppendPayableLines(ctx, []*supplierdomain.SupplierPayableLine{line})
	})
	if err != nil {
		return s.parkEnvelope(ctx, env, err), nil
	}

	res := s.committed(ctx, env, 0, nil)
	res.Version = supplierdomain.StandaloneVersion
	return res, nil
}

// buildComponentRows resolves identity and detail context for every
// component of a pricing or refund snapshot. Version is assigned later
// under the scope lock.
func (s *Service) buildComponentRows(env *event.Envelope, components []event.PricingComponent, pricing *event.PricingPayload, refundID, snapshotID string) ([]*pricingdomain.PricingComponentFact, error) {
	now := s.clock.Now()
	metadata := env.Metadata()

	rows := make([]*pricingdomain.PricingComponentFact, 0, len(components))
	for i := range components {
		c := &components[i]
		semanticID, err := identity.SemanticID(env.OrderID, refundID, c.Dimensions, c.ComponentType)
		if err != nil {
			return nil, fmt.Errorf("components[%d]: %w", i, err)
		}

		row := &pricingdomain.PricingComponentFact{
			ComponentInstanceID:         identity.InstanceID(semanticID, snapshotID),
			ComponentSemanticID:         semanticID,
			EventID:                     env.EventID,
			OrderID:                     env.OrderID,
			PricingSnapshotID:           snapshotID,
			ComponentType:               c.ComponentType,
			CanonicalComponentType:      pricingdomain.CanonicalizeComponentType(c.ComponentType),
			Amount:                      c.Amount.Int64(),
			Currency:                    c.Currency,
			Dimensions:                  datatypes.JSONMap(c.Dimensions),
			Description:                 c.Description,
			IsRefund:                    c.IsRefund,
			RefundOfComponentSemanticID: c.RefundOfComponentSemanticID,
			EmitterService:              env.EmitterService,
			Metadata:                    datatypes.JSONMap(metadata),
			EmittedAt:                   s.emittedAt(env),
			IngestedAt:                  now,
		}
		if refundID != "" {
			id := refundID
			row.RefundID = &id
		}
		if od, ok := c.Dimensions["order_detail_id"].(string); ok && od != "" {
			row.OrderDetailID = od
			if pricing != nil {
				if dc := pricing.ContextFor(od); dc != nil {
					row.EntityContext = datatypes.JSONMap(dc.EntityContext)
					row.FXContext = datatypes.JSONMap(dc.FXContext)
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// commitVersioned serializes on the scope key, then atomically derives
// the next version and commits through fn. The MAX read and the insert
// share one transaction so the derived version cannot be stale.
func (s *Service) commitVersioned(ctx context.Context, env *event.Envelope, family version.Family, scope version.Scope, fn func(tx *factstore.Store, next int64) error) (int64, error) {
	unlock, err := s.locks.Lock(ctx, scope.Key(family))
	if err != nil {
		return 0, fmt.Errorf("%w: scope lock: %w", ingestdomain.ErrVersionConflict, err)
	}
	defer unlock()

	var assigned int64
	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.store.Transaction(ctx, func(tx *factstore.Store) error {
			next, err := s.registry.WithTx(tx).Next(ctx, family, scope)
			if err != nil {
				return err
			}
			if err := fn(tx, next); err != nil {
				return err
			}
			assigned = next
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("event committed",
		zap.String("event_id", env.EventID),
		zap.String("event_type", env.RawType),
		zap.String("order_id", env.OrderID),
		zap.String("family", string(family)),
		zap.Int64("version", assigned))
	return assigned, nil
}

// withRetry retries transient storage failures with exponential backoff
// and jitter, then classifies the final failure as a storage error.
func (s *Service) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := s.cfg.StorageRetries
	if attempts <= 0 {
		attempts = 1
	}
	backoff := 100 * time.Millisecond

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
		err = op(opCtx)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, identity.ErrIdentity) || errors.Is(err, event.ErrValidation) || errors.Is(err, version.ErrEmptyScope) {
			return err
		}
		if attempt == attempts {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ingestdomain.ErrStorage, ctx.Err())
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %w", ingestdomain.ErrStorage, err)
}

func (s *Service) skipDuplicate(ctx context.Context, env *event.Envelope, has func(context.Context, string) (bool, error)) (bool, ingestdomain.Result, error) {
	seen, err := has(ctx, env.EventID)
	if err != nil {
		return true, ingestdomain.Result{}, err
	}
	if !seen {
		return false, ingestdomain.Result{}, nil
	}
	s.log.Info("duplicate event skipped",
		zap.String("event_id", env.EventID),
		zap.String("event_type", env.RawType),
		zap.String("order_id", env.OrderID))
	s.metrics.RecordEventDuplicate(ctx, env.RawType)
	return true, ingestdomain.Result{
		Status:    ingestdomain.StatusDuplicate,
		EventID:   env.EventID,
		EventType: env.RawType,
		OrderID:   env.OrderID,
	}, nil
}

func (s *Service) committed(ctx context.Context, env *event.Envelope, assigned int64, warnings []string) ingestdomain.Result {
	s.metrics.RecordEventIngested(ctx, env.RawType)
	return ingestdomain.Result{
		Status:    ingestdomain.StatusCommitted,
		EventID:   env.EventID,
		EventType: env.RawType,
		OrderID:   env.OrderID,
		Version:   assigned,
		Warnings:  warnings,
	}
}

func (s *Service) parkEnvelope(ctx context.Context, env *event.Envelope, cause error) ingestdomain.Result {
	return s.park(ctx, env.Raw(), env.EventID, env.RawType, env.OrderID, cause)
}

func (s *Service) park(ctx context.Context, raw []byte, eventID, eventType, orderID string, cause error) ingestdomain.Result {
	kind := classify(cause)
	result := ingestdomain.Result{
		Status:    ingestdomain.StatusParked,
		EventID:   eventID,
		EventType: eventType,
		OrderID:   orderID,
		ErrorKind: string(kind),
		Detail:    cause.Error(),
	}

	entry, err := s.dlq.Record(ctx, dlqdomain.RecordRequest{
		EventID:     eventID,
		EventType:   eventType,
		OrderID:     orderID,
		RawEvent:    raw,
		ErrorKind:   kind,
		ErrorDetail: cause.Error(),
	})
	if err != nil {
		s.log.Error("failed to park event, dropping to log",
			zap.String("event_id", eventID),
			zap.String("error_kind", string(kind)),
			zap.String("cause", cause.Error()),
			zap.Error(err))
		return result
	}
	result.DLQID = entry.DLQID
	s.metrics.RecordEventParked(ctx, eventType, string(kind))
	return result
}

// classify maps a pipeline failure onto its queue class. Identity wins
// over validation so a bad dimension inside an otherwise valid event
// is visible as what it is.
func classify(err error) dlqdomain.ErrorKind {
	switch {
	case errors.Is(err, identity.ErrIdentity):
		return dlqdomain.ErrorKindIdentity
	case errors.Is(err, event.ErrValidation), errors.Is(err, version.ErrEmptyScope):
		return dlqdomain.ErrorKindValidation
	case errors.Is(err, ingestdomain.ErrVersionConflict):
		return dlqdomain.ErrorKindVersionConflict
	default:
		return dlqdomain.ErrorKindStorage
	}
}

func (s *Service) emittedAt(env *event.Envelope) time.Time {
	if env.EmittedAt.IsZero() {
		return s.clock.Now()
	}
	return env.EmittedAt
}

func totalsWarning(payload *event.PricingPayload) []string {
	if payload.Totals == nil {
		return nil
	}
	var sum int64
	for _, c := range payload.Components {
		sum += c.Amount.Int64()
	}
	expected := payload.Totals.CustomerTotal.Int64()
	if sum == expected {
		return nil
	}
	return []string{fmt.Sprintf("component sum %d does not match customer_total %d", sum, expected)}
}

// probeEnvelope pulls best-effort identifiers out of an event that
// failed to decode, so the queue entry is still searchable.
type probedEnvelope struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	OrderID   string `json:"order_id"`
}

func probeEnvelope(raw []byte) probedEnvelope {
	var probe probedEnvelope
	_ = json.Unmarshal(raw, &probe)
	return probe
}
