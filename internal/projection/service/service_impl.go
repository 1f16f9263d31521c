package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/uprl/internal/factstore"
	"github.com/smallbiznis/uprl/internal/observability/metrics"
	projectiondomain "github.com/smallbiznis/uprl/internal/projection/domain"
	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
	"github.com/smallbiznis/uprl/internal/version"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Store   *factstore.Store
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	store   *factstore.Store
	metrics *metrics.Metrics
}

func NewService(p Params) projectiondomain.Service {
	return &Service{
		log:     p.Log.Named("projection.service"),
		store:   p.Store,
		metrics: p.Metrics,
	}
}

// Order assembles the composite latest-state view across all four
// fact families.
func (s *Service) Order(ctx context.Context, orderID string) (projectiondomain.OrderView, error) {
	s.metrics.RecordProjectionRead(ctx, "order")

	view := projectiondomain.OrderView{OrderID: orderID}

	pricing, err := s.pricingLatest(ctx, orderID)
	if err != nil {
		return view, err
	}
	view.PricingLatest = pricing

	payment, err := s.store.LatestPaymentEvent(ctx, orderID)
	if err != nil {
		return view, err
	}
	view.PaymentLatest = payment

	supplier, err := s.supplierLatest(ctx, orderID)
	if err != nil {
		return view, err
	}
	view.SupplierLatest = supplier

	refund, err := s.refundLatest(ctx, orderID)
	if err != nil {
		return view, err
	}
	view.RefundLatest = refund

	return view, nil
}

// instanceKey groups supplier rows and payable lines per payable
// instance.
type instanceKey struct {
	orderDetailID       string
	supplierReferenceID string
	instanceKey         string
}

// EffectivePayables projects the per-instance payables of one order.
// The projection is pure; identical facts yield identical output.
func (s *Service) EffectivePayables(ctx context.Context, orderID string) (projectiondomain.PayablesView, error) {
	s.metrics.RecordProjectionRead(ctx, "payables")

	view := projectiondomain.PayablesView{OrderID: orderID}

	timeline, err := s.store.SupplierTimeline(ctx, orderID)
	if err != nil {
		return view, err
	}
	allLines, err := s.store.PayableLines(ctx, orderID)
	if err != nil {
		return view, err
	}

	latest := map[instanceKey]*supplierdomain.SupplierTimelineFact{}
	var order []instanceKey
	for i := range timeline {
		row := &timeline[i]
		key := instanceKey{row.OrderDetailID, row.SupplierReferenceID, row.FulfillmentInstanceKey}
		prior, ok := latest[key]
		if !ok {
			order = append(order, key)
		}
		if !ok || row.SupplierTimelineVersion > prior.SupplierTimelineVersion {
			latest[key] = row
		}
	}

	lines := map[instanceKey][]supplierdomain.SupplierPayableLine{}
	for _, line := range allLines {
		key := instanceKey{line.OrderDetailID, line.SupplierReferenceID, line.FulfillmentInstanceKey}
		lines[key] = append(lines[key], line)
	}

	// Standalone adjustments can target an instance that never saw a
	// supplier lifecycle event. Those instances still project, with a
	// zero baseline and a warning.
	var orphans []instanceKey
	for key, instanceLines := range lines {
		if _, ok := latest[key]; ok {
			continue
		}
		standaloneOnly := true
		for _, line := range instanceLines {
			if !line.Standalone() {
				standaloneOnly = false
				break
			}
		}
		orphans = append(orphans, key)
		if standaloneOnly {
			view.Warnings = append(view.Warnings, fmt.Sprintf(
				"instance (%s, %s, %s) has standalone adjustments but no supplier timeline",
				key.orderDetailID, key.supplierReferenceID, key.instanceKey))
		} else {
			view.Warnings = append(view.Warnings, fmt.Sprintf(
				"instance (%s, %s, %s) has payable lines referring to an absent supplier timeline",
				key.orderDetailID, key.supplierReferenceID, key.instanceKey))
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		a, b := orphans[i], orphans[j]
		if a.orderDetailID != b.orderDetailID {
			return a.orderDetailID < b.orderDetailID
		}
		if a.supplierReferenceID != b.supplierReferenceID {
			return a.supplierReferenceID < b.supplierReferenceID
		}
		return a.instanceKey < b.instanceKey
	})
	order = append(order, orphans...)

	for _, key := range order {
		instance, warnings := projectInstance(key, latest[key], lines[key])
		view.Instances = append(view.Instances, instance)
		view.Warnings = append(view.Warnings, warnings...)
		view.Total += instance.Total
	}
	return view, nil
}

// projectInstance computes one payable instance. A nil latest row means
// the instance only exists through standalone adjustments.
func projectInstance(key instanceKey, latest *supplierdomain.SupplierTimelineFact, instanceLines []supplierdomain.SupplierPayableLine) (projectiondomain.PayableInstance, []string) {
	instance := projectiondomain.PayableInstance{
		OrderDetailID:       key.orderDetailID,
		SupplierReferenceID: key.supplierReferenceID,
	}
	if key.instanceKey != supplierdomain.BookingLevelKey {
		id := key.instanceKey
		instance.FulfillmentInstanceID = &id
	}

	var warnings []string
	baseline := projectiondomain.Baseline{}
	includeTimeline := false
	if latest != nil {
		baseline.SupplierID = latest.SupplierID
		baseline.Status = latest.Status
		baseline.AmountBasis = latest.AmountBasis
		baseline.Currency = latest.Currency

		switch latest.Status {
		case supplierdomain.SupplierStatusConfirmed,
			supplierdomain.SupplierStatusIssued,
			supplierdomain.SupplierStatusInvoiced,
			supplierdomain.SupplierStatusSettled:
			baseline.Amount = latest.Amount
			baseline.Reason = fmt.Sprintf("supplier cost (status: %s)", latest.Status)
			includeTimeline = true
		case supplierdomain.SupplierStatusCancelledWithFee:
			// The fee lives in the obligation lines; legacy events
			// without a fee line fall back to the timeline field.
			baseline.Amount = 0
			baseline.Reason = "cancelled, fee carried by obligation lines"
			includeTimeline = true
		case supplierdomain.SupplierStatusCancelledNoFee, supplierdomain.SupplierStatusVoided:
			baseline.Amount = 0
			baseline.Reason = fmt.Sprintf("cancelled without fee (status: %s)", latest.Status)
		default:
			baseline.Amount = latest.Amount
			baseline.Reason = fmt.Sprintf("unknown status: %s", latest.Status)
			includeTimeline = true
			warnings = append(warnings, fmt.Sprintf(
				"instance (%s, %s, %s) carries unknown supplier status %q",
				key.orderDetailID, key.supplierReferenceID, key.instanceKey, latest.Status))
		}
	} else {
		baseline.Reason = "no supplier timeline for this instance"
	}

	obligations := effectiveObligations(instanceLines, includeTimeline)

	if latest != nil && latest.Status == supplierdomain.SupplierStatusCancelledWithFee &&
		latest.CancellationFeeAmount != nil && *latest.CancellationFeeAmount > 0 &&
		!hasCancellationFee(obligations, latest.SupplierID) {
		baseline.Amount = *latest.CancellationFeeAmount
		baseline.Reason = "cancellation fee (legacy timeline field)"
	}

	instance.SupplierBaseline = baseline
	instance.Parties = groupByParty(baseline, obligations)
	for _, party := range instance.Parties {
		instance.Total += party.Total
	}
	return instance, warnings
}

// effectiveObligations applies last-writer-wins per (party_id,
// obligation_type) over timeline-linked lines, then appends every
// standalone adjustment. A later supplier event with no lines leaves
// prior obligations effective; a later event carrying lines supersedes
// only the tuples it mentions.
func effectiveObligations(instanceLines []supplierdomain.SupplierPayableLine, includeTimeline bool) []projectiondomain.Obligation {
	type tupleKey struct {
		partyID        string
		obligationType string
	}

	winners := map[tupleKey]supplierdomain.SupplierPayableLine{}
	var tupleOrder []tupleKey
	var standalone []supplierdomain.SupplierPayableLine

	for _, line := range instanceLines {
		if line.Standalone() {
			standalone = append(standalone, line)
			continue
		}
		if !includeTimeline {
			continue
		}
		key := tupleKey{line.PartyID, line.ObligationType}
		prior, ok := winners[key]
		if !ok {
			tupleOrder = append(tupleOrder, key)
		}
		if !ok || line.SupplierTimelineVersion >= prior.SupplierTimelineVersion {
			winners[key] = line
		}
	}

	var out []projectiondomain.Obligation
	for _, key := range tupleOrder {
		out = append(out, toObligation(winners[key]))
	}
	for _, line := range standalone {
		out = append(out, toObligation(line))
	}
	return out
}

func toObligation(line supplierdomain.SupplierPayableLine) projectiondomain.Obligation {
	return projectiondomain.Obligation{
		ObligationType: line.ObligationType,
		PartyType:      line.PartyType,
		PartyID:        line.PartyID,
		PartyName:      line.PartyName,
		Amount:         line.Amount,
		AmountEffect:   line.AmountEffect,
		Currency:       line.Currency,
		Version:        line.SupplierTimelineVersion,
		Standalone:     line.Standalone(),
	}
}

func hasCancellationFee(obligations []projectiondomain.Obligation, supplierID string) bool {
	for _, o := range obligations {
		if o.PartyID == supplierID && o.ObligationType == supplierdomain.ObligationTypeCancellationFee {
			return true
		}
	}
	return false
}

// groupByParty splits obligations per party. The supplier party always
// appears first and carries the baseline, even with no obligations of
// its own.
func groupByParty(baseline projectiondomain.Baseline, obligations []projectiondomain.Obligation) []projectiondomain.PartyPayable {
	hasSupplier := baseline.SupplierID != ""
	supplier := projectiondomain.PartyPayable{
		PartyID:     baseline.SupplierID,
		PartyType:   supplierdomain.PartyTypeSupplier,
		PartyName:   baseline.SupplierID,
		Baseline:    baseline.Amount,
		Obligations: []projectiondomain.Obligation{},
		Currency:    baseline.Currency,
	}

	others := map[string]*projectiondomain.PartyPayable{}
	var otherOrder []string

	for _, o := range obligations {
		if hasSupplier && o.PartyID == baseline.SupplierID {
			supplier.Obligations = append(supplier.Obligations, o)
			supplier.Adjustment += o.Signed()
			continue
		}
		party, ok := others[o.PartyID]
		if !ok {
			party = &projectiondomain.PartyPayable{
				PartyID:   o.PartyID,
				PartyType: o.PartyType,
				PartyName: o.PartyName,
				Currency:  o.Currency,
			}
			others[o.PartyID] = party
			otherOrder = append(otherOrder, o.PartyID)
		}
		party.Obligations = append(party.Obligations, o)
		party.Adjustment += o.Signed()
	}

	supplier.Total = supplier.Baseline + supplier.Adjustment
	var out []projectiondomain.PartyPayable
	if hasSupplier {
		out = append(out, supplier)
	}
	for _, partyID := range otherOrder {
		party := others[partyID]
		party.Total = party.Adjustment
		out = append(out, *party)
	}
	return out
}

// PayablesTimeline returns the audit trail of payable lines, ordered by
// supplier timeline version (standalone adjustments at -1 first), then
// obligation type and party.
func (s *Service) PayablesTimeline(ctx context.Context, orderID string) ([]supplierdomain.SupplierPayableLine, error) {
	s.metrics.RecordProjectionRead(ctx, "payables_timeline")
	return s.store.PayableLines(ctx, orderID)
}

// PricingHistory summarizes every committed pricing version of an
// order, oldest first.
func (s *Service) PricingHistory(ctx context.Context, orderID string) ([]projectiondomain.PricingHistoryEntry, error) {
	s.metrics.RecordProjectionRead(ctx, "pricing_history")

	rows, err := s.store.PricingComponents(ctx, orderID)
	if err != nil {
		return nil, err
	}

	byVersion := map[int64]*projectiondomain.PricingHistoryEntry{}
	var versions []int64
	for i := range rows {
		row := &rows[i]
		entry, ok := byVersion[row.Version]
		if !ok {
			entry = &projectiondomain.PricingHistoryEntry{
				Version:           row.Version,
				PricingSnapshotID: row.PricingSnapshotID,
				EventID:           row.EventID,
				Currency:          row.Currency,
				IsRefund:          row.IsRefund,
				EmittedAt:         row.EmittedAt,
			}
			byVersion[row.Version] = entry
			versions = append(versions, row.Version)
		}
		entry.ComponentCount++
		entry.TotalAmount += row.Amount
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	out := make([]projectiondomain.PricingHistoryEntry, 0, len(versions))
	for i, v := range versions {
		if i > 0 && v != versions[i-1]+1 {
			s.log.Warn("version gap in pricing history",
				zap.String("order_id", orderID),
				zap.Int64("after_version", versions[i-1]),
				zap.Int64("next_version", v))
		}
		out = append(out, *byVersion[v])
	}
	return out, nil
}

// History reads one family's fact rows inside a version range.
func (s *Service) History(ctx context.Context, req projectiondomain.HistoryRequest) (projectiondomain.HistoryResponse, error) {
	s.metrics.RecordProjectionRead(ctx, "history")

	res := projectiondomain.HistoryResponse{OrderID: req.OrderID, Family: req.Family}
	var err error
	switch req.Family {
	case version.FamilyPricing:
		res.Pricing, err = s.store.PricingComponentsInRange(ctx, req.OrderID, req.FromVersion, req.ToVersion)
	case version.FamilyPayment:
		res.Payment, err = s.store.PaymentTimelineInRange(ctx, req.OrderID, req.FromVersion, req.ToVersion)
	case version.FamilySupplier:
		res.Supplier, err = s.store.SupplierTimelineInRange(ctx, req.OrderID, req.FromVersion, req.ToVersion)
	case version.FamilyRefund:
		res.Refund, err = s.store.RefundTimelineInRange(ctx, req.OrderID, req.FromVersion, req.ToVersion)
	case version.FamilyIssuance:
		return res, fmt.Errorf("%w: %s", version.ErrFamilyReserved, req.Family)
	default:
		return res, fmt.Errorf("%w: %s", version.ErrUnknownFamily, req.Family)
	}
	return res, err
}

// Lineage returns a semantic component's occurrences and the refund
// rows that point back at it.
func (s *Service) Lineage(ctx context.Context, semanticID string) (projectiondomain.ComponentLineage, error) {
	s.metrics.RecordProjectionRead(ctx, "lineage")

	lineage := projectiondomain.ComponentLineage{ComponentSemanticID: semanticID}
	occurrences, err := s.store.ComponentOccurrences(ctx, semanticID)
	if err != nil {
		return lineage, err
	}
	refunds, err := s.store.ComponentRefunds(ctx, semanticID)
	if err != nil {
		return lineage, err
	}
	lineage.Occurrences = occurrences
	lineage.Refunds = refunds
	return lineage, nil
}

// Orders lists every order seen across the fact families.
func (s *Service) Orders(ctx context.Context) ([]string, error) {
	s.metrics.RecordProjectionRead(ctx, "orders")
	return s.store.OrderIDs(ctx)
}
