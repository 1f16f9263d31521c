package service

import (
	"context"
	"sort"

	pricingdomain "github.com/smallbiznis/uprl/internal/pricing/domain"
	refunddomain "github.com/smallbiznis/uprl/internal/refund/domain"
	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
)

// pricingLatest picks, per semantic component, the row with the highest
// version; ties break on emitted_at then ingested_at. Refund rows are
// occurrences in their own right and participate like any other.
func (s *Service) pricingLatest(ctx context.Context, orderID string) ([]pricingdomain.PricingComponentFact, error) {
	rows, err := s.store.PricingComponents(ctx, orderID)
	if err != nil {
		return nil, err
	}

	latest := map[string]*pricingdomain.PricingComponentFact{}
	for i := range rows {
		row := &rows[i]
		prior, ok := latest[row.ComponentSemanticID]
		if !ok || newerPricing(row, prior) {
			latest[row.ComponentSemanticID] = row
		}
	}

	out := make([]pricingdomain.PricingComponentFact, 0, len(latest))
	for _, row := range latest {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ComponentSemanticID < out[j].ComponentSemanticID
	})
	return out, nil
}

func newerPricing(candidate, prior *pricingdomain.PricingComponentFact) bool {
	if candidate.Version != prior.Version {
		return candidate.Version > prior.Version
	}
	if !candidate.EmittedAt.Equal(prior.EmittedAt) {
		return candidate.EmittedAt.After(prior.EmittedAt)
	}
	return candidate.IngestedAt.After(prior.IngestedAt)
}

// supplierLatest picks the highest-version timeline row per instance
// key.
func (s *Service) supplierLatest(ctx context.Context, orderID string) ([]supplierdomain.SupplierTimelineFact, error) {
	rows, err := s.store.SupplierTimeline(ctx, orderID)
	if err != nil {
		return nil, err
	}

	latest := map[instanceKey]*supplierdomain.SupplierTimelineFact{}
	var order []instanceKey
	for i := range rows {
		row := &rows[i]
		key := instanceKey{row.OrderDetailID, row.SupplierReferenceID, row.FulfillmentInstanceKey}
		prior, ok := latest[key]
		if !ok {
			order = append(order, key)
		}
		if !ok || row.SupplierTimelineVersion > prior.SupplierTimelineVersion {
			latest[key] = row
		}
	}

	out := make([]supplierdomain.SupplierTimelineFact, 0, len(order))
	for _, key := range order {
		out = append(out, *latest[key])
	}
	return out, nil
}

// refundLatest picks the highest-version row per refund_id.
func (s *Service) refundLatest(ctx context.Context, orderID string) ([]refunddomain.RefundTimelineFact, error) {
	rows, err := s.store.RefundTimeline(ctx, orderID)
	if err != nil {
		return nil, err
	}

	latest := map[string]*refunddomain.RefundTimelineFact{}
	var order []string
	for i := range rows {
		row := &rows[i]
		prior, ok := latest[row.RefundID]
		if !ok {
			order = append(order, row.RefundID)
		}
		if !ok || row.RefundTimelineVersion > prior.RefundTimelineVersion {
			latest[row.RefundID] = row
		}
	}

	out := make([]refunddomain.RefundTimelineFact, 0, len(order))
	for _, id := range order {
		out = append(out, *latest[id])
	}
	return out, nil
}
