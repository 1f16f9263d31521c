package factstore

import (
	"context"
	"sort"

	paymentdomain "github.com/smallbiznis/uprl/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/uprl/internal/pricing/domain"
	refunddomain "github.com/smallbiznis/uprl/internal/refund/domain"
	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
)

func maxVersion[T any](ctx context.Context, s *Store, column, query string, args ...any) (int64, error) {
	var max *int64
	var model T
	err := s.db.WithContext(ctx).Model(&model).
		Select("MAX(" + column + ")").
		Where(query, args...).
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// MaxPricingVersion returns the highest committed pricing version for
// an order, or 0 when the order has none.
func (s *Store) MaxPricingVersion(ctx context.Context, orderID string) (int64, error) {
	return maxVersion[pricingdomain.PricingComponentFact](ctx, s, "version", "order_id = ?", orderID)
}

func (s *Store) MaxPaymentVersion(ctx context.Context, orderID string) (int64, error) {
	return maxVersion[paymentdomain.PaymentTimelineFact](ctx, s, "timeline_version", "order_id = ?", orderID)
}

func (s *Store) MaxSupplierVersion(ctx context.Context, orderID, orderDetailID, supplierReferenceID, instanceKey string) (int64, error) {
	return maxVersion[supplierdomain.SupplierTimelineFact](ctx, s, "supplier_timeline_version",
		"order_id = ? AND order_detail_id = ? AND supplier_reference_id = ? AND fulfillment_instance_key = ?",
		orderID, orderDetailID, supplierReferenceID, instanceKey)
}

func (s *Store) MaxRefundVersion(ctx context.Context, orderID, refundID string) (int64, error) {
	return maxVersion[refunddomain.RefundTimelineFact](ctx, s, "refund_timeline_version",
		"order_id = ? AND refund_id = ?", orderID, refundID)
}

// PricingComponents returns every pricing fact row of an order,
// ordered by version then component type.
func (s *Store) PricingComponents(ctx context.Context, orderID string) ([]pricingdomain.PricingComponentFact, error) {
	var rows []pricingdomain.PricingComponentFact
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("version ASC, component_type ASC, component_semantic_id ASC").
		Find(&rows).Error
	return rows, err
}

// PricingComponentsInRange returns pricing rows with version inside
// [from, to]; zero bounds are open.
func (s *Store) PricingComponentsInRange(ctx context.Context, orderID string, from, to int64) ([]pricingdomain.PricingComponentFact, error) {
	stmt := s.db.WithContext(ctx).Where("order_id = ?", orderID)
	if from > 0 {
		stmt = stmt.Where("version >= ?", from)
	}
	if to > 0 {
		stmt = stmt.Where("version <= ?", to)
	}
	var rows []pricingdomain.PricingComponentFact
	err := stmt.Order("version ASC, component_semantic_id ASC").Find(&rows).Error
	return rows, err
}

// ComponentOccurrences returns the non-refund occurrences of a
// semantic component across versions, oldest first.
func (s *Store) ComponentOccurrences(ctx context.Context, semanticID string) ([]pricingdomain.PricingComponentFact, error) {
	var rows []pricingdomain.PricingComponentFact
	err := s.db.WithContext(ctx).
		Where("component_semantic_id = ? AND is_refund = ?", semanticID, false).
		Order("version ASC").
		Find(&rows).Error
	return rows, err
}

// ComponentRefunds returns refund rows that point back at a semantic
// component via refund lineage.
func (s *Store) ComponentRefunds(ctx context.Context, semanticID string) ([]pricingdomain.PricingComponentFact, error) {
	var rows []pricingdomain.PricingComponentFact
	err := s.db.WithContext(ctx).
		Where("refund_of_component_semantic_id = ? AND is_refund = ?", semanticID, true).
		Order("version ASC").
		Find(&rows).Error
	return rows, err
}

func (s *Store) PaymentTimeline(ctx context.Context, orderID string) ([]paymentdomain.PaymentTimelineFact, error) {
	var rows []paymentdomain.PaymentTimelineFact
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timeline_version ASC").
		Find(&rows).Error
	return rows, err
}

func (s *Store) PaymentTimelineInRange(ctx context.Context, orderID string, from, to int64) ([]paymentdomain.PaymentTimelineFact, error) {
	stmt := s.db.WithContext(ctx).Where("order_id = ?", orderID)
	if from > 0 {
		stmt = stmt.Where("timeline_version >= ?", from)
	}
	if to > 0 {
		stmt = stmt.Where("timeline_version <= ?", to)
	}
	var rows []paymentdomain.PaymentTimelineFact
	err := stmt.Order("timeline_version ASC").Find(&rows).Error
	return rows, err
}

// LatestPaymentEvent returns the highest-version payment row of an
// order, or nil when none exists.
func (s *Store) LatestPaymentEvent(ctx context.Context, orderID string) (*paymentdomain.PaymentTimelineFact, error) {
	var rows []paymentdomain.PaymentTimelineFact
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timeline_version DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Store) SupplierTimeline(ctx context.Context, orderID string) ([]supplierdomain.SupplierTimelineFact, error) {
	var rows []supplierdomain.SupplierTimelineFact
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("order_detail_id ASC, supplier_timeline_version ASC").
		Find(&rows).Error
	return rows, err
}

func (s *Store) SupplierTimelineInRange(ctx context.Context, orderID string, from, to int64) ([]supplierdomain.SupplierTimelineFact, error) {
	stmt := s.db.WithContext(ctx).Where("order_id = ?", orderID)
	if from > 0 {
		stmt = stmt.Where("supplier_timeline_version >= ?", from)
	}
	if to > 0 {
		stmt = stmt.Where("supplier_timeline_version <= ?", to)
	}
	var rows []supplierdomain.SupplierTimelineFact
	err := stmt.Order("order_detail_id ASC, supplier_timeline_version ASC").Find(&rows).Error
	return rows, err
}

// PayableLines returns every payable line of an order, chronological
// by version so the audit trail reads top to bottom.
func (s *Store) PayableLines(ctx context.Context, orderID string) ([]supplierdomain.SupplierPayableLine, error) {
	var rows []supplierdomain.SupplierPayableLine
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("supplier_timeline_version ASC, obligation_type ASC, party_id ASC").
		Find(&rows).Error
	return rows, err
}

// PayableLinesByInstance returns the payable lines scoped to one
// instance key.
func (s *Store) PayableLinesByInstance(ctx context.Context, orderID, orderDetailID, supplierReferenceID, instanceKey string) ([]supplierdomain.SupplierPayableLine, error) {
	var rows []supplierdomain.SupplierPayableLine
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND order_detail_id = ? AND supplier_reference_id = ? AND fulfillment_instance_key = ?",
			orderID, orderDetailID, supplierReferenceID, instanceKey).
		Order("supplier_timeline_version ASC, party_id ASC, obligation_type ASC").
		Find(&rows).Error
	return rows, err
}

func (s *Store) RefundTimeline(ctx context.Context, orderID string) ([]refunddomain.RefundTimelineFact, error) {
	var rows []refunddomain.RefundTimelineFact
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("refund_id ASC, refund_timeline_version ASC").
		Find(&rows).Error
	return rows, err
}

func (s *Store) RefundTimelineInRange(ctx context.Context, orderID string, from, to int64) ([]refunddomain.RefundTimelineFact, error) {
	stmt := s.db.WithContext(ctx).Where("order_id = ?", orderID)
	if from > 0 {
		stmt = stmt.Where("refund_timeline_version >= ?", from)
	}
	if to > 0 {
		stmt = stmt.Where("refund_timeline_version <= ?", to)
	}
	var rows []refunddomain.RefundTimelineFact
	err := stmt.Order("refund_id ASC, refund_timeline_version ASC").Find(&rows).Error
	return rows, err
}

// OrderIDs returns the distinct orders seen across all four fact
// families, sorted.
func (s *Store) OrderIDs(ctx context.Context) ([]string, error) {
	collect := func(table string) ([]string, error) {
		var ids []string
		err := s.db.WithContext(ctx).Table(table).Distinct("order_id").Pluck("order_id", &ids).Error
		return ids, err
	}

	seen := map[string]struct{}{}
	var out []string
	for _, table := range []string{
		pricingdomain.PricingComponentFact{}.TableName(),
		paymentdomain.PaymentTimelineFact{}.TableName(),
		supplierdomain.SupplierTimelineFact{}.TableName(),
		refunddomain.RefundTimelineFact{}.TableName(),
	} {
		ids, err := collect(table)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
