// Package version assigns monotonic versions for the five independent
// version families. Counters are never cached in-process; every Next
// call derives MAX+1 from committed rows so a restart needs no
// recovery step.
package version

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/uprl/internal/factstore"
	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
)

// Family identifies one version counter space. Families never share
// counters; a pricing update and a payment event on the same order
// advance independently.
type Family string

const (
	FamilyPricing  Family = "pricing"
	FamilyPayment  Family = "payment"
	FamilySupplier Family = "supplier"
	FamilyRefund   Family = "refund"
	FamilyIssuance Family = "issuance"
)

var (
	ErrUnknownFamily = errors.New("unknown_version_family")
	// ErrFamilyReserved marks families that are defined but not yet
	// backed by a fact table. Issuance is reserved for the
	// (order_id, order_detail_id) scope.
	ErrFamilyReserved = errors.New("version_family_reserved")
	ErrEmptyScope     = errors.New("empty_version_scope")
)

// Scope is the key tuple a family's counter is partitioned by. Unused
// fields stay empty; Key() renders the canonical lock/counter key.
type Scope struct {
	OrderID               string
	OrderDetailID         string
	SupplierReferenceID   string
	FulfillmentInstanceID *string
	RefundID              string
}

// PricingScope and the other constructors build the per-family scope
// shapes defined by the registry.
func PricingScope(orderID string) Scope { return Scope{OrderID: orderID} }

func PaymentScope(orderID string) Scope { return Scope{OrderID: orderID} }

func SupplierScope(orderID, orderDetailID, supplierReferenceID string, fulfillmentInstanceID *string) Scope {
	return Scope{
		OrderID:               orderID,
		OrderDetailID:         orderDetailID,
		SupplierReferenceID:   supplierReferenceID,
		FulfillmentInstanceID: fulfillmentInstanceID,
	}
}

func RefundScope(orderID, refundID string) Scope {
	return Scope{OrderID: orderID, RefundID: refundID}
}

func IssuanceScope(orderID, orderDetailID string) Scope {
	return Scope{OrderID: orderID, OrderDetailID: orderDetailID}
}

// Key renders the scope into the canonical string used for per-scope
// locking. The absent fulfillment instance maps onto the booking-level
// key so booking and redemption counters never collide.
func (s Scope) Key(family Family) string {
	parts := []string{string(family), s.OrderID}
	switch family {
	case FamilySupplier:
		parts = append(parts, s.OrderDetailID, s.SupplierReferenceID, supplierdomain.InstanceKey(s.FulfillmentInstanceID))
	case FamilyRefund:
		parts = append(parts, s.RefundID)
	case FamilyIssuance:
		parts = append(parts, s.OrderDetailID)
	}
	return strings.Join(parts, "|")
}

// Registry hands out the next version for a family scope. Callers must
// hold the scope lock across Next and the commit that uses the result;
// the registry itself only reads.
type Registry struct {
	store *factstore.Store
}

func NewRegistry(store *factstore.Store) *Registry {
	return &Registry{store: store}
}

// Next returns MAX(version)+1 for the scope, starting at 1 when no row
// exists yet.
func (r *Registry) Next(ctx context.Context, family Family, scope Scope) (int64, error) {
	if scope.OrderID == "" {
		return 0, ErrEmptyScope
	}

	store := r.store
	var (
		max int64
		err error
	)
	switch family {
	case FamilyPricing:
		max, err = store.MaxPricingVersion(ctx, scope.OrderID)
	case FamilyPayment:
		max, err = store.MaxPaymentVersion(ctx, scope.OrderID)
	case FamilySupplier:
		max, err = store.MaxSupplierVersion(ctx, scope.OrderID, scope.OrderDetailID,
			scope.SupplierReferenceID, supplierdomain.InstanceKey(scope.FulfillmentInstanceID))
	case FamilyRefund:
		if scope.RefundID == "" {
			return 0, ErrEmptyScope
		}
		max, err = store.MaxRefundVersion(ctx, scope.OrderID, scope.RefundID)
	case FamilyIssuance:
		return 0, fmt.Errorf("%w: %s", ErrFamilyReserved, family)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// WithTx rebinds the registry onto a transaction-scoped store so the
// MAX read and the insert that follows see the same snapshot.
func (r *Registry) WithTx(store *factstore.Store) *Registry {
	return &Registry{store: store}
}
