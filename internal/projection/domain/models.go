// Package domain defines the read-side views derived from the fact
// store: effective payables, latest-state views and history reads.
package domain

import (
	"context"
	"errors"
	"time"

	paymentdomain "github.com/smallbiznis/uprl/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/uprl/internal/pricing/domain"
	refunddomain "github.com/smallbiznis/uprl/internal/refund/domain"
	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
	"github.com/smallbiznis/uprl/internal/version"
)

// Obligation is one effective payable line after party-level
// projection.
type Obligation struct {
	ObligationType string                      `json:"obligation_type"`
	PartyType      supplierdomain.PartyType    `json:"party_type"`
	PartyID        string                      `json:"party_id"`
	PartyName      string                      `json:"party_name,omitempty"`
	Amount         int64                       `json:"amount"`
	AmountEffect   supplierdomain.AmountEffect `json:"amount_effect"`
	Currency       string                      `json:"currency"`
	Version        int64                       `json:"supplier_timeline_version"`
	Standalone     bool                        `json:"standalone,omitempty"`
}

// Signed returns the obligation amount with its direction applied.
func (o Obligation) Signed() int64 {
	return o.Amount * o.AmountEffect.Sign()
}

// PartyPayable aggregates the obligations owed to one party under an
// instance. Only the supplier party carries a baseline.
type PartyPayable struct {
	PartyID     string                   `json:"party_id"`
	PartyType   supplierdomain.PartyType `json:"party_type"`
	PartyName   string                   `json:"party_name,omitempty"`
	Baseline    int64                    `json:"baseline"`
	Obligations []Obligation             `json:"obligations"`
	Adjustment  int64                    `json:"adjustment"`
	Total       int64                    `json:"total_payable"`
	Currency    string                   `json:"currency"`
}

// Baseline is the supplier-cost starting point of an instance, derived
// from the latest supplier timeline status.
type Baseline struct {
	SupplierID  string                        `json:"supplier_id"`
	Amount      int64                         `json:"amount"`
	AmountBasis supplierdomain.AmountBasis    `json:"amount_basis,omitempty"`
	Reason      string                        `json:"reason"`
	Status      supplierdomain.SupplierStatus `json:"status"`
	Currency    string                        `json:"currency"`
}

// PayableInstance is one projected payable per instance key.
type PayableInstance struct {
	OrderDetailID         string         `json:"order_detail_id"`
	SupplierReferenceID   string         `json:"supplier_reference_id,omitempty"`
	FulfillmentInstanceID *string        `json:"fulfillment_instance_id,omitempty"`
	SupplierBaseline      Baseline       `json:"supplier_baseline"`
	Parties               []PartyPayable `json:"parties"`
	Total                 int64          `json:"total_payable"`
}

// PayablesView is the effective payables of one order. Warnings carry
// per-instance inconsistencies; one bad instance never fails the whole
// read.
type PayablesView struct {
	OrderID   string            `json:"order_id"`
	Instances []PayableInstance `json:"instances"`
	Total     int64             `json:"total_payable"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// OrderView is the composite latest-state read of one order.
type OrderView struct {
	OrderID        string                              `json:"order_id"`
	PricingLatest  []pricingdomain.PricingComponentFact `json:"pricing_latest"`
	PaymentLatest  *paymentdomain.PaymentTimelineFact   `json:"payment_latest,omitempty"`
	SupplierLatest []supplierdomain.SupplierTimelineFact `json:"supplier_latest"`
	RefundLatest   []refunddomain.RefundTimelineFact     `json:"refund_latest"`
}

// PricingHistoryEntry summarizes one pricing snapshot version.
type PricingHistoryEntry struct {
	Version           int64     `json:"version"`
	PricingSnapshotID string    `json:"pricing_snapshot_id"`
	EventID           string    `json:"event_id"`
	ComponentCount    int       `json:"component_count"`
	TotalAmount       int64     `json:"total_amount"`
	Currency          string    `json:"currency,omitempty"`
	IsRefund          bool      `json:"is_refund"`
	EmittedAt         time.Time `json:"emitted_at"`
}

// ComponentLineage links a semantic component to its occurrences across
// repricing and the refund rows pointing back at it.
type ComponentLineage struct {
	ComponentSemanticID string                               `json:"component_semantic_id"`
	Occurrences         []pricingdomain.PricingComponentFact `json:"occurrences"`
	Refunds             []pricingdomain.PricingComponentFact `json:"refunds"`
}

// HistoryRequest is a per-family range read by version. Zero bounds are
// open.
type HistoryRequest struct {
	OrderID     string
	Family      version.Family
	FromVersion int64
	ToVersion   int64
}

// HistoryResponse carries the rows of exactly one family.
type HistoryResponse struct {
	OrderID  string                                `json:"order_id"`
	Family   version.Family                        `json:"family"`
	Pricing  []pricingdomain.PricingComponentFact  `json:"pricing,omitempty"`
	Payment  []paymentdomain.PaymentTimelineFact   `json:"payment,omitempty"`
	Supplier []supplierdomain.SupplierTimelineFact `json:"supplier,omitempty"`
	Refund   []refunddomain.RefundTimelineFact     `json:"refund,omitempty"`
}

// Service is the read side. Every method is pure with respect to the
// fact store; projections never write.
type Service interface {
	Order(ctx context.Context, orderID string) (OrderView, error)
	EffectivePayables(ctx context.Context, orderID string) (PayablesView, error)
	PayablesTimeline(ctx context.Context, orderID string) ([]supplierdomain.SupplierPayableLine, error)
	PricingHistory(ctx context.Context, orderID string) ([]PricingHistoryEntry, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
	Lineage(ctx context.Context, semanticID string) (ComponentLineage, error)
	Orders(ctx context.Context) ([]string, error)
}

var ErrProjection = errors.New("projection_error")
