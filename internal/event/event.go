// Package event decodes inbound envelopes and validates the payload
// variant selected by schema_version. Legacy producer shapes (flat
// payment fields, single detail_context, supplier.timeline.v1) are
// lifted to the current form here so the pipeline only ever sees one
// shape per kind.
package event

import (
	"errors"
	"fmt"
)

// Kind is the canonical event family after alias resolution.
type Kind string

const (
	KindPricingUpdated    Kind = "PricingUpdated"
	KindPaymentLifecycle  Kind = "PaymentLifecycle"
	KindSupplierLifecycle Kind = "IssuanceSupplierLifecycle"
	KindRefundIssued      Kind = "refund.issued"
	KindRefundLifecycle   Kind = "RefundLifecycle"
	KindPartnerAdjustment Kind = "PartnerAdjustmentEvent"
)

// kindByType maps inbound event_type values, aliases included, to the
// canonical kind.
var kindByType = map[string]Kind{
	"PricingUpdated":            KindPricingUpdated,
	"PaymentLifecycle":          KindPaymentLifecycle,
	"IssuanceSupplierLifecycle": KindSupplierLifecycle,
	"SupplierLifecycleEvent":    KindSupplierLifecycle,
	"refund.issued":             KindRefundIssued,
	"RefundLifecycle":           KindRefundLifecycle,
	"PartnerAdjustmentEvent":    KindPartnerAdjustment,
}

// Schema version tokens. supplier.timeline.v2 adds multi-party lines
// and fulfillment_instance_id on top of v1.
const (
	SchemaPricingCommerceV1   = "pricing.commerce.v1"
	SchemaPaymentTimelineV1   = "payment.timeline.v1"
	SchemaSupplierTimelineV1  = "supplier.timeline.v1"
	SchemaSupplierTimelineV2  = "supplier.timeline.v2"
	SchemaRefundComponentsV1  = "refund.components.v1"
	SchemaRefundLifecycleV1   = "refund.lifecycle.v1"
	SchemaRefundTimelineV1    = "refund.timeline.v1" // legacy producer token for refund.lifecycle.v1
	SchemaPartnerAdjustmentV1 = "partner.adjustment.v1"
)

var schemasByKind = map[Kind]map[string]struct{}{
	KindPricingUpdated:    {SchemaPricingCommerceV1: {}},
	KindPaymentLifecycle:  {SchemaPaymentTimelineV1: {}},
	KindSupplierLifecycle: {SchemaSupplierTimelineV1: {}, SchemaSupplierTimelineV2: {}},
	KindRefundIssued:      {SchemaRefundComponentsV1: {}},
	KindRefundLifecycle:   {SchemaRefundLifecycleV1: {}, SchemaRefundTimelineV1: {}},
	KindPartnerAdjustment: {SchemaPartnerAdjustmentV1: {}},
}

// ErrValidation is the base class for every malformed-event failure.
// Wrapped errors stay inspectable via errors.Is against the specific
// sentinel and against ErrValidation itself.
var ErrValidation = errors.New("validation_error")

var (
	ErrMalformedJSON         = errors.New("malformed_json")
	ErrMissingEventType      = errors.New("missing_event_type")
	ErrUnknownEventType      = errors.New("unknown_event_type")
	ErrMissingSchemaVersion  = errors.New("missing_schema_version")
	ErrSchemaVersionMismatch = errors.New("schema_version_mismatch")
	ErrMissingOrderID        = errors.New("missing_order_id")
	ErrBadTimestamp          = errors.New("bad_timestamp")
	ErrMissingPayload        = errors.New("missing_payload")
	ErrBadFieldType          = errors.New("bad_field_type")
)

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func invalidf(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrValidation, err, fmt.Sprintf(format, args...))
}
