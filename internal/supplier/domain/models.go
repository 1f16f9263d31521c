// Package domain contains persistence models for the supplier timeline
// family and its multi-party payable lines.
package domain

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// BookingLevelKey is the instance key used when an event carries no
// fulfillment_instance_id. The absent value is a distinct key of its
// own, never a wildcard over redemption instances.
const BookingLevelKey = "__BOOKING_LEVEL__"

// StandaloneVersion marks payable lines written by partner adjustments.
// They have no parent supplier timeline row and persist across status
// changes.
const StandaloneVersion int64 = -1

// SupplierStatus enumerates supplier lifecycle states.
type SupplierStatus string

const (
	SupplierStatusConfirmed        SupplierStatus = "Confirmed"
	SupplierStatusIssued           SupplierStatus = "ISSUED"
	SupplierStatusInvoiced         SupplierStatus = "Invoiced"
	SupplierStatusSettled          SupplierStatus = "Settled"
	SupplierStatusCancelledWithFee SupplierStatus = "CancelledWithFee"
	SupplierStatusCancelledNoFee   SupplierStatus = "CancelledNoFee"
	SupplierStatusVoided           SupplierStatus = "Voided"
)

var KnownSupplierStatuses = map[SupplierStatus]struct{}{
	SupplierStatusConfirmed:        {},
	SupplierStatusIssued:           {},
	SupplierStatusInvoiced:         {},
	SupplierStatusSettled:          {},
	SupplierStatusCancelledWithFee: {},
	SupplierStatusCancelledNoFee:   {},
	SupplierStatusVoided:           {},
}

// Active reports whether the status keeps the supplier cost payable.
func (s SupplierStatus) Active() bool {
	switch s {
	case SupplierStatusConfirmed, SupplierStatusIssued, SupplierStatusInvoiced, SupplierStatusSettled:
		return true
	}
	return false
}

// Cancelled reports whether the status is any cancellation variant.
func (s SupplierStatus) Cancelled() bool {
	switch s {
	case SupplierStatusCancelledWithFee, SupplierStatusCancelledNoFee, SupplierStatusVoided:
		return true
	}
	return false
}

// AmountBasis qualifies what the supplier amount_due represents.
type AmountBasis string

const (
	AmountBasisGross               AmountBasis = "gross"
	AmountBasisNet                 AmountBasis = "net"
	AmountBasisRedemptionTriggered AmountBasis = "redemption-triggered"
)

var KnownAmountBases = map[AmountBasis]struct{}{
	AmountBasisGross:               {},
	AmountBasisNet:                 {},
	AmountBasisRedemptionTriggered: {},
}

// PartyType enumerates obligation counterparties.
type PartyType string

const (
	PartyTypeSupplier     PartyType = "SUPPLIER"
	PartyTypeAffiliate    PartyType = "AFFILIATE"
	PartyTypeTaxAuthority PartyType = "TAX_AUTHORITY"
	PartyTypeInternal     PartyType = "INTERNAL"
)

var KnownPartyTypes = map[PartyType]struct{}{
	PartyTypeSupplier:     {},
	PartyTypeAffiliate:    {},
	PartyTypeTaxAuthority: {},
	PartyTypeInternal:     {},
}

// AmountEffect is the directional flag of a payable line. The sign
// lives here, never in the magnitude.
type AmountEffect string

const (
	AmountEffectIncreases AmountEffect = "INCREASES_PAYABLE"
	AmountEffectDecreases AmountEffect = "DECREASES_PAYABLE"
)

// Sign returns +1 for INCREASES_PAYABLE and -1 for DECREASES_PAYABLE.
func (e AmountEffect) Sign() int64 {
	if e == AmountEffectDecreases {
		return -1
	}
	return 1
}

// ObligationTypeCancellationFee is the obligation carrying a
// cancellation fee on CancelledWithFee timelines.
const ObligationTypeCancellationFee = "CANCELLATION_FEE"

// SupplierTimelineFact is one supplier lifecycle event scoped to an
// instance key (order detail x supplier reference x fulfillment
// instance, with booking level as its own key).
type SupplierTimelineFact struct {
	EventID                 string  `gorm:"column:event_id;primaryKey" json:"event_id"`
	OrderID                 string  `gorm:"column:order_id;type:text;not null;index:idx_supplier_instance_version,priority:1" json:"order_id"`
	OrderDetailID           string  `gorm:"column:order_detail_id;type:text;not null;index:idx_supplier_instance_version,priority:2" json:"order_detail_id"`
	SupplierReferenceID     string  `gorm:"column:supplier_reference_id;type:text;index:idx_supplier_instance_version,priority:3" json:"supplier_reference_id,omitempty"`
	FulfillmentInstanceID   *string `gorm:"column:fulfillment_instance_id;type:text" json:"fulfillment_instance_id,omitempty"`
	FulfillmentInstanceKey  string  `gorm:"column:fulfillment_instance_key;type:text;not null;default:'__BOOKING_LEVEL__';index:idx_supplier_instance_version,priority:4" json:"-"`
	SupplierTimelineVersion int64   `gorm:"column:supplier_timeline_version;not null;index:idx_supplier_instance_version,priority:5,sort:desc" json:"supplier_timeline_version"`

	SupplierID  string         `gorm:"column:supplier_id;type:text;not null" json:"supplier_id"`
	Status      SupplierStatus `gorm:"column:status;type:text;not null" json:"status"`
	Amount      int64          `gorm:"column:amount;not null;default:0" json:"amount"`
	AmountBasis AmountBasis    `gorm:"column:amount_basis;type:text" json:"amount_basis,omitempty"`
	Currency    string         `gorm:"column:currency;type:text;not null" json:"currency"`

	CancellationFeeAmount   *int64  `gorm:"column:cancellation_fee_amount" json:"cancellation_fee_amount,omitempty"`
	CancellationFeeCurrency *string `gorm:"column:cancellation_fee_currency;type:text" json:"cancellation_fee_currency,omitempty"`

	FXContext     datatypes.JSONMap `gorm:"column:fx_context;type:jsonb" json:"fx_context,omitempty"`
	EntityContext datatypes.JSONMap `gorm:"column:entity_context;type:jsonb" json:"entity_context,omitempty"`

	EmitterService string            `gorm:"column:emitter_service;type:text" json:"emitter_service,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	EmittedAt      time.Time         `gorm:"column:emitted_at;not null" json:"emitted_at"`
	IngestedAt     time.Time         `gorm:"column:ingested_at;not null" json:"ingested_at"`
}

// TableName sets the database table name.
func (SupplierTimelineFact) TableName() string { return "supplier_timeline" }

// InstanceKey returns the fulfillment instance key for an optional id.
func InstanceKey(fulfillmentInstanceID *string) string {
	if fulfillmentInstanceID == nil || *fulfillmentInstanceID == "" {
		return BookingLevelKey
	}
	return *fulfillmentInstanceID
}

// SupplierPayableLine is one obligation of a party under an instance
// key. Timeline-linked lines share the parent event's version;
// standalone adjustments carry StandaloneVersion.
type SupplierPayableLine struct {
	LineID                  string  `gorm:"column:line_id;primaryKey" json:"line_id"`
	EventID                 string  `gorm:"column:event_id;type:text;not null" json:"event_id"`
	OrderID                 string  `gorm:"column:order_id;type:text;not null;index:idx_payable_projection,priority:1" json:"order_id"`
	OrderDetailID           string  `gorm:"column:order_detail_id;type:text;not null;index:idx_payable_projection,priority:2" json:"order_detail_id"`
	SupplierReferenceID     string  `gorm:"column:supplier_reference_id;type:text;index:idx_payable_projection,priority:3" json:"supplier_reference_id,omitempty"`
	FulfillmentInstanceID   *string `gorm:"column:fulfillment_instance_id;type:text" json:"fulfillment_instance_id,omitempty"`
	FulfillmentInstanceKey  string  `gorm:"column:fulfillment_instance_key;type:text;not null;default:'__BOOKING_LEVEL__';index:idx_payable_projection,priority:4" json:"-"`
	SupplierTimelineVersion int64   `gorm:"column:supplier_timeline_version;not null;index:idx_payable_projection,priority:7,sort:desc" json:"supplier_timeline_version"`

	PartyType      PartyType    `gorm:"column:party_type;type:text" json:"party_type"`
	PartyID        string       `gorm:"column:party_id;type:text;not null;index:idx_payable_projection,priority:5" json:"party_id"`
	PartyName      string       `gorm:"column:party_name;type:text" json:"party_name,omitempty"`
	ObligationType string       `gorm:"column:obligation_type;type:text;not null;index:idx_payable_projection,priority:6" json:"obligation_type"`
	Amount         int64        `gorm:"column:amount;not null" json:"amount"`
	AmountEffect   AmountEffect `gorm:"column:amount_effect;type:text;not null;default:'INCREASES_PAYABLE'" json:"amount_effect"`
	Currency       string       `gorm:"column:currency;type:text;not null" json:"currency"`

	CalculationBasis       string  `gorm:"column:calculation_basis;type:text" json:"calculation_basis,omitempty"`
	CalculationRate        float64 `gorm:"column:calculation_rate" json:"calculation_rate,omitempty"`
	CalculationDescription string  `gorm:"column:calculation_description;type:text" json:"calculation_description,omitempty"`

	Metadata   datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	IngestedAt time.Time         `gorm:"column:ingested_at;not null" json:"ingested_at"`
}

// TableName sets the database table name.
func (SupplierPayableLine) TableName() string { return "supplier_payable_lines" }

// Standalone reports whether the line was written by a partner
// adjustment rather than a supplier lifecycle event.
func (l SupplierPayableLine) Standalone() bool {
	return l.SupplierTimelineVersion == StandaloneVersion
}

var (
	ErrInvalidSupplierStatus        = errors.New("invalid_supplier_status")
	ErrInvalidAmountBasis           = errors.New("invalid_amount_basis")
	ErrInvalidPartyType             = errors.New("invalid_party_type")
	ErrInvalidAmountEffect          = errors.New("invalid_amount_effect")
	ErrNegativeLineAmount           = errors.New("negative_line_amount")
	ErrEmptyFulfillmentInstanceID   = errors.New("empty_fulfillment_instance_id")
	ErrMissingOrderDetail           = errors.New("missing_order_detail_id")
	ErrMissingSupplier              = errors.New("missing_supplier_id")
	ErrMissingObligationType        = errors.New("missing_obligation_type")
	ErrMissingParty                 = errors.New("missing_party_id")
	ErrStandaloneVersionNotAllowed  = errors.New("standalone_version_not_allowed")
	ErrTimelineVersionNotStandalone = errors.New("timeline_version_not_standalone")
)
