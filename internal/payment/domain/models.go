// Package domain contains persistence models for the payment timeline family.
package domain

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// PaymentStatus enumerates the payment lifecycle states.
type PaymentStatus string

const (
	PaymentStatusAuthorized PaymentStatus = "Authorized"
	PaymentStatusCaptured   PaymentStatus = "Captured"
	PaymentStatusRefunded   PaymentStatus = "Refunded"
	PaymentStatusSettled    PaymentStatus = "Settled"
)

// KnownPaymentStatuses is the closed set accepted at ingest.
var KnownPaymentStatuses = map[PaymentStatus]struct{}{
	PaymentStatusAuthorized: {},
	PaymentStatusCaptured:   {},
	PaymentStatusRefunded:   {},
	PaymentStatusSettled:    {},
}

// InstrumentType enumerates payment instrument variants. Exactly one
// typed payload may be populated per instrument.
type InstrumentType string

const (
	InstrumentTypeVA      InstrumentType = "VA"
	InstrumentTypeCard    InstrumentType = "CARD"
	InstrumentTypeEWallet InstrumentType = "EWALLET"
	InstrumentTypeBNPL    InstrumentType = "BNPL"
	InstrumentTypeQR      InstrumentType = "QR"
	InstrumentTypeLoyalty InstrumentType = "LOYALTY"
)

var KnownInstrumentTypes = map[InstrumentType]struct{}{
	InstrumentTypeVA:      {},
	InstrumentTypeCard:    {},
	InstrumentTypeEWallet: {},
	InstrumentTypeBNPL:    {},
	InstrumentTypeQR:      {},
	InstrumentTypeLoyalty: {},
}

// PaymentTimelineFact is one payment lifecycle event on an order.
type PaymentTimelineFact struct {
	EventID         string        `gorm:"column:event_id;primaryKey" json:"event_id"`
	OrderID         string        `gorm:"column:order_id;type:text;not null;index:idx_payment_order_version,priority:1" json:"order_id"`
	TimelineVersion int64         `gorm:"column:timeline_version;not null;index:idx_payment_order_version,priority:2,sort:desc" json:"timeline_version"`
	Status          PaymentStatus `gorm:"column:status;type:text;not null" json:"status"`

	PaymentMethodChannel  string `gorm:"column:payment_method_channel;type:text" json:"payment_method_channel,omitempty"`
	PaymentMethodProvider string `gorm:"column:payment_method_provider;type:text" json:"payment_method_provider,omitempty"`
	PaymentMethodBrand    string `gorm:"column:payment_method_brand;type:text" json:"payment_method_brand,omitempty"`

	PaymentIntentID     *string           `gorm:"column:payment_intent_id;type:text" json:"payment_intent_id,omitempty"`
	AuthorizedAmount    *int64            `gorm:"column:authorized_amount" json:"authorized_amount,omitempty"`
	CapturedAmount      *int64            `gorm:"column:captured_amount" json:"captured_amount,omitempty"`
	CapturedAmountTotal int64             `gorm:"column:captured_amount_total;not null;default:0" json:"captured_amount_total"`
	Currency            string            `gorm:"column:currency;type:text;not null" json:"currency"`
	Instrument          datatypes.JSONMap `gorm:"column:instrument;type:jsonb" json:"instrument,omitempty"`
	BNPLPlan            datatypes.JSONMap `gorm:"column:bnpl_plan;type:jsonb" json:"bnpl_plan,omitempty"`
	PGReferenceID       *string           `gorm:"column:pg_reference_id;type:text" json:"pg_reference_id,omitempty"`

	EmitterService string            `gorm:"column:emitter_service;type:text" json:"emitter_service,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	EmittedAt      time.Time         `gorm:"column:emitted_at;not null" json:"emitted_at"`
	IngestedAt     time.Time         `gorm:"column:ingested_at;not null" json:"ingested_at"`
}

// TableName sets the database table name.
func (PaymentTimelineFact) TableName() string { return "payment_timeline" }

var (
	ErrInvalidPaymentStatus   = errors.New("invalid_payment_status")
	ErrInvalidInstrumentType  = errors.New("invalid_instrument_type")
	ErrAmbiguousInstrument    = errors.New("ambiguous_instrument_payload")
	ErrInstrumentTypeMismatch = errors.New("instrument_payload_type_mismatch")
)
