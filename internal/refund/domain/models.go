// Package domain contains persistence models for the refund timeline family.
package domain

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// RefundStatus enumerates refund lifecycle states.
type RefundStatus string

const (
	RefundStatusInitiated  RefundStatus = "INITIATED"
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusIssued     RefundStatus = "ISSUED"
	RefundStatusClosed     RefundStatus = "CLOSED"
	RefundStatusFailed     RefundStatus = "FAILED"
)

var KnownRefundStatuses = map[RefundStatus]struct{}{
	RefundStatusInitiated:  {},
	RefundStatusProcessing: {},
	RefundStatusIssued:     {},
	RefundStatusClosed:     {},
	RefundStatusFailed:     {},
}

// RefundTimelineFact is one refund lifecycle event, versioned per
// (order_id, refund_id).
type RefundTimelineFact struct {
	EventID               string       `gorm:"column:event_id;primaryKey" json:"event_id"`
	OrderID               string       `gorm:"column:order_id;type:text;not null;index:idx_refund_order_refund_version,priority:1" json:"order_id"`
	RefundID              string       `gorm:"column:refund_id;type:text;not null;index:idx_refund_order_refund_version,priority:2" json:"refund_id"`
	RefundTimelineVersion int64        `gorm:"column:refund_timeline_version;not null;index:idx_refund_order_refund_version,priority:3,sort:desc" json:"refund_timeline_version"`
	Status                RefundStatus `gorm:"column:status;type:text;not null" json:"status"`
	RefundAmount          int64        `gorm:"column:refund_amount;not null" json:"refund_amount"`
	Currency              string       `gorm:"column:currency;type:text;not null" json:"currency"`
	Reason                string       `gorm:"column:reason;type:text" json:"reason,omitempty"`

	EmitterService string            `gorm:"column:emitter_service;type:text" json:"emitter_service,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	EmittedAt      time.Time         `gorm:"column:emitted_at;not null" json:"emitted_at"`
	IngestedAt     time.Time         `gorm:"column:ingested_at;not null" json:"ingested_at"`
}

// TableName sets the database table name.
func (RefundTimelineFact) TableName() string { return "refund_timeline" }

var (
	ErrInvalidRefundStatus = errors.New("invalid_refund_status")
	ErrMissingRefundID     = errors.New("missing_refund_id")
)
