// Package domain contains persistence models for the pricing fact family.
package domain

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// PricingComponentFact is one pricing component occurrence inside a
// pricing snapshot. Rows are append-only; repricing emits new rows with
// a higher version instead of mutating prior ones.
type PricingComponentFact struct {
	ComponentInstanceID string `gorm:"column:component_instance_id;primaryKey" json:"component_instance_id"`
	ComponentSemanticID string `gorm:"column:component_semantic_id;type:text;not null;index:idx_pricing_semantic;index:idx_pricing_order_semantic_version,priority:2" json:"component_semantic_id"`
	EventID             string `gorm:"column:event_id;type:text;not null;index:idx_pricing_event" json:"event_id"`
	OrderID             string `gorm:"column:order_id;type:text;not null;index:idx_pricing_order_version,priority:1;index:idx_pricing_order_semantic_version,priority:1" json:"order_id"`
	PricingSnapshotID   string `gorm:"column:pricing_snapshot_id;type:text;not null" json:"pricing_snapshot_id"`
	Version             int64  `gorm:"column:version;not null;index:idx_pricing_order_version,priority:2,sort:desc;index:idx_pricing_order_semantic_version,priority:3,sort:desc" json:"version"`

	ComponentType          string            `gorm:"column:component_type;type:text;not null" json:"component_type"`
	CanonicalComponentType string            `gorm:"column:canonical_component_type;type:text;not null" json:"canonical_component_type"`
	Amount                 int64             `gorm:"column:amount;not null" json:"amount"`
	Currency               string            `gorm:"column:currency;type:text;not null" json:"currency"`
	Dimensions             datatypes.JSONMap `gorm:"column:dimensions;type:jsonb" json:"dimensions"`
	Description            string            `gorm:"column:description;type:text" json:"description,omitempty"`

	IsRefund                    bool    `gorm:"column:is_refund;not null;default:false" json:"is_refund"`
	RefundOfComponentSemanticID *string `gorm:"column:refund_of_component_semantic_id;type:text" json:"refund_of_component_semantic_id,omitempty"`
	RefundID                    *string `gorm:"column:refund_id;type:text" json:"refund_id,omitempty"`

	OrderDetailID  string            `gorm:"column:order_detail_id;type:text" json:"order_detail_id,omitempty"`
	EntityContext  datatypes.JSONMap `gorm:"column:entity_context;type:jsonb" json:"entity_context,omitempty"`
	FXContext      datatypes.JSONMap `gorm:"column:fx_context;type:jsonb" json:"fx_context,omitempty"`
	EmitterService string            `gorm:"column:emitter_service;type:text" json:"emitter_service,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	EmittedAt  time.Time `gorm:"column:emitted_at;not null" json:"emitted_at"`
	IngestedAt time.Time `gorm:"column:ingested_at;not null" json:"ingested_at"`
}

// TableName sets the database table name.
func (PricingComponentFact) TableName() string { return "pricing_components_fact" }

// CanonicalComponentTypes are the component types producers are known to
// emit. Free-string types are stored verbatim; the canonical column
// falls back to "Other" so reads can filter cleanly.
var CanonicalComponentTypes = map[string]struct{}{
	"RoomRate":  {},
	"BaseFare":  {},
	"Tax":       {},
	"Fee":       {},
	"Markup":    {},
	"Discount":  {},
	"Surcharge": {},
	"Addon":     {},
}

const CanonicalComponentTypeOther = "Other"

// CanonicalizeComponentType maps a free-string component type onto the
// canonical enum, keeping the original value untouched elsewhere.
func CanonicalizeComponentType(componentType string) string {
	if _, ok := CanonicalComponentTypes[componentType]; ok {
		return componentType
	}
	return CanonicalComponentTypeOther
}

var (
	ErrComponentsEmpty      = errors.New("components_empty")
	ErrRefundAmountPositive = errors.New("refund_amount_not_negative")
	ErrRefundLineageMissing = errors.New("refund_lineage_missing")
)
