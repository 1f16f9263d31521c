// Package factstore is the append-only persistence layer for all fact
// families. It exposes idempotent appends keyed on primary keys and
// scoped range reads; nothing here mutates or deletes a committed row.
package factstore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dlqdomain "github.com/smallbiznis/uprl/internal/dlq/domain"
	paymentdomain "github.com/smallbiznis/uprl/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/uprl/internal/pricing/domain"
	refunddomain "github.com/smallbiznis/uprl/internal/refund/domain"
	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
)

// Store wraps the database handle with fact-family operations.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx rebinds the store onto an open transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// DB exposes the underlying handle for callers that compose their own
// queries (projection reads).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn atomically. All rows of one inbound event commit
// through a single call so an abandoned ingestion leaves no partial
// writes.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.WithTx(tx))
	})
}

func appendRows[T any](ctx context.Context, db *gorm.DB, rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rows).Error
}

// AppendPricingComponents persists the component rows of one pricing
// snapshot. Conflicts on component_instance_id are skipped.
func (s *Store) AppendPricingComponents(ctx context.Context, rows []*pricingdomain.PricingComponentFact) error {
	return appendRows(ctx, s.db, rows)
}

func (s *Store) AppendPaymentEvent(ctx context.Context, row *paymentdomain.PaymentTimelineFact) error {
	return appendRows(ctx, s.db, []*paymentdomain.PaymentTimelineFact{row})
}

func (s *Store) AppendSupplierEvent(ctx context.Context, row *supplierdomain.SupplierTimelineFact) error {
	return appendRows(ctx, s.db, []*supplierdomain.SupplierTimelineFact{row})
}

func (s *Store) AppendPayableLines(ctx context.Context, rows []*supplierdomain.SupplierPayableLine) error {
	return appendRows(ctx, s.db, rows)
}

func (s *Store) AppendRefundEvent(ctx context.Context, row *refunddomain.RefundTimelineFact) error {
	return appendRows(ctx, s.db, []*refunddomain.RefundTimelineFact{row})
}

func (s *Store) AppendDLQEntry(ctx context.Context, row *dlqdomain.Entry) error {
	return appendRows(ctx, s.db, []*dlqdomain.Entry{row})
}

func hasRow[T any](ctx context.Context, db *gorm.DB, query string, args ...any) (bool, error) {
	var count int64
	var model T
	err := db.WithContext(ctx).Model(&model).Where(query, args...).Limit(1).Count(&count).Error
	return count > 0, err
}

// HasPricingEvent reports whether a pricing/refund-issued event was
// already committed. At-least-once delivery tolerance: the caller
// skips silently on true.
func (s *Store) HasPricingEvent(ctx context.Context, eventID string) (bool, error) {
	return hasRow[pricingdomain.PricingComponentFact](ctx, s.db, "event_id = ?", eventID)
}

func (s *Store) HasPaymentEvent(ctx context.Context, eventID string) (bool, error) {
	return hasRow[paymentdomain.PaymentTimelineFact](ctx, s.db, "event_id = ?", eventID)
}

func (s *Store) HasSupplierEvent(ctx context.Context, eventID string) (bool, error) {
	return hasRow[supplierdomain.SupplierTimelineFact](ctx, s.db, "event_id = ?", eventID)
}

func (s *Store) HasPayableLineEvent(ctx context.Context, eventID string) (bool, error) {
	return hasRow[supplierdomain.SupplierPayableLine](ctx, s.db, "event_id = ?", eventID)
}

func (s *Store) HasRefundEvent(ctx context.Context, eventID string) (bool, error) {
	return hasRow[refunddomain.RefundTimelineFact](ctx, s.db, "event_id = ?", eventID)
}
