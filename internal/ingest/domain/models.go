// Package domain defines the ingestion pipeline contract and the error
// classes an inbound event can fail with.
package domain

import (
	"context"
	"errors"
)

// Status is the terminal disposition of one inbound event.
type Status string

const (
	// StatusCommitted means every row of the event is persisted.
	StatusCommitted Status = "committed"
	// StatusDuplicate means the event_id was seen before; nothing was
	// written and the prior commit stands.
	StatusDuplicate Status = "duplicate"
	// StatusParked means the event landed in the dead letter queue.
	StatusParked Status = "parked"
)

// Result reports what the pipeline did with one event.
type Result struct {
	Status    Status   `json:"status"`
	EventID   string   `json:"event_id"`
	EventType string   `json:"event_type,omitempty"`
	OrderID   string   `json:"order_id,omitempty"`
	Version   int64    `json:"version,omitempty"`
	DLQID     string   `json:"dlq_id,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
	Detail    string   `json:"detail,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Service ingests one raw event envelope. Ingest never returns an
// error for a malformed event; those park in the DLQ and the result
// says so. The error return is reserved for infrastructure failures
// the caller should surface as a 5xx.
type Service interface {
	Ingest(ctx context.Context, raw []byte) (Result, error)
}

var (
	// ErrVersionConflict marks an event whose scope lock could not be
	// acquired.
	ErrVersionConflict = errors.New("version_conflict")
	// ErrStorage wraps database failures after retries are exhausted.
	ErrStorage = errors.New("storage_error")
)
