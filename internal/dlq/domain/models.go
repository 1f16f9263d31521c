// Package domain contains the dead letter queue model and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/uprl/pkg/db/pagination"
)

// ErrorKind classifies why an event was parked.
type ErrorKind string

const (
	ErrorKindValidation      ErrorKind = "ValidationError"
	ErrorKindIdentity        ErrorKind = "IdentityError"
	ErrorKindVersionConflict ErrorKind = "VersionConflictError"
	ErrorKindStorage         ErrorKind = "StorageError"
	ErrorKindProjection      ErrorKind = "ProjectionError"
)

// Entry parks one malformed or unpersistable event. The raw payload is
// kept verbatim so a remediation job can replay it after the cause is
// fixed.
type Entry struct {
	DLQID       string    `gorm:"column:dlq_id;primaryKey" json:"dlq_id"`
	EventID     string    `gorm:"column:event_id;type:text;index:idx_dlq_event" json:"event_id,omitempty"`
	EventType   string    `gorm:"column:event_type;type:text;index:idx_dlq_kind,priority:2" json:"event_type,omitempty"`
	OrderID     string    `gorm:"column:order_id;type:text;index:idx_dlq_order" json:"order_id,omitempty"`
	RawEvent    string    `gorm:"column:raw_event;type:text;not null" json:"raw_event"`
	ErrorKind   ErrorKind `gorm:"column:error_kind;type:text;not null;index:idx_dlq_kind,priority:1" json:"error_kind"`
	ErrorDetail string    `gorm:"column:error_detail;type:text;not null" json:"error_detail"`
	ReceivedAt  time.Time `gorm:"column:received_at;not null" json:"received_at"`
	RetryCount  int       `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "dlq" }

// RecordRequest captures a pipeline failure headed for the queue.
type RecordRequest struct {
	EventID     string
	EventType   string
	OrderID     string
	RawEvent    []byte
	ErrorKind   ErrorKind
	ErrorDetail string
}

// ListRequest filters the queue.
type ListRequest struct {
	ErrorKind ErrorKind
	EventType string
	OrderID   string
	pagination.Pagination
}

// ListResponse is a page of queue entries.
type ListResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (*Entry, error)
	Get(ctx context.Context, dlqID string) (*Entry, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	MarkRetried(ctx context.Context, dlqID string) error
}

var ErrEmptyRawEvent = errors.New("empty_raw_event")
