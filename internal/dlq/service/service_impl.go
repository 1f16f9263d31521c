package service

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/uprl/internal/clock"
	dlqdomain "github.com/smallbiznis/uprl/internal/dlq/domain"
	"github.com/smallbiznis/uprl/internal/factstore"
	"github.com/smallbiznis/uprl/pkg/db/option"
	"github.com/smallbiznis/uprl/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Store *factstore.Store
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	store *factstore.Store
	clock clock.Clock
}

func NewService(p Params) dlqdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("dlq.service"),
		store: p.Store,
		clock: p.Clock,
	}
}

// Record parks a failed event with its verbatim payload.
func (s *Service) Record(ctx context.Context, req dlqdomain.RecordRequest) (*dlqdomain.Entry, error) {
	if len(req.RawEvent) == 0 {
		return nil, dlqdomain.ErrEmptyRawEvent
	}

	entry := &dlqdomain.Entry{
		DLQID:       ulid.Make().String(),
		EventID:     req.EventID,
		EventType:   req.EventType,
		OrderID:     req.OrderID,
		RawEvent:    string(req.RawEvent),
		ErrorKind:   req.ErrorKind,
		ErrorDetail: req.ErrorDetail,
		ReceivedAt:  s.clock.Now(),
	}
	if err := s.store.AppendDLQEntry(ctx, entry); err != nil {
		s.log.Error("failed to park event",
			zap.String("event_id", req.EventID),
			zap.String("error_kind", string(req.ErrorKind)),
			zap.Error(err))
		return nil, err
	}

	s.log.Warn("event parked",
		zap.String("dlq_id", entry.DLQID),
		zap.String("event_id", req.EventID),
		zap.String("event_type", req.EventType),
		zap.String("order_id", req.OrderID),
		zap.String("error_kind", string(req.ErrorKind)),
		zap.String("error_detail", req.ErrorDetail))
	return entry, nil
}

// Get loads one parked entry by id.
func (s *Service) Get(ctx context.Context, dlqID string) (*dlqdomain.Entry, error) {
	var entry dlqdomain.Entry
	if err := s.db.WithContext(ctx).Where("dlq_id = ?", dlqID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// List pages through the queue, newest first. The cursor is the dlq_id
// of the last entry on the previous page; ULIDs sort by creation time.
func (s *Service) List(ctx context.Context, req dlqdomain.ListRequest) (dlqdomain.ListResponse, error) {
	limit := req.PageSize
	if limit <= 0 || limit > 250 {
		limit = 50
	}

	opts := []option.QueryOption{
		option.WithSortBy("dlq_id", true),
		option.WithLimit(limit + 1),
	}
	if req.ErrorKind != "" {
		opts = append(opts, option.WithCondition("error_kind = ?", req.ErrorKind))
	}
	if req.EventType != "" {
		opts = append(opts, option.WithCondition("event_type = ?", req.EventType))
	}
	if req.OrderID != "" {
		opts = append(opts, option.WithCondition("order_id = ?", req.OrderID))
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return dlqdomain.ListResponse{}, err
		}
		opts = append(opts, option.WithCondition("dlq_id < ?", cursor.ID))
	}

	stmt := s.db.WithContext(ctx).Model(&dlqdomain.Entry{})
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var rows []*dlqdomain.Entry
	if err := stmt.Find(&rows).Error; err != nil {
		return dlqdomain.ListResponse{}, err
	}

	info, rows := pagination.BuildCursorPageInfo(rows, limit, func(e *dlqdomain.Entry) string {
		return e.DLQID
	})

	entries := make([]dlqdomain.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *row)
	}
	return dlqdomain.ListResponse{PageInfo: *info, Entries: entries}, nil
}

// MarkRetried bumps the retry counter after a failed replay.
func (s *Service) MarkRetried(ctx context.Context, dlqID string) error {
	return s.db.WithContext(ctx).Model(&dlqdomain.Entry{}).
		Where("dlq_id = ?", dlqID).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}
