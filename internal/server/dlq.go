package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	dlqdomain "github.com/smallbiznis/uprl/internal/dlq/domain"
	ingestdomain "github.com/smallbiznis/uprl/internal/ingest/domain"
)

type listDLQQuery struct {
	ErrorKind string `form:"error_kind"`
	EventType string `form:"event_type"`
	OrderID   string `form:"order_id"`
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=50"`
}

// ListDLQ pages through parked events, newest first.
func (s *Server) ListDLQ(c *gin.Context) {
	var q listDLQQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, newValidationError("query", "invalid_query", "invalid query parameters"))
		return
	}

	req := dlqdomain.ListRequest{
		ErrorKind: dlqdomain.ErrorKind(q.ErrorKind),
		EventType: q.EventType,
		OrderID:   q.OrderID,
	}
	req.PageToken = q.PageToken
	req.PageSize = q.PageSize

	resp, err := s.dlqSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ReplayDLQ pushes a parked payload back through the pipeline. The
// entry stays in the queue either way; a replay that parks again bumps
// its retry counter, and the pipeline parks the payload as a new entry.
func (s *Server) ReplayDLQ(c *gin.Context) {
	dlqID := strings.TrimSpace(c.Param("dlq_id"))
	if dlqID == "" {
		AbortWithError(c, newValidationError("dlq_id", "missing_dlq_id", "dlq_id is required"))
		return
	}

	entry, err := s.dlqSvc.Get(c.Request.Context(), dlqID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.ingestSvc.Ingest(c.Request.Context(), []byte(entry.RawEvent))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if res.EventType != "" {
		c.Set("event_type", res.EventType)
	}

	if res.Status == ingestdomain.StatusParked {
		if err := s.dlqSvc.MarkRetried(c.Request.Context(), dlqID); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
