package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	ingestdomain "github.com/smallbiznis/uprl/internal/ingest/domain"
)

// maxEventBytes bounds a single envelope read. Oversized payloads are a
// client fault, not a parking case.
const maxEventBytes = 1 << 20

// IngestEvent accepts one raw event envelope. Malformed events do not
// fail the request; they park in the DLQ and the result reports it with
// a 422 so emitters can distinguish parked from committed.
func (s *Server) IngestEvent(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes+1))
	if err != nil {
		AbortWithError(c, newValidationError("body", "unreadable_body", "could not read request body"))
		return
	}
	if len(raw) == 0 {
		AbortWithError(c, newValidationError("body", "empty_body", "request body is required"))
		return
	}
	if len(raw) > maxEventBytes {
		AbortWithError(c, newValidationError("body", "payload_too_large", "request body exceeds limit"))
		return
	}

	res, err := s.ingestSvc.Ingest(c.Request.Context(), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if res.EventType != "" {
		c.Set("event_type", res.EventType)
	}

	switch res.Status {
	case ingestdomain.StatusParked:
		c.JSON(http.StatusUnprocessableEntity, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}
