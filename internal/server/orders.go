package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	projectiondomain "github.com/smallbiznis/uprl/internal/projection/domain"
	"github.com/smallbiznis/uprl/internal/version"
)

// ListOrders returns the distinct order ids present in any fact table.
func (s *Server) ListOrders(c *gin.Context) {
	ids, err := s.projectionSvc.Orders(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"order_ids": ids})
}

// GetOrder returns the composite latest-state view of one order.
func (s *Server) GetOrder(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, newValidationError("order_id", "missing_order_id", "order_id is required"))
		return
	}

	view, err := s.projectionSvc.Order(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetEffectivePayables projects the current payables of one order.
func (s *Server) GetEffectivePayables(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, newValidationError("order_id", "missing_order_id", "order_id is required"))
		return
	}

	view, err := s.projectionSvc.EffectivePayables(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetPayablesTimeline returns every payable line of an order ordered by
// supplier timeline version (standalone adjustments first), the audit
// view of how payables evolved.
func (s *Server) GetPayablesTimeline(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, newValidationError("order_id", "missing_order_id", "order_id is required"))
		return
	}

	lines, err := s.projectionSvc.PayablesTimeline(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"lines":    lines,
	})
}

// GetPricingHistory summarizes each pricing snapshot version of an order.
func (s *Server) GetPricingHistory(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, newValidationError("order_id", "missing_order_id", "order_id is required"))
		return
	}

	entries, err := s.projectionSvc.PricingHistory(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if entries == nil {
		entries = []projectiondomain.PricingHistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": orderID,
		"versions": entries,
	})
}

// GetFamilyHistory reads one version family of an order, optionally
// bounded by from_version/to_version. Zero bounds are open.
func (s *Server) GetFamilyHistory(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, newValidationError("order_id", "missing_order_id", "order_id is required"))
		return
	}

	from, ok := versionBound(c, "from_version")
	if !ok {
		return
	}
	to, ok := versionBound(c, "to_version")
	if !ok {
		return
	}

	res, err := s.projectionSvc.History(c.Request.Context(), projectiondomain.HistoryRequest{
		OrderID:     orderID,
		Family:      version.Family(strings.TrimSpace(c.Param("family"))),
		FromVersion: from,
		ToVersion:   to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetComponentLineage links a semantic pricing component to its
// occurrences across repricing and the refund rows pointing back at it.
func (s *Server) GetComponentLineage(c *gin.Context) {
	semanticID := strings.TrimSpace(c.Param("semantic_id"))
	if semanticID == "" {
		AbortWithError(c, newValidationError("semantic_id", "missing_semantic_id", "semantic_id is required"))
		return
	}

	lineage, err := s.projectionSvc.Lineage(c.Request.Context(), semanticID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, lineage)
}

func versionBound(c *gin.Context, name string) (int64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		AbortWithError(c, newValidationError(name, "invalid_"+name, "must be a non-negative integer"))
		return 0, false
	}
	return v, true
}
