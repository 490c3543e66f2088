package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/usecase"
)

// AuditReader reads the audit trail.
type AuditReader interface {
	Page(ctx context.Context, filter domain.AuditFilter, limit, offset int) (*usecase.AuditPage, error)
	Count(ctx context.Context, filter domain.AuditFilter) (int, error)
}

// AuditHandler exposes audit trail queries.
type AuditHandler struct {
	audit AuditReader
}

// NewAuditHandler constructs an audit handler.
func NewAuditHandler(audit AuditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// RegisterRoutes binds audit routes behind audit_logs_view.
func (h *AuditHandler) RegisterRoutes(r *gin.RouterGroup, guard Guard) {
	if r == nil {
		return
	}

	g := guard(domain.PermAuditLogsView)
	r.GET("", g, h.List)
	r.GET("/count", g, h.Count)
}

// List godoc
// @Summary Query the audit trail
// @Tags Audit
// @Produce json
// @Param user_id query string false "Actor id"
// @Param action query string false "Action"
// @Param resource_type query string false "Resource type"
// @Param start_date query string false "RFC3339 or YYYY-MM-DD lower bound"
// @Param end_date query string false "RFC3339 or YYYY-MM-DD upper bound"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} AuditListResponse
// @Router /api/v1/audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter, ok := auditFilter(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	page, err := h.audit.Page(c.Request.Context(), filter, limit, offset)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to query audit log")
		return
	}

	entries := make([]AuditEntryPayload, 0, len(page.Entries))
	for _, e := range page.Entries {
		entries = append(entries, newAuditEntryPayload(e))
	}
	c.JSON(http.StatusOK, AuditListResponse{
		Entries: entries,
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
}

func (h *AuditHandler) Count(c *gin.Context) {
	filter, ok := auditFilter(c)
	if !ok {
		return
	}

	count, err := h.audit.Count(c.Request.Context(), filter)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to count audit log")
		return
	}
	c.JSON(http.StatusOK, AuditCountResponse{Count: count})
}

func auditFilter(c *gin.Context) (domain.AuditFilter, bool) {
	var filter domain.AuditFilter
	filter.ActorID = queryString(c, "user_id")
	filter.Action = queryString(c, "action")
	filter.ResourceType = queryString(c, "resource_type")

	from, err := queryTime(c, "start_date", false)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid start_date"))
		return filter, false
	}
	to, err := queryTime(c, "end_date", true)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid end_date"))
		return filter, false
	}
	filter.From, filter.To = from, to
	return filter, true
}

func queryString(c *gin.Context, key string) *string {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	return &value
}

// queryTime accepts RFC3339 or a bare date. A bare end date covers the whole day.
func queryTime(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
