package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadrouter/pkg/audit"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// LogsHandler serves the assignment audit trail.
type LogsHandler struct {
	audit *audit.Service
}

// NewLogsHandler creates a new logs handler.
func NewLogsHandler(auditSvc *audit.Service) *LogsHandler {
	return &LogsHandler{audit: auditSvc}
}

// GetLogs godoc
// @Summary Query a tenant's assignment log
// @Description Paged audit entries, newest first; filterable by lead, source and time range
// @Tags Assignment Logs
// @Produce json
// @Param id path int true "Tenant ID"
// @Param lead_id query int false "Filter by lead"
// @Param source query string false "Filter by decision source (manual|round_robin|rules|watchdog)"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 50, max 100)"
// @Success 200 {object} models.AssignmentLogPage
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/tenants/{id}/assignment-logs [get]
func (h *LogsHandler) GetLogs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tenantID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_tenant_id",
			Message: "Tenant ID must be a valid number",
		})
	}

	var filter models.AssignmentLogFilter
	if v := c.QueryParam("lead_id"); v != "" {
		leadID, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_lead_id",
				Message: "lead_id must be a valid number",
			})
		}
		filter.LeadID = leadID
	}
	if v := c.QueryParam("source"); v != "" {
		filter.Source = models.DecisionSource(v)
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_time_range",
				Message: "from must be RFC3339",
			})
		}
		filter.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_time_range",
				Message: "to must be RFC3339",
			})
		}
		filter.To = &t
	}
	filter.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	page, err := h.audit.Query(ctx, tenantID, filter)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, page)
}
