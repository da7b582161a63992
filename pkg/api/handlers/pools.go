package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/pools"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

// PoolsHandler serves lead-pool views.
type PoolsHandler struct {
	store *store.Store
	pools *pools.Service
}

// NewPoolsHandler creates a new pools handler.
func NewPoolsHandler(st *store.Store, poolSvc *pools.Service) *PoolsHandler {
	return &PoolsHandler{store: st, pools: poolSvc}
}

// ListPools godoc
// @Summary List a tenant's pools
// @Tags Pools
// @Produce json
// @Param id path int true "Tenant ID"
// @Success 200 {array} models.LeadPool
// @Router /api/v1/tenants/{id}/pools [get]
func (h *PoolsHandler) ListPools(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tenantID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_tenant_id",
			Message: "Tenant ID must be a valid number",
		})
	}

	list, err := h.store.ListPools(ctx, tenantID)
	if err != nil {
		return errorJSON(c, err)
	}
	if list == nil {
		list = []*models.LeadPool{}
	}

	return c.JSON(http.StatusOK, list)
}

// ListPoolLeads godoc
// @Summary List the leads waiting in a pool
// @Description FIFO order, oldest first
// @Tags Pools
// @Produce json
// @Param id path int true "Tenant ID"
// @Param pool path int true "Pool ID"
// @Param limit query int false "Limit (default 50, max 100)" default(50)
// @Success 200 {array} models.Lead
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/tenants/{id}/pools/{pool}/leads [get]
func (h *PoolsHandler) ListPoolLeads(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tenantID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_tenant_id",
			Message: "Tenant ID must be a valid number",
		})
	}
	poolID, ok := pathID(c, "pool")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_pool_id",
			Message: "Pool ID must be a valid number",
		})
	}

	pool, err := h.store.GetPool(ctx, poolID)
	if err != nil {
		return errorJSON(c, err)
	}
	if pool.TenantID != tenantID {
		return c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "pool not found",
		})
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	leads, err := h.pools.List(ctx, poolID, limit)
	if err != nil {
		return errorJSON(c, err)
	}
	if leads == nil {
		leads = []*models.Lead{}
	}

	return c.JSON(http.StatusOK, leads)
}
