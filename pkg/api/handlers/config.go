package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadrouter/pkg/configstore"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

// ConfigHandler handles tenant assignment-config operations.
type ConfigHandler struct {
	configs *configstore.Service
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(configs *configstore.Service) *ConfigHandler {
	return &ConfigHandler{configs: configs}
}

// GetConfig godoc
// @Summary Get a tenant's assignment config
// @Tags Assignment Config
// @Produce json
// @Param id path int true "Tenant ID"
// @Success 200 {object} models.AssignmentConfig
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/tenants/{id}/assignment-config [get]
func (h *ConfigHandler) GetConfig(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tenantID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_tenant_id",
			Message: "Tenant ID must be a valid number",
		})
	}

	cfg, err := h.configs.Get(ctx, tenantID)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, cfg)
}

// UpdateConfig godoc
// @Summary Update a tenant's assignment config
// @Description Persists the config and invalidates the cache before returning
// @Tags Assignment Config
// @Accept json
// @Produce json
// @Param id path int true "Tenant ID"
// @Param request body models.AssignmentConfig true "Assignment config"
// @Success 200 {object} models.AssignmentConfig
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/tenants/{id}/assignment-config [put]
func (h *ConfigHandler) UpdateConfig(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tenantID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_tenant_id",
			Message: "Tenant ID must be a valid number",
		})
	}

	var cfg models.AssignmentConfig
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	cfg.TenantID = tenantID

	if err := h.configs.Update(ctx, &cfg); err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, cfg)
}
