package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

// RulesHandler manages a tenant's routing rule set.
type RulesHandler struct {
	store    *store.Store
	validate *validator.Validate
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(st *store.Store) *RulesHandler {
	return &RulesHandler{store: st, validate: validator.New()}
}

// GetRules godoc
// @Summary List a tenant's routing rules
// @Tags Assignment Rules
// @Produce json
// @Param id path int true "Tenant ID"
// @Success 200 {array} models.AssignmentRule
// @Router /api/v1/tenants/{id}/assignment-rules [get]
func (h *RulesHandler) GetRules(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tenantID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_tenant_id",
			Message: "Tenant ID must be a valid number",
		})
	}

	ruleSet, err := h.store.ListRules(ctx, tenantID)
	if err != nil {
		return errorJSON(c, err)
	}
	if ruleSet == nil {
		ruleSet = []*models.AssignmentRule{}
	}

	return c.JSON(http.StatusOK, ruleSet)
}

// ReplaceRules godoc
// @Summary Replace a tenant's routing rules
// @Description Swaps the whole ordered rule set in one action; priorities must be unique
// @Tags Assignment Rules
// @Accept json
// @Produce json
// @Param id path int true "Tenant ID"
// @Param request body models.ReplaceRulesRequest true "New rule set"
// @Success 200 {array} models.AssignmentRule
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/tenants/{id}/assignment-rules [put]
func (h *RulesHandler) ReplaceRules(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tenantID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_tenant_id",
			Message: "Tenant ID must be a valid number",
		})
	}

	var req models.ReplaceRulesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	}

	if err := h.store.ReplaceRules(ctx, tenantID, req.Rules); err != nil {
		return errorJSON(c, err)
	}

	ruleSet, err := h.store.ListRules(ctx, tenantID)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, ruleSet)
}
