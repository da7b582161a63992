package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadrouter/pkg/assignment"
	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

// LeadHandler handles lead ingestion and ownership operations.
type LeadHandler struct {
	store    *store.Store
	router   *assignment.Router
	validate *validator.Validate
}

// NewLeadHandler creates a new lead handler.
func NewLeadHandler(st *store.Store, router *assignment.Router) *LeadHandler {
	return &LeadHandler{
		store:    st,
		router:   router,
		validate: validator.New(),
	}
}

// leadResponse pairs the stored lead with the routing decision made for it.
type leadResponse struct {
	Lead       *models.Lead             `json:"lead"`
	Assignment *models.AssignmentResult `json:"assignment"`
}

// CreateLead godoc
// @Summary Ingest and route a new lead
// @Description Creates a lead and routes it through the tenant's assignment policy
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.CreateLeadRequest true "Lead attributes"
// @Success 201 {object} leadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/leads [post]
func (h *LeadHandler) CreateLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.CreateLeadRequest
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

	lead := &models.Lead{
		TenantID:     req.TenantID,
		Campaign:     req.Campaign,
		Budget:       req.Budget,
		Location:     req.Location,
		PropertyType: req.PropertyType,
	}
	if _, err := h.store.CreateLead(ctx, lead); err != nil {
		return errorJSON(c, err)
	}

	result, err := h.router.Assign(ctx, lead)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusCreated, leadResponse{Lead: lead, Assignment: result})
}

// ReassignLead godoc
// @Summary Manually re-route an owned lead
// @Description Re-runs the tenant's policy excluding the current agent
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path int true "Lead ID"
// @Param request body models.ReassignLeadRequest false "Reassignment details"
// @Success 200 {object} models.AssignmentResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/leads/{id}/reassign [post]
func (h *LeadHandler) ReassignLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_lead_id",
			Message: "Lead ID must be a valid number",
		})
	}

	var req models.ReassignLeadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	result, err := h.router.Reassign(ctx, leadID, req.Reason)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// ClaimLead godoc
// @Summary Claim a pooled lead
// @Description Assigns a pooled lead to the requesting agent
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path int true "Lead ID"
// @Param request body models.ClaimLeadRequest true "Claiming agent"
// @Success 200 {object} models.AssignmentResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/leads/{id}/claim [post]
func (h *LeadHandler) ClaimLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_lead_id",
			Message: "Lead ID must be a valid number",
		})
	}

	var req models.ClaimLeadRequest
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

	result, err := h.router.Claim(ctx, leadID, req.AgentID)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// CloseLead godoc
// @Summary Close a lead
// @Description Marks a lead terminal (converted/lost); the engine stops tracking it
// @Tags Leads
// @Produce json
// @Param id path int true "Lead ID"
// @Success 200 {object} models.AssignmentResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/leads/{id}/close [post]
func (h *LeadHandler) CloseLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_lead_id",
			Message: "Lead ID must be a valid number",
		})
	}

	result, err := h.router.Close(ctx, leadID)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
