package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	"github.com/noah-isme/sas-tenancy-api/internal/service"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/response"
)

// FeeHandler exposes fee structure, assignment and payment endpoints.
type FeeHandler struct {
	fees *service.FeeService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees *service.FeeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// ListStructures godoc
// @Summary List fee structures of the active term
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /fees/structures [get]
func (h *FeeHandler) ListStructures(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	structures, err := h.fees.ListStructures(c.Request.Context(), rc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structures, nil)
}

// CreateStructure godoc
// @Summary Define a fee structure for the active term
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateFeeStructureRequest true "Fee structure payload"
// @Success 201 {object} response.Envelope
// @Router /fees/structures [post]
func (h *FeeHandler) CreateStructure(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.CreateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	structure, err := h.fees.CreateStructure(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, structure)
}

// ListAssignments godoc
// @Summary List fee assignments of the active term
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Filter by student"
// @Param structureId query string false "Filter by fee structure"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /fees/assignments [get]
func (h *FeeHandler) ListAssignments(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var filter models.FeeAssignmentFilter
	filter.StudentID = c.Query("studentId")
	filter.FeeStructureID = c.Query("structureId")
	filter.Status = models.FeeAssignmentStatus(c.Query("status"))
	filter.Page, filter.PageSize = paging(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	assignments, pagination, err := h.fees.ListAssignments(c.Request.Context(), rc, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// BulkAssign godoc
// @Summary Assign a fee structure to many students at once
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkAssignFeesRequest true "Bulk assignment payload"
// @Success 201 {object} response.Envelope
// @Router /fees/assignments/bulk [post]
func (h *FeeHandler) BulkAssign(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.BulkAssignFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	assignments, err := h.fees.BulkAssign(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignments)
}

// RecordPayment godoc
// @Summary Record a payment against a fee assignment
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /fees/payments [post]
func (h *FeeHandler) RecordPayment(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	payment, err := h.fees.RecordPayment(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// ListPayments godoc
// @Summary List payments of a fee assignment
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee assignment ID"
// @Success 200 {object} response.Envelope
// @Router /fees/assignments/{id}/payments [get]
func (h *FeeHandler) ListPayments(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	payments, err := h.fees.ListPayments(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}
