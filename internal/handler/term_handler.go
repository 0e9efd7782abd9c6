package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	"github.com/noah-isme/sas-tenancy-api/internal/service"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/response"
)

// TermHandler exposes the organization's term registry.
type TermHandler struct {
	terms *service.TermService
}

// NewTermHandler constructs TermHandler.
func NewTermHandler(terms *service.TermService) *TermHandler {
	return &TermHandler{terms: terms}
}

// List godoc
// @Summary List terms of the active organization
// @Tags Terms
// @Produce json
// @Security BearerAuth
// @Param session query string false "Filter by session label"
// @Param current query bool false "Filter by current flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /terms [get]
func (h *TermHandler) List(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var filter models.TermFilter
	filter.SessionLabel = c.Query("session")
	filter.IsCurrent = boolQuery(c, "current")
	filter.Active = boolQuery(c, "active")
	filter.Page, filter.PageSize = paging(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	terms, pagination, err := h.terms.List(c.Request.Context(), rc, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, pagination)
}

// Current godoc
// @Summary Get the current term
// @Tags Terms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /terms/current [get]
func (h *TermHandler) Current(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	term, err := h.terms.GetCurrent(c.Request.Context(), rc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Get godoc
// @Summary Get term detail
// @Tags Terms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{id} [get]
func (h *TermHandler) Get(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	term, err := h.terms.Get(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Create godoc
// @Summary Create a term
// @Tags Terms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateTermRequest true "Term payload"
// @Success 201 {object} response.Envelope
// @Router /terms [post]
func (h *TermHandler) Create(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.CreateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	term, err := h.terms.Create(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, term)
}

// Update godoc
// @Summary Update a term
// @Tags Terms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Term ID"
// @Param payload body service.UpdateTermRequest true "Term payload"
// @Success 200 {object} response.Envelope
// @Router /terms/{id} [put]
func (h *TermHandler) Update(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.UpdateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	term, err := h.terms.Update(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Promote godoc
// @Summary Promote a term to current
// @Tags Terms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.PromoteTermRequest true "Promotion payload"
// @Success 200 {object} response.Envelope
// @Router /terms/promote [post]
func (h *TermHandler) Promote(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.PromoteTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	term, err := h.terms.Promote(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Delete godoc
// @Summary Delete a term
// @Tags Terms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Term ID"
// @Success 204
// @Router /terms/{id} [delete]
func (h *TermHandler) Delete(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	if err := h.terms.Delete(c.Request.Context(), rc, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
