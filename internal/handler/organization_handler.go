package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	"github.com/noah-isme/sas-tenancy-api/internal/service"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/response"
)

// OrganizationHandler exposes the platform-level organization directory.
// Routes mounting it sit behind a PLATFORM_ADMIN role guard.
type OrganizationHandler struct {
	orgs *service.OrganizationService
}

// NewOrganizationHandler constructs OrganizationHandler.
func NewOrganizationHandler(orgs *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs}
}

// List godoc
// @Summary List organizations
// @Tags Organizations
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name or code"
// @Param active query bool false "Filter by active state"
// @Param verified query bool false "Filter by verification"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/organizations [get]
func (h *OrganizationHandler) List(c *gin.Context) {
	var filter models.OrganizationFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Active = boolQuery(c, "active")
	filter.Verified = boolQuery(c, "verified")
	filter.Page, filter.PageSize = paging(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	orgs, pagination, err := h.orgs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orgs, pagination)
}

// Get godoc
// @Summary Get organization by id or code
// @Tags Organizations
// @Produce json
// @Security BearerAuth
// @Param selector path string true "Organization ID or code"
// @Success 200 {object} response.Envelope
// @Router /admin/organizations/{selector} [get]
func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.orgs.Get(c.Request.Context(), c.Param("selector"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, org, nil)
}

// Create godoc
// @Summary Register an organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateOrganizationRequest true "Organization payload"
// @Success 201 {object} response.Envelope
// @Router /admin/organizations [post]
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req service.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	org, err := h.orgs.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, org)
}

// Update godoc
// @Summary Update an organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Organization ID"
// @Param payload body service.UpdateOrganizationRequest true "Organization payload"
// @Success 200 {object} response.Envelope
// @Router /admin/organizations/{id} [put]
func (h *OrganizationHandler) Update(c *gin.Context) {
	var req service.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	org, err := h.orgs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, org, nil)
}

// BulkStatus godoc
// @Summary Apply status changes to many organizations
// @Tags Organizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkOrganizationStatusRequest true "Status updates"
// @Success 204
// @Router /admin/organizations/bulk-status [post]
func (h *OrganizationHandler) BulkStatus(c *gin.Context) {
	jwtClaims, ok := claims(c)
	if !ok {
		return
	}

	var req service.BulkOrganizationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.orgs.BulkUpdateStatus(c.Request.Context(), jwtClaims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
