package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	"github.com/noah-isme/sas-tenancy-api/internal/service"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/response"
)

// AnnouncementHandler exposes announcement endpoints.
type AnnouncementHandler struct {
	announcements *service.AnnouncementService
}

// NewAnnouncementHandler constructs AnnouncementHandler.
func NewAnnouncementHandler(announcements *service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcements: announcements}
}

// List godoc
// @Summary List announcements of the active organization
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var filter models.AnnouncementFilter
	filter.Page, filter.PageSize = paging(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	announcements, pagination, err := h.announcements.List(c.Request.Context(), rc, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, pagination)
}

// Get godoc
// @Summary Get announcement detail
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	announcement, err := h.announcements.Get(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Create godoc
// @Summary Publish an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateAnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	announcement, err := h.announcements.Create(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, announcement)
}

// Delete godoc
// @Summary Delete an announcement
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 204
// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	if err := h.announcements.Delete(c.Request.Context(), rc, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
