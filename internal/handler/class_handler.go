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

// ClassHandler exposes class and teaching assignment endpoints.
type ClassHandler struct {
	classes *service.ClassService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes *service.ClassService) *ClassHandler {
	return &ClassHandler{classes: classes}
}

// List godoc
// @Summary List classes of the active organization
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name"
// @Param level query string false "Filter by level"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var filter models.ClassFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Level = c.Query("level")
	filter.Active = boolQuery(c, "active")
	filter.Page, filter.PageSize = paging(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	classes, pagination, err := h.classes.List(c.Request.Context(), rc, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	class, err := h.classes.Get(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create a class
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	class, err := h.classes.Create(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update a class
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param payload body service.UpdateClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	class, err := h.classes.Update(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Deactivate godoc
// @Summary Deactivate a class
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Deactivate(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	if err := h.classes.Deactivate(c.Request.Context(), rc, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MyAssignments godoc
// @Summary List the caller's teaching assignments for the active term
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /classes/assignments/mine [get]
func (h *ClassHandler) MyAssignments(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	assignments, err := h.classes.MyAssignments(c.Request.Context(), rc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// AssignTeacher godoc
// @Summary Assign a teacher to a class for the active term
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.AssignTeacherRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /classes/assignments [post]
func (h *ClassHandler) AssignTeacher(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.AssignTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	assignment, err := h.classes.AssignTeacher(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// UnassignTeacher godoc
// @Summary Remove a teaching assignment
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /classes/assignments/{id} [delete]
func (h *ClassHandler) UnassignTeacher(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	if err := h.classes.UnassignTeacher(c.Request.Context(), rc, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
