package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	"github.com/noah-isme/sas-tenancy-api/internal/service"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments of the active term
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("studentId")
	filter.ClassID = c.Query("classId")
	filter.Status = models.EnrollmentStatus(c.Query("status"))
	filter.Page, filter.PageSize = paging(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), rc, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment detail
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Create godoc
// @Summary Enroll a student into a class for the active term
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	enrollment, err := h.enrollments.Create(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

type closeEnrollmentRequest struct {
	Status models.EnrollmentStatus `json:"status" binding:"required"`
}

// Close godoc
// @Summary Close an enrollment as transferred or left
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /enrollments/{id}/close [post]
func (h *EnrollmentHandler) Close(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req closeEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.enrollments.Close(c.Request.Context(), rc, c.Param("id"), req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
