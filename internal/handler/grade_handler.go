package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	"github.com/noah-isme/sas-tenancy-api/internal/service"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/response"
)

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// List godoc
// @Summary List grades of the active term
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param enrollmentId query string false "Filter by enrollment"
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param subject query string false "Filter by subject"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var filter models.GradeFilter
	filter.EnrollmentID = c.Query("enrollmentId")
	filter.StudentID = c.Query("studentId")
	filter.ClassID = c.Query("classId")
	filter.Subject = c.Query("subject")
	filter.Page, filter.PageSize = paging(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	grades, pagination, err := h.grades.List(c.Request.Context(), rc, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, pagination)
}

// Get godoc
// @Summary Get grade detail
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [get]
func (h *GradeHandler) Get(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	grade, err := h.grades.Get(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Create godoc
// @Summary Record a grade
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Create(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.CreateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	grade, err := h.grades.Create(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// Update godoc
// @Summary Correct a recorded grade
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Param payload body service.UpdateGradeRequest true "Grade payload"
// @Success 204
// @Router /grades/{id} [put]
func (h *GradeHandler) Update(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}

	var req service.UpdateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.grades.UpdateScore(c.Request.Context(), rc, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a grade
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Success 204
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	rc, ok := scope(c)
	if !ok {
		return
	}
	if err := h.grades.Delete(c.Request.Context(), rc, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
