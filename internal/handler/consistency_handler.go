package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/service"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/response"
)

// ConsistencyHandler exposes the consistency validator. It is mounted behind
// a PLATFORM_ADMIN guard; findings span organizations by nature.
type ConsistencyHandler struct {
	consistency *service.ConsistencyService
	archive     *service.ArchiveService
}

// NewConsistencyHandler constructs ConsistencyHandler.
func NewConsistencyHandler(consistency *service.ConsistencyService, archive *service.ArchiveService) *ConsistencyHandler {
	return &ConsistencyHandler{consistency: consistency, archive: archive}
}

// Report godoc
// @Summary Run a consistency scan and return the report
// @Tags Consistency
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/consistency/report [get]
func (h *ConsistencyHandler) Report(c *gin.Context) {
	report, err := h.consistency.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Export a consistency report as CSV or PDF
// @Tags Consistency
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /admin/consistency/export [get]
func (h *ConsistencyHandler) Export(c *gin.Context) {
	report, err := h.consistency.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	stamp := report.GeneratedAt.Format("20060102-150405")
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		out, err := h.consistency.ExportCSV(report)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=consistency-%s.csv", stamp))
		c.Data(http.StatusOK, "text/csv", out)
	case "pdf":
		out, err := h.consistency.ExportPDF(report)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=consistency-%s.pdf", stamp))
		c.Data(http.StatusOK, "application/pdf", out)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

// Archive godoc
// @Summary Run a scan, archive the report and return a signed download reference
// @Tags Consistency
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /admin/consistency/archive [post]
func (h *ConsistencyHandler) Archive(c *gin.Context) {
	report, err := h.consistency.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	out, err := h.consistency.ExportCSV(report)
	if err != nil {
		response.Error(c, err)
		return
	}

	archived, err := h.archive.Archive(report, out, "csv")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, archived)
}

// Download godoc
// @Summary Download an archived report by signed token
// @Tags Consistency
// @Produce octet-stream
// @Security BearerAuth
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /admin/consistency/download [get]
func (h *ConsistencyHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, err := h.archive.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", "attachment; filename=consistency-report.csv")
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
