package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/service"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/response"
)

// ExportHandler serves roster downloads, both inline and queued.
type ExportHandler struct {
	access  *service.AccessService
	exports *service.ExportService
	archive *service.ArchiveService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(access *service.AccessService, exports *service.ExportService, archive *service.ArchiveService) *ExportHandler {
	return &ExportHandler{access: access, exports: exports, archive: archive}
}

// Roster godoc
// @Summary Export the course roster as CSV or PDF
// @Tags Roster
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Security BearerAuth
// @Router /courses/{id}/roster/export [get]
func (h *ExportHandler) Roster(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	if format != service.ExportCSV && format != service.ExportPDF {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	courseID := c.Param("id")
	grant, err := h.access.Authorize(c.Request.Context(), courseID, claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, contentType, err := h.exports.Roster(c.Request.Context(), grant, courseID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("roster-%s.%s", courseID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// RosterAsync godoc
// @Summary Queue a roster export and return a signed download link
// @Tags Roster
// @Produce json
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 202 {object} response.Envelope{data=service.ArchiveTicket}
// @Security BearerAuth
// @Router /courses/{id}/roster/export/async [post]
func (h *ExportHandler) RosterAsync(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	courseID := c.Param("id")
	grant, err := h.access.Authorize(c.Request.Context(), courseID, claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	ticket, err := h.archive.Enqueue(c.Request.Context(), grant, courseID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, ticket, nil)
}

// Download godoc
// @Summary Download a finished roster export using a signed token
// @Tags Roster
// @Produce text/csv
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	payload, contentType, err := h.archive.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment")
	c.Data(http.StatusOK, contentType, payload)
}
