package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	"github.com/carlosacostap-unca/epixum-roster-api/internal/service"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/response"
)

// ImportHandler exposes bulk import endpoints.
type ImportHandler struct {
	access  *service.AccessService
	imports *service.ImportService
	metrics *service.MetricsService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(access *service.AccessService, imports *service.ImportService, metrics *service.MetricsService) *ImportHandler {
	return &ImportHandler{access: access, imports: imports, metrics: metrics}
}

type importTextRequest struct {
	Text string `json:"text" binding:"required"`
}

type enrollMatchesRequest struct {
	Emails []string    `json:"emails" binding:"required"`
	Role   models.Role `json:"role"`
}

// Text godoc
// @Summary Stage drafts from free-form pasted text
// @Tags Imports
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body importTextRequest true "Raw roster text"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/imports/text [post]
func (h *ImportHandler) Text(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req importTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	courseID := c.Param("id")
	grant, err := h.access.Authorize(c.Request.Context(), courseID, claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.imports.ImportText(c.Request.Context(), grant, courseID, req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveImportStaged(len(result.Enrolled))
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Spreadsheet godoc
// @Summary Stage drafts from an uploaded spreadsheet
// @Tags Imports
// @Accept mpfd
// @Produce json
// @Param id path string true "Course ID"
// @Param file formData file true "Spreadsheet file"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/imports/spreadsheet [post]
func (h *ImportHandler) Spreadsheet(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "spreadsheet file missing"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "spreadsheet file unreadable"))
		return
	}
	defer file.Close()

	courseID := c.Param("id")
	grant, err := h.access.Authorize(c.Request.Context(), courseID, claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.imports.ImportSpreadsheet(c.Request.Context(), grant, courseID, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveImportStaged(len(result.Enrolled))
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Enroll godoc
// @Summary Enroll previously staged drafts by email
// @Tags Imports
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body enrollMatchesRequest true "Emails to enroll"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/imports/enroll [post]
func (h *ImportHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req enrollMatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	courseID := c.Param("id")
	grant, err := h.access.Authorize(c.Request.Context(), courseID, claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.imports.EnrollMatches(c.Request.Context(), grant, courseID, req.Emails, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
