package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	"github.com/carlosacostap-unca/epixum-roster-api/internal/service"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/response"
)

// DraftHandler exposes draft staging and matching endpoints.
type DraftHandler struct {
	access  *service.AccessService
	drafts  *service.DraftService
	metrics *service.MetricsService
}

// NewDraftHandler constructs DraftHandler.
func NewDraftHandler(access *service.AccessService, drafts *service.DraftService, metrics *service.MetricsService) *DraftHandler {
	return &DraftHandler{access: access, drafts: drafts, metrics: metrics}
}

type saveDraftsRequest struct {
	Rows []models.Candidate `json:"rows" binding:"required"`
}

type matchDraftsRequest struct {
	Emails []string `json:"emails" binding:"required"`
}

// Save godoc
// @Summary Stage draft records for a course
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body saveDraftsRequest true "Draft rows"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/drafts [post]
func (h *DraftHandler) Save(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req saveDraftsRequest
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
	result := h.drafts.SaveDrafts(c.Request.Context(), grant, courseID, req.Rows)
	if h.metrics != nil {
		h.metrics.ObserveImportStaged(len(result.Enrolled))
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List staged drafts for a course
// @Tags Drafts
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/drafts [get]
func (h *DraftHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	courseID := c.Param("id")
	grant, err := h.access.Authorize(c.Request.Context(), courseID, claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	drafts, err := h.drafts.ListByCourse(c.Request.Context(), grant, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drafts, nil)
}

// Match godoc
// @Summary Match emails against staged drafts
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body matchDraftsRequest true "Emails to match"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/drafts/match [post]
func (h *DraftHandler) Match(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req matchDraftsRequest
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
	result, err := h.drafts.Match(c.Request.Context(), grant, courseID, req.Emails)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveDraftMatch(len(result.Found), len(result.NotFound))
	}
	response.JSON(c, http.StatusOK, result, nil)
}
