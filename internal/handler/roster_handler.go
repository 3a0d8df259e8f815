package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	"github.com/carlosacostap-unca/epixum-roster-api/internal/service"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/response"
)

// RosterHandler exposes enrollment reconciliation endpoints.
type RosterHandler struct {
	access  *service.AccessService
	roster  *service.RosterService
	metrics *service.MetricsService
}

// NewRosterHandler constructs RosterHandler.
func NewRosterHandler(access *service.AccessService, roster *service.RosterService, metrics *service.MetricsService) *RosterHandler {
	return &RosterHandler{access: access, roster: roster, metrics: metrics}
}

type enrollRequest struct {
	Email   string         `json:"email" binding:"required"`
	Role    models.Role    `json:"role" binding:"required"`
	Profile models.Profile `json:"profile"`
}

type batchEnrollRequest struct {
	Rows []enrollRequest `json:"rows" binding:"required"`
}

type removeEnrollmentRequest struct {
	Email string      `json:"email" binding:"required"`
	Role  models.Role `json:"role" binding:"required"`
}

// Enroll godoc
// @Summary Reconcile one enrollment
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body enrollRequest true "Enrollment assertion"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/enrollments [post]
func (h *RosterHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req enrollRequest
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
	enrollment, err := h.roster.Reconcile(c.Request.Context(), grant, service.ReconcileRequest{
		CourseID: courseID,
		Email:    req.Email,
		Role:     req.Role,
		Profile:  req.Profile,
	})
	if err != nil {
		h.observeReconcile("error")
		response.Error(c, err)
		return
	}
	h.observeReconcile("ok")
	response.Created(c, enrollment)
}

// EnrollBatch godoc
// @Summary Reconcile a batch of enrollments
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body batchEnrollRequest true "Enrollment assertions"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/enrollments/batch [post]
func (h *RosterHandler) EnrollBatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req batchEnrollRequest
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
	rows := make([]service.ReconcileRequest, 0, len(req.Rows))
	for _, row := range req.Rows {
		rows = append(rows, service.ReconcileRequest{
			CourseID: courseID,
			Email:    row.Email,
			Role:     row.Role,
			Profile:  row.Profile,
		})
	}
	result := h.roster.ReconcileBatch(c.Request.Context(), grant, rows)
	for range result.Enrolled {
		h.observeReconcile("ok")
	}
	for range result.Failed {
		h.observeReconcile("error")
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Remove godoc
// @Summary Remove one enrollment
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body removeEnrollmentRequest true "Enrollment to remove"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /courses/{id}/enrollments [delete]
func (h *RosterHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req removeEnrollmentRequest
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
	if err := h.roster.RemoveEnrollment(c.Request.Context(), grant, courseID, req.Email, req.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List the course roster
// @Tags Roster
// @Produce json
// @Param id path string true "Course ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/roster [get]
func (h *RosterHandler) List(c *gin.Context) {
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
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	details, pagination, err := h.roster.ListRoster(c.Request.Context(), grant, courseID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, pagination)
}

type grantInstitutionAdminRequest struct {
	Email string `json:"email" binding:"required"`
}

// GrantInstitutionAdmin godoc
// @Summary Grant institution-admin to an email
// @Tags Institutions
// @Accept json
// @Produce json
// @Param id path string true "Institution ID"
// @Param payload body grantInstitutionAdminRequest true "Admin email"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /institutions/{id}/admins [post]
func (h *RosterHandler) GrantInstitutionAdmin(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req grantInstitutionAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grant payload"))
		return
	}
	grant, err := h.access.AuthorizePlatform(c.Request.Context(), claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.roster.GrantInstitutionAdmin(c.Request.Context(), grant, c.Param("id"), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveInstitutionAdmin godoc
// @Summary Revoke an institution admin and prune the role
// @Tags Institutions
// @Produce json
// @Param id path string true "Institution ID"
// @Param email path string true "Admin email"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /institutions/{id}/admins/{email} [delete]
func (h *RosterHandler) RemoveInstitutionAdmin(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	grant, err := h.access.AuthorizePlatform(c.Request.Context(), claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.roster.PruneInstitutionAdmin(c.Request.Context(), grant, c.Param("id"), c.Param("email")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *RosterHandler) observeReconcile(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveReconcile(outcome)
	}
}
