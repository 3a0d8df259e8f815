package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/service"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/response"
)

// AccountHandler exposes platform-level account administration.
type AccountHandler struct {
	access   *service.AccessService
	accounts *service.AccountService
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(access *service.AccessService, accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{access: access, accounts: accounts}
}

// Create godoc
// @Summary Provision a provider account
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body service.CreateAccountRequest true "Account payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grant, err := h.access.AuthorizePlatform(c.Request.Context(), claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	account, err := h.accounts.Create(c.Request.Context(), grant, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, account)
}

// List godoc
// @Summary List provider accounts
// @Tags Accounts
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
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
	accounts, err := h.accounts.List(c.Request.Context(), grant)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accounts, nil)
}
