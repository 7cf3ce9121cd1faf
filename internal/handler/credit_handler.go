package handler

import (
	"errors"
	"net/http"

	"designlens/internal/repository"
	"designlens/internal/services"
	"designlens/internal/transport/httpdto"
	lens_errors "designlens/pkg/errors"

	"github.com/gin-gonic/gin"
)

type CreditHandler struct {
	credits   *services.CreditGate
	templates repository.TemplateRepository
}

func NewCreditHandler(credits *services.CreditGate, templates repository.TemplateRepository) *CreditHandler {
	return &CreditHandler{credits: credits, templates: templates}
}

// Credits reports the account's access. An empty balance is a normal answer here, not an error.
func (h *CreditHandler) Credits(c *gin.Context) {
	access, err := h.credits.CheckAccess(c.Request.Context(), accountID(c))
	var creditErr *lens_errors.CreditError
	if err != nil && !errors.As(err, &creditErr) {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(access))
}

func (h *CreditHandler) Templates(c *gin.Context) {
	list, err := h.templates.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(list))
}
