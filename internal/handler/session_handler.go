package handler

import (
	"net/http"

	"designlens/internal/services"
	"designlens/internal/transport/httpdto"
	lens_errors "designlens/pkg/errors"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req httpdto.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, lens_errors.NewValidationError("body", "invalid request"))
			return
		}
	}
	sess, _, err := h.sessions.CreateNewSession(c.Request.Context(), accountID(c), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromSession(sess)))
}

func (h *SessionHandler) List(c *gin.Context) {
	list, err := h.sessions.ListSessions(c.Request.Context(), accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromSessions(list)))
}

func (h *SessionHandler) Rename(c *gin.Context) {
	var req httpdto.RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, lens_errors.NewValidationError("name", "name is required"))
		return
	}
	if err := h.sessions.RenameSession(c.Request.Context(), accountID(c), c.Param("id"), req.Name); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// Switch makes the session active right away; its history streams in afterwards and
// the response may show an empty, not yet loaded workspace.
func (h *SessionHandler) Switch(c *gin.Context) {
	ws, _, err := h.sessions.SwitchToSession(c.Request.Context(), accountID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(ws.Snapshot()))
}

func (h *SessionHandler) Messages(c *gin.Context) {
	id := c.Param("id")
	msgs, err := h.sessions.History(c.Request.Context(), accountID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MessagesResponse{SessionID: id, Messages: msgs}))
}
