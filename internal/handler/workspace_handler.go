package handler

import (
	"errors"
	"io"
	"net/http"

	"designlens/internal/services"
	"designlens/internal/transport/httpdto"
	lens_errors "designlens/pkg/errors"

	"github.com/gin-gonic/gin"
)

type WorkspaceHandler struct {
	sessions    *services.SessionService
	attachments *services.AttachmentService
	analysis    *services.AnalysisService
}

func NewWorkspaceHandler(sessions *services.SessionService, attachments *services.AttachmentService, analysis *services.AnalysisService) *WorkspaceHandler {
	return &WorkspaceHandler{sessions: sessions, attachments: attachments, analysis: analysis}
}

func (h *WorkspaceHandler) Get(c *gin.Context) {
	ws, ok := h.sessions.Active(accountID(c))
	if !ok {
		fail(c, lens_errors.ErrNoActiveSession)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(ws.Snapshot()))
}

func (h *WorkspaceHandler) AddURL(c *gin.Context) {
	var req httpdto.AddURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, lens_errors.NewValidationError("url", "url is required"))
		return
	}
	ws, err := h.sessions.EnsureActive(c.Request.Context(), accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	att, _, err := h.attachments.AddURL(c.Request.Context(), ws, req.URL)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.AttachmentResponse{SessionID: ws.SessionID, Attachment: att}))
}

func (h *WorkspaceHandler) AddFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		fail(c, lens_errors.NewValidationError("file", "file is required"))
		return
	}
	if header.Size > services.MaxUploadBytes {
		fail(c, lens_errors.NewValidationError("file", "file is larger than 50 MB"))
		return
	}
	f, err := header.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, services.MaxUploadBytes+1))
	if err != nil {
		fail(c, err)
		return
	}

	ws, err := h.sessions.EnsureActive(c.Request.Context(), accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	att, _, err := h.attachments.AddFile(c.Request.Context(), ws, services.FileHandle{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.AttachmentResponse{SessionID: ws.SessionID, Attachment: att}))
}

func (h *WorkspaceHandler) RemoveAttachment(c *gin.Context) {
	ws, ok := h.sessions.Active(accountID(c))
	if !ok {
		fail(c, lens_errors.ErrNoActiveSession)
		return
	}
	if err := h.attachments.Remove(c.Request.Context(), ws, c.Param("aid")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *WorkspaceHandler) Recapture(c *gin.Context) {
	ws, ok := h.sessions.Active(accountID(c))
	if !ok {
		fail(c, lens_errors.ErrNoActiveSession)
		return
	}
	id := c.Param("aid")
	if _, err := h.attachments.RetryCapture(c.Request.Context(), ws, id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(gin.H{"attachment_id": id}))
}

// Send runs one analysis turn. A failed analysis still returns both appended messages
// alongside the error.
func (h *WorkspaceHandler) Send(c *gin.Context) {
	var req httpdto.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, lens_errors.NewValidationError("body", "invalid request"))
		return
	}
	account := accountID(c)
	ws, err := h.sessions.EnsureActive(c.Request.Context(), account)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := h.analysis.Send(c.Request.Context(), ws, services.SendInput{
		AccountID:  account,
		Text:       req.Message,
		TemplateID: req.TemplateID,
	})
	body := httpdto.SendResponse{
		UserMessage:      res.UserMessage,
		AssistantMessage: res.AssistantMessage,
		Warning:          res.Warning,
	}

	var analysisErr *lens_errors.AnalysisError
	if errors.As(err, &analysisErr) {
		c.JSON(http.StatusBadGateway, httpdto.Response[httpdto.SendResponse]{
			Success: false,
			Data:    body,
			Error:   analysisErr.Error(),
			Code:    "ANALYSIS_FAILED",
		})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(body))
}
