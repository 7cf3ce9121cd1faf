package httpdto

import (
	"designlens/internal/domain/attachment"
	"designlens/internal/domain/message"
)

type AddURLRequest struct {
	URL string `json:"url" binding:"required"`
}

type SendRequest struct {
	Message    string `json:"message"`
	TemplateID string `json:"template_id"`
}

type SendResponse struct {
	UserMessage      message.Message `json:"user_message"`
	AssistantMessage message.Message `json:"assistant_message"`
	Warning          string          `json:"warning,omitempty"`
}

type AttachmentResponse struct {
	SessionID  string                `json:"session_id"`
	Attachment attachment.Attachment `json:"attachment"`
}
