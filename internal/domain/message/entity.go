package message

import (
	"time"

	"designlens/internal/domain/attachment"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Message is one turn in a session. Attachments is a deep copy taken when the message was
// created, so later changes to live attachments never alter history.
type Message struct {
	ID          string                  `json:"id"`
	SessionID   string                  `json:"session_id"`
	Role        Role                    `json:"role"`
	Content     string                  `json:"content"`
	Attachments []attachment.Attachment `json:"attachments,omitempty"`
	TemplateID  string                  `json:"template_id,omitempty"`
	IsError     bool                    `json:"is_error,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

func NewUserMessage(sessionID, content, templateID string, attachments []attachment.Attachment) Message {
	return Message{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Role:        RoleUser,
		Content:     content,
		Attachments: attachment.CloneAll(attachments),
		TemplateID:  templateID,
		CreatedAt:   time.Now().UTC(),
	}
}

func NewAssistantMessage(sessionID, content, templateID string, isError bool) Message {
	return Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Role:       RoleAssistant,
		Content:    content,
		TemplateID: templateID,
		IsError:    isError,
		CreatedAt:  time.Now().UTC(),
	}
}

// Clone deep-copies m including its attachment snapshot.
func (m Message) Clone() Message {
	out := m
	out.Attachments = attachment.CloneAll(m.Attachments)
	return out
}

func CloneAll(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
