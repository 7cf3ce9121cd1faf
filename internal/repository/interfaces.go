package repository

import (
	"context"

	"designlens/internal/domain/attachment"
	"designlens/internal/domain/message"
	"designlens/internal/domain/session"
	"designlens/internal/domain/template"
)

type SessionRepository interface {
	Create(ctx context.Context, s session.Session) error
	GetByID(ctx context.Context, id string) (session.Session, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]session.Session, error)
	Rename(ctx context.Context, id, name string) error
	Touch(ctx context.Context, id string) error
}

// MessageRepository persists session history. Attachment snapshots are stored separately
// from the message row and only for user messages.
type MessageRepository interface {
	LoadMessages(ctx context.Context, sessionID string) ([]message.Message, error)
	SaveMessage(ctx context.Context, m message.Message) error
	SaveMessageAttachments(ctx context.Context, messageID string, atts []attachment.Attachment) error
}

type AccountRepository interface {
	GetBalance(ctx context.Context, accountID string) (int64, error)
	GetRole(ctx context.Context, accountID string) (string, error)
}

type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (template.Template, error)
	List(ctx context.Context) ([]template.Template, error)
}
