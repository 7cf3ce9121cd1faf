package httpdto

import (
	"time"

	"designlens/internal/domain/message"
	"designlens/internal/domain/session"
)

type CreateSessionRequest struct {
	Name string `json:"name"`
}

type RenameSessionRequest struct {
	Name string `json:"name" binding:"required"`
}

type SessionDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func FromSession(s session.Session) SessionDTO {
	return SessionDTO{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

func FromSessions(in []session.Session) []SessionDTO {
	out := make([]SessionDTO, len(in))
	for i, s := range in {
		out[i] = FromSession(s)
	}
	return out
}

type MessagesResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []message.Message `json:"messages"`
}
