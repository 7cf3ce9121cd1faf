package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is a named, persisted container for a message history.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const DefaultName = "New analysis"

func New(accountID, name string) Session {
	if name == "" {
		name = DefaultName
	}
	now := time.Now().UTC()
	return Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
