package events

import (
	"encoding/json"
	"time"
)

// Notification types follow the format: domain.action
const (
	TypeAttachmentAdded    = "attachment.added"
	TypeAttachmentUploaded = "attachment.uploaded"
	TypeAttachmentFailed   = "attachment.failed"
	TypeAttachmentRemoved  = "attachment.removed"
	TypeCaptureCompleted   = "capture.completed"
	TypeCaptureFailed      = "capture.failed"
	TypeCreditsLow         = "credits.low"
	TypeCreditsDenied      = "credits.denied"
	TypeAnalysisStarted    = "analysis.started"
	TypeAnalysisCompleted  = "analysis.completed"
	TypeAnalysisFailed     = "analysis.failed"
	TypeHistoryLoaded      = "history.loaded"
	TypeHistoryFailed      = "history.failed"
	TypePersistenceFailed  = "persistence.failed"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing toast describing one pipeline transition.
type Notification struct {
	Type         string          `json:"type"`
	Level        Level           `json:"level"`
	AccountID    string          `json:"account_id,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
	AttachmentID string          `json:"attachment_id,omitempty"`
	Message      string          `json:"message"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

func New(typ string, level Level, message string) Notification {
	return Notification{Type: typ, Level: level, Message: message, OccurredAt: time.Now().UTC()}
}

func (n Notification) ForSession(accountID, sessionID string) Notification {
	n.AccountID = accountID
	n.SessionID = sessionID
	return n
}

func (n Notification) ForAttachment(id string) Notification {
	n.AttachmentID = id
	return n
}

// WithPayload attaches v marshalled as JSON; marshal failures leave the payload empty.
func (n Notification) WithPayload(v any) Notification {
	if data, err := json.Marshal(v); err == nil {
		n.Payload = data
	}
	return n
}
