package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"designlens/internal/domain/message"
	"designlens/internal/domain/session"
	"designlens/internal/events"
	"designlens/internal/repository"
	lens_errors "designlens/pkg/errors"
	"designlens/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const maxSessionName = 120

// SessionService owns the active Workspace of every account and the persisted history behind it.
type SessionService struct {
	sessions repository.SessionRepository
	messages repository.MessageRepository
	notifier events.Notifier
	log      *logger.Logger

	mu        sync.Mutex
	active    map[string]*Workspace
	analyzing map[string]*atomic.Bool
	firstUse  singleflight.Group
}

func NewSessionService(sessions repository.SessionRepository, messages repository.MessageRepository, notifier events.Notifier, log *logger.Logger) *SessionService {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if notifier == nil {
		notifier = events.NewLogNotifier(log)
	}
	return &SessionService{
		sessions:  sessions,
		messages:  messages,
		notifier:  notifier,
		log:       log,
		active:    make(map[string]*Workspace),
		analyzing: make(map[string]*atomic.Bool),
	}
}

// Active returns the workspace the account currently has open.
func (s *SessionService) Active(accountID string) (*Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.active[accountID]
	return ws, ok
}

// openWorkspace builds a workspace for sessionID bound to that session's analyzing flag.
func (s *SessionService) openWorkspace(accountID, sessionID string) *Workspace {
	s.mu.Lock()
	flag, ok := s.analyzing[sessionID]
	if !ok {
		flag = new(atomic.Bool)
		s.analyzing[sessionID] = flag
	}
	s.mu.Unlock()
	return newWorkspace(accountID, sessionID, flag)
}

func (s *SessionService) setActive(accountID string, ws *Workspace) {
	s.mu.Lock()
	s.active[accountID] = ws
	s.mu.Unlock()
}

// EnsureActive returns the open workspace, creating a fresh session on first use.
func (s *SessionService) EnsureActive(ctx context.Context, accountID string) (*Workspace, error) {
	if ws, ok := s.Active(accountID); ok {
		return ws, nil
	}
	v, err, _ := s.firstUse.Do(accountID, func() (interface{}, error) {
		if ws, ok := s.Active(accountID); ok {
			return ws, nil
		}
		_, ws, err := s.CreateNewSession(ctx, accountID, "")
		return ws, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Workspace), nil
}

// CreateNewSession persists a new session and makes its empty workspace the active one.
func (s *SessionService) CreateNewSession(ctx context.Context, accountID, name string) (session.Session, *Workspace, error) {
	if accountID == "" {
		return session.Session{}, nil, lens_errors.ErrUnauthorized
	}
	name, err := cleanName(name)
	if err != nil {
		return session.Session{}, nil, err
	}
	sess := session.New(accountID, name)
	if err := s.sessions.Create(ctx, sess); err != nil {
		return session.Session{}, nil, fmt.Errorf("create session: %w", err)
	}

	ws := s.openWorkspace(accountID, sess.ID)
	ws.markLoaded()
	s.setActive(accountID, ws)
	s.log.WithContext(ctx).Info("session created", zap.String("session_id", sess.ID), zap.String("account_id", accountID))
	return sess, ws, nil
}

// SwitchToSession replaces the active workspace with an empty one for id right away and
// restores its history in the background. The returned task resolves when the history is in.
// Each load only ever writes into the workspace it was started for.
func (s *SessionService) SwitchToSession(ctx context.Context, accountID, id string) (*Workspace, *Task, error) {
	sess, err := s.GetSession(ctx, accountID, id)
	if err != nil {
		return nil, nil, err
	}

	ws := s.openWorkspace(accountID, sess.ID)
	s.setActive(accountID, ws)

	loadCtx := context.WithoutCancel(ctx)
	task := runTask(sess.ID, func() error {
		history, err := s.LoadMessageHistory(loadCtx, sess.ID)
		if err != nil {
			ws.markLoaded()
			s.log.WithContext(loadCtx).Error("load history", zap.String("session_id", sess.ID), zap.Error(err))
			s.notify(loadCtx, ws, events.New(events.TypeHistoryFailed, events.LevelError, "Could not load the conversation history"))
			return err
		}
		ws.restore(history)
		s.notify(loadCtx, ws, events.New(events.TypeHistoryLoaded, events.LevelInfo, "Conversation restored").
			WithPayload(map[string]int{"messages": len(history)}))
		return nil
	})
	return ws, task, nil
}

// LoadMessageHistory returns persisted messages in append order.
func (s *SessionService) LoadMessageHistory(ctx context.Context, sessionID string) ([]message.Message, error) {
	msgs, err := s.messages.LoadMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	for i := range msgs {
		if msgs[i].Role != message.RoleUser {
			msgs[i].Attachments = nil
		}
	}
	return msgs, nil
}

// SaveMessageAttachments stores the attachment snapshot of a user message.
func (s *SessionService) SaveMessageAttachments(ctx context.Context, m message.Message) error {
	if m.Role != message.RoleUser {
		return fmt.Errorf("%w: only user messages carry attachments", lens_errors.ErrInvalidInput)
	}
	return s.messages.SaveMessageAttachments(ctx, m.ID, m.Attachments)
}

func (s *SessionService) ListSessions(ctx context.Context, accountID string) ([]session.Session, error) {
	return s.sessions.ListByAccount(ctx, accountID, 50)
}

func (s *SessionService) RenameSession(ctx context.Context, accountID, id, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if name == "" {
		return lens_errors.NewValidationError("name", "name is required")
	}
	if _, err := s.GetSession(ctx, accountID, id); err != nil {
		return err
	}
	return s.sessions.Rename(ctx, id, name)
}

// GetSession returns the session only when accountID owns it; foreign sessions read as missing.
func (s *SessionService) GetSession(ctx context.Context, accountID, id string) (session.Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if sess.AccountID != accountID {
		return session.Session{}, lens_errors.ErrNotFound
	}
	return sess, nil
}

// History returns the persisted messages of a session owned by accountID.
func (s *SessionService) History(ctx context.Context, accountID, id string) ([]message.Message, error) {
	if _, err := s.GetSession(ctx, accountID, id); err != nil {
		return nil, err
	}
	return s.LoadMessageHistory(ctx, id)
}

// persist writes one appended message. Failures are reported but never undo the in-memory append.
func (s *SessionService) persist(ctx context.Context, ws *Workspace, m message.Message) {
	ctx = context.WithoutCancel(ctx)
	log := s.log.WithContext(ctx).With(zap.String("session_id", ws.SessionID), zap.String("message_id", m.ID))

	err := s.messages.SaveMessage(ctx, m)
	if err == nil && m.Role == message.RoleUser && len(m.Attachments) > 0 {
		err = s.SaveMessageAttachments(ctx, m)
	}
	if err != nil {
		log.Error("persist message", zap.Error(err))
		s.notify(ctx, ws, events.New(events.TypePersistenceFailed, events.LevelWarning,
			"This message could not be saved and may be missing after a reload"))
		return
	}
	if err := s.sessions.Touch(ctx, ws.SessionID); err != nil {
		log.Warn("touch session", zap.Error(err))
	}
}

func (s *SessionService) notify(ctx context.Context, ws *Workspace, n events.Notification) {
	s.notifier.Notify(ctx, n.ForSession(ws.AccountID, ws.SessionID))
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) > maxSessionName {
		return "", lens_errors.NewValidationError("name", fmt.Sprintf("name must be at most %d characters", maxSessionName))
	}
	return name, nil
}

// Owns reports whether accountID owns sessionID. Lookup failures read as not owned.
func (s *SessionService) Owns(ctx context.Context, accountID, sessionID string) bool {
	_, err := s.GetSession(ctx, accountID, sessionID)
	return err == nil
}
