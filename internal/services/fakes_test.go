package services

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"designlens/internal/capture"
	"designlens/internal/domain/attachment"
	"designlens/internal/domain/message"
	"designlens/internal/domain/session"
	"designlens/internal/domain/template"
	lens_errors "designlens/pkg/errors"
	"designlens/pkg/logger"

	"go.uber.org/zap/zaptest"
)

func testLogger(t *testing.T) *logger.Logger {
	return logger.Wrap(zaptest.NewLogger(t))
}

type fakeSessions struct {
	mu      sync.Mutex
	items   map[string]session.Session
	creates atomic.Int32
	// createGate, when set, holds every Create until it is closed.
	createGate chan struct{}
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{items: map[string]session.Session{}}
}

func (f *fakeSessions) Create(ctx context.Context, s session.Session) error {
	f.creates.Add(1)
	if f.createGate != nil {
		<-f.createGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[s.ID]; ok {
		return lens_errors.ErrAlreadyExists
	}
	f.items[s.ID] = s
	return nil
}

func (f *fakeSessions) GetByID(ctx context.Context, id string) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	if !ok {
		return session.Session{}, lens_errors.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) ListByAccount(ctx context.Context, accountID string, limit int) ([]session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []session.Session
	for _, s := range f.items {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeSessions) Rename(ctx context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	if !ok {
		return lens_errors.ErrNotFound
	}
	s.Name = name
	f.items[id] = s
	return nil
}

func (f *fakeSessions) Touch(ctx context.Context, id string) error { return nil }

type fakeMessages struct {
	mu          sync.Mutex
	bySession   map[string][]message.Message
	attachments map[string][]attachment.Attachment
	saveErr     error
	loadErr     error
	loadGate    chan struct{}
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{bySession: map[string][]message.Message{}, attachments: map[string][]attachment.Attachment{}}
}

func (f *fakeMessages) LoadMessages(ctx context.Context, sessionID string) ([]message.Message, error) {
	if f.loadGate != nil {
		<-f.loadGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	var out []message.Message
	for _, m := range f.bySession[sessionID] {
		m = m.Clone()
		m.Attachments = attachment.CloneAll(f.attachments[m.ID])
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMessages) SaveMessage(ctx context.Context, m message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	stored := m.Clone()
	stored.Attachments = nil
	f.bySession[m.SessionID] = append(f.bySession[m.SessionID], stored)
	return nil
}

func (f *fakeMessages) SaveMessageAttachments(ctx context.Context, messageID string, atts []attachment.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachments[messageID] = attachment.CloneAll(atts)
	return nil
}

func (f *fakeMessages) saved(sessionID string) []message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return message.CloneAll(f.bySession[sessionID])
}

type fakeCredits struct {
	mu     sync.Mutex
	access Access
	err    error
	calls  int
}

func allowAll() *fakeCredits { return &fakeCredits{access: Access{Allowed: true, Balance: 100}} }

func (f *fakeCredits) CheckAccess(ctx context.Context, accountID string) (Access, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.access, f.err
}

type fakeTemplates struct{}

func (fakeTemplates) GetByID(ctx context.Context, id string) (template.Template, error) {
	if id == "accessibility-audit" {
		return template.Template{ID: id, Name: "Accessibility audit", SystemPrompt: "You audit accessibility."}, nil
	}
	return template.Template{}, lens_errors.ErrNotFound
}

func (fakeTemplates) List(ctx context.Context) ([]template.Template, error) {
	return []template.Template{template.Default()}, nil
}

// capturerFunc adapts a function to Capturer.
type capturerFunc func(ctx context.Context, urls []string, wantDesktop, wantMobile bool) capture.SetResult

func (f capturerFunc) CaptureSet(ctx context.Context, urls []string, wantDesktop, wantMobile bool) capture.SetResult {
	return f(ctx, urls, wantDesktop, wantMobile)
}

func allFailed(msg string) capturerFunc {
	return func(ctx context.Context, urls []string, wantDesktop, wantMobile bool) capture.SetResult {
		res := capture.SetResult{}
		for range urls {
			res.Desktop = append(res.Desktop, attachment.CaptureResult{Succeeded: false, Error: msg})
			res.Mobile = append(res.Mobile, attachment.CaptureResult{Succeeded: false, Error: msg})
		}
		return res
	}
}

type uploaderFunc func(ctx context.Context, file FileHandle, attachmentID string) (string, error)

func (f uploaderFunc) Upload(ctx context.Context, file FileHandle, attachmentID string) (string, error) {
	return f(ctx, file, attachmentID)
}
