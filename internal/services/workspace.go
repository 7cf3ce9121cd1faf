package services

import (
	"context"
	"sync"
	"sync/atomic"

	"designlens/internal/artifacts"
	"designlens/internal/domain/attachment"
	"designlens/internal/domain/message"
)

// Workspace is the in-memory state of one open session: the live attachments, the
// append-only message list and the analyzing flag. It is created when a session is opened
// and discarded when the user switches away. Workspaces opened by SessionService for the
// same session share one analyzing flag.
type Workspace struct {
	SessionID string
	AccountID string

	store     *artifacts.Store
	mu        sync.RWMutex
	messages  []message.Message
	analyzing *atomic.Bool
	loaded    chan struct{}
	loadOnce  sync.Once
}

func NewWorkspace(accountID, sessionID string) *Workspace {
	return newWorkspace(accountID, sessionID, new(atomic.Bool))
}

func newWorkspace(accountID, sessionID string, analyzing *atomic.Bool) *Workspace {
	return &Workspace{
		SessionID: sessionID,
		AccountID: accountID,
		store:     artifacts.NewStore(),
		analyzing: analyzing,
		loaded:    make(chan struct{}),
	}
}

func (w *Workspace) Attachments() *artifacts.Store { return w.store }

// Messages returns a deep copy of the history in append order.
func (w *Workspace) Messages() []message.Message {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return message.CloneAll(w.messages)
}

func (w *Workspace) MessageCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.messages)
}

// Append adds messages to the end of the history. Existing entries are never reordered.
func (w *Workspace) Append(msgs ...message.Message) {
	w.mu.Lock()
	next := make([]message.Message, len(w.messages), len(w.messages)+len(msgs))
	copy(next, w.messages)
	for _, m := range msgs {
		next = append(next, m.Clone())
	}
	w.messages = next
	w.mu.Unlock()
}

// restore places persisted history in front of anything appended while it was loading.
func (w *Workspace) restore(history []message.Message) {
	w.mu.Lock()
	seen := make(map[string]struct{}, len(history))
	next := make([]message.Message, 0, len(history)+len(w.messages))
	for _, m := range history {
		seen[m.ID] = struct{}{}
		next = append(next, m.Clone())
	}
	for _, m := range w.messages {
		if _, dup := seen[m.ID]; !dup {
			next = append(next, m)
		}
	}
	w.messages = next
	w.mu.Unlock()
	w.markLoaded()
}

func (w *Workspace) markLoaded() {
	w.loadOnce.Do(func() { close(w.loaded) })
}

// Loaded is closed once persisted history has been restored (or failed to load).
func (w *Workspace) Loaded() <-chan struct{} { return w.loaded }

func (w *Workspace) IsLoaded() bool {
	select {
	case <-w.loaded:
		return true
	default:
		return false
	}
}

// BeginAnalysis claims the session's single analysis slot. It returns false if one is already running.
func (w *Workspace) BeginAnalysis() bool { return w.analyzing.CompareAndSwap(false, true) }

func (w *Workspace) EndAnalysis() { w.analyzing.Store(false) }

func (w *Workspace) Analyzing() bool { return w.analyzing.Load() }

// Snapshot is a read-only view for API responses.
type Snapshot struct {
	SessionID   string                  `json:"session_id"`
	Attachments []attachment.Attachment `json:"attachments"`
	Messages    []message.Message       `json:"messages"`
	Analyzing   bool                    `json:"analyzing"`
	Loaded      bool                    `json:"loaded"`
}

func (w *Workspace) Snapshot() Snapshot {
	return Snapshot{
		SessionID:   w.SessionID,
		Attachments: w.store.List(),
		Messages:    w.Messages(),
		Analyzing:   w.Analyzing(),
		Loaded:      w.IsLoaded(),
	}
}

// Task is a background job tied to one id. It can be awaited but not cancelled.
type Task struct {
	id   string
	done chan struct{}
	err  error
}

func newTask(id string) *Task {
	return &Task{id: id, done: make(chan struct{})}
}

// runTask starts fn in its own goroutine and returns the awaitable handle.
func runTask(id string, fn func() error) *Task {
	t := newTask(id)
	go func() {
		defer close(t.done)
		t.err = fn()
	}()
	return t
}

func (t *Task) ID() string { return t.id }

func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finished or ctx ends. The returned error is the task's own.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
