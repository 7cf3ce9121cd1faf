package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"designlens/internal/domain/message"
	"designlens/internal/events"
	lens_errors "designlens/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNewSession_BecomesActive(t *testing.T) {
	svc := NewSessionService(newFakeSessions(), newFakeMessages(), &events.Recorder{}, testLogger(t))

	sess, ws, err := svc.CreateNewSession(context.Background(), "acct-1", "")
	require.NoError(t, err)
	assert.Equal(t, "New analysis", sess.Name)
	assert.Equal(t, sess.ID, ws.SessionID)
	assert.True(t, ws.IsLoaded())

	active, ok := svc.Active("acct-1")
	require.True(t, ok)
	assert.Same(t, ws, active)

	_, _, err = svc.CreateNewSession(context.Background(), "acct-1", strings.Repeat("x", 200))
	assert.ErrorIs(t, err, lens_errors.ErrInvalidInput)
	_, _, err = svc.CreateNewSession(context.Background(), "", "x")
	assert.ErrorIs(t, err, lens_errors.ErrUnauthorized)
}

func TestEnsureActive_CreatesOnFirstUse(t *testing.T) {
	sessions := newFakeSessions()
	svc := NewSessionService(sessions, newFakeMessages(), &events.Recorder{}, testLogger(t))

	ws, err := svc.EnsureActive(context.Background(), "acct-1")
	require.NoError(t, err)
	again, err := svc.EnsureActive(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Same(t, ws, again)

	list, err := svc.ListSessions(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnsureActive_ConcurrentFirstUseCreatesOneSession(t *testing.T) {
	sessions := newFakeSessions()
	sessions.createGate = make(chan struct{})
	svc := NewSessionService(sessions, newFakeMessages(), &events.Recorder{}, testLogger(t))

	const callers = 8
	got := make([]*Workspace, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws, err := svc.EnsureActive(context.Background(), "acct-1")
			assert.NoError(t, err)
			got[i] = ws
		}(i)
	}

	require.Eventually(t, func() bool { return sessions.creates.Load() > 0 }, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(sessions.createGate)
	wg.Wait()

	assert.EqualValues(t, 1, sessions.creates.Load())
	for _, ws := range got {
		assert.Same(t, got[0], ws)
	}
	list, err := svc.ListSessions(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSwitchToSession_EmptyThenRestored(t *testing.T) {
	msgs := newFakeMessages()
	rec := &events.Recorder{}
	svc := NewSessionService(newFakeSessions(), msgs, rec, testLogger(t))
	analysis := NewAnalysisService(allowAll(), nil, nil, svc, nil, rec, testLogger(t))

	sess, ws, err := svc.CreateNewSession(context.Background(), "acct-1", "Checkout")
	require.NoError(t, err)
	require.NoError(t, ws.Attachments().Add(uploadedURL(t, "example.com", true)))
	_, _ = analysis.Send(context.Background(), ws, SendInput{Text: "first"})
	require.Equal(t, 2, ws.MessageCount())

	_, _, err = svc.CreateNewSession(context.Background(), "acct-1", "Other")
	require.NoError(t, err)

	msgs.loadGate = make(chan struct{})
	switched, task, err := svc.SwitchToSession(context.Background(), "acct-1", sess.ID)
	require.NoError(t, err)
	assert.NotSame(t, ws, switched)
	assert.Zero(t, switched.MessageCount())
	assert.Zero(t, switched.Attachments().Len())
	assert.False(t, switched.IsLoaded())

	close(msgs.loadGate)
	require.NoError(t, waitTask(t, task))
	assert.True(t, switched.IsLoaded())

	restored := switched.Messages()
	require.Len(t, restored, 2)
	assert.Equal(t, message.RoleUser, restored[0].Role)
	require.Len(t, restored[0].Attachments, 1)
	assert.Equal(t, "example.com", restored[0].Attachments[0].DisplayName)
	assert.Empty(t, restored[1].Attachments)
	assert.Contains(t, rec.Types(), events.TypeHistoryLoaded)
}

func TestSwitchToSession_StaleLoadDoesNotLeak(t *testing.T) {
	msgs := newFakeMessages()
	svc := NewSessionService(newFakeSessions(), msgs, &events.Recorder{}, testLogger(t))

	first, ws1, err := svc.CreateNewSession(context.Background(), "acct-1", "A")
	require.NoError(t, err)
	ws1.Append(message.NewUserMessage(first.ID, "from A", "", nil))
	require.NoError(t, msgs.SaveMessage(context.Background(), ws1.Messages()[0]))
	second, _, err := svc.CreateNewSession(context.Background(), "acct-1", "B")
	require.NoError(t, err)

	msgs.loadGate = make(chan struct{})
	wsA, taskA, err := svc.SwitchToSession(context.Background(), "acct-1", first.ID)
	require.NoError(t, err)
	wsB, taskB, err := svc.SwitchToSession(context.Background(), "acct-1", second.ID)
	require.NoError(t, err)

	close(msgs.loadGate)
	require.NoError(t, waitTask(t, taskA))
	require.NoError(t, waitTask(t, taskB))

	active, _ := svc.Active("acct-1")
	assert.Same(t, wsB, active)
	assert.Zero(t, wsB.MessageCount())
	assert.Equal(t, 1, wsA.MessageCount())
}

func TestSwitchToSession_Errors(t *testing.T) {
	sessions := newFakeSessions()
	msgs := newFakeMessages()
	rec := &events.Recorder{}
	svc := NewSessionService(sessions, msgs, rec, testLogger(t))

	_, _, err := svc.SwitchToSession(context.Background(), "acct-1", "missing")
	assert.ErrorIs(t, err, lens_errors.ErrNotFound)

	other, _, err := svc.CreateNewSession(context.Background(), "acct-2", "theirs")
	require.NoError(t, err)
	_, _, err = svc.SwitchToSession(context.Background(), "acct-1", other.ID)
	assert.ErrorIs(t, err, lens_errors.ErrNotFound)

	mine, _, err := svc.CreateNewSession(context.Background(), "acct-1", "mine")
	require.NoError(t, err)
	msgs.loadErr = errors.New("db down")
	ws, task, err := svc.SwitchToSession(context.Background(), "acct-1", mine.ID)
	require.NoError(t, err)
	assert.Error(t, waitTask(t, task))
	assert.True(t, ws.IsLoaded())
	assert.Contains(t, rec.Types(), events.TypeHistoryFailed)
}

func TestWorkspaceRestore_KeepsMessagesAppendedDuringLoad(t *testing.T) {
	ws := NewWorkspace("acct-1", "sess-1")
	live := message.NewUserMessage("sess-1", "typed while loading", "", nil)
	ws.Append(live)

	old := []message.Message{
		message.NewUserMessage("sess-1", "old question", "", nil),
		message.NewAssistantMessage("sess-1", "old answer", "", false),
	}
	ws.restore(old)

	got := ws.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, old[0].ID, got[0].ID)
	assert.Equal(t, old[1].ID, got[1].ID)
	assert.Equal(t, live.ID, got[2].ID)
}

func TestSaveMessageAttachments_UserOnly(t *testing.T) {
	msgs := newFakeMessages()
	svc := NewSessionService(newFakeSessions(), msgs, &events.Recorder{}, testLogger(t))

	reply := message.NewAssistantMessage("sess-1", "answer", "", false)
	err := svc.SaveMessageAttachments(context.Background(), reply)
	assert.ErrorIs(t, err, lens_errors.ErrInvalidInput)
	assert.Empty(t, msgs.attachments)

	user := message.NewUserMessage("sess-1", "q", "", nil)
	require.NoError(t, svc.SaveMessageAttachments(context.Background(), user))
}

func TestRenameSession(t *testing.T) {
	sessions := newFakeSessions()
	svc := NewSessionService(sessions, newFakeMessages(), &events.Recorder{}, testLogger(t))
	sess, _, err := svc.CreateNewSession(context.Background(), "acct-1", "")
	require.NoError(t, err)

	require.NoError(t, svc.RenameSession(context.Background(), "acct-1", sess.ID, "  Pricing page  "))
	got, err := sessions.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pricing page", got.Name)

	assert.ErrorIs(t, svc.RenameSession(context.Background(), "acct-2", sess.ID, "x"), lens_errors.ErrNotFound)
	assert.ErrorIs(t, svc.RenameSession(context.Background(), "acct-1", sess.ID, " "), lens_errors.ErrInvalidInput)
}

func TestHistory_ChecksOwnership(t *testing.T) {
	msgs := newFakeMessages()
	svc := NewSessionService(newFakeSessions(), msgs, &events.Recorder{}, testLogger(t))
	sess, _, err := svc.CreateNewSession(context.Background(), "acct-1", "A")
	require.NoError(t, err)
	require.NoError(t, msgs.SaveMessage(context.Background(), message.NewUserMessage(sess.ID, "hi", "", nil)))

	got, err := svc.History(context.Background(), "acct-1", sess.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.History(context.Background(), "acct-2", sess.ID)
	assert.ErrorIs(t, err, lens_errors.ErrNotFound)
}
