package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"designlens/internal/ai"
	"designlens/internal/domain/attachment"
	"designlens/internal/domain/message"
	"designlens/internal/events"
	"designlens/internal/storage"
	lens_errors "designlens/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type analysisFixture struct {
	ws       *Workspace
	credits  *fakeCredits
	analyzer *ai.MockAnalyzer
	messages *fakeMessages
	rec      *events.Recorder
	svc      *AnalysisService
}

func newAnalysisFixture(t *testing.T) *analysisFixture {
	t.Helper()
	f := &analysisFixture{
		ws:       NewWorkspace("acct-1", "sess-1"),
		credits:  allowAll(),
		analyzer: ai.NewMockAnalyzer(),
		messages: newFakeMessages(),
		rec:      &events.Recorder{},
	}
	sessions := NewSessionService(newFakeSessions(), f.messages, f.rec, testLogger(t))
	f.svc = NewAnalysisService(f.credits, f.analyzer, fakeTemplates{}, sessions, storage.NewMemoryStore("https://cdn.test"), f.rec, testLogger(t))
	return f
}

func uploadedURL(t *testing.T, raw string, shots bool) attachment.Attachment {
	t.Helper()
	normalized, host, err := NormalizeURL(raw)
	require.NoError(t, err)
	a, err := attachment.NewURL(normalized, host).Transition(attachment.StatusProcessing)
	require.NoError(t, err)
	captures := attachment.PendingCaptures()
	if shots {
		captures[attachment.ViewportDesktop] = attachment.CaptureResult{Succeeded: true, ImageReference: "https://cdn.test/" + host + "/desktop.png"}
		captures[attachment.ViewportMobile] = attachment.CaptureResult{Succeeded: false, Error: "timed out"}
	}
	a, err = a.WithCaptures(captures).MarkUploaded(normalized)
	require.NoError(t, err)
	return a
}

func uploadedFile(t *testing.T, name, contentType string) attachment.Attachment {
	t.Helper()
	a, err := attachment.NewFile(name, contentType, 10, contentType == "image/png").Transition(attachment.StatusUploading)
	require.NoError(t, err)
	a, err = a.MarkUploaded("uploads/" + a.ID + ".bin")
	require.NoError(t, err)
	return a
}

func TestSend_EmptyPayloadIsRejectedLocally(t *testing.T) {
	f := newAnalysisFixture(t)

	_, err := f.svc.Send(context.Background(), f.ws, SendInput{Text: "   "})
	var vErr *lens_errors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, f.ws.MessageCount())
	assert.Empty(t, f.analyzer.Requests())
	assert.Zero(t, f.credits.calls)
	assert.False(t, f.ws.Analyzing())
}

func TestSend_CreditDeniedHaltsBeforeHistory(t *testing.T) {
	f := newAnalysisFixture(t)
	f.credits.access = Access{Allowed: false, Balance: 0}
	f.credits.err = &lens_errors.CreditError{AccountID: "acct-1", Balance: 0, Required: 1}
	require.NoError(t, f.ws.Attachments().Add(uploadedURL(t, "example.com", false)))

	_, err := f.svc.Send(context.Background(), f.ws, SendInput{Text: "hello"})
	var creditErr *lens_errors.CreditError
	require.ErrorAs(t, err, &creditErr)
	var analysisErr *lens_errors.AnalysisError
	assert.False(t, errors.As(err, &analysisErr))

	assert.Zero(t, f.ws.MessageCount())
	assert.Empty(t, f.analyzer.Requests())
	assert.Empty(t, f.messages.saved("sess-1"))
	assert.Equal(t, 1, f.ws.Attachments().Len())
	assert.False(t, f.ws.Analyzing())
}

func TestSend_SuccessConsumesAttachmentsAndSnapshotsThem(t *testing.T) {
	f := newAnalysisFixture(t)
	live := []attachment.Attachment{
		uploadedURL(t, "example.com", true),
		uploadedFile(t, "hero.png", "image/png"),
		uploadedFile(t, "brief.pdf", "application/pdf"),
	}
	for _, a := range live {
		require.NoError(t, f.ws.Attachments().Add(a))
	}

	res, err := f.svc.Send(context.Background(), f.ws, SendInput{Text: "Review these", TemplateID: "accessibility-audit"})
	require.NoError(t, err)

	assert.Zero(t, f.ws.Attachments().Len())
	history := f.ws.Messages()
	require.Len(t, history, 2)
	assert.Equal(t, message.RoleUser, history[0].Role)
	assert.Equal(t, message.RoleAssistant, history[1].Role)
	assert.False(t, history[1].IsError)
	require.Len(t, history[0].Attachments, 3)
	for i, a := range live {
		assert.Equal(t, a.ID, history[0].Attachments[i].ID)
	}
	assert.Equal(t, "accessibility-audit", res.UserMessage.TemplateID)
	assert.Equal(t, history[1].ID, res.AssistantMessage.ID)

	reqs := f.analyzer.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Review these", reqs[0].Text)
	assert.Equal(t, "Accessibility audit", reqs[0].Template.Name)
	require.Len(t, reqs[0].Attachments, 3)
	assert.Equal(t, "https://example.com", reqs[0].Attachments[0].URL)
	assert.Equal(t, []ai.Screenshot{{Viewport: "desktop", URL: "https://cdn.test/example.com/desktop.png"}}, reqs[0].Attachments[0].Screenshots)
	assert.Equal(t, "https://cdn.test/"+live[1].RemoteReference, reqs[0].Attachments[1].URL)
	assert.True(t, reqs[0].Attachments[1].IsImage())

	saved := f.messages.saved("sess-1")
	require.Len(t, saved, 2)
	assert.Len(t, f.messages.attachments[history[0].ID], 3)
	assert.NotContains(t, f.messages.attachments, history[1].ID)
	assert.Contains(t, f.rec.Types(), events.TypeAnalysisCompleted)
}

func TestSend_HistoryIsImmutableAfterSend(t *testing.T) {
	f := newAnalysisFixture(t)
	a := uploadedURL(t, "example.com", false)
	require.NoError(t, f.ws.Attachments().Add(a))
	f.analyzer.FailWith(errors.New("backend down"))

	_, err := f.svc.Send(context.Background(), f.ws, SendInput{Text: "first"})
	require.Error(t, err)

	_, err = f.ws.Attachments().UpdateByID(a.ID, func(cur attachment.Attachment) (attachment.Attachment, error) {
		cur.DisplayName = "renamed"
		return cur, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "example.com", f.ws.Messages()[0].Attachments[0].DisplayName)
}

func TestSend_FailureKeepsAttachmentsAndRecordsError(t *testing.T) {
	f := newAnalysisFixture(t)
	require.NoError(t, f.ws.Attachments().Add(uploadedURL(t, "example.com", false)))
	f.analyzer.FailWith(errors.New("upstream 503"))

	res, err := f.svc.Send(context.Background(), f.ws, SendInput{Text: "hello"})
	var analysisErr *lens_errors.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, "upstream 503", analysisErr.Cause)

	history := f.ws.Messages()
	require.Len(t, history, 2)
	assert.True(t, history[1].IsError)
	assert.Contains(t, history[1].Content, "upstream 503")
	assert.Equal(t, history[1].ID, res.AssistantMessage.ID)
	assert.Equal(t, 1, f.ws.Attachments().Len())
	assert.Contains(t, f.rec.Types(), events.TypeAnalysisFailed)
	assert.False(t, f.ws.Analyzing())

	// retry without re-adding
	f.analyzer.FailWith(nil)
	_, err = f.svc.Send(context.Background(), f.ws, SendInput{Text: "hello again"})
	require.NoError(t, err)
	assert.Equal(t, 4, f.ws.MessageCount())
	assert.Zero(t, f.ws.Attachments().Len())
}

func TestSend_HistoryGrowsByTwoPerDispatch(t *testing.T) {
	f := newAnalysisFixture(t)
	prev := []message.Message{}

	for i, fail := range []bool{false, true, false} {
		if fail {
			f.analyzer.FailWith(errors.New("boom"))
		} else {
			f.analyzer.FailWith(nil)
		}
		_, _ = f.svc.Send(context.Background(), f.ws, SendInput{Text: "turn"})
		_, _ = f.svc.Send(context.Background(), f.ws, SendInput{Text: ""})

		now := f.ws.Messages()
		require.Len(t, now, 2*(i+1))
		for j := range prev {
			assert.Equal(t, prev[j].ID, now[j].ID)
		}
		prev = now
	}
}

func TestSend_OneAnalysisPerSession(t *testing.T) {
	f := newAnalysisFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := &blockingAnalyzer{started: started, release: release}
	f.svc.analyzer = blocking

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.svc.Send(context.Background(), f.ws, SendInput{Text: "slow"})
		assert.NoError(t, err)
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("analysis did not start")
	}
	assert.True(t, f.ws.Analyzing())
	_, err := f.svc.Send(context.Background(), f.ws, SendInput{Text: "second"})
	assert.ErrorIs(t, err, lens_errors.ErrAnalysisInProgress)

	close(release)
	wg.Wait()
	assert.Equal(t, 2, f.ws.MessageCount())
	assert.False(t, f.ws.Analyzing())
}

func TestSend_OneAnalysisPerSessionAcrossSwitch(t *testing.T) {
	msgs := newFakeMessages()
	rec := &events.Recorder{}
	sessions := NewSessionService(newFakeSessions(), msgs, rec, testLogger(t))
	blocking := &blockingAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewAnalysisService(allowAll(), blocking, fakeTemplates{}, sessions, nil, rec, testLogger(t))

	sess, first, err := sessions.CreateNewSession(context.Background(), "acct-1", "Checkout")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.Send(context.Background(), first, SendInput{Text: "slow"})
		assert.NoError(t, err)
	}()
	select {
	case <-blocking.started:
	case <-time.After(5 * time.Second):
		t.Fatal("analysis did not start")
	}

	reopened, task, err := sessions.SwitchToSession(context.Background(), "acct-1", sess.ID)
	require.NoError(t, err)
	assert.NotSame(t, first, reopened)
	assert.True(t, reopened.Analyzing())

	_, err = svc.Send(context.Background(), reopened, SendInput{Text: "second"})
	assert.ErrorIs(t, err, lens_errors.ErrAnalysisInProgress)

	close(blocking.release)
	wg.Wait()
	require.NoError(t, waitTask(t, task))
	assert.False(t, reopened.Analyzing())

	saved := msgs.saved(sess.ID)
	require.Len(t, saved, 2)
	assert.Equal(t, message.RoleUser, saved[0].Role)
	assert.Equal(t, message.RoleAssistant, saved[1].Role)

	_, err = svc.Send(context.Background(), reopened, SendInput{Text: "now"})
	assert.NoError(t, err)
}

func TestSend_PersistenceFailureKeepsMemoryHistory(t *testing.T) {
	f := newAnalysisFixture(t)
	f.messages.saveErr = errors.New("db down")

	_, err := f.svc.Send(context.Background(), f.ws, SendInput{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.ws.MessageCount())
	assert.Contains(t, f.rec.Types(), events.TypePersistenceFailed)
}

func TestSend_PendingFileIsLeftOut(t *testing.T) {
	f := newAnalysisFixture(t)
	pending, err := attachment.NewFile("draft.fig", "application/octet-stream", 3, false).Transition(attachment.StatusUploading)
	require.NoError(t, err)
	require.NoError(t, f.ws.Attachments().Add(pending))

	_, err = f.svc.Send(context.Background(), f.ws, SendInput{Text: "check"})
	require.NoError(t, err)
	reqs := f.analyzer.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Attachments)
	assert.Len(t, f.ws.Messages()[0].Attachments, 1)
}

type blockingAnalyzer struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, req ai.Request) (ai.Result, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return ai.Result{Text: "done"}, nil
}
