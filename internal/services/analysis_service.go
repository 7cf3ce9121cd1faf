package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"designlens/internal/ai"
	"designlens/internal/domain/attachment"
	"designlens/internal/domain/message"
	"designlens/internal/domain/template"
	"designlens/internal/events"
	"designlens/internal/repository"
	lens_errors "designlens/pkg/errors"
	"designlens/pkg/logger"

	"go.uber.org/zap"
)

// CreditChecker is satisfied by CreditGate.
type CreditChecker interface {
	CheckAccess(ctx context.Context, accountID string) (Access, error)
}

// ReferenceResolver turns a stored object reference into a URL the analysis backend can fetch.
type ReferenceResolver interface {
	PublicURL(ref string) string
}

type SendInput struct {
	AccountID  string
	Text       string
	TemplateID string
}

type SendResult struct {
	UserMessage      message.Message `json:"user_message"`
	AssistantMessage message.Message `json:"assistant_message"`
	Warning          string          `json:"warning,omitempty"`
}

// AnalysisService runs one send: credit check, optimistic user turn, remote analysis and the
// assistant turn that always follows it.
type AnalysisService struct {
	credits   CreditChecker
	analyzer  ai.Analyzer
	templates repository.TemplateRepository
	history   *SessionService
	resolver  ReferenceResolver
	notifier  events.Notifier
	log       *logger.Logger
}

func NewAnalysisService(
	credits CreditChecker,
	analyzer ai.Analyzer,
	templates repository.TemplateRepository,
	history *SessionService,
	resolver ReferenceResolver,
	notifier events.Notifier,
	log *logger.Logger,
) *AnalysisService {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if notifier == nil {
		notifier = events.NewLogNotifier(log)
	}
	return &AnalysisService{
		credits:   credits,
		analyzer:  analyzer,
		templates: templates,
		history:   history,
		resolver:  resolver,
		notifier:  notifier,
		log:       log,
	}
}

// Send analyzes the current text and live attachments of ws.
//
// Local rejections (empty payload, busy session, insufficient credits) leave history untouched.
// Once dispatched, exactly two messages are appended: the user turn and an assistant turn that
// carries either the analysis or the failure. A failed analysis returns *AnalysisError together
// with the populated result and keeps the live attachments for a retry.
func (s *AnalysisService) Send(ctx context.Context, ws *Workspace, in SendInput) (SendResult, error) {
	text := strings.TrimSpace(in.Text)
	live := ws.Attachments().List()
	if text == "" && len(live) == 0 {
		return SendResult{}, lens_errors.NewValidationError("message", "enter a message or add an attachment")
	}
	if in.AccountID != "" && in.AccountID != ws.AccountID {
		return SendResult{}, lens_errors.ErrUnauthorized
	}

	if !ws.BeginAnalysis() {
		return SendResult{}, lens_errors.ErrAnalysisInProgress
	}
	defer ws.EndAnalysis()

	log := s.log.WithContext(ctx).With(zap.String("session_id", ws.SessionID))

	access, err := s.credits.CheckAccess(ctx, ws.AccountID)
	if err != nil {
		var creditErr *lens_errors.CreditError
		if !errors.As(err, &creditErr) {
			log.Warn("credit check failed", zap.Error(err))
		}
		return SendResult{}, err
	}
	if !access.Allowed {
		return SendResult{}, &lens_errors.CreditError{AccountID: ws.AccountID, Balance: access.Balance}
	}

	tmpl := s.resolveTemplate(ctx, in.TemplateID)

	userMsg := message.NewUserMessage(ws.SessionID, text, tmpl.ID, live)
	ws.Append(userMsg)
	s.history.persist(ctx, ws, userMsg)
	s.notify(ctx, ws, events.New(events.TypeAnalysisStarted, events.LevelInfo, "Analysis started").WithPayload(map[string]int{
		"attachments": len(live),
	}))

	resolved := s.resolveAttachments(ctx, ws, userMsg.Attachments)
	log.Info("dispatching analysis",
		zap.String("template_id", tmpl.ID),
		zap.Int("attachments", len(live)),
		zap.Int("resolved", len(resolved)))

	result, analyzeErr := s.analyze(ctx, ai.Request{Text: text, Attachments: resolved, Template: tmpl})
	if analyzeErr != nil {
		cause := analysisCause(analyzeErr)
		reply := message.NewAssistantMessage(ws.SessionID, "The analysis could not be completed: "+cause, tmpl.ID, true)
		ws.Append(reply)
		s.history.persist(ctx, ws, reply)
		log.Error("analysis failed", zap.Error(analyzeErr))
		s.notify(ctx, ws, events.New(events.TypeAnalysisFailed, events.LevelError, "Analysis failed: "+cause))
		return SendResult{UserMessage: userMsg, AssistantMessage: reply, Warning: access.Warning},
			&lens_errors.AnalysisError{Cause: cause, Err: analyzeErr}
	}

	reply := message.NewAssistantMessage(ws.SessionID, result.Text, tmpl.ID, false)
	ws.Append(reply)
	s.history.persist(ctx, ws, reply)

	ids := make([]string, len(live))
	for i, a := range live {
		ids[i] = a.ID
	}
	ws.Attachments().RemoveIDs(ids...)

	s.notify(ctx, ws, events.New(events.TypeAnalysisCompleted, events.LevelSuccess, "Analysis complete"))
	return SendResult{UserMessage: userMsg, AssistantMessage: reply, Warning: access.Warning}, nil
}

// analyze contains backend panics so the turn always completes with an assistant message.
func (s *AnalysisService) analyze(ctx context.Context, req ai.Request) (res ai.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis backend panic: %v", r)
		}
	}()
	if s.analyzer == nil {
		return ai.Result{}, lens_errors.ErrServiceUnavailable
	}
	return s.analyzer.Analyze(ctx, req)
}

func (s *AnalysisService) resolveTemplate(ctx context.Context, id string) template.Template {
	if id == "" || s.templates == nil {
		return template.Default()
	}
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		s.log.WithContext(ctx).Warn("template lookup failed, using default", zap.String("template_id", id), zap.Error(err))
		return template.Default()
	}
	if t.SystemPrompt == "" {
		t.SystemPrompt = template.Default().SystemPrompt
	}
	return t
}

// resolveAttachments maps each attachment to the references the backend needs. Files that never
// finished uploading are skipped with a warning; url attachments keep only their successful
// screenshots.
func (s *AnalysisService) resolveAttachments(ctx context.Context, ws *Workspace, atts []attachment.Attachment) []ai.ResolvedAttachment {
	out := make([]ai.ResolvedAttachment, 0, len(atts))
	for _, a := range atts {
		switch {
		case a.Kind == attachment.KindURL && a.URL != nil:
			r := ai.ResolvedAttachment{ID: a.ID, Kind: string(a.Kind), Name: a.DisplayName, URL: a.URL.Normalized}
			for _, v := range attachment.Viewports {
				c, ok := a.URL.Captures[v]
				if ok && c.Succeeded && c.ImageReference != "" {
					r.Screenshots = append(r.Screenshots, ai.Screenshot{Viewport: string(v), URL: c.ImageReference})
				}
			}
			out = append(out, r)
		case a.IsFile():
			if !a.Usable() || a.RemoteReference == "" {
				s.notify(ctx, ws, events.New(events.TypeAttachmentFailed, events.LevelWarning,
					a.DisplayName+" was not uploaded and is left out of this analysis").ForAttachment(a.ID))
				continue
			}
			ref := a.RemoteReference
			if s.resolver != nil {
				if u := s.resolver.PublicURL(ref); u != "" {
					ref = u
				}
			}
			r := ai.ResolvedAttachment{ID: a.ID, Kind: string(a.Kind), Name: a.DisplayName, URL: ref}
			if a.File != nil {
				r.ContentType = a.File.ContentType
			}
			out = append(out, r)
		}
	}
	return out
}

func analysisCause(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "the analysis service did not respond in time"
	case errors.Is(err, lens_errors.ErrServiceUnavailable):
		return "the analysis service is not available"
	default:
		return err.Error()
	}
}

func (s *AnalysisService) notify(ctx context.Context, ws *Workspace, n events.Notification) {
	s.notifier.Notify(ctx, n.ForSession(ws.AccountID, ws.SessionID))
}
