package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"designlens/internal/capture"
	"designlens/internal/domain/attachment"
	"designlens/internal/events"
	lens_errors "designlens/pkg/errors"
	"designlens/pkg/logger"

	"go.uber.org/zap"
)

// Capturer is the part of the capture service the coordinator needs.
type Capturer interface {
	CaptureSet(ctx context.Context, urls []string, wantDesktop, wantMobile bool) capture.SetResult
}

// Uploader is the part of the upload service the coordinator needs.
type Uploader interface {
	Upload(ctx context.Context, file FileHandle, attachmentID string) (string, error)
}

const MaxUploadBytes = 50 << 20

// AttachmentService moves user-submitted files and URLs through upload or capture in the
// background, updating the workspace's artifact store as each step resolves.
type AttachmentService struct {
	capturer Capturer
	uploader Uploader
	notifier events.Notifier
	log      *logger.Logger
}

func NewAttachmentService(capturer Capturer, uploader Uploader, notifier events.Notifier, log *logger.Logger) *AttachmentService {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if notifier == nil {
		notifier = events.NewLogNotifier(log)
	}
	return &AttachmentService{capturer: capturer, uploader: uploader, notifier: notifier, log: log}
}

// NormalizeURL turns user input such as "example.com" into an absolute https URL.
// It returns the normalized string and the host used as the display name.
func NormalizeURL(raw string) (string, string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", lens_errors.NewValidationError("url", "please enter a URL")
	}
	if strings.ContainsAny(s, " \t\n") {
		return "", "", lens_errors.NewValidationError("url", "URL must not contain spaces")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", "", lens_errors.NewValidationError("url", "please enter a valid URL")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", lens_errors.NewValidationError("url", "only http and https URLs are supported")
	}
	if u.User != nil {
		return "", "", lens_errors.NewValidationError("url", "URL must not contain credentials")
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || !validHost(host) {
		return "", "", lens_errors.NewValidationError("url", "please enter a valid URL")
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	}
	return u.String(), host, nil
}

func validHost(host string) bool {
	if host == "localhost" || net.ParseIP(host) != nil {
		return true
	}
	if !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !(r == '-' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 0x7f) {
				return false
			}
		}
	}
	return true
}

// AddURL validates raw, rejects duplicates of existing url attachments, inserts the
// attachment as processing and starts capturing both viewports in the background.
// On validation failure nothing is created.
func (s *AttachmentService) AddURL(ctx context.Context, ws *Workspace, raw string) (attachment.Attachment, *Task, error) {
	normalized, host, err := NormalizeURL(raw)
	if err != nil {
		return attachment.Attachment{}, nil, err
	}

	pending := attachment.NewURL(normalized, host)
	processing, err := pending.Transition(attachment.StatusProcessing)
	if err != nil {
		return attachment.Attachment{}, nil, err
	}
	added := ws.Attachments().AddUnless(processing, func(existing attachment.Attachment) bool {
		return existing.Kind == attachment.KindURL && existing.SourceHandle() == normalized
	})
	if !added {
		return attachment.Attachment{}, nil, lens_errors.NewValidationError("url", "this URL has already been added")
	}

	s.notify(ctx, ws, events.New(events.TypeAttachmentAdded, events.LevelInfo, "Capturing screenshots of "+host).ForAttachment(processing.ID))
	task := runTask(processing.ID, func() error {
		return s.captureURL(context.WithoutCancel(ctx), ws, processing.ID, normalized)
	})
	return processing, task, nil
}

// RetryCapture runs both captures again for an existing url attachment and replaces the
// previous results wholesale.
func (s *AttachmentService) RetryCapture(ctx context.Context, ws *Workspace, id string) (*Task, error) {
	current, ok := ws.Attachments().Get(id)
	if !ok {
		return nil, lens_errors.ErrNotFound
	}
	if current.Kind != attachment.KindURL || current.URL == nil {
		return nil, lens_errors.NewValidationError("attachment", "only URL attachments can be recaptured")
	}
	if !current.Status.Terminal() {
		return nil, lens_errors.NewValidationError("attachment", "capture is still running")
	}
	normalized := current.URL.Normalized
	return runTask(id, func() error {
		return s.captureURL(context.WithoutCancel(ctx), ws, id, normalized)
	}), nil
}

// captureURL never promotes a capture failure to an attachment error: the attachment
// always ends up uploaded so analysis can go ahead on whatever context exists.
func (s *AttachmentService) captureURL(ctx context.Context, ws *Workspace, id, normalized string) error {
	results, captureErr := s.safeCapture(ctx, normalized)

	found, err := ws.Attachments().UpdateByID(id, func(cur attachment.Attachment) (attachment.Attachment, error) {
		cur = cur.WithCaptures(results)
		return cur.MarkUploaded(normalized)
	})
	if err != nil {
		s.log.WithContext(ctx).Error("apply capture results", zap.String("attachment_id", id), zap.Error(err))
		return err
	}
	if !found {
		s.log.WithContext(ctx).Debug("attachment removed before capture finished", zap.String("attachment_id", id))
		return nil
	}

	failedViews := make([]string, 0, 2)
	for _, v := range attachment.Viewports {
		if !results[v].Succeeded {
			failedViews = append(failedViews, string(v))
		}
	}
	switch {
	case captureErr != nil:
		s.notify(ctx, ws, events.New(events.TypeCaptureFailed, events.LevelWarning,
			"Screenshots unavailable, the URL will still be analyzed: "+captureErr.Error()).ForAttachment(id))
	case len(failedViews) > 0:
		s.notify(ctx, ws, events.New(events.TypeCaptureFailed, events.LevelWarning,
			"Could not capture "+strings.Join(failedViews, " and ")+" screenshot").ForAttachment(id).WithPayload(results))
	default:
		s.notify(ctx, ws, events.New(events.TypeCaptureCompleted, events.LevelSuccess, "Screenshots captured").ForAttachment(id).WithPayload(results))
	}
	return nil
}

// safeCapture turns a panicking or missing capture backend into failed results for both viewports.
func (s *AttachmentService) safeCapture(ctx context.Context, normalized string) (results map[attachment.Viewport]attachment.CaptureResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("screenshot service unreachable: %v", r)
			results = failedCaptures(normalized, err)
		}
	}()
	if s.capturer == nil {
		err = errors.New("screenshot service is not configured")
		return failedCaptures(normalized, err), err
	}
	set := s.capturer.CaptureSet(ctx, []string{normalized}, true, true)
	results = set.ForURL(0)
	for _, v := range attachment.Viewports {
		if _, ok := results[v]; !ok {
			results[v] = attachment.CaptureResult{Succeeded: false, Error: "no result returned"}
		}
	}
	return results, nil
}

func failedCaptures(url string, err error) map[attachment.Viewport]attachment.CaptureResult {
	out := make(map[attachment.Viewport]attachment.CaptureResult, len(attachment.Viewports))
	for _, v := range attachment.Viewports {
		out[v] = attachment.CaptureResult{
			Succeeded: false,
			Error:     (&lens_errors.CaptureError{URL: url, Viewport: string(v), Err: err}).Error(),
		}
	}
	return out
}

// AddFile inserts the file as uploading and uploads it in the background. A failed upload
// moves the attachment to error with the reason; it is not retried.
func (s *AttachmentService) AddFile(ctx context.Context, ws *Workspace, file FileHandle) (attachment.Attachment, *Task, error) {
	file.Name = strings.TrimSpace(file.Name)
	if file.Name == "" {
		return attachment.Attachment{}, nil, lens_errors.NewValidationError("file", "file name is required")
	}
	if len(file.Data) == 0 {
		return attachment.Attachment{}, nil, lens_errors.NewValidationError("file", "file is empty")
	}
	if len(file.Data) > MaxUploadBytes {
		return attachment.Attachment{}, nil, lens_errors.NewValidationError("file", "file is larger than 50 MB")
	}
	file.Sniff()

	pending := attachment.NewFile(file.Name, file.ContentType, int64(len(file.Data)), file.IsImage())
	uploading, err := pending.Transition(attachment.StatusUploading)
	if err != nil {
		return attachment.Attachment{}, nil, err
	}
	if err := ws.Attachments().Add(uploading); err != nil {
		return attachment.Attachment{}, nil, err
	}
	s.notify(ctx, ws, events.New(events.TypeAttachmentAdded, events.LevelInfo, "Uploading "+file.Name).ForAttachment(uploading.ID))

	task := runTask(uploading.ID, func() error {
		return s.uploadFile(context.WithoutCancel(ctx), ws, uploading.ID, file)
	})
	return uploading, task, nil
}

func (s *AttachmentService) uploadFile(ctx context.Context, ws *Workspace, id string, file FileHandle) error {
	var (
		ref       string
		uploadErr error
	)
	if s.uploader == nil {
		uploadErr = &lens_errors.StorageError{Path: file.Name, Err: lens_errors.ErrServiceUnavailable}
	} else {
		ref, uploadErr = s.uploader.Upload(ctx, file, id)
	}

	found, err := ws.Attachments().UpdateByID(id, func(cur attachment.Attachment) (attachment.Attachment, error) {
		if uploadErr != nil {
			return cur.MarkFailed(uploadErr.Error())
		}
		return cur.MarkUploaded(ref)
	})
	if err != nil {
		s.log.WithContext(ctx).Error("apply upload result", zap.String("attachment_id", id), zap.Error(err))
		return err
	}
	if !found {
		return uploadErr
	}
	if uploadErr != nil {
		s.notify(ctx, ws, events.New(events.TypeAttachmentFailed, events.LevelError, "Upload of "+file.Name+" failed: "+uploadErr.Error()).ForAttachment(id))
		return uploadErr
	}
	s.notify(ctx, ws, events.New(events.TypeAttachmentUploaded, events.LevelSuccess, file.Name+" uploaded").ForAttachment(id))
	return nil
}

// Remove drops the attachment. A background task still running for it finishes normally
// and its final update is discarded.
func (s *AttachmentService) Remove(ctx context.Context, ws *Workspace, id string) error {
	if !ws.Attachments().RemoveByID(id) {
		return lens_errors.ErrNotFound
	}
	s.notify(ctx, ws, events.New(events.TypeAttachmentRemoved, events.LevelInfo, "Attachment removed").ForAttachment(id))
	return nil
}

func (s *AttachmentService) notify(ctx context.Context, ws *Workspace, n events.Notification) {
	s.notifier.Notify(ctx, n.ForSession(ws.AccountID, ws.SessionID))
}
