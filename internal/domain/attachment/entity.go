package attachment

import (
	"time"

	lens_errors "designlens/pkg/errors"

	"github.com/google/uuid"
)

type Kind string

const (
	KindFile  Kind = "file"
	KindURL   Kind = "url"
	KindImage Kind = "image"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusUploaded   Status = "uploaded"
	StatusError      Status = "error"
)

// rank orders statuses: pending < uploading|processing < uploaded|error.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusUploading, StatusProcessing:
		return 1
	case StatusUploaded, StatusError:
		return 2
	default:
		return -1
	}
}

func (s Status) Valid() bool { return s.rank() >= 0 }

func (s Status) Terminal() bool { return s.rank() == 2 }

// CanTransition reports whether moving from s to next keeps the status monotonic.
// Re-applying the current status is allowed so an in-flight update can rewrite other fields.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

type Viewport string

const (
	ViewportDesktop Viewport = "desktop"
	ViewportMobile  Viewport = "mobile"
)

var Viewports = []Viewport{ViewportDesktop, ViewportMobile}

// CaptureResult is the outcome of one screenshot of one URL in one viewport.
type CaptureResult struct {
	Succeeded      bool      `json:"succeeded"`
	ImageReference string    `json:"image_reference,omitempty"`
	Error          string    `json:"error,omitempty"`
	Width          int       `json:"width,omitempty"`
	Height         int       `json:"height,omitempty"`
	CapturedAt     time.Time `json:"captured_at,omitempty"`
}

// FileSource describes a local file. The bytes travel separately in a FileHandle.
type FileSource struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// URLSource describes a submitted web page.
type URLSource struct {
	Normalized string                     `json:"normalized"`
	Captures   map[Viewport]CaptureResult `json:"captures"`
}

// Attachment is a tagged union on Kind: File is set for file and image, URL for url.
type Attachment struct {
	ID              string      `json:"id"`
	Kind            Kind        `json:"kind"`
	DisplayName     string      `json:"display_name"`
	Status          Status      `json:"status"`
	File            *FileSource `json:"file,omitempty"`
	URL             *URLSource  `json:"url,omitempty"`
	RemoteReference string      `json:"remote_reference,omitempty"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func NewFile(fileName, contentType string, size int64, image bool) Attachment {
	kind := KindFile
	if image {
		kind = KindImage
	}
	now := time.Now().UTC()
	return Attachment{
		ID:          uuid.NewString(),
		Kind:        kind,
		DisplayName: fileName,
		Status:      StatusPending,
		File:        &FileSource{FileName: fileName, ContentType: contentType, Size: size},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewURL builds a pending url attachment with both viewports marked not yet captured.
func NewURL(normalized, host string) Attachment {
	now := time.Now().UTC()
	return Attachment{
		ID:          uuid.NewString(),
		Kind:        KindURL,
		DisplayName: host,
		Status:      StatusPending,
		URL:         &URLSource{Normalized: normalized, Captures: PendingCaptures()},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func PendingCaptures() map[Viewport]CaptureResult {
	return map[Viewport]CaptureResult{
		ViewportDesktop: {Succeeded: false},
		ViewportMobile:  {Succeeded: false},
	}
}

// SourceHandle is the normalized URL for links and the original file name for files.
func (a Attachment) SourceHandle() string {
	switch {
	case a.URL != nil:
		return a.URL.Normalized
	case a.File != nil:
		return a.File.FileName
	default:
		return ""
	}
}

func (a Attachment) IsFile() bool { return a.Kind == KindFile || a.Kind == KindImage }

func (a Attachment) Usable() bool { return a.Status == StatusUploaded }

// Transition returns a copy of a moved to next, or ErrInvalidTransition.
func (a Attachment) Transition(next Status) (Attachment, error) {
	if !a.Status.CanTransition(next) {
		return a, lens_errors.ErrInvalidTransition
	}
	out := a.Clone()
	out.Status = next
	out.UpdatedAt = time.Now().UTC()
	return out, nil
}

// MarkUploaded moves a to uploaded with the given reference.
func (a Attachment) MarkUploaded(ref string) (Attachment, error) {
	out, err := a.Transition(StatusUploaded)
	if err != nil {
		return a, err
	}
	out.RemoteReference = ref
	out.ErrorMessage = ""
	return out, nil
}

// MarkFailed moves a to error with the given message.
func (a Attachment) MarkFailed(msg string) (Attachment, error) {
	out, err := a.Transition(StatusError)
	if err != nil {
		return a, err
	}
	out.ErrorMessage = msg
	out.RemoteReference = ""
	return out, nil
}

// WithCaptures replaces every capture result at once.
func (a Attachment) WithCaptures(captures map[Viewport]CaptureResult) Attachment {
	out := a.Clone()
	if out.URL == nil {
		return out
	}
	fresh := make(map[Viewport]CaptureResult, len(captures))
	for k, v := range captures {
		fresh[k] = v
	}
	out.URL.Captures = fresh
	out.UpdatedAt = time.Now().UTC()
	return out
}

// Clone deep-copies a so that the copy shares no mutable state with the original.
func (a Attachment) Clone() Attachment {
	out := a
	if a.File != nil {
		f := *a.File
		out.File = &f
	}
	if a.URL != nil {
		u := URLSource{Normalized: a.URL.Normalized}
		if a.URL.Captures != nil {
			u.Captures = make(map[Viewport]CaptureResult, len(a.URL.Captures))
			for k, v := range a.URL.Captures {
				u.Captures[k] = v
			}
		}
		out.URL = &u
	}
	return out
}

// CloneAll deep-copies a list.
func CloneAll(in []Attachment) []Attachment {
	if in == nil {
		return nil
	}
	out := make([]Attachment, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
