package lens_errors

import (
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotUploaded        = errors.New("file not uploaded")
	ErrAnalysisInProgress = errors.New("an analysis is already running for this session")
	ErrNoActiveSession    = errors.New("no active session")
)

// ValidationError is a local rejection of user input. It never reaches a remote collaborator.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// StorageError wraps a durable storage failure for a single attachment upload.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: put %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CaptureError is a soft per-viewport screenshot failure.
type CaptureError struct {
	URL      string
	Viewport string
	Timeout  bool
	Err      error
}

func (e *CaptureError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("capture %s (%s): timed out", e.URL, e.Viewport)
	}
	return fmt.Sprintf("capture %s (%s): %v", e.URL, e.Viewport, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// CreditError halts the pipeline before any remote spend.
type CreditError struct {
	AccountID string
	Balance   int64
	Required  int64
}

func (e *CreditError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, required %d", e.Balance, e.Required)
}

// AnalysisError carries the human-readable cause of a failed remote analysis.
type AnalysisError struct {
	Cause string
	Err   error
}

func (e *AnalysisError) Error() string {
	if e.Cause == "" && e.Err != nil {
		return "analysis failed: " + e.Err.Error()
	}
	return "analysis failed: " + e.Cause
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
