package services

import (
	"bytes"
	"context"
	"path"
	"strings"

	"designlens/internal/storage"
	lens_errors "designlens/pkg/errors"
	"designlens/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// FileHandle carries the raw bytes of a user file. Only the task that uploads it holds it.
type FileHandle struct {
	Name        string
	ContentType string
	Data        []byte
}

// Sniff fills ContentType from the bytes when the client did not send a useful one.
func (f *FileHandle) Sniff() *mimetype.MIME {
	detected := mimetype.Detect(f.Data)
	if f.ContentType == "" || f.ContentType == "application/octet-stream" {
		f.ContentType = detected.String()
	}
	return detected
}

// IsImage reports whether the detected or declared type is an image.
func (f FileHandle) IsImage() bool {
	if strings.HasPrefix(f.ContentType, "image/") {
		return true
	}
	return strings.HasPrefix(mimetype.Detect(f.Data).String(), "image/")
}

type UploadService struct {
	store storage.ObjectStore
	log   *logger.Logger
}

func NewUploadService(store storage.ObjectStore, log *logger.Logger) *UploadService {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &UploadService{store: store, log: log}
}

// Upload persists the file at a path derived from attachmentID, so re-uploading the same id
// overwrites the previous object. It returns the object path as the remote reference.
// Failures are returned as *StorageError and never retried.
func (s *UploadService) Upload(ctx context.Context, file FileHandle, attachmentID string) (string, error) {
	if attachmentID == "" || len(file.Data) == 0 {
		return "", lens_errors.NewValidationError("file", "empty upload")
	}
	key := buildObjectKey(attachmentID, file)
	if s.store == nil {
		return "", &lens_errors.StorageError{Path: key, Err: lens_errors.ErrServiceUnavailable}
	}
	if err := s.store.Put(ctx, key, bytes.NewReader(file.Data), int64(len(file.Data)), file.ContentType); err != nil {
		s.log.WithContext(ctx).Warn("upload failed", zap.String("attachment_id", attachmentID), zap.String("path", key), zap.Error(err))
		return "", &lens_errors.StorageError{Path: key, Err: err}
	}
	s.log.WithContext(ctx).Info("upload stored", zap.String("attachment_id", attachmentID), zap.String("path", key), zap.Int("bytes", len(file.Data)))
	return key, nil
}

// PublicURL resolves a remote reference to a fetchable URL.
func (s *UploadService) PublicURL(ref string) string {
	if s.store == nil {
		return ""
	}
	return s.store.PublicURL(ref)
}

func buildObjectKey(attachmentID string, file FileHandle) string {
	ext := strings.ToLower(path.Ext(file.Name))
	if ext == "" {
		ext = mimetype.Detect(file.Data).Extension()
	}
	return "uploads/" + attachmentID + ext
}
