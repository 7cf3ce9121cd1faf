package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"designlens/internal/config"
)

// ObjectStore is the durable storage used for uploads and screenshots.
type ObjectStore interface {
	Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error
	PublicURL(path string) string
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "s3":
		return NewS3Store(ctx, S3Config{
			Region:     cfg.Region,
			Bucket:     cfg.Bucket,
			AccessKey:  cfg.AccessKey,
			SecretKey:  cfg.SecretKey,
			Endpoint:   cfg.Endpoint,
			PublicBase: cfg.PublicBase,
		})
	case "minio":
		return NewMinioStore(ctx, MinioConfig{
			Endpoint:   cfg.Endpoint,
			AccessKey:  cfg.AccessKey,
			SecretKey:  cfg.SecretKey,
			Bucket:     cfg.Bucket,
			Region:     cfg.Region,
			UseSSL:     cfg.UseSSL,
			PublicBase: cfg.PublicBase,
		})
	case "", "memory":
		return NewMemoryStore(cfg.PublicBase), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func joinPublic(base, path string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
