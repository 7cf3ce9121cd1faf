package capture

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"designlens/internal/domain/attachment"
	"designlens/internal/storage"
	lens_errors "designlens/pkg/errors"
	"designlens/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 4
)

// SetResult holds per-viewport results aligned by index with the requested URLs.
// A variant that was not requested is nil.
type SetResult struct {
	Desktop []attachment.CaptureResult
	Mobile  []attachment.CaptureResult
}

// ForURL collects the results of the i-th URL keyed by viewport.
func (r SetResult) ForURL(i int) map[attachment.Viewport]attachment.CaptureResult {
	out := make(map[attachment.Viewport]attachment.CaptureResult, 2)
	if i < len(r.Desktop) {
		out[attachment.ViewportDesktop] = r.Desktop[i]
	}
	if i < len(r.Mobile) {
		out[attachment.ViewportMobile] = r.Mobile[i]
	}
	return out
}

type Options struct {
	Timeout     time.Duration
	Concurrency int
}

type Service struct {
	provider Provider
	store    storage.ObjectStore
	timeout  time.Duration
	limit    int
	log      *logger.Logger
}

// NewService wires a provider to optional object storage for the captured images.
// A nil provider means the placeholder generator.
func NewService(provider Provider, store storage.ObjectStore, opts Options, log *logger.Logger) *Service {
	if provider == nil {
		provider = NewPlaceholderProvider()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Service{provider: provider, store: store, timeout: opts.Timeout, limit: opts.Concurrency, log: log}
}

func (s *Service) ProviderName() string { return s.provider.Name() }

// CaptureSet captures every requested viewport of every URL. Each capture runs on its own
// timeout and fails on its own; the call returns once all of them have resolved and never
// fails as a whole.
func (s *Service) CaptureSet(ctx context.Context, urls []string, wantDesktop, wantMobile bool) SetResult {
	var out SetResult
	if wantDesktop {
		out.Desktop = make([]attachment.CaptureResult, len(urls))
	}
	if wantMobile {
		out.Mobile = make([]attachment.CaptureResult, len(urls))
	}

	// Goroutines never return an error so one failure cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.limit)
	for i, u := range urls {
		if wantDesktop {
			g.Go(func() error {
				out.Desktop[i] = s.captureOne(ctx, u, DesktopSpec)
				return nil
			})
		}
		if wantMobile {
			g.Go(func() error {
				out.Mobile[i] = s.captureOne(ctx, u, MobileSpec)
				return nil
			})
		}
	}
	_ = g.Wait()
	return out
}

func (s *Service) captureOne(parent context.Context, url string, spec ViewportSpec) (res attachment.CaptureResult) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	res.CapturedAt = time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			res = failed(&lens_errors.CaptureError{URL: url, Viewport: string(spec.Name), Err: fmt.Errorf("provider panic: %v", r)})
		}
		if !res.Succeeded {
			s.log.WithContext(parent).Warn("capture failed",
				zap.String("url", url), zap.String("viewport", string(spec.Name)), zap.String("error", res.Error))
		}
	}()

	shot, err := s.provider.Capture(ctx, url, spec)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return failed(&lens_errors.CaptureError{
			URL:      url,
			Viewport: string(spec.Name),
			Timeout:  errors.Is(err, context.DeadlineExceeded),
			Err:      err,
		})
	}

	ref, err := s.persist(ctx, url, spec, shot)
	if err != nil {
		return failed(&lens_errors.CaptureError{URL: url, Viewport: string(spec.Name), Err: err})
	}
	return attachment.CaptureResult{
		Succeeded:      true,
		ImageReference: ref,
		Width:          shot.Width,
		Height:         shot.Height,
		CapturedAt:     time.Now().UTC(),
	}
}

func (s *Service) persist(ctx context.Context, url string, spec ViewportSpec, shot Shot) (string, error) {
	if len(shot.Image) == 0 {
		if shot.ImageURL == "" {
			return "", errors.New("provider returned no image")
		}
		return shot.ImageURL, nil
	}
	contentType := shot.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	if s.store == nil {
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(shot.Image), nil
	}
	key := ScreenshotKey(url, spec.Name)
	if err := s.store.Put(ctx, key, bytes.NewReader(shot.Image), int64(len(shot.Image)), contentType); err != nil {
		return "", &lens_errors.StorageError{Path: key, Err: err}
	}
	if public := s.store.PublicURL(key); public != "" {
		return public, nil
	}
	return key, nil
}

// ScreenshotKey is the storage path of the latest capture of url in viewport v.
func ScreenshotKey(url string, v attachment.Viewport) string {
	sum := sha1.Sum([]byte(url))
	return "screenshots/" + hex.EncodeToString(sum[:]) + "/" + string(v) + ".png"
}

func failed(err error) attachment.CaptureResult {
	return attachment.CaptureResult{Succeeded: false, Error: err.Error(), CapturedAt: time.Now().UTC()}
}
