package capture

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"designlens/internal/domain/attachment"
	"designlens/internal/storage"
	"designlens/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedProvider struct {
	calls   atomic.Int32
	capture func(ctx context.Context, url string, spec ViewportSpec) (Shot, error)
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Capture(ctx context.Context, url string, spec ViewportSpec) (Shot, error) {
	p.calls.Add(1)
	return p.capture(ctx, url, spec)
}

func pngShot(spec ViewportSpec) Shot {
	return Shot{Image: []byte("\x89PNG fake"), ContentType: "image/png", Width: spec.Width, Height: spec.Height}
}

func testLogger(t *testing.T) *logger.Logger {
	return logger.Wrap(zaptest.NewLogger(t))
}

func TestCaptureSet_AlignsResultsWithURLs(t *testing.T) {
	store := storage.NewMemoryStore("https://cdn.test")
	svc := NewService(NewPlaceholderProvider(), store, Options{}, testLogger(t))

	urls := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	res := svc.CaptureSet(context.Background(), urls, true, true)

	require.Len(t, res.Desktop, 3)
	require.Len(t, res.Mobile, 3)
	for i, u := range urls {
		assert.True(t, res.Desktop[i].Succeeded)
		assert.True(t, res.Mobile[i].Succeeded)
		assert.Equal(t, "https://cdn.test/"+ScreenshotKey(u, attachment.ViewportDesktop), res.Desktop[i].ImageReference)
		assert.Equal(t, "https://cdn.test/"+ScreenshotKey(u, attachment.ViewportMobile), res.Mobile[i].ImageReference)
		assert.Equal(t, DesktopSpec.Width, res.Desktop[i].Width)
		assert.Equal(t, MobileSpec.Height, res.Mobile[i].Height)
	}
	assert.Equal(t, 6, store.Len())
}

func TestCaptureSet_OnlyRequestedVariants(t *testing.T) {
	p := &scriptedProvider{capture: func(ctx context.Context, url string, spec ViewportSpec) (Shot, error) {
		return pngShot(spec), nil
	}}
	svc := NewService(p, nil, Options{}, testLogger(t))

	res := svc.CaptureSet(context.Background(), []string{"https://example.com"}, false, true)
	assert.Nil(t, res.Desktop)
	require.Len(t, res.Mobile, 1)
	assert.True(t, strings.HasPrefix(res.Mobile[0].ImageReference, "data:image/png;base64,"))
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestCaptureSet_ViewportFailuresAreIndependent(t *testing.T) {
	p := &scriptedProvider{capture: func(ctx context.Context, url string, spec ViewportSpec) (Shot, error) {
		if spec.Name == attachment.ViewportDesktop {
			return Shot{}, errors.New("connection refused")
		}
		return pngShot(spec), nil
	}}
	svc := NewService(p, nil, Options{}, testLogger(t))

	res := svc.CaptureSet(context.Background(), []string{"https://example.com"}, true, true)
	assert.False(t, res.Desktop[0].Succeeded)
	assert.Contains(t, res.Desktop[0].Error, "connection refused")
	assert.True(t, res.Mobile[0].Succeeded)

	byViewport := res.ForURL(0)
	assert.Len(t, byViewport, 2)
	assert.False(t, byViewport[attachment.ViewportDesktop].Succeeded)
}

func TestCaptureSet_TimeoutIsSoftFailure(t *testing.T) {
	p := &scriptedProvider{capture: func(ctx context.Context, url string, spec ViewportSpec) (Shot, error) {
		if spec.Name == attachment.ViewportMobile {
			<-ctx.Done()
			return Shot{}, ctx.Err()
		}
		return pngShot(spec), nil
	}}
	svc := NewService(p, nil, Options{Timeout: 20 * time.Millisecond}, testLogger(t))

	start := time.Now()
	res := svc.CaptureSet(context.Background(), []string{"https://slow.example.com"}, true, true)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Desktop[0].Succeeded)
	assert.False(t, res.Mobile[0].Succeeded)
	assert.Contains(t, res.Mobile[0].Error, "timed out")
}

func TestCaptureSet_ProviderPanicIsContained(t *testing.T) {
	p := &scriptedProvider{capture: func(ctx context.Context, url string, spec ViewportSpec) (Shot, error) {
		panic("boom")
	}}
	svc := NewService(p, nil, Options{}, testLogger(t))

	res := svc.CaptureSet(context.Background(), []string{"https://example.com"}, true, true)
	assert.False(t, res.Desktop[0].Succeeded)
	assert.False(t, res.Mobile[0].Succeeded)
	assert.Contains(t, res.Desktop[0].Error, "boom")
}

func TestCaptureSet_StorageFailureIsSoft(t *testing.T) {
	store := storage.NewMemoryStore("")
	store.SetFailure(errors.New("quota exceeded"))
	svc := NewService(NewPlaceholderProvider(), store, Options{}, testLogger(t))

	res := svc.CaptureSet(context.Background(), []string{"https://example.com"}, true, false)
	assert.False(t, res.Desktop[0].Succeeded)
	assert.Contains(t, res.Desktop[0].Error, "quota exceeded")
}

func TestPlaceholderProvider_IsDeterministic(t *testing.T) {
	p := NewPlaceholderProvider()
	a, err := p.Capture(context.Background(), "https://example.com", DesktopSpec)
	require.NoError(t, err)
	b, err := p.Capture(context.Background(), "https://example.com", DesktopSpec)
	require.NoError(t, err)
	c, err := p.Capture(context.Background(), "https://example.com", MobileSpec)
	require.NoError(t, err)

	assert.Equal(t, a.Image, b.Image)
	assert.NotEqual(t, a.Image, c.Image)
	img, err := png.Decode(bytes.NewReader(a.Image))
	require.NoError(t, err)
	assert.Equal(t, DesktopSpec.Width/4, img.Bounds().Dx())
	assert.Equal(t, DesktopSpec.Width, a.Width)
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("access_key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("bad key"))
			return
		}
		assert.Equal(t, "https://example.com", q.Get("url"))
		assert.Equal(t, "390", q.Get("viewport_width"))
		assert.Equal(t, "true", q.Get("viewport_mobile"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	shot, err := NewHTTPProvider(srv.URL, "secret", srv.Client()).Capture(context.Background(), "https://example.com", MobileSpec)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), shot.Image)
	assert.Equal(t, MobileSpec.Width, shot.Width)

	_, err = NewHTTPProvider(srv.URL, "wrong", srv.Client()).Capture(context.Background(), "https://example.com", MobileSpec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
