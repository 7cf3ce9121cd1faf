package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxShotBytes = 20 << 20

// HTTPProvider calls a hosted screenshot API that answers a GET with the image bytes.
type HTTPProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPProvider(endpoint, apiKey string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPProvider{endpoint: endpoint, apiKey: apiKey, client: client}
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) Capture(ctx context.Context, target string, spec ViewportSpec) (Shot, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return Shot{}, fmt.Errorf("screenshot endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", target)
	q.Set("viewport_width", strconv.Itoa(spec.Width))
	q.Set("viewport_height", strconv.Itoa(spec.Height))
	q.Set("device_scale_factor", strconv.FormatFloat(spec.ScaleFactor, 'f', -1, 64))
	q.Set("format", "png")
	if spec.Mobile {
		q.Set("viewport_mobile", "true")
		q.Set("user_agent", spec.UserAgent)
	}
	if p.apiKey != "" {
		q.Set("access_key", p.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Shot{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Shot{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxShotBytes))
	if err != nil {
		return Shot{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Shot{}, fmt.Errorf("screenshot api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return Shot{}, fmt.Errorf("screenshot api returned %q instead of an image", contentType)
	}
	return Shot{
		Image:       body,
		ContentType: contentType,
		Width:       spec.Width,
		Height:      spec.Height,
	}, nil
}
