// Package capture takes screenshots of web pages in desktop and mobile viewports.
package capture

import (
	"context"
	"fmt"
	"strings"

	"designlens/internal/config"
	"designlens/internal/domain/attachment"
)

// ViewportSpec describes how a page is rendered for one capture variant.
type ViewportSpec struct {
	Name        attachment.Viewport
	Width       int
	Height      int
	ScaleFactor float64
	Mobile      bool
	UserAgent   string
}

var (
	DesktopSpec = ViewportSpec{
		Name:        attachment.ViewportDesktop,
		Width:       1440,
		Height:      900,
		ScaleFactor: 1,
	}
	MobileSpec = ViewportSpec{
		Name:        attachment.ViewportMobile,
		Width:       390,
		Height:      844,
		ScaleFactor: 3,
		Mobile:      true,
		UserAgent:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	}
)

// Shot is what a provider hands back. Either Image holds encoded bytes to be stored,
// or ImageURL already points at a hosted image.
type Shot struct {
	Image       []byte
	ContentType string
	ImageURL    string
	Width       int
	Height      int
}

// Provider renders one URL in one viewport.
type Provider interface {
	Name() string
	Capture(ctx context.Context, url string, spec ViewportSpec) (Shot, error)
}

// NewProvider picks the configured backend. With nothing configured it falls back to the
// placeholder generator so the rest of the pipeline behaves the same way.
func NewProvider(ctx context.Context, cfg config.ScreenshotConfig) (Provider, error) {
	name := strings.ToLower(cfg.Provider)
	if name == "" {
		switch {
		case cfg.APIURL != "":
			name = "http"
		default:
			name = "placeholder"
		}
	}
	switch name {
	case "placeholder", "mock":
		return NewPlaceholderProvider(), nil
	case "http", "api":
		if cfg.APIURL == "" {
			return NewPlaceholderProvider(), nil
		}
		return NewHTTPProvider(cfg.APIURL, cfg.APIKey, nil), nil
	case "chrome", "chromedp":
		return NewChromeProvider(ctx, cfg.ChromePath)
	default:
		return nil, fmt.Errorf("unknown screenshot provider %q", cfg.Provider)
	}
}
