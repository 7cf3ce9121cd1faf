package capture

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// ChromeProvider drives one headless Chrome and opens a tab per capture.
type ChromeProvider struct {
	browserCtx context.Context
	cancel     context.CancelFunc
}

func NewChromeProvider(ctx context.Context, execPath string) (*ChromeProvider, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser now so the first capture does not pay for it.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromeProvider{
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

func (p *ChromeProvider) Name() string { return "chrome" }

func (p *ChromeProvider) Capture(ctx context.Context, url string, spec ViewportSpec) (Shot, error) {
	tabCtx, cancelTab := chromedp.NewContext(p.browserCtx)
	defer cancelTab()

	// Tie the tab to the caller's deadline.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	actions := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(int64(spec.Width), int64(spec.Height), spec.ScaleFactor, spec.Mobile),
	}
	if spec.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(spec.UserAgent))
	}
	if spec.Mobile {
		actions = append(actions, emulation.SetTouchEmulationEnabled(true))
	}
	var buf []byte
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.CaptureScreenshot(&buf),
	)

	if err := chromedp.Run(tabCtx, actions); err != nil {
		if ctx.Err() != nil {
			return Shot{}, ctx.Err()
		}
		return Shot{}, err
	}
	return Shot{
		Image:       buf,
		ContentType: "image/png",
		Width:       spec.Width,
		Height:      spec.Height,
	}, nil
}

// Close shuts the browser down.
func (p *ChromeProvider) Close() {
	p.cancel()
}
