package capture

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"menucal/internal/model"
)

// Default viewport for the dates header page. The page lays itself out to
// fill the viewport, so only the aspect ratio really matters.
const (
	DefaultWidth      = 1200
	DefaultHeight     = 240
	DefaultTimeoutSec = 30
)

// Options defines parameters for a Chromium-based screenshot capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/header?start=2024-01-15&week=1".
	URL string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation.
	Timeout time.Duration
}

// CapturePNG launches a headless Chromium via chromedp, navigates to
// opts.URL, waits until the page marks itself `[data-ready="true"]`, and
// returns a full-page PNG screenshot.
func CapturePNG(parentCtx context.Context, opts Options) ([]byte, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("capture: URL is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Web fonts may still be painting.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("capture: empty screenshot")
	}
	return png, nil
}

// HeaderRenderer renders the dates header for one template week through
// the app's own /header page.
type HeaderRenderer struct {
	BaseURL string
	Width   int
	Height  int
	Timeout time.Duration
}

// HeaderURL builds the /header page address for a week starting at start.
func HeaderURL(baseURL string, start time.Time, week int) string {
	q := url.Values{}
	q.Set("start", start.Format(model.DateLayout))
	q.Set("week", strconv.Itoa(week))
	return strings.TrimRight(baseURL, "/") + "/header?" + q.Encode()
}

func (r *HeaderRenderer) RenderHeader(ctx context.Context, start time.Time, week int) ([]byte, error) {
	return CapturePNG(ctx, Options{
		URL:     HeaderURL(r.BaseURL, start, week),
		Width:   r.Width,
		Height:  r.Height,
		Timeout: r.Timeout,
	})
}
