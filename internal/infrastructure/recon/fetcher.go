package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/chromedp/chromedp"

	"demand_service/internal/infrastructure/upstream"
)

// MaxPageBytes caps how much of a page is inspected for booking engines.
const MaxPageBytes = 2 << 20

// HTTPFetcher downloads raw page HTML without executing scripts.
type HTTPFetcher struct {
	client *upstream.Client
}

func NewHTTPFetcher(client *upstream.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.client.GetText(ctx, url, MaxPageBytes)
}

// ChromeFetcher renders the page in headless Chrome so that booking widgets
// injected by JavaScript show up in the DOM.
type ChromeFetcher struct {
	resolver *net.Resolver
	timeout  time.Duration
	settle   time.Duration
	fallback *HTTPFetcher
	guard    *upstream.Client
	logger   *slog.Logger
}

func NewChromeFetcher(timeout time.Duration, guard *upstream.Client, fallback *HTTPFetcher, logger *slog.Logger) *ChromeFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ChromeFetcher{
		resolver: net.DefaultResolver,
		timeout:  timeout,
		settle:   2 * time.Second,
		fallback: fallback,
		guard:    guard,
		logger:   logger.With("component", "recon-chrome"),
	}
}

func (f *ChromeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := checkURL(ctx, f.resolver, url); err != nil {
		return "", err
	}

	var html string
	err := f.guard.Guard(ctx, func(ctx context.Context) error {
		var err error
		html, err = f.render(ctx, url)
		return err
	})
	if err == nil {
		return html, nil
	}
	if f.fallback == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrForbiddenHost) {
		return "", err
	}
	f.logger.Warn("headless render failed, using plain fetch", "url", url, "error", err)
	return f.fallback.Fetch(ctx, url)
}

func (f *ChromeFetcher) render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, f.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(f.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	if len(html) > MaxPageBytes {
		html = html[:MaxPageBytes]
	}
	return html, nil
}
