package ebus

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// Browser opens page sessions. The Chrome implementation launches one
// headless browser per session.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is one browser tab bound to the context it was opened with.
// Click and WaitVisible return an error wrapping context.DeadlineExceeded
// when the selector does not show up within timeout.
type Session interface {
	Navigate(url string) error
	Click(selector string, timeout time.Duration) error
	WaitVisible(selector string, timeout time.Duration) error
	HTML() (string, error)
	Close() error
}

// BrowserOptions configures the Chrome process.
type BrowserOptions struct {
	ExecPath  string
	Headless  bool
	UserAgent string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromeBrowser drives a local Chrome through chromedp.
type ChromeBrowser struct {
	opts []chromedp.ExecAllocatorOption
}

func NewChromeBrowser(o BrowserOptions) *ChromeBrowser {
	ua := o.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(ua),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}

	return &ChromeBrowser{opts: opts}
}

func (b *ChromeBrowser) NewSession(ctx context.Context) (Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug().Str("source", "chromedp").Msgf(format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Debug().Str("source", "chromedp").Msgf(format, args...)
		}),
	)

	// The first Run starts the browser; it must not carry a timeout or the
	// browser would be torn down when that timeout fires.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromeSession{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *chromeSession) Navigate(url string) error {
	return chromedp.Run(s.ctx, chromedp.Navigate(url))
}

func (s *chromeSession) Click(selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *chromeSession) WaitVisible(selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *chromeSession) HTML() (string, error) {
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}
