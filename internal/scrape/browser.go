package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rfpdesk/internal/model"
)

// BrowserScraper renders pages in headless Chrome for sites that only
// produce content with javascript.
type BrowserScraper struct {
	execPath  string
	userAgent string
	timeout   time.Duration
}

// NewBrowserScraper creates a BrowserScraper. An empty execPath lets
// chromedp locate Chrome on the PATH.
func NewBrowserScraper(execPath, userAgent string, timeout time.Duration) *BrowserScraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserScraper{execPath: execPath, userAgent: userAgent, timeout: timeout}
}

func (b *BrowserScraper) Name() model.FetchMethod { return model.FetchBrowser }
func (b *BrowserScraper) Supports(_ string) bool  { return true }

// Scrape launches a fresh browser, navigates with a hard timeout and renders
// the resulting DOM.
func (b *BrowserScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}
	if b.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	navCtx, cancelNav := context.WithTimeout(tabCtx, b.timeout)
	defer cancelNav()

	var title, html, location string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, eris.Errorf("browser: navigation timed out after %s", b.timeout)
		}
		return nil, eris.Wrap(err, "browser: navigate")
	}
	if location == "" {
		location = targetURL
	}

	pageTitle, content, err := renderHTML(location, html)
	if err != nil {
		return nil, err
	}
	if pageTitle != "" {
		title = pageTitle
	}
	if IsChallengeText(content) {
		return nil, eris.New("browser: page has no usable content")
	}

	return &Result{URL: location, Title: title, Content: content, Method: model.FetchBrowser}, nil
}
