package scrape

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/rfpdesk/internal/extract"
	"github.com/sells-group/rfpdesk/internal/model"
)

// DocumentExtractor turns a linked file (PDF, DOCX, ...) into text.
type DocumentExtractor interface {
	Extract(ctx context.Context, filename, mimeType string, data []byte) (*extract.Result, error)
}

// LocalOption configures a LocalScraper.
type LocalOption func(*LocalScraper)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) LocalOption {
	return func(l *LocalScraper) {
		if ua != "" {
			l.userAgent = ua
		}
	}
}

// WithMaxBodyBytes caps how much of a response is read.
func WithMaxBodyBytes(n int64) LocalOption {
	return func(l *LocalScraper) {
		if n > 0 {
			l.maxBody = n
		}
	}
}

// WithTimeout bounds a whole fetch.
func WithTimeout(d time.Duration) LocalOption {
	return func(l *LocalScraper) {
		if d > 0 {
			l.client.Timeout = d
		}
	}
}

// WithDocuments lets the scraper handle links that point at documents
// instead of HTML pages.
func WithDocuments(docs DocumentExtractor) LocalOption {
	return func(l *LocalScraper) { l.docs = docs }
}

// LocalScraper fetches pages over plain net/http and converts them to
// markdown. It gives up on blocked or script-only pages so the chain can fall
// through to a browser or reader service.
type LocalScraper struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	docs      DocumentExtractor
}

// NewLocalScraper creates a LocalScraper with sensible defaults.
func NewLocalScraper(opts ...LocalOption) *LocalScraper {
	l := &LocalScraper{
		client: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: "Mozilla/5.0 (compatible; rfpdesk/1.0)",
		maxBody:   2 << 20,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LocalScraper) Name() model.FetchMethod { return model.FetchLocalHTTP }
func (l *LocalScraper) Supports(_ string) bool  { return true }

// Scrape fetches a URL, rejects blocked pages and renders the content.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBody))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	mediaType, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	finalURL := resp.Request.URL.String()

	if mediaType != "" && !isHTML(mediaType) && mediaType != "text/plain" {
		return l.scrapeDocument(ctx, finalURL, mediaType, body)
	}

	decoded := decodeCharset(body, params["charset"])

	var title, content string
	if mediaType == "text/plain" {
		content = strings.TrimSpace(decoded)
	} else {
		title, content, err = renderHTML(finalURL, decoded)
		if err != nil {
			return nil, err
		}
	}

	if len([]rune(content)) < minContentChars {
		return nil, eris.New("local_http: empty page")
	}

	return &Result{URL: finalURL, Title: title, Content: content, Method: model.FetchLocalHTTP}, nil
}

func (l *LocalScraper) scrapeDocument(ctx context.Context, finalURL, mediaType string, body []byte) (*Result, error) {
	if l.docs == nil {
		return nil, eris.Errorf("local_http: unsupported content type %s", mediaType)
	}

	name := "download"
	if u, err := url.Parse(finalURL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}

	res, err := l.docs.Extract(ctx, name, mediaType, body)
	if err != nil {
		return nil, eris.Wrapf(err, "local_http: extract %s", mediaType)
	}
	zap.L().Debug("local_http: fetched linked document",
		zap.String("url", finalURL),
		zap.String("format", string(res.Format)),
		zap.Int("words", res.WordCount),
	)
	return &Result{URL: finalURL, Title: name, Content: res.Text, Method: model.FetchLocalHTTP}, nil
}

func isHTML(mediaType string) bool {
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([a-z0-9_\-:.]+)`)

// decodeCharset converts body to UTF-8 using the header charset, or the
// page's own meta declaration when the header has none.
func decodeCharset(body []byte, declared string) string {
	if declared == "" {
		head := body
		if len(head) > 2048 {
			head = head[:2048]
		}
		if m := metaCharsetRe.FindSubmatch(head); m != nil {
			declared = string(m[1])
		}
	}
	if declared == "" || strings.EqualFold(declared, "utf-8") || strings.EqualFold(declared, "utf8") {
		return string(body)
	}

	enc, err := htmlindex.Get(declared)
	if err != nil {
		zap.L().Debug("local_http: unknown charset", zap.String("charset", declared))
		return string(body)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(out)
}
