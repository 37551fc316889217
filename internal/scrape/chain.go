package scrape

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/config"
	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/pkg/jina"
)

// Chain tries scrapers in order and returns the first success.
type Chain struct {
	scrapers []Scraper
}

// NewChain creates a Chain.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

// NewChainFromConfig builds the standard chain: plain HTTP, then headless
// Chrome when enabled, then Jina Reader when a key is configured.
func NewChainFromConfig(cfg *config.Config, docs DocumentExtractor) *Chain {
	timeout := time.Duration(cfg.Scrape.TimeoutSecs) * time.Second

	scrapers := []Scraper{NewLocalScraper(
		WithUserAgent(cfg.Scrape.UserAgent),
		WithMaxBodyBytes(cfg.Scrape.MaxBodyBytes),
		WithTimeout(timeout),
		WithDocuments(docs),
	)}

	if cfg.Scrape.BrowserEnabled {
		scrapers = append(scrapers, NewBrowserScraper(
			cfg.Scrape.ChromePath,
			cfg.Scrape.UserAgent,
			time.Duration(cfg.Scrape.BrowserTimeoutSecs)*time.Second,
		))
	}

	if cfg.Jina.Key != "" {
		client := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL), jina.WithTimeout(timeout+10*time.Second))
		scrapers = append(scrapers, NewJinaAdapter(client))
	}

	return NewChain(scrapers...)
}

// Names lists the configured scrapers in order.
func (c *Chain) Names() []model.FetchMethod {
	out := make([]model.FetchMethod, len(c.scrapers))
	for i, s := range c.scrapers {
		out[i] = s.Name()
	}
	return out
}

// Scrape validates the URL and runs it through the chain. When every scraper
// fails the error wraps model.ErrCollaborator.
func (c *Chain) Scrape(ctx context.Context, rawURL string) (*Result, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, s := range c.scrapers {
		if !s.Supports(target) {
			continue
		}

		start := time.Now()
		res, err := s.Scrape(ctx, target)
		if err == nil {
			zap.L().Info("scrape: fetched",
				zap.String("url", target),
				zap.String("method", string(s.Name())),
				zap.Int("chars", len(res.Content)),
				zap.Duration("elapsed", time.Since(start)),
			)
			return res, nil
		}

		zap.L().Debug("scrape: scraper failed, trying next",
			zap.String("url", target),
			zap.String("method", string(s.Name())),
			zap.Error(err),
		)
		errs = append(errs, err)

		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "scrape: cancelled")
		}
	}

	if len(errs) == 0 {
		return nil, eris.Wrapf(model.ErrCollaborator, "scrape: no scraper available for %s", target)
	}
	return nil, eris.Wrapf(model.ErrCollaborator, "scrape: all scrapers failed for %s: %v", target, errors.Join(errs...))
}

// NormalizeURL accepts absolute http(s) URLs and bare host paths, which are
// given an https scheme.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", model.NewValidationError("url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", model.NewValidationError("invalid url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", model.NewValidationError("url scheme must be http or https")
	}
	if u.Host == "" {
		return "", model.NewValidationError("url must include a host")
	}
	u.Fragment = ""
	return u.String(), nil
}
