// Package scrape fetches web pages for a project's web sources through an
// ordered chain of fetchers.
package scrape

import (
	"context"

	"github.com/sells-group/rfpdesk/internal/model"
)

// minContentChars is the smallest page body treated as real content.
const minContentChars = 100

// Result is one fetched page rendered as markdown.
type Result struct {
	URL     string
	Title   string
	Content string
	Method  model.FetchMethod
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() model.FetchMethod
	Supports(url string) bool
}
