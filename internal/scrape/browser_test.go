package scrape

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rfpdesk/internal/model"
)

func TestBrowserScraper_Defaults(t *testing.T) {
	b := NewBrowserScraper("", "", 0)
	assert.Equal(t, model.FetchBrowser, b.Name())
	assert.True(t, b.Supports("https://county.gov"))
	assert.Equal(t, 30*time.Second, b.timeout)
}

func TestBrowserScraper_MissingChrome(t *testing.T) {
	b := NewBrowserScraper(filepath.Join(t.TempDir(), "no-chrome"), "", 2*time.Second)

	_, err := b.Scrape(context.Background(), "https://county.gov")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser:")
}

func TestRenderHTML_FallsBackToBody(t *testing.T) {
	title, md, err := renderHTML("https://county.gov/bids/",
		`<html><head><meta property="og:title" content="Open Bids"></head><body><p>See <a href="/doc.pdf">the packet</a>.</p></body></html>`)

	require.NoError(t, err)
	assert.Equal(t, "Open Bids", title)
	assert.Equal(t, "See [the packet](http://county.gov/doc.pdf).", md)
}
