package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/rfpdesk/internal/extract"
	"github.com/sells-group/rfpdesk/internal/model"
)

const rfpPage = `<html><head><title>Bid Opportunities | Springfield</title></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<main>
<h1>RFP 2026-14: Network Refresh</h1>
<p>The City of Springfield requests proposals for replacing core and access switches across twelve sites.</p>
<p>Download the <a href="/files/rfp-2026-14.pdf">solicitation</a>. Proposals are due March 1, 2026.</p>
</main>
<footer>Copyright City of Springfield</footer>
<script>var tracking = true;</script>
</body></html>`

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestLocalScraper_CleanHTML(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(rfpPage))
	})

	res, err := NewLocalScraper(WithUserAgent("test-agent")).Scrape(context.Background(), srv.URL+"/bids")

	require.NoError(t, err)
	assert.Equal(t, model.FetchLocalHTTP, res.Method)
	assert.Equal(t, "Bid Opportunities | Springfield", res.Title)
	assert.Contains(t, res.Content, "# RFP 2026-14: Network Refresh")
	assert.Contains(t, res.Content, "twelve sites")
	assert.Contains(t, res.Content, "/files/rfp-2026-14.pdf)")
	assert.NotContains(t, res.Content, "tracking")
	assert.NotContains(t, res.Content, "Copyright")
	assert.NotContains(t, res.Content, "About")
}

func TestLocalScraper_Cloudflare(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cf-ray", "abc")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<html>Attention Required</html>"))
	})

	_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked (cloudflare)")
}

func TestLocalScraper_Captcha(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>" + strings.Repeat("text ", 50) + "hCaptcha</body></html>"))
	})

	_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "captcha")
}

func TestLocalScraper_EmptyBody(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>Loading</p></body></html>"))
	})

	_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty page")
}

func TestLocalScraper_HTTP404(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestLocalScraper_Windows1252(t *testing.T) {
	page := "<html><head><meta charset=\"windows-1252\"><title>Café bids</title></head><body><p>" +
		strings.Repeat("Proposals for the café renovation are welcome. ", 5) + "</p></body></html>"
	encoded, err := charmap.Windows1252.NewEncoder().String(page)
	require.NoError(t, err)

	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(encoded))
	})

	res, err := NewLocalScraper().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Café bids", res.Title)
	assert.Contains(t, res.Content, "café renovation")
}

func TestLocalScraper_LinkedDocument(t *testing.T) {
	body := strings.Repeat("Scope of work: install fiber between campuses. ", 5)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})

	res, err := NewLocalScraper().Scrape(context.Background(), srv.URL+"/rfp.txt")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(body), res.Content)

	docSrv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		_, _ = w.Write([]byte{0x00, 0x01, 0x02, 0x03, 0x04})
	})

	_, err = NewLocalScraper().Scrape(context.Background(), docSrv.URL+"/rfp.docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")

	_, err = NewLocalScraper(WithDocuments(extract.New())).Scrape(context.Background(), docSrv.URL+"/rfp.docx")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)
}

type stubDocs struct {
	gotName string
	gotMime string
}

func (s *stubDocs) Extract(_ context.Context, filename, mimeType string, _ []byte) (*extract.Result, error) {
	s.gotName, s.gotMime = filename, mimeType
	return &extract.Result{Text: "Section 1. Scope", Format: extract.FormatPDF, WordCount: 3}, nil
}

func TestLocalScraper_LinkedPDF(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 ..."))
	})
	docs := &stubDocs{}

	res, err := NewLocalScraper(WithDocuments(docs)).Scrape(context.Background(), srv.URL+"/files/rfp-2026-14.pdf")

	require.NoError(t, err)
	assert.Equal(t, "rfp-2026-14.pdf", docs.gotName)
	assert.Equal(t, "application/pdf", docs.gotMime)
	assert.Equal(t, "rfp-2026-14.pdf", res.Title)
	assert.Equal(t, "Section 1. Scope", res.Content)
}

func TestLocalScraper_MaxBody(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 5000)))
	})

	res, err := NewLocalScraper(WithMaxBodyBytes(200)).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, res.Content, 200)
}

func TestDecodeCharset_UnknownFallsBack(t *testing.T) {
	assert.Equal(t, "plain", decodeCharset([]byte("plain"), "x-made-up"))
	assert.Equal(t, "plain", decodeCharset([]byte("plain"), ""))
}
