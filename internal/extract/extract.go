// Package extract converts uploaded files into plain text plus structural
// metadata. The format is sniffed from magic bytes first and only then
// from the declared mime type or extension.
package extract

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/ocr"
)

// Format identifies how a file was parsed.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// Result is the extracted text and its metadata.
type Result struct {
	Text       string
	Format     Format
	PageCount  int
	SheetCount int
	WordCount  int
	OCR        bool
}

// Extractor dispatches files to format-specific parsers.
type Extractor struct {
	ocr      ocr.Extractor
	maxBytes int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOCR enables the fallback for PDFs without a text layer.
func WithOCR(e ocr.Extractor) Option {
	return func(x *Extractor) { x.ocr = e }
}

// WithMaxBytes rejects inputs larger than n bytes. Zero means unlimited.
func WithMaxBytes(n int64) Option {
	return func(x *Extractor) { x.maxBytes = n }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	x := &Extractor{}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Extract parses data according to its sniffed format.
func (x *Extractor) Extract(ctx context.Context, filename, mimeType string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, model.NewValidationError("file is empty")
	}
	if x.maxBytes > 0 && int64(len(data)) > x.maxBytes {
		return nil, model.NewValidationError("file exceeds the %d byte upload limit", x.maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	var (
		res *Result
		err error
	)
	switch {
	case isPDF(data):
		res, err = x.extractPDF(ctx, data)
	case isZip(data):
		res, err = extractOpenXML(data)
	case hasUTF16BOM(data):
		res, err = extractPlain(data)
	case looksLikeHTML(data) || mt == "text/html" || ext == ".html" || ext == ".htm":
		res, err = extractHTML(data)
	case isProbablyText(data) || strings.HasPrefix(mt, "text/") || textExtensions[ext]:
		res, err = extractPlain(data)
	case mt == "application/pdf" || ext == ".pdf":
		return nil, model.NewValidationError("file claims to be a PDF but has no %%PDF header")
	case ext == ".docx" || ext == ".xlsx":
		return nil, model.NewValidationError("file claims to be %s but is not a valid zip container", ext)
	default:
		return nil, model.NewValidationError("unsupported file type %q (%s)", ext, mimeType)
	}
	if err != nil {
		return nil, err
	}

	res.Text = normalize(res.Text)
	res.WordCount = len(strings.Fields(res.Text))
	zap.L().Debug("extract: parsed file",
		zap.String("filename", filename),
		zap.String("format", string(res.Format)),
		zap.Int("chars", len(res.Text)),
		zap.Bool("ocr", res.OCR),
	)
	return res, nil
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true, ".tsv": true, ".json": true,
}

func isPDF(b []byte) bool {
	return bytes.HasPrefix(b, []byte("%PDF-"))
}

func isZip(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func hasUTF16BOM(b []byte) bool {
	return len(b) >= 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF))
}

func looksLikeHTML(b []byte) bool {
	s := strings.ToLower(strings.TrimSpace(string(b[:min(len(b), 2048)])))
	if strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html") {
		return true
	}
	return strings.Contains(s, "<html") && strings.Contains(s, "<body")
}

func isProbablyText(b []byte) bool {
	sample := b[:min(len(b), 4096)]
	good := 0
	for _, c := range sample {
		if c == 0x00 {
			return false
		}
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c <= 0x7E) || c >= 0x80 {
			good++
		}
	}
	return float64(good)/float64(len(sample)) > 0.9
}

var (
	trailingSpace = regexp.MustCompile(`[ \t\x{00a0}]+\n`)
	manyNewlines  = regexp.MustCompile(`\n{3,}`)
)

// normalize unifies line endings and collapses runs of blank lines while
// keeping paragraph breaks intact.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = manyNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func wrapParse(err error, format Format) error {
	return eris.Wrap(model.NewValidationError("could not read %s: %v", format, err), "extract: parse")
}
