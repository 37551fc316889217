package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/rfpdesk/internal/model"
)

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) ExtractText(_ context.Context, _ []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Scope of Work</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Replace </w:t></w:r><w:r><w:t>switches.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Site</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Ports</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
</w:body>
</w:document>`

func TestExtract_PlainText(t *testing.T) {
	x := New()
	res, err := x.Extract(context.Background(), "notes.txt", "text/plain", []byte("Hello  \r\nworld\r\n\r\n\r\n\r\nAgain"))
	require.NoError(t, err)
	assert.Equal(t, FormatText, res.Format)
	assert.Equal(t, "Hello\nworld\n\nAgain", res.Text)
	assert.Equal(t, 3, res.WordCount)
}

func TestExtract_UTF16WithBOM(t *testing.T) {
	// "Hi é" in UTF-16LE with BOM.
	data := []byte{0xFF, 0xFE, 'H', 0, 'i', 0, ' ', 0, 0xE9, 0}
	res, err := New().Extract(context.Background(), "a.txt", "", data)
	require.NoError(t, err)
	assert.Equal(t, FormatText, res.Format)
	assert.Equal(t, "Hi é", res.Text)
}

func TestExtract_HTML(t *testing.T) {
	html := `<!DOCTYPE html><html><body><h1>Budget</h1><script>alert(1)</script><p>Up to <b>$10k</b>.</p></body></html>`
	res, err := New().Extract(context.Background(), "page.html", "text/html; charset=utf-8", []byte(html))
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, res.Format)
	assert.Contains(t, res.Text, "# Budget")
	assert.Contains(t, res.Text, "**$10k**")
	assert.NotContains(t, res.Text, "alert")
}

func TestExtract_DOCX(t *testing.T) {
	data := buildZip(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   docxBody,
	})
	res, err := New().Extract(context.Background(), "rfp.docx", "", data)
	require.NoError(t, err)
	assert.Equal(t, FormatDOCX, res.Format)
	assert.Equal(t, "Scope of Work\nReplace switches.\nSite\tPorts", res.Text)
	assert.Equal(t, 7, res.WordCount)
}

func TestExtract_DOCXMissingDocument(t *testing.T) {
	data := buildZip(t, map[string]string{"word/styles.xml": `<styles/>`})
	_, err := New().Extract(context.Background(), "rfp.docx", "", data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestExtract_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	for _, name := range []string{"Pricing", "Sites"} {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, r := range [][]string{{"Item", "Cost"}, {"", ""}, {"Switch", "1200"}} {
			row := sheet.AddRow()
			for _, v := range r {
				row.AddCell().SetString(v)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	res, err := New().Extract(context.Background(), "book.xlsx", "", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, res.Format)
	assert.Equal(t, 2, res.SheetCount)
	assert.Equal(t, "## Pricing\nItem\tCost\nSwitch\t1200\n\n## Sites\nItem\tCost\nSwitch\t1200", res.Text)
}

func TestExtract_PDFFallsBackToOCR(t *testing.T) {
	o := &fakeOCR{text: "Scanned RFP text"}
	x := New(WithOCR(o))

	res, err := x.Extract(context.Background(), "scan.pdf", "application/pdf", []byte("%PDF-1.4 not really a pdf"))
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, res.Format)
	assert.True(t, res.OCR)
	assert.Equal(t, "Scanned RFP text", res.Text)
	assert.Equal(t, 1, o.calls)
}

func TestExtract_PDFWithoutOCR(t *testing.T) {
	_, err := New().Extract(context.Background(), "scan.pdf", "application/pdf", []byte("%PDF-1.4 not really a pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestExtract_OCRFailure(t *testing.T) {
	x := New(WithOCR(&fakeOCR{err: errors.New("ocr down")}))
	_, err := x.Extract(context.Background(), "scan.pdf", "", []byte("%PDF-1.4 broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr down")
	assert.True(t, errors.Is(err, model.ErrCollaborator))
	assert.False(t, errors.Is(err, model.ErrValidation))
}

func TestExtract_Rejections(t *testing.T) {
	binary := []byte{0x00, 0x01, 0x02, 0x03, 0xFA}
	tests := []struct {
		name     string
		filename string
		mime     string
		data     []byte
		opts     []Option
		wantMsg  string
	}{
		{"empty", "a.txt", "text/plain", nil, nil, "file is empty"},
		{"too large", "a.txt", "text/plain", []byte("0123456789"), []Option{WithMaxBytes(5)}, "upload limit"},
		{"fake pdf", "a.pdf", "application/pdf", binary, nil, "%PDF header"},
		{"fake docx", "a.docx", "", binary, nil, "not a valid zip"},
		{"unknown binary", "a.bin", "application/octet-stream", binary, nil, "unsupported file type"},
		{"plain zip", "a.zip", "", nil, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			if tt.name == "plain zip" {
				data = buildZip(t, map[string]string{"readme.txt": "hi"})
				tt.wantMsg = "not a Word or Excel document"
			}
			_, err := New(tt.opts...).Extract(context.Background(), tt.filename, tt.mime, data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrValidation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestHTMLConverter_ResolvesLinks(t *testing.T) {
	c := NewHTMLConverter("example.gov")
	out, err := c.Convert(`<p><a href="/rfp.pdf">RFP</a></p>`)
	require.NoError(t, err)
	assert.Equal(t, "[RFP](http://example.gov/rfp.pdf)", out)
}
