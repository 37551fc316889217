package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/rfpdesk/internal/model"
)

func extractOpenXML(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, wrapParse(err, "zip")
	}

	var hasWord, hasSheets bool
	for _, f := range zr.File {
		switch {
		case strings.HasPrefix(f.Name, "word/"):
			hasWord = true
		case strings.HasPrefix(f.Name, "xl/"):
			hasSheets = true
		}
	}

	switch {
	case hasWord:
		return extractDOCX(zr)
	case hasSheets:
		return extractXLSX(data)
	default:
		return nil, model.NewValidationError("zip archive is not a Word or Excel document")
	}
}

func extractDOCX(zr *zip.Reader) (*Result, error) {
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, model.NewValidationError("docx is missing word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, wrapParse(err, FormatDOCX)
	}
	defer rc.Close() //nolint:errcheck

	text, err := docxText(rc)
	if err != nil {
		return nil, wrapParse(err, FormatDOCX)
	}
	return &Result{Text: text, Format: FormatDOCX}, nil
}

// docxText walks WordprocessingML: paragraphs become lines, table cells are
// tab-separated and table rows end a line.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		cell   strings.Builder
		row    []string
		inCell bool
	)
	out := func() *strings.Builder {
		if inCell {
			return &cell
		}
		return &b
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &el); err != nil {
					return "", err
				}
				out().WriteString(s)
			case "tab":
				out().WriteByte('\t')
			case "br", "cr":
				out().WriteByte('\n')
			case "tc":
				inCell = true
				cell.Reset()
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "p":
				if inCell {
					cell.WriteByte(' ')
				} else {
					b.WriteByte('\n')
				}
			case "tc":
				inCell = false
				row = append(row, strings.Join(strings.Fields(cell.String()), " "))
			case "tr":
				b.WriteString(strings.Join(row, "\t"))
				b.WriteByte('\n')
				row = row[:0]
			}
		}
	}
	return b.String(), nil
}

func extractXLSX(data []byte) (*Result, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, wrapParse(err, FormatXLSX)
	}

	var b strings.Builder
	for _, sheet := range f.Sheets {
		b.WriteString("## ")
		b.WriteString(sheet.Name)
		b.WriteString("\n")
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := make([]string, len(row.Cells))
			empty := true
			for i, cell := range row.Cells {
				cells[i] = strings.TrimSpace(cell.String())
				if cells[i] != "" {
					empty = false
				}
			}
			if empty {
				continue
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return &Result{Text: b.String(), Format: FormatXLSX, SheetCount: len(f.Sheets)}, nil
}
