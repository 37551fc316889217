package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
)

func (x *Extractor) extractPDF(ctx context.Context, data []byte) (*Result, error) {
	text, pages, parseErr := readPDF(data)
	if parseErr == nil && strings.TrimSpace(text) != "" {
		return &Result{Text: text, Format: FormatPDF, PageCount: pages}, nil
	}

	if x.ocr == nil {
		if parseErr != nil {
			return nil, wrapParse(parseErr, FormatPDF)
		}
		return nil, model.NewValidationError("PDF has no text layer and OCR is disabled")
	}

	zap.L().Info("extract: falling back to OCR", zap.Int("pages", pages), zap.Bool("parse_failed", parseErr != nil))
	ocrText, err := x.ocr.ExtractText(ctx, data)
	if err != nil {
		return nil, eris.Wrapf(model.ErrCollaborator, "extract: ocr: %v", err)
	}
	if strings.TrimSpace(ocrText) == "" {
		return nil, model.NewValidationError("no text could be recovered from the PDF")
	}
	return &Result{Text: ocrText, Format: FormatPDF, PageCount: pages, OCR: true}, nil
}

// readPDF returns the text of every page joined by blank lines. The parser
// panics on some malformed inputs; those surface as errors.
func readPDF(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	pages = r.NumPage()
	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, perr := p.GetPlainText(nil)
		if perr != nil {
			zap.L().Debug("extract: skip unreadable pdf page", zap.Int("page", i), zap.Error(perr))
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n"), pages, nil
}
