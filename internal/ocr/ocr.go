// Package ocr recovers text from PDFs the native parser cannot read,
// typically scanned documents.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rfpdesk/internal/config"
)

// Extractor extracts text content from raw PDF bytes.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// NewExtractor creates an Extractor based on config. Provider "none" (or
// empty) returns a nil Extractor and no error.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "local":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires ocr.mistral_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
