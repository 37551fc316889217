package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText runs the poppler pdftotext binary over the PDF. It recovers
// text layers the pure-Go parser trips over; it does not recognize images.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText. An empty binPath resolves "pdftotext"
// from PATH.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText streams the PDF through stdin and splits the output on the
// form feeds pdftotext emits between pages.
func (p *PdfToText) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", "-enc", "UTF-8", "-", "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(pdf)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed: %s", strings.TrimSpace(stderr.String()))
	}

	return joinPages(strings.Split(stdout.String(), "\f")), nil
}

func joinPages(raw []string) string {
	pages := raw[:0]
	for _, p := range raw {
		if p = strings.TrimRight(p, " \t\r\n"); strings.TrimSpace(p) != "" {
			pages = append(pages, p)
		}
	}
	return strings.Join(pages, "\n\n")
}
