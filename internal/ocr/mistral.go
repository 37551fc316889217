package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"

	// maxErrorBody caps how much of a failed response ends up in the error.
	maxErrorBody = 512
)

// MistralOCR sends scanned RFP documents to the Mistral OCR API and returns
// the recognized pages as markdown.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// MistralOption customizes a MistralOCR.
type MistralOption func(*MistralOCR)

// WithEndpoint overrides the OCR endpoint URL.
func WithEndpoint(u string) MistralOption {
	return func(m *MistralOCR) { m.endpoint = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) MistralOption {
	return func(m *MistralOCR) { m.client = c }
}

// NewMistralOCR creates a MistralOCR. An empty model selects the latest OCR model.
func NewMistralOCR(apiKey, model string, opts ...MistralOption) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	m := &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

type mistralRequest struct {
	Model    string          `json:"model"`
	Document mistralDocument `json:"document"`
}

type mistralDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type mistralResponse struct {
	Pages []mistralPage `json:"pages"`
}

type mistralPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractText uploads the PDF inline as a data URL. Pages come back in index
// order; blank pages are dropped.
func (m *MistralOCR) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	body, err := json.Marshal(mistralRequest{
		Model: m.model,
		Document: mistralDocument{
			Type:        "document_url",
			DocumentURL: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "ocr: encode mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "ocr: build mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ocr: mistral request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", eris.Errorf("ocr: mistral returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out mistralResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", eris.Wrap(err, "ocr: decode mistral response")
	}

	sort.SliceStable(out.Pages, func(i, j int) bool { return out.Pages[i].Index < out.Pages[j].Index })
	pages := make([]string, 0, len(out.Pages))
	for _, p := range out.Pages {
		if text := strings.TrimSpace(p.Markdown); text != "" {
			pages = append(pages, text)
		}
	}
	zap.L().Debug("ocr: mistral pages recognized",
		zap.Int("pages", len(out.Pages)), zap.Int("non_blank", len(pages)))
	return strings.Join(pages, "\n\n"), nil
}
