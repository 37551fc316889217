package extract

import (
	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"
)

// HTMLConverter sanitizes HTML and converts it to markdown. Safe for
// concurrent use.
type HTMLConverter struct {
	policy    *bluemonday.Policy
	converter *md.Converter
}

// NewHTMLConverter creates a converter. domain is a host name used to make
// relative links absolute and may be empty.
func NewHTMLConverter(domain string) *HTMLConverter {
	return &HTMLConverter{
		policy:    bluemonday.UGCPolicy(),
		converter: md.NewConverter(domain, true, nil),
	}
}

// Convert returns the markdown rendering of html.
func (c *HTMLConverter) Convert(html string) (string, error) {
	out, err := c.converter.ConvertString(c.policy.Sanitize(html))
	if err != nil {
		return "", eris.Wrap(err, "extract: html to markdown")
	}
	return out, nil
}

var defaultHTML = NewHTMLConverter("")

func extractHTML(data []byte) (*Result, error) {
	text, err := defaultHTML.Convert(string(decodeText(data)))
	if err != nil {
		return nil, wrapParse(err, FormatHTML)
	}
	return &Result{Text: text, Format: FormatHTML}, nil
}
