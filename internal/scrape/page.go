package scrape

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rfpdesk/internal/extract"
)

// boilerplate is removed before a page is converted.
const boilerplate = "script, style, noscript, iframe, svg, nav, footer, header, form, [aria-hidden='true']"

// renderHTML parses a fetched page and returns its title and main content
// as markdown. Relative links resolve against pageURL's host.
func renderHTML(pageURL, rawHTML string) (title, markdown string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", "", eris.Wrap(err, "scrape: parse html")
	}

	title = pageTitle(doc)
	doc.Find(boilerplate).Remove()

	body := doc.Find("main, article, [role='main']").First()
	if body.Length() == 0 {
		body = doc.Find("body")
	}
	if body.Length() == 0 {
		body = doc.Selection
	}

	inner, err := body.Html()
	if err != nil {
		return "", "", eris.Wrap(err, "scrape: render body")
	}

	host := ""
	if u, perr := url.Parse(pageURL); perr == nil {
		host = u.Host
	}
	markdown, err = extract.NewHTMLConverter(host).Convert(inner)
	if err != nil {
		return "", "", err
	}
	return title, strings.TrimSpace(markdown), nil
}

func pageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", "")); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
