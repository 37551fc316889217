// Package keyinfo pulls coarse RFP sections (scope, requirements, timeline,
// budget, deliverables) out of extracted document text using heading
// patterns. It is a heuristic, not a parser.
package keyinfo

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/rfpdesk/internal/model"
)

// maxFieldRunes bounds a section's text when it is used as a summary field.
const maxFieldRunes = 1000

// Section is one heading-delimited region of the source text. Start is the
// byte offset of the heading line; End is the byte offset just past the
// section body.
type Section struct {
	Name    string `json:"name"`
	Heading string `json:"heading"`
	Text    string `json:"text"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// Sections is ordered by Start.
type Sections []Section

// headingPrefix matches optional markdown hashes, "Section 3", "1.2", "IV." or "A)".
const headingPrefix = `(?im)^[ \t]*(?:#{1,6}[ \t]*)?(?:(?:section|article|part)[ \t]+[0-9ivx]+[.:)]?[ \t]*)?(?:(?:[0-9]+(?:\.[0-9]+)*|[ivx]+|[a-z])[.)][ \t]*)?(?:[-*][ \t]+)?`

var patterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{model.FieldScope, heading(`scope(?:[ \t]+of[ \t]+(?:work|services|project))?|statement[ \t]+of[ \t]+work|project[ \t]+(?:overview|description|background)|background|purpose`)},
	{model.FieldRequirements, heading(`(?:(?:technical|functional|minimum|mandatory|general|service)[ \t]+)?(?:requirements|specifications|qualifications)|evaluation[ \t]+criteria`)},
	{model.FieldTimeline, heading(`timeline|schedule(?:[ \t]+of[ \t]+events)?|key[ \t]+dates|important[ \t]+dates|calendar[ \t]+of[ \t]+events|deadlines?|period[ \t]+of[ \t]+performance`)},
	{model.FieldBudget, heading(`budget|pricing|cost[ \t]+proposal|price[ \t]+proposal|fees?|compensation|funding`)},
	{model.FieldDeliverables, heading(`deliverables|expected[ \t]+outcomes|work[ \t]+products|outputs`)},
}

func heading(keywords string) *regexp.Regexp {
	// Headings are short: keyword plus at most a few trailing words on the line.
	return regexp.MustCompile(headingPrefix + `(` + keywords + `)\b[^\n]{0,60}$`)
}

type match struct {
	name  string
	start int
	end   int
}

// Extract returns every recognized section in text. Each section runs from
// its heading to the next recognized heading or the end of text.
func Extract(text string) Sections {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var matches []match
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			matches = append(matches, match{name: p.name, start: loc[0], end: loc[1]})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	// One heading line can match several patterns ("Budget and Schedule");
	// the earliest-declared pattern keeps it.
	deduped := matches[:0]
	for _, m := range matches {
		if n := len(deduped); n > 0 && deduped[n-1].start == m.start {
			continue
		}
		deduped = append(deduped, m)
	}

	out := make(Sections, 0, len(deduped))
	for i, m := range deduped {
		end := len(text)
		if i+1 < len(deduped) {
			end = deduped[i+1].start
		}
		out = append(out, Section{
			Name:    m.name,
			Heading: strings.TrimSpace(text[m.start:m.end]),
			Text:    strings.TrimSpace(text[m.end:end]),
			Start:   m.start,
			End:     end,
		})
	}
	return out
}

// Get returns the first section with the given name that has body text.
func (s Sections) Get(name string) (Section, bool) {
	for _, sec := range s {
		if sec.Name == name && sec.Text != "" {
			return sec, true
		}
	}
	return Section{}, false
}

// Boundaries returns the heading offsets, ascending.
func (s Sections) Boundaries() []int {
	out := make([]int, 0, len(s))
	for _, sec := range s {
		out = append(out, sec.Start)
	}
	return out
}

// FillFields sets each standard field missing from fields to the matching
// section's text, truncated. Existing non-empty fields are left alone.
func (s Sections) FillFields(fields map[string]model.FieldValue) map[string]model.FieldValue {
	if fields == nil {
		fields = make(map[string]model.FieldValue)
	}
	for _, name := range model.SummaryFieldNames {
		if v, ok := fields[name]; ok && !v.Empty() {
			continue
		}
		if sec, ok := s.Get(name); ok {
			fields[name] = model.StringField(truncateRunes(sec.Text, maxFieldRunes))
		}
	}
	return fields
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
