package question

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/rfpdesk/internal/model"
)

// Detected is a question line found in a document.
type Detected struct {
	Text     string
	Category model.QuestionCategory
}

var (
	// "1.", "1)", "2.3", "a)", "Q4:", "Question 7 -", "-", "*", "•"
	listMarker = regexp.MustCompile(`(?i)^(?:(?:q(?:uestion)?\s*)?\d+(?:\.\d+)*[.):\-]?|[a-z][.)]|[-*•·])\s+`)
	imperative = regexp.MustCompile(`(?i)^(?:please\s+)?(?:describe|explain|provide|list|identify|detail|outline|state|indicate|submit|confirm|specify|discuss|summarize|include)\b`)
)

const (
	minQuestionChars = 15
	maxQuestionChars = 1000
)

// categoryKeywords are checked in order; the first category with a hit wins.
var categoryKeywords = []struct {
	category model.QuestionCategory
	words    []string
}{
	{model.CategoryPricing, []string{"price", "pricing", "cost", "fee", "budget", "rate", "discount", "invoice", "payment"}},
	{model.CategoryTimeline, []string{"timeline", "schedule", "deadline", "milestone", "how long", "when will", "days", "weeks", "implementation plan"}},
	{model.CategoryCompliance, []string{"comply", "compliance", "certif", "insurance", "license", "regulat", "cipa", "fcc", "e-rate", "hipaa", "ferpa", "bond", "w-9", "policy"}},
	{model.CategoryExperience, []string{"experience", "reference", "past performance", "similar", "years in business", "clients", "case stud", "qualification"}},
	{model.CategoryTechnical, []string{"technical", "network", "architecture", "security", "integration", "bandwidth", "hardware", "software", "infrastructure", "support", "sla", "uptime", "equipment"}},
}

// Categorize guesses a question's category from keywords.
func Categorize(text string) model.QuestionCategory {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				return ck.category
			}
		}
	}
	return model.CategoryGeneral
}

// Detect finds question lines in extracted document text: lines ending in a
// question mark, and list items that start with a request verb ("Describe",
// "Provide", ...). Wrapped lines of a numbered item are joined first.
// Duplicates are dropped case-insensitively.
func Detect(text string) []Detected {
	var out []Detected
	seen := make(map[string]bool)

	for _, line := range joinWrapped(text) {
		marked := listMarker.MatchString(line)
		body := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		n := utf8.RuneCountInString(body)
		if n < minQuestionChars || n > maxQuestionChars {
			continue
		}
		if !strings.HasSuffix(body, "?") && !(marked && imperative.MatchString(body)) {
			continue
		}
		key := strings.ToLower(body)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Detected{Text: body, Category: Categorize(body)})
	}
	return out
}

// joinWrapped splits text into logical lines, appending a line to the
// previous list item when it continues a sentence.
func joinWrapped(text string) []string {
	var lines []string
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.Join(strings.Fields(raw), " ")
		if line == "" {
			lines = append(lines, "")
			continue
		}
		if n := len(lines); n > 0 && continues(lines[n-1], line) {
			lines[n-1] += " " + line
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func continues(prev, line string) bool {
	if prev == "" || !listMarker.MatchString(prev) || listMarker.MatchString(line) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(prev)
	if strings.ContainsRune(".?!:", last) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	return first >= 'a' && first <= 'z' || first == '('
}
