package answer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
)

// Source is a document or web source offered as answer context.
type Source struct {
	Kind    model.EntityKind
	ID      string
	Label   string
	Content string
}

// SourcesFromDocuments wraps documents as Sources.
func SourcesFromDocuments(docs []model.Document) []Source {
	out := make([]Source, 0, len(docs))
	for _, d := range docs {
		out = append(out, Source{Kind: model.EntityDocument, ID: d.ID, Label: d.Filename, Content: d.Content})
	}
	return out
}

// SourcesFromWebSources wraps web sources as Sources.
func SourcesFromWebSources(ws []model.WebSource) []Source {
	out := make([]Source, 0, len(ws))
	for _, w := range ws {
		label := w.Title
		if label == "" {
			label = w.URL
		}
		out = append(out, Source{Kind: model.EntityWebSource, ID: w.ID, Label: label, Content: w.Content})
	}
	return out
}

// minTailChars is the smallest remaining budget worth filling with a
// truncated section.
const minTailChars = 500

type bundleBuilder struct {
	b       strings.Builder
	budget  int
	used    int
	dropped []string
}

// add appends a titled section, truncating or dropping it once the budget
// runs out.
func (bb *bundleBuilder) add(title, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	section := fmt.Sprintf("## %s\n%s\n\n", title, body)
	n := utf8.RuneCountInString(section)

	if bb.budget > 0 && bb.used+n > bb.budget {
		remaining := bb.budget - bb.used
		if remaining < minTailChars {
			bb.dropped = append(bb.dropped, title)
			return
		}
		r := []rune(section)
		section = string(r[:remaining-len("\n[truncated]\n\n")]) + "\n[truncated]\n\n"
		n = utf8.RuneCountInString(section)
	}
	bb.b.WriteString(section)
	bb.used += n
}

// BuildContext assembles the prompt context: company profile first, then
// each source's best text (cached summary or truncated raw text), then
// knowledge-base entries when includeKnowledge is set.
func (o *Orchestrator) BuildContext(ctx context.Context, sources []Source, includeKnowledge bool) (string, error) {
	bb := &bundleBuilder{budget: o.opts.MaxContextChars}

	company, err := o.store.GetCompanyInfo(ctx)
	if err != nil {
		return "", err
	}
	if !company.Empty() {
		bb.add("Company profile", company.Render())
	}

	for _, src := range sources {
		text, fromSummary := o.texts.BestText(ctx, src.Kind, src.ID, src.Content, o.opts.DocRawChars)
		title := "Source: " + src.Label
		if fromSummary {
			title += " (summary)"
		}
		bb.add(title, text)
	}

	if includeKnowledge {
		entries, err := o.store.ListKnowledge(ctx)
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			bb.add(fmt.Sprintf("Knowledge base: %s (%s)", e.Title, e.Category), e.Content)
		}
	}

	if len(bb.dropped) > 0 {
		zap.L().Info("answer: context budget exhausted",
			zap.Int("budget", bb.budget),
			zap.Strings("dropped", bb.dropped),
		)
	}
	return strings.TrimSpace(bb.b.String()), nil
}
