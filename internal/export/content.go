package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// Section is one headed block of draft text.
type Section struct {
	Heading string
	Body    string
}

// Outline is draft content flattened for rendering.
type Outline struct {
	Title    string
	Sections []Section
}

type sectionedDraft struct {
	Title    string `json:"title"`
	Sections []struct {
		Title   string `json:"title"`
		Heading string `json:"heading"`
		Content string `json:"content"`
		Body    string `json:"body"`
	} `json:"sections"`
}

// ParseOutline reads draft JSON in any of the shapes the editor produces:
//
//   - {"title": ..., "sections": [{"title"|"heading": ..., "content"|"body": ...}]}
//   - {"type": "doc", "content": [...]}, a rich-text node tree
//   - a flat object of string fields, each rendered as its own section in
//     document order
//   - a bare JSON string
func ParseOutline(raw json.RawMessage) (*Outline, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &Outline{}, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, eris.Wrap(err, "export: decode draft text")
		}
		return &Outline{Sections: []Section{{Body: s}}}, nil
	case '{':
	default:
		return nil, eris.New("export: draft content must be an object or string")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, eris.Wrap(err, "export: decode draft")
	}

	if _, ok := probe["sections"]; ok {
		var sd sectionedDraft
		if err := json.Unmarshal(raw, &sd); err != nil {
			return nil, eris.Wrap(err, "export: decode draft sections")
		}
		out := &Outline{Title: sd.Title}
		for _, s := range sd.Sections {
			out.Sections = append(out.Sections, Section{
				Heading: firstNonEmpty(s.Title, s.Heading),
				Body:    firstNonEmpty(s.Content, s.Body),
			})
		}
		return out, nil
	}

	if t, ok := probe["type"]; ok && string(t) == `"doc"` {
		var root node
		if err := json.Unmarshal(raw, &root); err != nil {
			return nil, eris.Wrap(err, "export: decode draft document")
		}
		return fromNodes(root.Content), nil
	}

	return fromFlatObject(raw)
}

// node is a rich-text editor node.
type node struct {
	Type    string         `json:"type"`
	Text    string         `json:"text"`
	Attrs   map[string]any `json:"attrs"`
	Content []node         `json:"content"`
}

func (n node) plain() string {
	if n.Type == "text" {
		return n.Text
	}
	if n.Type == "hardBreak" {
		return "\n"
	}
	var b strings.Builder
	for _, c := range n.Content {
		b.WriteString(c.plain())
	}
	return b.String()
}

func fromNodes(nodes []node) *Outline {
	out := &Outline{}
	cur := Section{}
	var body strings.Builder
	flush := func() {
		cur.Body = strings.TrimSpace(body.String())
		if cur.Heading != "" || cur.Body != "" {
			out.Sections = append(out.Sections, cur)
		}
		cur = Section{}
		body.Reset()
	}
	for _, n := range nodes {
		switch n.Type {
		case "heading":
			level, _ := n.Attrs["level"].(float64)
			if level == 1 && out.Title == "" && len(out.Sections) == 0 && body.Len() == 0 {
				out.Title = strings.TrimSpace(n.plain())
				continue
			}
			flush()
			cur.Heading = strings.TrimSpace(n.plain())
		case "bulletList", "orderedList":
			for _, item := range n.Content {
				body.WriteString("- " + strings.TrimSpace(item.plain()) + "\n")
			}
		default:
			body.WriteString(n.plain() + "\n\n")
		}
	}
	flush()
	return out
}

// fromFlatObject keeps the object's key order, which encoding/json maps do
// not preserve, by walking tokens.
func fromFlatObject(raw json.RawMessage) (*Outline, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "export: decode draft")
	}
	out := &Outline{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "export: decode draft key")
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, eris.Wrapf(err, "export: decode draft field %s", key)
		}
		text := flatten(v)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if key == "title" {
			out.Title = text
			continue
		}
		out.Sections = append(out.Sections, Section{Heading: humanize(key), Body: text})
	}
	return out, nil
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var lines []string
		for _, item := range t {
			if s := strings.TrimSpace(flatten(item)); s != "" {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	default:
		return ""
	}
}

// humanize turns executiveSummary or executive_summary into
// "Executive Summary".
func humanize(key string) string {
	var words []string
	var cur []rune
	push := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	for i, r := range key {
		switch {
		case r == '_' || r == '-' || r == ' ':
			push()
		case unicode.IsUpper(r) && i > 0:
			push()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	push()
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
