package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SummaryStrategy records how a summary was produced.
type SummaryStrategy string

const (
	StrategyVerbatim SummaryStrategy = "verbatim"
	StrategySingle   SummaryStrategy = "single"
	StrategyChunked  SummaryStrategy = "chunked"
)

// Standard extracted field names.
const (
	FieldScope        = "scope"
	FieldRequirements = "requirements"
	FieldTimeline     = "timeline"
	FieldBudget       = "budget"
	FieldDeliverables = "deliverables"
)

// SummaryFieldNames lists the extracted fields in display order.
var SummaryFieldNames = []string{FieldScope, FieldRequirements, FieldTimeline, FieldBudget, FieldDeliverables}

// FieldValue is an extracted field holding either a single string or a list.
type FieldValue struct {
	Text string
	List []string
}

// StringField returns a FieldValue holding s.
func StringField(s string) FieldValue { return FieldValue{Text: s} }

// ListField returns a FieldValue holding items.
func ListField(items ...string) FieldValue { return FieldValue{List: items} }

// IsList reports whether the value is the list form.
func (v FieldValue) IsList() bool { return v.List != nil }

// Empty reports whether the value carries no content.
func (v FieldValue) Empty() bool {
	if v.IsList() {
		for _, s := range v.List {
			if strings.TrimSpace(s) != "" {
				return false
			}
		}
		return true
	}
	return strings.TrimSpace(v.Text) == ""
}

// String renders the value on one line.
func (v FieldValue) String() string {
	if v.IsList() {
		return strings.Join(v.List, "; ")
	}
	return v.Text
}

// MarshalJSON encodes the string or list form.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.IsList() {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts a string, a list of scalars, or null. Other scalars
// are kept in their textual form.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = FieldValue{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &v.Text)
	case '[':
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		v.List = make([]string, 0, len(raw))
		for _, item := range raw {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				v.List = append(v.List, s)
				continue
			}
			v.List = append(v.List, fmt.Sprint(item))
		}
		return nil
	case '{':
		v.Text = string(data)
		return nil
	default:
		var x any
		if err := json.Unmarshal(data, &x); err != nil {
			return err
		}
		v.Text = fmt.Sprint(x)
		return nil
	}
}

// Summary is the structured digest of a document or web source.
type Summary struct {
	Narrative    string                `json:"narrative"`
	KeyPoints    []string              `json:"keyPoints"`
	Fields       map[string]FieldValue `json:"fields,omitempty"`
	ChunkCount   int                   `json:"chunkCount"`
	Strategy     SummaryStrategy       `json:"strategy,omitempty"`
	FailedChunks int                   `json:"failedChunks,omitempty"`
}

// Valid reports whether the summary may be served from cache.
func (s *Summary) Valid() bool {
	return s != nil && strings.TrimSpace(s.Narrative) != ""
}

// Render formats the summary as plain text for prompt context.
func (s *Summary) Render() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.Narrative))
	b.WriteString("\n")

	if len(s.KeyPoints) > 0 {
		b.WriteString("\nKey points:\n")
		for _, kp := range s.KeyPoints {
			b.WriteString("- ")
			b.WriteString(kp)
			b.WriteString("\n")
		}
	}

	if len(s.Fields) > 0 {
		b.WriteString("\nExtracted fields:\n")
		for _, name := range s.fieldOrder() {
			v := s.Fields[name]
			if v.Empty() {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", name, v.String())
		}
	}
	return b.String()
}

// fieldOrder returns standard fields first, then any others alphabetically.
func (s *Summary) fieldOrder() []string {
	seen := make(map[string]bool, len(s.Fields))
	var out []string
	for _, name := range SummaryFieldNames {
		if _, ok := s.Fields[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range s.Fields {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
