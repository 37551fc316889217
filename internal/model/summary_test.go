package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldValue_UnmarshalForms(t *testing.T) {
	var s Summary
	raw := `{"narrative":"n","keyPoints":["a"],"fields":{"scope":"network refresh","deliverables":["design","install",3],"budget":125000,"timeline":null},"chunkCount":1}`
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, "network refresh", s.Fields["scope"].Text)
	assert.False(t, s.Fields["scope"].IsList())
	assert.Equal(t, []string{"design", "install", "3"}, s.Fields["deliverables"].List)
	assert.Equal(t, "125000", s.Fields["budget"].Text)
	assert.True(t, s.Fields["timeline"].Empty())
}

func TestFieldValue_MarshalKeepsForm(t *testing.T) {
	s := Summary{
		Narrative: "n",
		Fields: map[string]FieldValue{
			"scope":        StringField("wan"),
			"deliverables": ListField("a", "b"),
		},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scope":"wan"`)
	assert.Contains(t, string(data), `"deliverables":["a","b"]`)
}

func TestSummaryValid(t *testing.T) {
	var nilSummary *Summary
	assert.False(t, nilSummary.Valid())
	assert.False(t, (&Summary{Narrative: "  \n"}).Valid())
	assert.True(t, (&Summary{Narrative: "text"}).Valid())
}

func TestSummaryRender(t *testing.T) {
	s := &Summary{
		Narrative: "District seeks managed Wi-Fi.",
		KeyPoints: []string{"200 access points", "5-year term"},
		Fields: map[string]FieldValue{
			"budget":  StringField("$400k"),
			"scope":   StringField("all campuses"),
			"custom":  ListField("x", "y"),
			"timeline": StringField(""),
		},
	}
	out := s.Render()
	assert.Contains(t, out, "District seeks managed Wi-Fi.")
	assert.Contains(t, out, "- 200 access points")
	assert.Contains(t, out, "scope: all campuses")
	assert.Contains(t, out, "custom: x; y")
	assert.NotContains(t, out, "timeline:")
	assert.Less(t, indexOf(out, "scope:"), indexOf(out, "budget:"))
	assert.Less(t, indexOf(out, "budget:"), indexOf(out, "custom:"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestDomainErrorsMatchThroughEris(t *testing.T) {
	err := eris.Wrap(NotFound("project", "p1"), "store: get project")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "project not found: p1")

	verr := eris.Wrap(NewValidationError("name is required"), "project: create")
	assert.True(t, errors.Is(verr, ErrValidation))
	assert.False(t, errors.Is(verr, ErrNotFound))
}

func TestPartialFailureError(t *testing.T) {
	err := eris.Wrap(&PartialFailureError{MissingIDs: []string{"q2", "q3"}}, "answer: generate")

	var pf *PartialFailureError
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, []string{"q2", "q3"}, pf.MissingIDs)
	assert.Contains(t, err.Error(), "q2, q3")
}
