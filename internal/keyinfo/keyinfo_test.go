package keyinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rfpdesk/internal/model"
)

const sampleRFP = `Request for Proposal: District Network Refresh

1. Scope of Work
The district seeks a vendor to replace core switching at 14 sites.

2. Technical Requirements
- 10G uplinks at every site
- Five-year warranty

3. Schedule of Events
Proposals due March 3. Award by April 15.

4. Budget
Not to exceed $450,000.

5. Deliverables
Installed equipment, as-built diagrams, and training.
`

func TestExtract_FindsAllSections(t *testing.T) {
	secs := Extract(sampleRFP)
	require.Len(t, secs, 5)

	names := make([]string, len(secs))
	for i, s := range secs {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		model.FieldScope, model.FieldRequirements, model.FieldTimeline,
		model.FieldBudget, model.FieldDeliverables,
	}, names)

	scope, ok := secs.Get(model.FieldScope)
	require.True(t, ok)
	assert.Equal(t, "1. Scope of Work", scope.Heading)
	assert.Equal(t, "The district seeks a vendor to replace core switching at 14 sites.", scope.Text)

	budget, ok := secs.Get(model.FieldBudget)
	require.True(t, ok)
	assert.Equal(t, "Not to exceed $450,000.", budget.Text)
}

func TestExtract_OffsetsAreContiguous(t *testing.T) {
	secs := Extract(sampleRFP)
	require.NotEmpty(t, secs)

	for i, s := range secs {
		assert.True(t, strings.HasPrefix(strings.TrimLeft(sampleRFP[s.Start:], " \t"), s.Heading))
		if i+1 < len(secs) {
			assert.Equal(t, secs[i+1].Start, s.End)
		} else {
			assert.Equal(t, len(sampleRFP), s.End)
		}
	}
	assert.Equal(t, []int{secs[0].Start, secs[1].Start, secs[2].Start, secs[3].Start, secs[4].Start}, secs.Boundaries())
}

func TestExtract_HeadingForms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"markdown", "## Deliverables\nReports", model.FieldDeliverables},
		{"section prefix", "SECTION 4: PRICING\nFixed fee", model.FieldBudget},
		{"roman numeral", "IV. Key Dates\nJune 1", model.FieldTimeline},
		{"letter", "B) Minimum Qualifications\nFive years", model.FieldRequirements},
		{"bare", "Statement of Work\nInstall things", model.FieldScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secs := Extract(tt.text)
			require.Len(t, secs, 1)
			assert.Equal(t, tt.want, secs[0].Name)
		})
	}
}

func TestExtract_IgnoresProse(t *testing.T) {
	text := "The budget for this work was discussed at length during the previous board meeting and approved."
	assert.Empty(t, Extract(text))
	assert.Empty(t, Extract("   \n\t"))
}

func TestSections_GetSkipsEmptyBody(t *testing.T) {
	secs := Extract("Budget\n\nBudget\nTen dollars")
	require.Len(t, secs, 2)
	got, ok := secs.Get(model.FieldBudget)
	require.True(t, ok)
	assert.Equal(t, "Ten dollars", got.Text)

	_, ok = secs.Get(model.FieldScope)
	assert.False(t, ok)
}

func TestSections_FillFields(t *testing.T) {
	secs := Extract(sampleRFP)
	fields := map[string]model.FieldValue{
		model.FieldScope: model.StringField("Model-provided scope"),
		model.FieldBudget: {},
	}

	got := secs.FillFields(fields)
	assert.Equal(t, "Model-provided scope", got[model.FieldScope].String())
	assert.Equal(t, "Not to exceed $450,000.", got[model.FieldBudget].String())
	assert.Contains(t, got[model.FieldTimeline].String(), "Proposals due March 3")

	assert.Len(t, Sections(nil).FillFields(nil), 0)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab…", truncateRunes("abcdef", 2))
	assert.Equal(t, "日本…", truncateRunes("日本語です", 2))
}
