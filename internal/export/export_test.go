package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rfpdesk/internal/extract"
	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/store/storetest"
)

func docText(t *testing.T, data []byte) string {
	t.Helper()
	res, err := extract.New().Extract(context.Background(), "out.docx", ContentType, data)
	require.NoError(t, err)
	return res.Text
}

func sampleInput() Input {
	due := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	return Input{
		Project: &model.Project{
			Name: "Library Wi-Fi Refresh", ProjectType: model.ProjectTypeRFP,
			OrganizationName: "Springfield Public Library", Description: "Replace Wi-Fi at 9 branches.", DueDate: &due,
		},
		Company: &model.CompanyInfo{
			Name: "Acme Networks", Overview: "Managed Wi-Fi for public institutions.",
			Capabilities: []string{"Site surveys"}, ContactEmail: "bids@acme.example",
		},
		Draft: &Outline{Sections: []Section{{Heading: "Executive Summary", Body: "We propose a phased rollout.\n- Phase 1: survey\n- Phase 2: install"}}},
		Questions: []model.Question{
			{Text: "What is your warranty?", Category: model.CategoryTechnical, Answer: "Five years."},
			{Text: "Provide pricing.", Category: model.CategoryPricing},
		},
		Generated: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestRender_AllTemplatesProduceValidDocx(t *testing.T) {
	for _, tmpl := range []Template{TemplateRFP, TemplateRFI, TemplateForm470} {
		t.Run(string(tmpl), func(t *testing.T) {
			data, err := Render(tmpl, sampleInput())
			require.NoError(t, err)

			zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)
			names := map[string]bool{}
			for _, f := range zr.File {
				names[f.Name] = true
				if f.Name == "word/document.xml" || f.Name == "word/styles.xml" {
					rc, err := f.Open()
					require.NoError(t, err)
					body, err := io.ReadAll(rc)
					require.NoError(t, err)
					rc.Close() //nolint:errcheck
					var v any
					assert.NoError(t, xml.Unmarshal(body, &v), f.Name)
				}
			}
			assert.True(t, names["[Content_Types].xml"])
			assert.True(t, names["word/document.xml"])

			text := docText(t, data)
			assert.Contains(t, text, "Library Wi-Fi Refresh")
			assert.Contains(t, text, "What is your warranty?")
			assert.Contains(t, text, "Five years.")
			assert.Contains(t, text, "We propose a phased rollout.")
			assert.Contains(t, text, "Response pending.")
		})
	}
}

func TestRender_TemplateLayouts(t *testing.T) {
	rfp := docText(t, mustRender(t, TemplateRFP, sampleInput()))
	assert.Contains(t, rfp, "Prepared for Springfield Public Library by Acme Networks")
	assert.Contains(t, rfp, "Response due: March 3, 2026")
	assert.Contains(t, rfp, "Responses to Requirements")
	assert.Contains(t, rfp, "• Phase 1: survey")
	assert.Contains(t, rfp, "• Site surveys")

	rfi := docText(t, mustRender(t, TemplateRFI, sampleInput()))
	assert.Contains(t, rfi, "1. What is your warranty?")
	assert.Contains(t, rfi, "Additional Information")
	assert.Contains(t, rfi, "bids@acme.example")

	f470 := docText(t, mustRender(t, TemplateForm470, sampleInput()))
	assert.Contains(t, f470, "FCC Form 470 Service Request")
	assert.Contains(t, f470, "Allowable contract date")
	assert.Contains(t, f470, "Services Requested")
}

func TestRender_EscapesMarkup(t *testing.T) {
	in := sampleInput()
	in.Project.Name = `R&D <Lab> "Network"`
	data := mustRender(t, TemplateRFP, in)
	assert.Contains(t, docText(t, data), `R&D <Lab> "Network"`)
}

func mustRender(t *testing.T, tmpl Template, in Input) []byte {
	t.Helper()
	data, err := Render(tmpl, in)
	require.NoError(t, err)
	return data
}

func TestParseOutline(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *Outline
	}{
		{
			name: "sections",
			raw:  `{"title":"Proposal","sections":[{"title":"Scope","content":"All branches."},{"heading":"Price","body":"$10"}]}`,
			want: &Outline{Title: "Proposal", Sections: []Section{{Heading: "Scope", Body: "All branches."}, {Heading: "Price", Body: "$10"}}},
		},
		{
			name: "flat object keeps key order",
			raw:  `{"title":"T","executiveSummary":"Short.","technical_approach":"Mesh.","pricing":["A","B"],"count":3}`,
			want: &Outline{Title: "T", Sections: []Section{
				{Heading: "Executive Summary", Body: "Short."},
				{Heading: "Technical Approach", Body: "Mesh."},
				{Heading: "Pricing", Body: "- A\n- B"},
			}},
		},
		{
			name: "string",
			raw:  `"Just text"`,
			want: &Outline{Sections: []Section{{Body: "Just text"}}},
		},
		{
			name: "rich text tree",
			raw: `{"type":"doc","content":[
				{"type":"heading","attrs":{"level":1},"content":[{"type":"text","text":"Our Response"}]},
				{"type":"paragraph","content":[{"type":"text","text":"Intro."}]},
				{"type":"heading","attrs":{"level":2},"content":[{"type":"text","text":"Approach"}]},
				{"type":"bulletList","content":[
					{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"Survey"}]}]}
				]}
			]}`,
			want: &Outline{Title: "Our Response", Sections: []Section{
				{Body: "Intro."},
				{Heading: "Approach", Body: "- Survey"},
			}},
		},
		{name: "null", raw: `null`, want: &Outline{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutline(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOutline(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestFilenameAndTemplate(t *testing.T) {
	p := &model.Project{Name: "Library Wi-Fi: Phase 2!"}
	assert.Equal(t, "library-wi-fi-phase-2-rfp-response.docx", Filename(TemplateRFP, p))
	assert.Equal(t, "project-form470.docx", Filename(TemplateForm470, &model.Project{Name: "!!"}))

	tmpl, err := ParseTemplate("generate-rfi")
	require.NoError(t, err)
	assert.Equal(t, TemplateRFI, tmpl)
	_, err = ParseTemplate("pdf")
	assert.ErrorIs(t, err, model.ErrValidation)

	assert.Equal(t, TemplateForm470, ForProject(model.ProjectTypeForm470))
	assert.Equal(t, TemplateRFP, ForProject(model.ProjectTypeRFP))
}

func TestService_Generate(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	p := storetest.Project(t, st, "County RFI", model.ProjectTypeRFI)
	require.NoError(t, st.CreateQuestions(ctx, []model.Question{
		{ProjectID: p.ID, Text: "Describe your support model.", Category: model.CategoryTechnical, Answer: "24/7 NOC.", Position: 0},
	}))
	svc := NewService(st)

	f, err := svc.Generate(ctx, p.ID, TemplateRFI)
	require.NoError(t, err)
	assert.Equal(t, "county-rfi-rfi-response.docx", f.Name)
	assert.Equal(t, ContentType, f.ContentType)
	assert.Contains(t, docText(t, f.Data), "24/7 NOC.")

	_, err = st.CreateDraft(ctx, p.ID, json.RawMessage(`{"sections":[{"title":"Summary","content":"Drafted summary."}]}`), nil)
	require.NoError(t, err)
	f, err = svc.Generate(ctx, p.ID, TemplateRFI)
	require.NoError(t, err)
	assert.Contains(t, docText(t, f.Data), "Drafted summary.")

	acts, err := st.ListActivity(ctx, p.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, acts)
	assert.Equal(t, model.ActivityExported, acts[0].Action)

	_, err = svc.Generate(ctx, "missing", TemplateRFP)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
