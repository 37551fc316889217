package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/pkg/anthropic"
)

type fakeStore struct {
	company *model.CompanyInfo
	kb      []model.KnowledgeEntry
}

func (f *fakeStore) GetCompanyInfo(context.Context) (*model.CompanyInfo, error) {
	if f.company == nil {
		return &model.CompanyInfo{}, nil
	}
	return f.company, nil
}

func (f *fakeStore) ListKnowledge(context.Context) ([]model.KnowledgeEntry, error) { return f.kb, nil }

// fakeTexts serves summaries for ids in summaries and truncated raw text otherwise.
type fakeTexts struct {
	summaries map[string]string
}

func (f fakeTexts) BestText(_ context.Context, _ model.EntityKind, id, raw string, maxRaw int) (string, bool) {
	if s, ok := f.summaries[id]; ok {
		return s, true
	}
	if maxRaw > 0 && len(raw) > maxRaw {
		return raw[:maxRaw], false
	}
	return raw, false
}

type fakeClient struct {
	mu   sync.Mutex
	reqs []anthropic.MessageRequest
	fn   func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.fn(req)
}

func reply(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: s}}}
}

func isBatch(req anthropic.MessageRequest) bool {
	return strings.Contains(req.Messages[0].Content, "JSON array")
}

var questions = []model.Question{
	{ID: "q1", Text: "Describe your experience.", Category: "experience"},
	{ID: "q2", Text: "What is your warranty?", Category: "technical"},
	{ID: "q3", Text: "Provide pricing.", Category: "pricing"},
}

func TestGenerateAnswers_SingleBatchedCall(t *testing.T) {
	client := &fakeClient{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return reply("```json\n[{\"id\":\"q3\",\"answer\":\"See pricing.\"},{\"id\":\"q1\",\"answer\":\"Ten years.\"},{\"id\":\"q2\",\"answer\":\"Five years.\"},{\"id\":\"zz\",\"answer\":\"ignored\"}]\n```"), nil
	}}
	o := New(client, &fakeStore{company: &model.CompanyInfo{Name: "Acme Networks", Overview: "Integrator"}}, fakeTexts{}, Options{Model: "m"})

	answers, err := o.GenerateAnswers(context.Background(), Request{ProjectType: model.ProjectTypeRFP, Questions: questions})
	require.NoError(t, err)
	require.Len(t, client.reqs, 1)

	assert.Equal(t, []model.Answer{
		{QuestionID: "q1", Text: "Ten years."},
		{QuestionID: "q2", Text: "Five years."},
		{QuestionID: "q3", Text: "See pricing."},
	}, answers)

	sys := client.reqs[0].System
	require.Len(t, sys, 2)
	assert.Contains(t, sys[0].Text, "Request for Proposal")
	assert.Contains(t, sys[1].Text, "Acme Networks")
	require.NotNil(t, sys[1].CacheControl)
}

func TestGenerateAnswers_FallsBackPerQuestion(t *testing.T) {
	client := &fakeClient{fn: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		if isBatch(req) {
			return reply(`[{"id":"q1","answer":"Batched one."},{"id":"q2","answer":"  "}]`), nil
		}
		switch {
		case strings.Contains(req.Messages[0].Content, "warranty"):
			return reply("Individual two."), nil
		default:
			return reply("Individual three."), nil
		}
	}}
	o := New(client, &fakeStore{}, fakeTexts{}, Options{Concurrency: 2})

	answers, err := o.GenerateAnswers(context.Background(), Request{Questions: questions})
	require.NoError(t, err)
	assert.Len(t, client.reqs, 3)
	assert.Equal(t, []model.Answer{
		{QuestionID: "q1", Text: "Batched one."},
		{QuestionID: "q2", Text: "Individual two."},
		{QuestionID: "q3", Text: "Individual three."},
	}, answers)
}

func TestGenerateAnswers_PartialFailure(t *testing.T) {
	client := &fakeClient{fn: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		if isBatch(req) {
			return nil, errors.New("overloaded")
		}
		if strings.Contains(req.Messages[0].Content, "pricing") {
			return nil, errors.New("rate limited")
		}
		return reply("ok"), nil
	}}
	o := New(client, &fakeStore{}, fakeTexts{}, Options{})

	answers, err := o.GenerateAnswers(context.Background(), Request{Questions: questions})
	require.Error(t, err)

	var pf *model.PartialFailureError
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, []string{"q3"}, pf.MissingIDs)
	assert.Len(t, answers, 2)

	// Every input id appears exactly once across answers and missing ids.
	seen := map[string]int{}
	for _, a := range answers {
		seen[a.QuestionID]++
	}
	for _, id := range pf.MissingIDs {
		seen[id]++
	}
	for _, q := range questions {
		assert.Equal(t, 1, seen[q.ID], q.ID)
	}
}

func TestGenerateAnswers_NoQuestionsOrClient(t *testing.T) {
	o := New(nil, &fakeStore{}, fakeTexts{}, Options{})
	answers, err := o.GenerateAnswers(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, answers)

	_, err = o.GenerateAnswers(context.Background(), Request{Questions: questions})
	assert.True(t, errors.Is(err, model.ErrCollaborator))
}

func TestBuildContext_OrderAndPreference(t *testing.T) {
	st := &fakeStore{
		company: &model.CompanyInfo{Name: "Acme", Overview: "We build networks."},
		kb:      []model.KnowledgeEntry{{Title: "2024 district win", Category: model.KnowledgeCaseStudy, Content: "Case study body"}},
	}
	texts := fakeTexts{summaries: map[string]string{"d1": "Summary of d1"}}
	o := New(nil, st, texts, Options{DocRawChars: 10})

	sources := []Source{
		{Kind: model.EntityDocument, ID: "d1", Label: "rfp.pdf", Content: "raw d1"},
		{Kind: model.EntityDocument, ID: "d2", Label: "addendum.docx", Content: "raw text of the addendum"},
	}
	bundle, err := o.BuildContext(context.Background(), sources, true)
	require.NoError(t, err)

	company := strings.Index(bundle, "## Company profile")
	d1 := strings.Index(bundle, "## Source: rfp.pdf (summary)\nSummary of d1")
	d2 := strings.Index(bundle, "## Source: addendum.docx\nraw text o")
	kb := strings.Index(bundle, "## Knowledge base: 2024 district win (case_study)")
	assert.Equal(t, 0, company)
	assert.Greater(t, d1, company)
	assert.Greater(t, d2, d1)
	assert.Greater(t, kb, d2)
	assert.NotContains(t, bundle, "raw d1")

	withoutKB, err := o.BuildContext(context.Background(), sources, false)
	require.NoError(t, err)
	assert.NotContains(t, withoutKB, "Knowledge base")
}

func TestBuildContext_Budget(t *testing.T) {
	o := New(nil, &fakeStore{}, fakeTexts{}, Options{MaxContextChars: 1000})
	sources := []Source{
		{Kind: model.EntityDocument, ID: "a", Label: "a", Content: strings.Repeat("a", 600)},
		{Kind: model.EntityDocument, ID: "b", Label: "b", Content: strings.Repeat("b", 600)},
		{Kind: model.EntityDocument, ID: "c", Label: "c", Content: strings.Repeat("c", 600)},
	}
	bundle, err := o.BuildContext(context.Background(), sources, false)
	require.NoError(t, err)

	assert.LessOrEqual(t, len([]rune(bundle)), 1000)
	assert.Contains(t, bundle, strings.Repeat("a", 600))
	assert.NotContains(t, bundle, "## c")
}
