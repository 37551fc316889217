package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rfpdesk/internal/answer"
	"github.com/sells-group/rfpdesk/internal/draft"
	"github.com/sells-group/rfpdesk/internal/export"
	"github.com/sells-group/rfpdesk/internal/extract"
	"github.com/sells-group/rfpdesk/internal/ingest"
	"github.com/sells-group/rfpdesk/internal/knowledge"
	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/project"
	"github.com/sells-group/rfpdesk/internal/question"
	"github.com/sells-group/rfpdesk/internal/scrape"
	"github.com/sells-group/rfpdesk/internal/store"
	"github.com/sells-group/rfpdesk/internal/store/storetest"
	"github.com/sells-group/rfpdesk/internal/summarize"
	"github.com/sells-group/rfpdesk/pkg/anthropic"
	"github.com/sells-group/rfpdesk/pkg/anthropic/anthropictest"
)

const chunkReply = `{"narrative":"The library wants Wi-Fi.","key_points":["Replace access points"],"fields":{"scope":"Wi-Fi refresh"}}`

type fetcher struct {
	mu  sync.Mutex
	res *scrape.Result
	err error
}

func (f *fetcher) set(res *scrape.Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.res, f.err = res, err
}

func (f *fetcher) Scrape(_ context.Context, _ string) (*scrape.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res, f.err
}

// replies lets a test swap the model's behavior between requests.
type replies struct {
	mu sync.Mutex
	fn func(anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (r *replies) set(fn func(anthropic.MessageRequest) (*anthropic.MessageResponse, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn = fn
}

func (r *replies) call(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	return fn(req)
}

type env struct {
	t      *testing.T
	st     *store.SQLiteStore
	client *anthropictest.Client
	model  *replies
	fetch  *fetcher
	srv    *httptest.Server
}

// replyFn answers summary prompts with chunkReply and answer prompts with
// one answer per question id.
func replyFn(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	content := req.Messages[0].Content
	if !strings.Contains(content, "JSON array") {
		if strings.HasPrefix(content, "Question (") {
			return anthropictest.Reply("Single answer."), nil
		}
		return anthropictest.Reply(chunkReply), nil
	}
	var items []struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal([]byte(content[strings.Index(content, "["):]), &items)
	out := make([]model.Answer, 0, len(items))
	for _, it := range items {
		out = append(out, model.Answer{QuestionID: it.ID, Text: "Batched answer."})
	}
	b, _ := json.Marshal(out)
	return anthropictest.Reply(string(b)), nil
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := storetest.New(t)
	rep := &replies{fn: replyFn}
	client := &anthropictest.Client{Fn: rep.call}
	fetch := &fetcher{}

	sums := summarize.NewService(st, summarize.New(client, summarize.Options{
		SmallThreshold: 2000, LargeThreshold: 15000, ChunkSize: 12000, MaxKeyPoints: 10, Concurrency: 2, Model: "m",
	}))
	answers := answer.New(client, st, sums, answer.Options{Model: "m", MaxContextChars: 60000, DocRawChars: 8000})

	router := NewRouter(Deps{
		DB:             st,
		Projects:       project.NewService(st),
		Ingest:         ingest.NewService(st, extract.New(), fetch, ingest.WithSummaries(sums, ingest.ModeSync, nil)),
		Summaries:      sums,
		Drafts:         draft.NewService(st),
		Questions:      question.NewService(st, answers),
		Knowledge:      knowledge.NewService(st),
		Export:         export.NewService(st),
		MaxUploadBytes: 1 << 20,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &env{t: t, st: st, client: client, model: rep, fetch: fetch, srv: srv}
}

func (e *env) do(method, path string, body any) *http.Response {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func (e *env) upload(projectID, filename string, data []byte) *http.Response {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(e.t, mw.WriteField("projectId", projectID))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(e.t, err)
	_, err = fw.Write(data)
	require.NoError(e.t, err)
	require.NoError(e.t, mw.Close())

	resp, err := http.Post(e.srv.URL+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *env) project(name, typ string) model.Project {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/projects", map[string]string{"name": name, "projectType": typ})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
	return decode[model.Project](e.t, resp)
}

func longText(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		b.WriteString("The library will replace aging wireless access points at every branch and expects installation support. ")
		if i%5 == 4 {
			b.WriteString("\n\n")
		}
	}
	return b.String()[:n]
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp := e.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProjects_Lifecycle(t *testing.T) {
	e := newEnv(t)
	p := e.project("Library Wi-Fi", "rfp")
	assert.Equal(t, model.ProjectTypeRFP, p.ProjectType)

	resp := e.do(http.MethodPost, "/api/projects", map[string]string{"name": "", "projectType": "RFP"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	problem := decode[map[string]any](t, resp)
	assert.EqualValues(t, 400, problem["status"])

	resp = e.do(http.MethodPatch, "/api/projects/"+p.ID, map[string]string{"action": "archive"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, decode[model.Project](t, resp).ArchivedAt)

	resp = e.do(http.MethodGet, "/api/projects?archived=false", nil)
	assert.Empty(t, decode[[]model.Project](t, resp))

	resp = e.do(http.MethodPatch, "/api/projects/"+p.ID, map[string]string{"action": "restore"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(http.MethodPatch, "/api/projects/"+p.ID, map[string]string{"action": "explode"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(http.MethodDelete, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(http.MethodGet, "/api/projects/"+p.ID, nil)
	got := decode[model.Project](t, resp)
	assert.Equal(t, model.ArchiveReasonDeleted, got.ArchiveReason)

	resp = e.do(http.MethodGet, "/api/projects/"+p.ID+"/activity", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[[]model.Activity](t, resp))

	resp = e.do(http.MethodGet, "/api/projects/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(http.MethodGet, "/api/projects?archived=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpload_LargePlaintextIsSummarizedInChunks(t *testing.T) {
	e := newEnv(t)
	p := e.project("County RFP", "RFP")
	before := time.Now().UTC().Add(-time.Second)

	resp := e.upload(p.ID, "rfp.txt", []byte(longText(20000)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := decode[documentView](t, resp)
	require.NotNil(t, doc.Summary)
	assert.Greater(t, doc.Summary.ChunkCount, 1)
	require.NotNil(t, doc.SummaryGeneratedAt)
	assert.True(t, doc.SummaryGeneratedAt.After(before))

	resp = e.do(http.MethodGet, "/api/projects/"+p.ID+"/documents", nil)
	docs := decode[[]documentView](t, resp)
	require.Len(t, docs, 1)
	require.NotNil(t, docs[0].Summary)

	calls := e.client.Calls()
	resp = e.do(http.MethodPost, "/api/projects/"+p.ID+"/documents/"+doc.ID+"/summarize", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[summaryResponse](t, resp).Cached)
	assert.Equal(t, calls, e.client.Calls())

	resp = e.do(http.MethodDelete, "/api/projects/"+p.ID+"/documents/"+doc.ID+"/delete-summary", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(http.MethodPost, "/api/projects/"+p.ID+"/documents/"+doc.ID+"/summarize", map[string]bool{"force": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[summaryResponse](t, resp).Cached)
	assert.Greater(t, e.client.Calls(), calls)

	resp = e.do(http.MethodDelete, "/api/projects/"+p.ID+"/documents/"+doc.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestUpload_Validation(t *testing.T) {
	e := newEnv(t)
	p := e.project("P", "RFI")

	resp := e.upload("", "a.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.upload(p.ID, "empty.txt", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.upload("missing", "a.txt", []byte("hello there"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.upload(p.ID, "big.txt", bytes.Repeat([]byte("a"), 3<<19))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScrapeAndSources(t *testing.T) {
	e := newEnv(t)
	p := e.project("P", "RFP")
	e.fetch.set(&scrape.Result{URL: "https://county.gov/rfp", Title: "County RFP", Content: "Short page text about the county RFP.", Method: model.FetchLocalHTTP}, nil)

	resp := e.do(http.MethodPost, "/api/scrape", map[string]string{"url": "county.gov/rfp", "projectId": p.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	src := decode[sourceView](t, resp)
	require.NotNil(t, src.Summary)

	resp = e.do(http.MethodPut, "/api/projects/"+p.ID+"/sources/"+src.ID, map[string]string{"content": "Edited text."})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	edited := decode[sourceView](t, resp)
	assert.Nil(t, edited.Summary)
	assert.Equal(t, "County RFP", edited.Title)

	resp = e.do(http.MethodGet, "/api/projects/"+p.ID+"/sources", nil)
	require.Len(t, decode[[]sourceView](t, resp), 1)

	resp = e.do(http.MethodDelete, "/api/projects/"+p.ID+"/sources/"+src.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	e.fetch.set(nil, errors.Join(model.ErrCollaborator, errors.New("all scrapers failed")))
	resp = e.do(http.MethodPost, "/api/scrape", map[string]string{"url": "https://county.gov/x", "projectId": p.ID})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDraftRevisions(t *testing.T) {
	e := newEnv(t)
	p := e.project("P", "RFP")
	base := "/api/projects/" + p.ID + "/draft"

	resp := e.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(http.MethodPut, base, map[string]any{"content": map[string]string{"summary": "v1"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.do(http.MethodPut, base, map[string]any{"content": map[string]string{"summary": "v2"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.do(http.MethodPut, base, map[string]any{"content": map[string]string{"summary": "v2"}})
	saved := decode[map[string]any](t, resp)
	assert.Equal(t, false, saved["changed"])
	assert.EqualValues(t, 2, saved["currentVersion"])

	resp = e.do(http.MethodGet, base+"/revisions", nil)
	revs := decode[[]model.DraftRevision](t, resp)
	require.Len(t, revs, 2)
	var v1 model.DraftRevision
	for _, r := range revs {
		if r.Version == 1 {
			v1 = r
		}
	}

	resp = e.do(http.MethodPost, base+"/revisions", map[string]string{"revisionId": v1.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[model.Draft](t, resp)
	assert.Greater(t, d.CurrentVersion, 2)
	assert.JSONEq(t, `{"summary":"v1"}`, string(d.Content))

	resp = e.do(http.MethodPost, base+"/revisions", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(http.MethodGet, base+"/revisions", nil)
	assert.Empty(t, decode[[]model.DraftRevision](t, resp))
}

func TestQuestions(t *testing.T) {
	e := newEnv(t)
	p := e.project("P", "RFI")
	base := "/api/projects/" + p.ID + "/questions"

	var ids []string
	for _, text := range []string{"What is your warranty?", "Describe your support model.", "Provide pricing."} {
		resp := e.do(http.MethodPost, base, map[string]string{"text": text})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		ids = append(ids, decode[model.Question](t, resp).ID)
	}

	resp := e.do(http.MethodPut, base+"/reorder", map[string]any{"order": []model.QuestionPosition{
		{ID: ids[2], Position: 0}, {ID: "ghost", Position: 1}, {ID: ids[0], Position: 2},
	}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = e.do(http.MethodGet, base, nil)
	qs := decode[[]model.Question](t, resp)
	assert.Equal(t, ids[0], qs[0].ID)

	resp = e.do(http.MethodPut, base+"/reorder", map[string]any{"order": []model.QuestionPosition{
		{ID: ids[2], Position: 0}, {ID: ids[1], Position: 1}, {ID: ids[0], Position: 2},
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ids[2], decode[[]model.Question](t, resp)[0].ID)

	answer := "Three years."
	resp = e.do(http.MethodPut, base+"/"+ids[0], map[string]*string{"answer": &answer})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, answer, decode[model.Question](t, resp).Answer)

	resp = e.do(http.MethodPost, base+"/generate-answers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[map[string][]model.Answer](t, resp)["answers"], 3)

	resp = e.do(http.MethodPost, base+"/"+ids[1]+"/regenerate-answer", map[string]any{"useKnowledgeBase": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Batched answer.", decode[model.Question](t, resp).Answer)

	resp = e.do(http.MethodDelete, base+"/"+ids[1], nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestQuestions_GenerateAnswersPartialFailure(t *testing.T) {
	e := newEnv(t)
	p := e.project("P", "RFI")
	base := "/api/projects/" + p.ID + "/questions"
	var ids []string
	for _, text := range []string{"What is your warranty?", "Describe your support model."} {
		resp := e.do(http.MethodPost, base, map[string]string{"text": text})
		ids = append(ids, decode[model.Question](t, resp).ID)
	}
	e.model.set(func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		if strings.Contains(req.Messages[0].Content, "JSON array") {
			b, _ := json.Marshal([]model.Answer{{QuestionID: ids[0], Text: "Only one."}})
			return anthropictest.Reply(string(b)), nil
		}
		return nil, errors.New("overloaded")
	})

	resp := e.do(http.MethodPost, base+"/generate-answers", map[string]any{})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	body := decode[struct {
		Answers []model.Answer `json:"answers"`
		Missing []string       `json:"missing"`
	}](t, resp)
	assert.Equal(t, []string{ids[1]}, body.Missing)
	require.Len(t, body.Answers, 1)

	e.model.set(func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return nil, errors.New("down")
	})
	resp = e.do(http.MethodPost, base+"/"+ids[1]+"/regenerate-answer", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestQuestions_Import(t *testing.T) {
	e := newEnv(t)
	p := e.project("P", "RFP")
	resp := e.upload(p.ID, "rfp.txt", []byte("Section 3\n1. Describe your installation approach for branch libraries.\n2. What is your proposed project timeline?\n"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := decode[documentView](t, resp)

	resp = e.do(http.MethodPost, "/api/projects/"+p.ID+"/questions/import", map[string]string{"documentId": doc.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, decode[[]model.Question](t, resp), 2)
}

func TestExport(t *testing.T) {
	e := newEnv(t)
	p := e.project("Library Wi-Fi", "FORM470")
	e.do(http.MethodPut, "/api/projects/"+p.ID+"/draft", map[string]any{"content": map[string]string{"services": "Internet access, 1 Gbps."}})

	for path, suffix := range map[string]string{
		"/generate":         "rfp-response.docx",
		"/generate-rfi":     "rfi-response.docx",
		"/generate-form470": "form470.docx",
	} {
		resp := e.do(http.MethodPost, "/api/projects/"+p.ID+path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
		assert.Contains(t, resp.Header.Get("Content-Disposition"), suffix)
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "PK", string(data[:2]))
	}

	resp := e.do(http.MethodPost, "/api/projects/missing/generate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompanyAndKnowledge(t *testing.T) {
	e := newEnv(t)

	resp := e.do(http.MethodPut, "/api/company", map[string]any{"name": "Acme Networks", "capabilities": []string{"Wi-Fi"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.do(http.MethodGet, "/api/company", nil)
	assert.Equal(t, "Acme Networks", decode[model.CompanyInfo](t, resp).Name)

	resp = e.do(http.MethodPost, "/api/knowledge", map[string]string{"title": "Warranty", "category": "capability", "content": "Five years."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := decode[model.KnowledgeEntry](t, resp)

	resp = e.do(http.MethodPost, "/api/knowledge", map[string]string{"title": "Bad", "category": "gossip", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(http.MethodGet, "/api/knowledge", nil)
	assert.Len(t, decode[[]model.KnowledgeEntry](t, resp), 1)

	resp = e.do(http.MethodDelete, "/api/knowledge/"+entry.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(http.MethodDelete, "/api/knowledge/"+entry.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownRouteIsProblem(t *testing.T) {
	e := newEnv(t)
	resp := e.do(http.MethodGet, "/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestCORS(t *testing.T) {
	e := newEnv(t)
	req, err := http.NewRequest(http.MethodOptions, e.srv.URL+"/api/projects", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
