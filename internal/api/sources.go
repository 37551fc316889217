package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/summarize"
)

type documentView struct {
	model.Document
	Summary *model.Summary `json:"summary,omitempty"`
}

type sourceView struct {
	model.WebSource
	Summary *model.Summary `json:"summary,omitempty"`
}

func newDocumentView(d model.Document) documentView {
	sum, _ := summarize.Decode(d.SummaryCache)
	return documentView{Document: d, Summary: sum}
}

func newSourceView(s model.WebSource) sourceView {
	sum, _ := summarize.Decode(s.SummaryCache)
	return sourceView{WebSource: s, Summary: sum}
}

// cachedSummary reads a freshly generated summary that the returned entity
// does not carry yet.
func (h *handler) cachedSummary(ctx context.Context, kind model.EntityKind, id string, generatedAt *time.Time) *model.Summary {
	if generatedAt == nil || h.Summaries == nil {
		return nil
	}
	entry, err := h.Summaries.Cache().Get(ctx, kind, id)
	if err != nil {
		return nil
	}
	return entry.Summary
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handleError(w, r, err)
			return
		}
		handleError(w, r, model.NewValidationError("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	projectID := strings.TrimSpace(r.FormValue("projectId"))
	if projectID == "" {
		handleError(w, r, model.NewValidationError("projectId is required"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		handleError(w, r, model.NewValidationError("file is required"))
		return
	}
	defer file.Close() //nolint:errcheck

	if header.Size > h.MaxUploadBytes {
		handleError(w, r, model.NewValidationError("file exceeds the %d byte upload limit", h.MaxUploadBytes))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		handleError(w, r, err)
		return
	}

	doc, err := h.Ingest.Upload(r.Context(), projectID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		handleError(w, r, err)
		return
	}
	view := newDocumentView(*doc)
	if view.Summary == nil {
		view.Summary = h.cachedSummary(r.Context(), model.EntityDocument, doc.ID, doc.SummaryGeneratedAt)
	}
	respondJSON(w, http.StatusCreated, view)
}

func (h *handler) scrape(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL       string `json:"url"`
		ProjectID string `json:"projectId"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		handleError(w, r, model.NewValidationError("projectId is required"))
		return
	}
	src, err := h.Ingest.Scrape(r.Context(), req.ProjectID, req.URL)
	if err != nil {
		handleError(w, r, err)
		return
	}
	view := newSourceView(*src)
	if view.Summary == nil {
		view.Summary = h.cachedSummary(r.Context(), model.EntityWebSource, src.ID, src.SummaryGeneratedAt)
	}
	respondJSON(w, http.StatusCreated, view)
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Ingest.Documents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	out := make([]documentView, len(docs))
	for i, d := range docs {
		out[i] = newDocumentView(d)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.Ingest.DeleteDocument(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "docId")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listSources(w http.ResponseWriter, r *http.Request) {
	srcs, err := h.Ingest.Sources(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	out := make([]sourceView, len(srcs))
	for i, s := range srcs {
		out[i] = newSourceView(s)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *handler) updateSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleError(w, r, err)
		return
	}
	src, err := h.Ingest.UpdateSource(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "srcId"), req.Title, req.Content)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newSourceView(*src))
}

func (h *handler) deleteSource(w http.ResponseWriter, r *http.Request) {
	if err := h.Ingest.DeleteSource(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "srcId")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type summaryResponse struct {
	Summary     *model.Summary `json:"summary"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Cached      bool           `json:"cached"`
}

func (h *handler) summarizeEntity(kind model.EntityKind, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Force bool `json:"force"`
		}
		if err := decodeJSON(w, r, &req, true); err != nil {
			handleError(w, r, err)
			return
		}
		res, err := h.Summaries.Summarize(r.Context(), chi.URLParam(r, "id"), kind, chi.URLParam(r, param), req.Force)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, summaryResponse{Summary: res.Summary, GeneratedAt: res.GeneratedAt, Cached: res.Cached})
	}
}

func (h *handler) clearSummary(kind model.EntityKind, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.Summaries.Invalidate(r.Context(), chi.URLParam(r, "id"), kind, chi.URLParam(r, param)); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handler) summarizeDocument(w http.ResponseWriter, r *http.Request) {
	h.summarizeEntity(model.EntityDocument, "docId")(w, r)
}

func (h *handler) clearDocumentSummary(w http.ResponseWriter, r *http.Request) {
	h.clearSummary(model.EntityDocument, "docId")(w, r)
}

func (h *handler) summarizeSource(w http.ResponseWriter, r *http.Request) {
	h.summarizeEntity(model.EntityWebSource, "srcId")(w, r)
}

func (h *handler) clearSourceSummary(w http.ResponseWriter, r *http.Request) {
	h.clearSummary(model.EntityWebSource, "srcId")(w, r)
}
