package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/rfpdesk/internal/export"
	"github.com/sells-group/rfpdesk/internal/model"
)

func (h *handler) getDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.Drafts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  json.RawMessage `json:"content"`
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleError(w, r, err)
		return
	}
	d, changed, err := h.Drafts.Save(r.Context(), chi.URLParam(r, "id"), req.Content, req.Metadata)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		*model.Draft
		Changed bool `json:"changed"`
	}{d, changed})
}

func (h *handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.Drafts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listRevisions(w http.ResponseWriter, r *http.Request) {
	revs, err := h.Drafts.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if revs == nil {
		revs = []model.DraftRevision{}
	}
	respondJSON(w, http.StatusOK, revs)
}

func (h *handler) restoreRevision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RevisionID string `json:"revisionId"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleError(w, r, err)
		return
	}
	if req.RevisionID == "" {
		handleError(w, r, model.NewValidationError("revisionId is required"))
		return
	}
	d, err := h.Drafts.Restore(r.Context(), chi.URLParam(r, "id"), req.RevisionID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *handler) generate(t export.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := h.Export.Generate(r.Context(), chi.URLParam(r, "id"), t)
		if err != nil {
			handleError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", f.ContentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
		w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(f.Data)
	}
}
