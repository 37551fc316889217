package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/rfpdesk/internal/model"
)

func (h *handler) getCompany(w http.ResponseWriter, r *http.Request) {
	c, err := h.Knowledge.Company(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *handler) putCompany(w http.ResponseWriter, r *http.Request) {
	var c model.CompanyInfo
	if err := decodeJSON(w, r, &c, false); err != nil {
		handleError(w, r, err)
		return
	}
	saved, err := h.Knowledge.SaveCompany(r.Context(), &c)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (h *handler) listKnowledge(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Knowledge.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *handler) addKnowledge(w http.ResponseWriter, r *http.Request) {
	var e model.KnowledgeEntry
	if err := decodeJSON(w, r, &e, false); err != nil {
		handleError(w, r, err)
		return
	}
	saved, err := h.Knowledge.Add(r.Context(), &e)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

func (h *handler) deleteKnowledge(w http.ResponseWriter, r *http.Request) {
	if err := h.Knowledge.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
