package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/project"
)

func (h *handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		project.CreateRequest
		ProjectType string `json:"projectType"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleError(w, r, err)
		return
	}
	req.CreateRequest.ProjectType = project.ParseType(req.ProjectType)
	p, err := h.Projects.Create(r.Context(), req.CreateRequest)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter model.ProjectFilter
	if v := q.Get("archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			handleError(w, r, model.NewValidationError("archived must be true or false"))
			return
		}
		filter.Archived = &b
	}
	if v := q.Get("type"); v != "" {
		filter.ProjectType = project.ParseType(v)
	}
	filter.Search = strings.TrimSpace(q.Get("q"))
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		handleError(w, r, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		handleError(w, r, err)
		return
	}

	projects, err := h.Projects.List(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

func (h *handler) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.Projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *handler) patchProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")

	var (
		p   *model.Project
		err error
	)
	switch strings.ToLower(req.Action) {
	case "archive":
		p, err = h.Projects.Archive(r.Context(), id, req.Reason)
	case "restore":
		p, err = h.Projects.Restore(r.Context(), id)
	default:
		err = model.NewValidationError("action must be archive or restore")
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.Projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) activity(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	acts, err := h.Projects.Activity(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acts)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, model.NewValidationError("%q is not a non-negative integer", v)
	}
	return n, nil
}
