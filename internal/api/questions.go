package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/question"
)

func (h *handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.Questions.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, qs)
}

func (h *handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var in question.Input
	if err := decodeJSON(w, r, &in, false); err != nil {
		handleError(w, r, err)
		return
	}
	q, err := h.Questions.Create(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, q)
}

func (h *handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var p question.Patch
	if err := decodeJSON(w, r, &p, false); err != nil {
		handleError(w, r, err)
		return
	}
	q, err := h.Questions.Update(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "qId"), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

func (h *handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.Questions.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "qId")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) reorderQuestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Order []model.QuestionPosition `json:"order"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleError(w, r, err)
		return
	}
	qs, err := h.Questions.Reorder(r.Context(), chi.URLParam(r, "id"), req.Order)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, qs)
}

func (h *handler) importQuestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"documentId"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		handleError(w, r, err)
		return
	}
	qs, err := h.Questions.Import(r.Context(), chi.URLParam(r, "id"), req.DocumentID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, qs)
}

func (h *handler) regenerateAnswer(w http.ResponseWriter, r *http.Request) {
	var req question.AnswerRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		handleError(w, r, err)
		return
	}
	q, err := h.Questions.Regenerate(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "qId"), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// generateAnswers answers every question. When some questions get no
// answer the saved ones are returned with 207 and the missing ids.
func (h *handler) generateAnswers(w http.ResponseWriter, r *http.Request) {
	var req question.AnswerRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		handleError(w, r, err)
		return
	}
	answers, err := h.Questions.GenerateAll(r.Context(), chi.URLParam(r, "id"), req)
	var partial *model.PartialFailureError
	if errors.As(err, &partial) {
		respondJSON(w, http.StatusMultiStatus, map[string]any{
			"answers": answers,
			"missing": partial.MissingIDs,
			"detail":  partial.Error(),
		})
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"answers": answers})
}
