package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 4 << 20

// Problem is an RFC 7807 problem details body. Extra fields are written at
// the top level.
type Problem struct {
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Status int            `json:"status"`
	Detail string         `json:"detail,omitempty"`
	Extra  map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the problem object.
func (p Problem) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	for k, v := range p.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		respondProblem(w, http.StatusInternalServerError, "failed to encode response", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func respondProblem(w http.ResponseWriter, status int, detail string, extra map[string]any) {
	payload, err := json.Marshal(Problem{
		Type:   problemType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Extra:  extra,
	})
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func problemType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.1"
	case http.StatusNotFound:
		return "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.5"
	case http.StatusConflict:
		return "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.10"
	case http.StatusRequestEntityTooLarge:
		return "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.14"
	case http.StatusUnprocessableEntity:
		return "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.21"
	case http.StatusInternalServerError:
		return "https://datatracker.ietf.org/doc/html/rfc9110#section-15.6.1"
	case http.StatusBadGateway:
		return "https://datatracker.ietf.org/doc/html/rfc9110#section-15.6.3"
	default:
		return "about:blank"
	}
}

// handleError maps domain errors onto problem responses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		tooLarge *http.MaxBytesError
		partial  *model.PartialFailureError
	)
	switch {
	case errors.As(err, &partial):
		respondProblem(w, http.StatusMultiStatus, err.Error(), map[string]any{"missing": partial.MissingIDs})
	case errors.As(err, &tooLarge):
		respondProblem(w, http.StatusRequestEntityTooLarge, err.Error(), nil)
	case errors.Is(err, model.ErrValidation):
		respondProblem(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, model.ErrNotFound):
		respondProblem(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, model.ErrConflict):
		respondProblem(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, model.ErrNothingToSummarize):
		respondProblem(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, model.ErrSummarizationFailed), errors.Is(err, model.ErrCollaborator):
		zap.L().Warn("api: collaborator failure",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondProblem(w, http.StatusBadGateway, err.Error(), nil)
	default:
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondProblem(w, http.StatusInternalServerError, "internal server error", nil)
	}
}

// decodeJSON reads a JSON body into v. An empty body is an error unless
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return model.NewValidationError("invalid request body: %v", err)
	}
	return nil
}
