// Package api exposes the workbench over HTTP under /api.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/rfpdesk/internal/draft"
	"github.com/sells-group/rfpdesk/internal/export"
	"github.com/sells-group/rfpdesk/internal/ingest"
	"github.com/sells-group/rfpdesk/internal/knowledge"
	"github.com/sells-group/rfpdesk/internal/project"
	"github.com/sells-group/rfpdesk/internal/question"
	"github.com/sells-group/rfpdesk/internal/summarize"
)

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API serves.
type Deps struct {
	DB        Pinger
	Projects  *project.Service
	Ingest    *ingest.Service
	Summaries *summarize.Service
	Drafts    *draft.Service
	Questions *question.Service
	Knowledge *knowledge.Service
	Export    *export.Service

	// MaxUploadBytes caps multipart uploads; zero means 25 MiB.
	MaxUploadBytes int64
	// CORSOrigins lists allowed browser origins; empty allows any.
	CORSOrigins []string
}

type handler struct {
	Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 25 << 20
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h := &handler{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondProblem(w, http.StatusNotFound, "no such route", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondProblem(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)

		r.Post("/upload", h.upload)
		r.Post("/scrape", h.scrape)

		r.Get("/company", h.getCompany)
		r.Put("/company", h.putCompany)
		r.Get("/knowledge", h.listKnowledge)
		r.Post("/knowledge", h.addKnowledge)
		r.Delete("/knowledge/{id}", h.deleteKnowledge)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.createProject)
			r.Get("/", h.listProjects)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getProject)
				r.Patch("/", h.patchProject)
				r.Delete("/", h.deleteProject)
				r.Get("/activity", h.activity)

				r.Get("/documents", h.listDocuments)
				r.Delete("/documents/{docId}", h.deleteDocument)
				r.Post("/documents/{docId}/summarize", h.summarizeDocument)
				r.Delete("/documents/{docId}/delete-summary", h.clearDocumentSummary)

				r.Get("/sources", h.listSources)
				r.Put("/sources/{srcId}", h.updateSource)
				r.Delete("/sources/{srcId}", h.deleteSource)
				r.Post("/sources/{srcId}/summarize", h.summarizeSource)
				r.Delete("/sources/{srcId}/delete-summary", h.clearSourceSummary)

				r.Get("/draft", h.getDraft)
				r.Put("/draft", h.saveDraft)
				r.Delete("/draft", h.deleteDraft)
				r.Get("/draft/revisions", h.listRevisions)
				r.Post("/draft/revisions", h.restoreRevision)

				r.Post("/generate", h.generate(export.TemplateRFP))
				r.Post("/generate-rfi", h.generate(export.TemplateRFI))
				r.Post("/generate-form470", h.generate(export.TemplateForm470))

				r.Get("/questions", h.listQuestions)
				r.Post("/questions", h.createQuestion)
				r.Put("/questions/reorder", h.reorderQuestions)
				r.Post("/questions/import", h.importQuestions)
				r.Post("/questions/generate-answers", h.generateAnswers)
				r.Put("/questions/{qId}", h.updateQuestion)
				r.Delete("/questions/{qId}", h.deleteQuestion)
				r.Post("/questions/{qId}/regenerate-answer", h.regenerateAnswer)
			})
		})
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			respondProblem(w, http.StatusServiceUnavailable, "database unavailable", nil)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
