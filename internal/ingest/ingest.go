// Package ingest turns uploads and scraped pages into stored documents and
// web sources, then summarizes them on a best-effort basis.
package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/extract"
	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/scrape"
	"github.com/sells-group/rfpdesk/internal/store"
	"github.com/sells-group/rfpdesk/internal/summarize"
)

// Mode selects when new content is summarized.
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
	ModeOff   Mode = "off"
)

// Store is the persistence ingest needs.
type Store interface {
	store.ActivityLogger
	GetProject(ctx context.Context, id string) (*model.Project, error)
	CreateDocument(ctx context.Context, d *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, projectID string) ([]model.Document, error)
	DeleteDocument(ctx context.Context, projectID, id string) error
	CreateWebSource(ctx context.Context, w *model.WebSource) error
	GetWebSource(ctx context.Context, id string) (*model.WebSource, error)
	ListWebSources(ctx context.Context, projectID string) ([]model.WebSource, error)
	UpdateWebSourceContent(ctx context.Context, id, title, content string) error
	DeleteWebSource(ctx context.Context, projectID, id string) error
}

// Extractor reads text out of uploaded files.
type Extractor interface {
	Extract(ctx context.Context, filename, mimeType string, data []byte) (*extract.Result, error)
}

// Fetcher retrieves a web page.
type Fetcher interface {
	Scrape(ctx context.Context, url string) (*scrape.Result, error)
}

// Summaries generates and caches summaries.
type Summaries interface {
	Summarize(ctx context.Context, projectID string, kind model.EntityKind, id string, force bool) (*summarize.Result, error)
}

// Service handles documents and web sources for a project.
type Service struct {
	store     Store
	extractor Extractor
	fetcher   Fetcher
	summaries Summaries
	mode      Mode
	pool      *Pool
	timeout   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithSummaries enables automatic summarization in the given mode. Async
// mode requires a pool.
func WithSummaries(s Summaries, mode Mode, pool *Pool) Option {
	return func(svc *Service) {
		svc.summaries, svc.mode, svc.pool = s, mode, pool
	}
}

// WithSyncTimeout bounds an inline summary after upload or scrape.
func WithSyncTimeout(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.timeout = d
		}
	}
}

// NewService creates a Service. Without WithSummaries nothing is summarized
// automatically.
func NewService(st Store, x Extractor, f Fetcher, opts ...Option) *Service {
	s := &Service{store: st, extractor: x, fetcher: f, mode: ModeOff, timeout: 2 * time.Minute}
	for _, o := range opts {
		o(s)
	}
	if s.summaries == nil || (s.mode == ModeAsync && s.pool == nil) {
		s.mode = ModeOff
	}
	return s
}

// Upload extracts text from a file and stores it as a project document.
func (s *Service) Upload(ctx context.Context, projectID, filename, mimeType string, data []byte) (*model.Document, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, model.NewValidationError("filename is required")
	}
	if _, err := s.writableProject(ctx, projectID); err != nil {
		return nil, err
	}

	res, err := s.extractor.Extract(ctx, filename, mimeType, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, model.NewValidationError("no text could be extracted from %s", filename)
	}

	d := &model.Document{
		ProjectID:  projectID,
		Filename:   filename,
		MimeType:   mimeType,
		SizeBytes:  int64(len(data)),
		Content:    res.Text,
		PageCount:  res.PageCount,
		SheetCount: res.SheetCount,
		WordCount:  res.WordCount,
	}
	if err := s.store.CreateDocument(ctx, d); err != nil {
		return nil, eris.Wrap(err, "ingest: store document")
	}

	zap.L().Info("ingest: document uploaded",
		zap.String("project_id", projectID),
		zap.String("document_id", d.ID),
		zap.String("format", string(res.Format)),
		zap.Int("words", res.WordCount),
		zap.Bool("ocr", res.OCR),
	)
	store.RecordActivity(ctx, s.store, projectID, model.ActivityDocumentUploaded, filename)

	if at := s.autoSummarize(ctx, projectID, model.EntityDocument, d.ID); at != nil {
		d.SummaryGeneratedAt = at
	}
	return d, nil
}

// Scrape fetches a page and stores it as a project web source.
func (s *Service) Scrape(ctx context.Context, projectID, rawURL string) (*model.WebSource, error) {
	if _, err := s.writableProject(ctx, projectID); err != nil {
		return nil, err
	}
	if s.fetcher == nil {
		return nil, eris.Wrap(model.ErrCollaborator, "ingest: no scraper configured")
	}

	page, err := s.fetcher.Scrape(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	w := &model.WebSource{
		ProjectID:   projectID,
		URL:         page.URL,
		Title:       page.Title,
		Content:     page.Content,
		FetchMethod: page.Method,
	}
	if err := s.store.CreateWebSource(ctx, w); err != nil {
		return nil, eris.Wrap(err, "ingest: store web source")
	}

	store.RecordActivity(ctx, s.store, projectID, model.ActivitySourceScraped, w.URL)

	if at := s.autoSummarize(ctx, projectID, model.EntityWebSource, w.ID); at != nil {
		w.SummaryGeneratedAt = at
	}
	return w, nil
}

// UpdateSource replaces a web source's text. The cached summary is cleared
// by the store in the same statement.
func (s *Service) UpdateSource(ctx context.Context, projectID, id, title, content string) (*model.WebSource, error) {
	w, err := s.source(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, model.NewValidationError("content must not be empty")
	}
	if strings.TrimSpace(title) == "" {
		title = w.Title
	}

	if err := s.store.UpdateWebSourceContent(ctx, id, title, content); err != nil {
		return nil, eris.Wrap(err, "ingest: update web source")
	}
	store.RecordActivity(ctx, s.store, projectID, model.ActivitySourceUpdated, w.URL)

	return s.store.GetWebSource(ctx, id)
}

// Documents lists a project's documents.
func (s *Service) Documents(ctx context.Context, projectID string) ([]model.Document, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, nil
}

// Sources lists a project's web sources.
func (s *Service) Sources(ctx context.Context, projectID string) ([]model.WebSource, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	srcs, err := s.store.ListWebSources(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if srcs == nil {
		srcs = []model.WebSource{}
	}
	return srcs, nil
}

// DeleteDocument removes a document from its project.
func (s *Service) DeleteDocument(ctx context.Context, projectID, id string) error {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if d.ProjectID != projectID {
		return model.NotFound("document", id)
	}
	if err := s.store.DeleteDocument(ctx, projectID, id); err != nil {
		return err
	}
	store.RecordActivity(ctx, s.store, projectID, model.ActivityDocumentDeleted, d.Filename)
	return nil
}

// DeleteSource removes a web source from its project.
func (s *Service) DeleteSource(ctx context.Context, projectID, id string) error {
	w, err := s.source(ctx, projectID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteWebSource(ctx, projectID, id); err != nil {
		return err
	}
	store.RecordActivity(ctx, s.store, projectID, model.ActivitySourceDeleted, w.URL)
	return nil
}

func (s *Service) source(ctx context.Context, projectID, id string) (*model.WebSource, error) {
	w, err := s.store.GetWebSource(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.ProjectID != projectID {
		return nil, model.NotFound("web source", id)
	}
	return w, nil
}

func (s *Service) writableProject(ctx context.Context, projectID string) (*model.Project, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, model.NewValidationError("projectId is required")
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Archived() {
		return nil, model.NewValidationError("project %s is archived", projectID)
	}
	return p, nil
}

// autoSummarize runs the configured summary policy for new content. It never
// fails the caller; it returns the generation time when a summary was
// produced inline.
func (s *Service) autoSummarize(ctx context.Context, projectID string, kind model.EntityKind, id string) *time.Time {
	log := zap.L().With(
		zap.String("project_id", projectID),
		zap.String("kind", string(kind)),
		zap.String("id", id),
	)

	switch s.mode {
	case ModeSync:
		sctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		res, err := s.summaries.Summarize(sctx, projectID, kind, id, false)
		if err != nil {
			log.Warn("ingest: summary failed, raw text will be used", zap.Error(err))
			return nil
		}
		return &res.GeneratedAt
	case ModeAsync:
		ok := s.pool.Submit(ctx, "summarize "+string(kind)+" "+id, func(ctx context.Context) error {
			_, err := s.summaries.Summarize(ctx, projectID, kind, id, false)
			return err
		})
		if !ok {
			log.Warn("ingest: summary queue full, skipping background summary")
		}
	}
	return nil
}
