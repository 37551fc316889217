package summarize

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
)

// Store is the persistence the summarize service reads and writes.
type Store interface {
	CacheStore
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	GetWebSource(ctx context.Context, id string) (*model.WebSource, error)
}

// Result is a summary served to callers.
type Result struct {
	Summary     *model.Summary `json:"summary"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Cached      bool           `json:"cached"`
}

// Service ties the Summarizer to the per-entity cache.
type Service struct {
	store      Store
	summarizer *Summarizer
	cache      *Cache
}

// NewService creates a Service.
func NewService(store Store, summarizer *Summarizer) *Service {
	return &Service{store: store, summarizer: summarizer, cache: NewCache(store)}
}

// Cache exposes the underlying summary cache.
func (s *Service) Cache() *Cache { return s.cache }

type source struct {
	label   string
	content string
	ptype   model.ProjectType
}

func (s *Service) load(ctx context.Context, projectID string, kind model.EntityKind, id string) (*source, error) {
	var src source
	var owner string
	switch kind {
	case model.EntityDocument:
		d, err := s.store.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		owner, src.label, src.content = d.ProjectID, d.Filename, d.Content
	case model.EntityWebSource:
		w, err := s.store.GetWebSource(ctx, id)
		if err != nil {
			return nil, err
		}
		src.label = w.Title
		if src.label == "" {
			src.label = w.URL
		}
		owner, src.content = w.ProjectID, w.Content
	default:
		return nil, model.NewValidationError("unknown entity kind %q", kind)
	}

	if projectID != "" && owner != projectID {
		return nil, model.NotFound(string(kind), id)
	}

	p, err := s.store.GetProject(ctx, owner)
	if err != nil {
		return nil, err
	}
	src.ptype = p.ProjectType
	return &src, nil
}

// Summarize returns the cached summary for the entity, generating and
// caching a new one on a miss or when force is set. Generation failures are
// returned to the caller and leave the cache untouched.
func (s *Service) Summarize(ctx context.Context, projectID string, kind model.EntityKind, id string, force bool) (*Result, error) {
	src, err := s.load(ctx, projectID, kind, id)
	if err != nil {
		return nil, err
	}

	if !force {
		entry, err := s.cache.Get(ctx, kind, id)
		switch {
		case err == nil:
			return &Result{Summary: entry.Summary, GeneratedAt: entry.GeneratedAt, Cached: true}, nil
		case !errors.Is(err, model.ErrCacheMiss):
			return nil, err
		}
	}

	start := time.Now()
	sum, err := s.summarizer.Summarize(ctx, src.content, src.label, src.ptype)
	if err != nil {
		return nil, err
	}

	entry, err := s.cache.Set(ctx, kind, id, sum)
	if err != nil {
		return nil, err
	}

	zap.L().Info("summarize: generated",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.String("strategy", string(sum.Strategy)),
		zap.Int("chunks", sum.ChunkCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{Summary: entry.Summary, GeneratedAt: entry.GeneratedAt}, nil
}

// Invalidate clears the entity's cached summary after checking ownership.
func (s *Service) Invalidate(ctx context.Context, projectID string, kind model.EntityKind, id string) error {
	if _, err := s.load(ctx, projectID, kind, id); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, kind, id)
}

// BestText returns the rendered cached summary when one is valid and
// otherwise the raw content truncated to maxRaw runes.
func (s *Service) BestText(ctx context.Context, kind model.EntityKind, id, raw string, maxRaw int) (string, bool) {
	entry, err := s.cache.Get(ctx, kind, id)
	if err == nil {
		return entry.Summary.Render(), true
	}
	if !errors.Is(err, model.ErrCacheMiss) {
		zap.L().Warn("summarize: cache read failed, using raw text",
			zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
	}
	return Truncate(raw, maxRaw), false
}

// Truncate shortens s to at most n runes, preferring to cut at a line break.
// n <= 0 returns s unchanged.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := s[:runeOffset(s, 0, n)]
	if idx := strings.LastIndexByte(cut, '\n'); idx > len(cut)*3/4 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "\n[truncated]"
}
