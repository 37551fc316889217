package summarize

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
)

// CacheStore is the persistence the summary cache needs.
type CacheStore interface {
	GetSummaryCache(ctx context.Context, kind model.EntityKind, id string) (*model.CachedSummary, error)
	SetSummaryCache(ctx context.Context, kind model.EntityKind, id string, data []byte, generatedAt time.Time) error
	ClearSummaryCache(ctx context.Context, kind model.EntityKind, id string) error
}

// Cache reads and writes the summary stored on a document or web source.
// Concurrent writers race; the last write wins.
type Cache struct {
	store CacheStore
	now   func() time.Time
}

// NewCache creates a Cache over store.
func NewCache(store CacheStore) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Entry is a cached summary and the time it was generated.
type Entry struct {
	Summary     *model.Summary
	GeneratedAt time.Time
}

// Get returns the cached summary. Absent, undecodable and narrative-less
// values all report model.ErrCacheMiss. Unknown entities report not found.
func (c *Cache) Get(ctx context.Context, kind model.EntityKind, id string) (*Entry, error) {
	cs, err := c.store.GetSummaryCache(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if cs == nil || len(cs.Data) == 0 {
		return nil, model.ErrCacheMiss
	}

	sum, err := Decode(cs.Data)
	if err != nil {
		zap.L().Warn("summarize: undecodable cache entry",
			zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return nil, model.ErrCacheMiss
	}
	if sum == nil {
		return nil, model.ErrCacheMiss
	}

	e := &Entry{Summary: sum}
	if cs.GeneratedAt != nil {
		e.GeneratedAt = *cs.GeneratedAt
	}
	return e, nil
}

// Set overwrites the cached summary and stamps it with the current time.
func (c *Cache) Set(ctx context.Context, kind model.EntityKind, id string, sum *model.Summary) (*Entry, error) {
	if !sum.Valid() {
		return nil, model.NewValidationError("summary has no narrative")
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return nil, eris.Wrap(err, "summarize: marshal cache entry")
	}
	now := c.now().UTC()
	if err := c.store.SetSummaryCache(ctx, kind, id, data, now); err != nil {
		return nil, eris.Wrapf(err, "summarize: write cache %s %s", kind, id)
	}
	return &Entry{Summary: sum, GeneratedAt: now}, nil
}

// Invalidate clears the cached summary and its timestamp.
func (c *Cache) Invalidate(ctx context.Context, kind model.EntityKind, id string) error {
	if err := c.store.ClearSummaryCache(ctx, kind, id); err != nil {
		return eris.Wrapf(err, "summarize: clear cache %s %s", kind, id)
	}
	return nil
}

// Decode parses a stored cache value. Empty values and summaries without a
// narrative decode to nil.
func Decode(data []byte) (*model.Summary, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var sum model.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, eris.Wrap(err, "summarize: decode cache entry")
	}
	if !sum.Valid() {
		return nil, nil
	}
	return &sum, nil
}
