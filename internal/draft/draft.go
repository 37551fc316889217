// Package draft manages a project's working response document as a live
// draft row plus an append-only revision log.
package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/store"
)

// Store is the persistence the draft service needs.
type Store interface {
	store.ActivityLogger
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetActiveDraft(ctx context.Context, projectID string) (*model.Draft, error)
	CreateDraft(ctx context.Context, projectID string, content, metadata json.RawMessage) (*model.Draft, error)
	AppendRevision(ctx context.Context, draftID string, content, metadata json.RawMessage) (*model.DraftRevision, error)
	SaveRevision(ctx context.Context, draftID string, content, metadata json.RawMessage, equal store.ContentEqual) (*model.DraftRevision, bool, error)
	LatestRevision(ctx context.Context, draftID string) (*model.DraftRevision, error)
	GetRevision(ctx context.Context, id string) (*model.DraftRevision, error)
	ListRevisions(ctx context.Context, draftID string) ([]model.DraftRevision, error)
	DeleteDrafts(ctx context.Context, projectID string) error
}

// Service implements save, restore and history for drafts.
type Service struct {
	store Store
}

// NewService creates a Service.
func NewService(st Store) *Service {
	return &Service{store: st}
}

// Get returns the project's active draft.
func (s *Service) Get(ctx context.Context, projectID string) (*model.Draft, error) {
	return s.store.GetActiveDraft(ctx, projectID)
}

// Save stores content as the draft's newest revision. The first save creates
// the draft at version 1. Later saves append a revision only when content
// differs structurally from what is stored; changed reports whether
// anything was written. Concurrent first saves converge on one draft: the
// loser of the race appends to the winner's draft.
func (s *Service) Save(ctx context.Context, projectID string, content, metadata json.RawMessage) (d *model.Draft, changed bool, err error) {
	if err := validateContent(content, metadata); err != nil {
		return nil, false, err
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, false, err
	}

	d, err = s.store.GetActiveDraft(ctx, projectID)
	if errors.Is(err, model.ErrNotFound) {
		d, err = s.store.CreateDraft(ctx, projectID, content, metadata)
		if err == nil {
			store.RecordActivity(ctx, s.store, projectID, model.ActivityDraftSaved, "version 1")
			return d, true, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return nil, false, eris.Wrap(err, "draft: create")
		}
		zap.L().Debug("draft: concurrent first save, appending", zap.String("project_id", projectID))
		d, err = s.store.GetActiveDraft(ctx, projectID)
	}
	if err != nil {
		return nil, false, err
	}

	rev, changed, err := s.store.SaveRevision(ctx, d.ID, content, metadata, Equal)
	if err != nil {
		return nil, false, eris.Wrapf(err, "draft: save revision to %s", d.ID)
	}
	applyRevision(d, rev)
	if changed {
		store.RecordActivity(ctx, s.store, projectID, model.ActivityDraftSaved, fmt.Sprintf("version %d", rev.Version))
	}
	return d, changed, nil
}

type restoreMeta struct {
	RestoredFrom    string `json:"restored_from,omitempty"`
	RestoredVersion int    `json:"restored_version,omitempty"`
	Captured        bool   `json:"captured_before_restore,omitempty"`
}

// Restore makes a past revision current by appending its content as a new
// top revision. History is never rewritten, so versions only grow.
func (s *Service) Restore(ctx context.Context, projectID, revisionID string) (*model.Draft, error) {
	target, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if target.ProjectID != projectID {
		return nil, model.NotFound("revision", revisionID)
	}

	d, err := s.store.GetActiveDraft(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if target.DraftID != d.ID {
		return nil, model.NotFound("revision", revisionID)
	}

	// The live row and the newest revision normally agree; if they drifted,
	// snapshot the live content so the restore cannot lose it.
	latest, err := s.store.LatestRevision(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	same, err := Equal(latest.Content, d.Content)
	if err != nil {
		return nil, err
	}
	if !same {
		meta, _ := json.Marshal(restoreMeta{Captured: true})
		if _, err := s.store.AppendRevision(ctx, d.ID, d.Content, meta); err != nil {
			return nil, eris.Wrap(err, "draft: capture state before restore")
		}
	}

	meta, _ := json.Marshal(restoreMeta{RestoredFrom: target.ID, RestoredVersion: target.Version})
	rev, err := s.store.AppendRevision(ctx, d.ID, target.Content, meta)
	if err != nil {
		return nil, eris.Wrapf(err, "draft: restore revision %s", revisionID)
	}
	applyRevision(d, rev)

	zap.L().Info("draft: restored",
		zap.String("project_id", projectID),
		zap.Int("from_version", target.Version),
		zap.Int("new_version", rev.Version),
	)
	store.RecordActivity(ctx, s.store, projectID, model.ActivityDraftRestored,
		fmt.Sprintf("version %d restored as version %d", target.Version, rev.Version))
	return d, nil
}

// List returns the active draft's revisions, newest first.
func (s *Service) List(ctx context.Context, projectID string) ([]model.DraftRevision, error) {
	d, err := s.store.GetActiveDraft(ctx, projectID)
	if errors.Is(err, model.ErrNotFound) {
		return []model.DraftRevision{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListRevisions(ctx, d.ID)
}

// Delete removes every draft of the project along with its revisions.
func (s *Service) Delete(ctx context.Context, projectID string) error {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.store.DeleteDrafts(ctx, projectID); err != nil {
		return eris.Wrapf(err, "draft: delete for project %s", projectID)
	}
	store.RecordActivity(ctx, s.store, projectID, model.ActivityDraftDeleted, "")
	return nil
}

func applyRevision(d *model.Draft, rev *model.DraftRevision) {
	d.Content = rev.Content
	d.CurrentVersion = rev.Version
	d.UpdatedAt = rev.CreatedAt
}

func validateContent(content, metadata json.RawMessage) error {
	if len(bytes.TrimSpace(content)) == 0 {
		return model.NewValidationError("draft content is required")
	}
	if !json.Valid(content) {
		return model.NewValidationError("draft content must be valid JSON")
	}
	if len(metadata) > 0 && !json.Valid(metadata) {
		return model.NewValidationError("draft metadata must be valid JSON")
	}
	return nil
}

// Equal reports whether two JSON documents are structurally equal: key
// order and whitespace are ignored.
func Equal(a, b json.RawMessage) (bool, error) {
	if bytes.Equal(a, b) {
		return true, nil
	}
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		return false, eris.Wrap(err, "draft: decode stored content")
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return false, eris.Wrap(err, "draft: decode new content")
	}
	return reflect.DeepEqual(va, vb), nil
}
