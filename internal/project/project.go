// Package project manages response projects and their activity log.
package project

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/store"
)

// MaxNameLength bounds project names.
const MaxNameLength = 200

// Store is the persistence the project service needs.
type Store interface {
	store.ActivityLogger
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context, filter model.ProjectFilter) ([]model.Project, error)
	SetProjectArchive(ctx context.Context, id string, archivedAt *time.Time, reason string) error
	DeleteProject(ctx context.Context, id string) error
	ListActivity(ctx context.Context, projectID string, limit int) ([]model.Activity, error)
}

// CreateRequest holds the fields accepted when creating a project.
type CreateRequest struct {
	Name             string            `json:"name"`
	ProjectType      model.ProjectType `json:"projectType"`
	OrganizationName string            `json:"organizationName"`
	Description      string            `json:"description"`
	DueDate          *time.Time        `json:"dueDate"`
}

// Service implements project lifecycle operations.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a Service.
func NewService(st Store) *Service {
	return &Service{store: st, now: time.Now}
}

// ParseType accepts project types case-insensitively, with or without
// separators ("form 470", "Form_470").
func ParseType(s string) model.ProjectType {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return model.ProjectType(strings.ToUpper(r.Replace(strings.TrimSpace(s))))
}

// Create validates and stores a new project.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.ProjectType = ParseType(string(req.ProjectType))

	err := validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(1, MaxNameLength)),
		validation.Field(&req.ProjectType, validation.Required, validation.In(model.ProjectTypes...)),
		validation.Field(&req.OrganizationName, validation.RuneLength(0, MaxNameLength)),
	)
	if err != nil {
		return nil, model.Invalid(err)
	}

	p := &model.Project{
		Name:             req.Name,
		ProjectType:      req.ProjectType,
		OrganizationName: strings.TrimSpace(req.OrganizationName),
		Description:      strings.TrimSpace(req.Description),
		DueDate:          req.DueDate,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, eris.Wrap(err, "project: create")
	}

	zap.L().Info("project: created",
		zap.String("project_id", p.ID),
		zap.String("type", string(p.ProjectType)),
	)
	store.RecordActivity(ctx, s.store, p.ID, model.ActivityProjectCreated, p.Name)
	return p, nil
}

// Get returns a project by id.
func (s *Service) Get(ctx context.Context, id string) (*model.Project, error) {
	return s.store.GetProject(ctx, id)
}

// List returns projects matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter model.ProjectFilter) ([]model.Project, error) {
	if filter.ProjectType != "" {
		filter.ProjectType = ParseType(string(filter.ProjectType))
		if err := validation.Validate(filter.ProjectType, validation.In(model.ProjectTypes...)); err != nil {
			return nil, model.NewValidationError("type: %v", err)
		}
	}
	filter.Search = strings.TrimSpace(filter.Search)

	out, err := s.store.ListProjects(ctx, filter)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Project{}
	}
	return out, nil
}

// Archive hides a project from the active list. Archiving an archived
// project is a no-op.
func (s *Service) Archive(ctx context.Context, id, reason string) (*model.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Archived() {
		return p, nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "archived"
	}
	return s.setArchive(ctx, p, reason, model.ActivityProjectArchived)
}

// Restore returns an archived or soft-deleted project to the active list.
func (s *Service) Restore(ctx context.Context, id string) (*model.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Archived() {
		return p, nil
	}
	if err := s.store.SetProjectArchive(ctx, id, nil, ""); err != nil {
		return nil, err
	}
	store.RecordActivity(ctx, s.store, id, model.ActivityProjectRestored, p.ArchiveReason)
	return s.store.GetProject(ctx, id)
}

// Delete soft-deletes a project. The row and its children stay until Purge.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if p.ArchiveReason == model.ArchiveReasonDeleted {
		return nil
	}
	_, err = s.setArchive(ctx, p, model.ArchiveReasonDeleted, model.ActivityProjectDeleted)
	return err
}

// Purge permanently removes a project and everything it owns.
func (s *Service) Purge(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	zap.L().Info("project: purged", zap.String("project_id", id))
	return nil
}

// Activity returns the project's audit log, newest first.
func (s *Service) Activity(ctx context.Context, id string, limit int) ([]model.Activity, error) {
	if _, err := s.store.GetProject(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out, err := s.store.ListActivity(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Activity{}
	}
	return out, nil
}

func (s *Service) setArchive(ctx context.Context, p *model.Project, reason, action string) (*model.Project, error) {
	at := s.now().UTC()
	if err := s.store.SetProjectArchive(ctx, p.ID, &at, reason); err != nil {
		return nil, err
	}
	store.RecordActivity(ctx, s.store, p.ID, action, reason)
	return s.store.GetProject(ctx, p.ID)
}
