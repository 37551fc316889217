package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sells-group/rfpdesk/internal/model"
)

// DefaultOrganizationID is the single organization every project belongs to.
const DefaultOrganizationID = "default"

// Store defines the persistence interface for the workbench.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context, filter model.ProjectFilter) ([]model.Project, error)
	SetProjectArchive(ctx context.Context, id string, archivedAt *time.Time, reason string) error
	DeleteProject(ctx context.Context, id string) error

	// Activity
	LogActivity(ctx context.Context, a *model.Activity) error
	ListActivity(ctx context.Context, projectID string, limit int) ([]model.Activity, error)

	// Documents
	CreateDocument(ctx context.Context, d *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, projectID string) ([]model.Document, error)
	DeleteDocument(ctx context.Context, projectID, id string) error

	// Web sources
	CreateWebSource(ctx context.Context, w *model.WebSource) error
	GetWebSource(ctx context.Context, id string) (*model.WebSource, error)
	ListWebSources(ctx context.Context, projectID string) ([]model.WebSource, error)
	UpdateWebSourceContent(ctx context.Context, id, title, content string) error
	DeleteWebSource(ctx context.Context, projectID, id string) error

	// Summary cache
	GetSummaryCache(ctx context.Context, kind model.EntityKind, id string) (*model.CachedSummary, error)
	SetSummaryCache(ctx context.Context, kind model.EntityKind, id string, data []byte, generatedAt time.Time) error
	ClearSummaryCache(ctx context.Context, kind model.EntityKind, id string) error

	// Company profile and knowledge base
	GetCompanyInfo(ctx context.Context) (*model.CompanyInfo, error)
	UpsertCompanyInfo(ctx context.Context, c *model.CompanyInfo) error
	CreateKnowledge(ctx context.Context, e *model.KnowledgeEntry) error
	ListKnowledge(ctx context.Context) ([]model.KnowledgeEntry, error)
	DeleteKnowledge(ctx context.Context, id string) error

	// Questions
	CreateQuestions(ctx context.Context, qs []model.Question) error
	ListQuestions(ctx context.Context, projectID string) ([]model.Question, error)
	GetQuestion(ctx context.Context, id string) (*model.Question, error)
	UpdateQuestion(ctx context.Context, q *model.Question) error
	DeleteQuestion(ctx context.Context, projectID, id string) error
	ReorderQuestions(ctx context.Context, projectID string, order []model.QuestionPosition) error
	SetAnswers(ctx context.Context, projectID string, answers []model.Answer) error
	NextQuestionPosition(ctx context.Context, projectID string) (int, error)

	// Drafts
	GetActiveDraft(ctx context.Context, projectID string) (*model.Draft, error)
	CreateDraft(ctx context.Context, projectID string, content, metadata json.RawMessage) (*model.Draft, error)
	AppendRevision(ctx context.Context, draftID string, content, metadata json.RawMessage) (*model.DraftRevision, error)
	SaveRevision(ctx context.Context, draftID string, content, metadata json.RawMessage, equal ContentEqual) (*model.DraftRevision, bool, error)
	LatestRevision(ctx context.Context, draftID string) (*model.DraftRevision, error)
	GetRevision(ctx context.Context, id string) (*model.DraftRevision, error)
	ListRevisions(ctx context.Context, draftID string) ([]model.DraftRevision, error)
	DeleteDrafts(ctx context.Context, projectID string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// ContentEqual reports whether incoming draft content matches what is
// stored. SaveRevision calls it inside the append transaction.
type ContentEqual func(stored, incoming json.RawMessage) (bool, error)
