package model

import "time"

// ProjectType identifies the kind of response a project produces.
type ProjectType string

const (
	ProjectTypeRFI     ProjectType = "RFI"
	ProjectTypeRFP     ProjectType = "RFP"
	ProjectTypeForm470 ProjectType = "FORM470"
)

// ProjectTypes lists the accepted project types.
var ProjectTypes = []any{ProjectTypeRFI, ProjectTypeRFP, ProjectTypeForm470}

// ArchiveReasonDeleted marks a project removed through the soft-delete path.
const ArchiveReasonDeleted = "deleted"

// Project owns documents, web sources, questions and drafts.
type Project struct {
	ID               string      `json:"id"`
	OrganizationID   string      `json:"organizationId"`
	Name             string      `json:"name"`
	ProjectType      ProjectType `json:"projectType"`
	OrganizationName string      `json:"organizationName,omitempty"`
	Description      string      `json:"description,omitempty"`
	DueDate          *time.Time  `json:"dueDate,omitempty"`
	ActiveDraftID    *string     `json:"activeDraftId,omitempty"`
	ArchivedAt       *time.Time  `json:"archivedAt,omitempty"`
	ArchiveReason    string      `json:"archiveReason,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Archived reports whether the project has been archived or soft-deleted.
func (p *Project) Archived() bool { return p.ArchivedAt != nil }

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Archived    *bool
	ProjectType ProjectType
	Search      string
	Limit       int
	Offset      int
}

// Activity is one entry of a project's audit log.
type Activity struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activity actions.
const (
	ActivityProjectCreated   = "project.created"
	ActivityProjectArchived  = "project.archived"
	ActivityProjectRestored  = "project.restored"
	ActivityProjectDeleted   = "project.deleted"
	ActivityDocumentUploaded = "document.uploaded"
	ActivityDocumentDeleted  = "document.deleted"
	ActivitySourceScraped    = "source.scraped"
	ActivitySourceUpdated    = "source.updated"
	ActivitySourceDeleted    = "source.deleted"
	ActivityDraftSaved       = "draft.saved"
	ActivityDraftRestored    = "draft.restored"
	ActivityDraftDeleted     = "draft.deleted"
	ActivityQuestionsChanged = "questions.changed"
	ActivityAnswersGenerated = "answers.generated"
	ActivityExported         = "document.exported"
)
