package model

import (
	"encoding/json"
	"time"
)

// Draft is the live draft row for a project. CurrentVersion always equals
// the highest revision version.
type Draft struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"projectId"`
	Content        json.RawMessage `json:"content"`
	CurrentVersion int             `json:"currentVersion"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// DraftRevision is an immutable snapshot of draft content.
type DraftRevision struct {
	ID        string          `json:"id"`
	DraftID   string          `json:"draftId"`
	ProjectID string          `json:"projectId"`
	Version   int             `json:"version"`
	Content   json.RawMessage `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
