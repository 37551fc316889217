package model

import "time"

// EntityKind identifies which table a cached summary lives on.
type EntityKind string

const (
	EntityDocument  EntityKind = "document"
	EntityWebSource EntityKind = "web_source"
)

// Document is an uploaded file with its extracted text.
type Document struct {
	ID                 string     `json:"id"`
	ProjectID          string     `json:"projectId"`
	Filename           string     `json:"filename"`
	MimeType           string     `json:"mimeType"`
	SizeBytes          int64      `json:"sizeBytes"`
	Content            string     `json:"content,omitempty"`
	PageCount          int        `json:"pageCount"`
	SheetCount         int        `json:"sheetCount"`
	WordCount          int        `json:"wordCount"`
	SummaryCache       []byte     `json:"-"`
	SummaryGeneratedAt *time.Time `json:"summaryGeneratedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// FetchMethod records which scraper produced a web source.
type FetchMethod string

const (
	FetchLocalHTTP FetchMethod = "local_http"
	FetchBrowser   FetchMethod = "browser"
	FetchJina      FetchMethod = "jina"
	FetchManual    FetchMethod = "manual"
)

// WebSource is a scraped web page attached to a project.
type WebSource struct {
	ID                 string      `json:"id"`
	ProjectID          string      `json:"projectId"`
	URL                string      `json:"url"`
	Title              string      `json:"title"`
	Content            string      `json:"content,omitempty"`
	FetchMethod        FetchMethod `json:"fetchMethod"`
	SummaryCache       []byte      `json:"-"`
	SummaryGeneratedAt *time.Time  `json:"summaryGeneratedAt,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// CachedSummary is the raw cache column pair for one entity.
type CachedSummary struct {
	Data        []byte
	GeneratedAt *time.Time
}
