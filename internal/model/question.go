package model

import "time"

// QuestionCategory groups questions in a project.
type QuestionCategory string

const (
	CategoryGeneral    QuestionCategory = "general"
	CategoryTechnical  QuestionCategory = "technical"
	CategoryPricing    QuestionCategory = "pricing"
	CategoryCompliance QuestionCategory = "compliance"
	CategoryExperience QuestionCategory = "experience"
	CategoryTimeline   QuestionCategory = "timeline"
)

// QuestionCategories lists the accepted categories.
var QuestionCategories = []any{
	CategoryGeneral, CategoryTechnical, CategoryPricing,
	CategoryCompliance, CategoryExperience, CategoryTimeline,
}

// Question is one RFI/RFP question with its optional answer.
type Question struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"projectId"`
	Text      string           `json:"text"`
	Category  QuestionCategory `json:"category"`
	Answer    string           `json:"answer,omitempty"`
	Position  int              `json:"position"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// QuestionPosition assigns a position to one question in a reorder batch.
type QuestionPosition struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// Answer is a generated answer for one question.
type Answer struct {
	QuestionID string `json:"id"`
	Text       string `json:"answer"`
}
