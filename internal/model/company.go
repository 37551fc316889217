package model

import (
	"strings"
	"time"
)

// CompanyInfo is the responding company's profile.
type CompanyInfo struct {
	Name            string    `json:"name" yaml:"name"`
	Overview        string    `json:"overview" yaml:"overview"`
	Capabilities    []string  `json:"capabilities" yaml:"capabilities"`
	Differentiators []string  `json:"differentiators" yaml:"differentiators"`
	Certifications  []string  `json:"certifications" yaml:"certifications"`
	ContactName     string    `json:"contactName" yaml:"contact_name"`
	ContactEmail    string    `json:"contactEmail" yaml:"contact_email"`
	ContactPhone    string    `json:"contactPhone" yaml:"contact_phone"`
	Website         string    `json:"website" yaml:"website"`
	UpdatedAt       time.Time `json:"updatedAt" yaml:"-"`
}

// Empty reports whether no profile has been entered.
func (c *CompanyInfo) Empty() bool {
	return c == nil || (strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Overview) == "")
}

// Render formats the profile for prompt context.
func (c *CompanyInfo) Render() string {
	var b strings.Builder
	b.WriteString("Company: " + c.Name + "\n")
	if c.Overview != "" {
		b.WriteString(c.Overview + "\n")
	}
	writeList(&b, "Capabilities", c.Capabilities)
	writeList(&b, "Differentiators", c.Differentiators)
	writeList(&b, "Certifications", c.Certifications)
	if c.ContactName != "" || c.ContactEmail != "" {
		b.WriteString("Contact: " + strings.TrimSpace(c.ContactName+" "+c.ContactEmail+" "+c.ContactPhone) + "\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
}

// KnowledgeCategory classifies knowledge-base entries.
type KnowledgeCategory string

const (
	KnowledgeProposal   KnowledgeCategory = "proposal"
	KnowledgeSOW        KnowledgeCategory = "sow"
	KnowledgeCaseStudy  KnowledgeCategory = "case_study"
	KnowledgeCapability KnowledgeCategory = "capability"
	KnowledgeOther      KnowledgeCategory = "other"
)

// KnowledgeCategories lists the accepted knowledge categories.
var KnowledgeCategories = []any{
	KnowledgeProposal, KnowledgeSOW, KnowledgeCaseStudy, KnowledgeCapability, KnowledgeOther,
}

// KnowledgeEntry is reusable content from past responses.
type KnowledgeEntry struct {
	ID        string            `json:"id" yaml:"-"`
	Title     string            `json:"title" yaml:"title"`
	Category  KnowledgeCategory `json:"category" yaml:"category"`
	Content   string            `json:"content" yaml:"content"`
	CreatedAt time.Time         `json:"createdAt" yaml:"-"`
}
