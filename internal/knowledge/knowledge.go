// Package knowledge manages the company profile and the reusable knowledge
// base that answer generation draws on.
package knowledge

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
)

// Store is the persistence the service needs.
type Store interface {
	GetCompanyInfo(ctx context.Context) (*model.CompanyInfo, error)
	UpsertCompanyInfo(ctx context.Context, c *model.CompanyInfo) error
	CreateKnowledge(ctx context.Context, e *model.KnowledgeEntry) error
	ListKnowledge(ctx context.Context) ([]model.KnowledgeEntry, error)
	DeleteKnowledge(ctx context.Context, id string) error
}

// Service reads and writes the company profile and knowledge entries.
type Service struct {
	store Store
}

// NewService creates a Service.
func NewService(st Store) *Service {
	return &Service{store: st}
}

// Company returns the profile. An unset profile is returned empty, not as
// an error.
func (s *Service) Company(ctx context.Context) (*model.CompanyInfo, error) {
	return s.store.GetCompanyInfo(ctx)
}

// SaveCompany replaces the profile.
func (s *Service) SaveCompany(ctx context.Context, c *model.CompanyInfo) (*model.CompanyInfo, error) {
	if c == nil {
		return nil, model.NewValidationError("company profile is required")
	}
	c.Name = strings.TrimSpace(c.Name)
	c.ContactEmail = strings.TrimSpace(c.ContactEmail)
	c.Capabilities = compact(c.Capabilities)
	c.Differentiators = compact(c.Differentiators)
	c.Certifications = compact(c.Certifications)

	err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&c.ContactEmail, validation.By(looksLikeEmail)),
	)
	if err != nil {
		return nil, model.Invalid(err)
	}
	if err := s.store.UpsertCompanyInfo(ctx, c); err != nil {
		return nil, eris.Wrap(err, "knowledge: save company")
	}
	zap.L().Info("knowledge: company profile saved", zap.String("name", c.Name))
	return c, nil
}

// List returns every knowledge entry, oldest first.
func (s *Service) List(ctx context.Context) ([]model.KnowledgeEntry, error) {
	entries, err := s.store.ListKnowledge(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.KnowledgeEntry{}
	}
	return entries, nil
}

// Add validates and stores an entry. A blank category becomes "other".
func (s *Service) Add(ctx context.Context, e *model.KnowledgeEntry) (*model.KnowledgeEntry, error) {
	if e == nil {
		return nil, model.NewValidationError("knowledge entry is required")
	}
	e.Title = strings.TrimSpace(e.Title)
	e.Content = strings.TrimSpace(e.Content)
	if e.Category == "" {
		e.Category = model.KnowledgeOther
	}
	err := validation.ValidateStruct(e,
		validation.Field(&e.Title, validation.Required, validation.RuneLength(1, 300)),
		validation.Field(&e.Category, validation.In(model.KnowledgeCategories...)),
		validation.Field(&e.Content, validation.Required),
	)
	if err != nil {
		return nil, model.Invalid(err)
	}
	if err := s.store.CreateKnowledge(ctx, e); err != nil {
		return nil, eris.Wrap(err, "knowledge: add entry")
	}
	return e, nil
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteKnowledge(ctx, id)
}

func looksLikeEmail(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 || strings.ContainsAny(s, " \t") || !strings.Contains(s[at+1:], ".") {
		return eris.New("must be a valid email address")
	}
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
