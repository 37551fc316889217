// Package export renders a project's draft, questions and company profile
// as a Word document.
package export

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/store"
)

// Template selects the document layout.
type Template string

const (
	TemplateRFP     Template = "rfp"
	TemplateRFI     Template = "rfi"
	TemplateForm470 Template = "form470"
)

// ParseTemplate accepts a template name or a project type.
func ParseTemplate(s string) (Template, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rfp", "generate":
		return TemplateRFP, nil
	case "rfi", "generate-rfi":
		return TemplateRFI, nil
	case "form470", "form-470", "generate-form470":
		return TemplateForm470, nil
	}
	return "", model.NewValidationError("unknown export template %q (want rfp, rfi or form470)", s)
}

// ForProject picks the template matching the project type.
func ForProject(pt model.ProjectType) Template {
	switch pt {
	case model.ProjectTypeRFI:
		return TemplateRFI
	case model.ProjectTypeForm470:
		return TemplateForm470
	default:
		return TemplateRFP
	}
}

// Input is everything a template reads.
type Input struct {
	Project   *model.Project
	Company   *model.CompanyInfo
	Draft     *Outline
	Questions []model.Question
	Generated time.Time
}

// File is a rendered document.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Render builds the document for t.
func Render(t Template, in Input) ([]byte, error) {
	if in.Project == nil {
		return nil, eris.New("export: project is required")
	}
	if in.Company == nil {
		in.Company = &model.CompanyInfo{}
	}
	if in.Draft == nil {
		in.Draft = &Outline{}
	}
	if in.Generated.IsZero() {
		in.Generated = time.Now()
	}

	var d *docx
	switch t {
	case TemplateRFP:
		d = renderRFP(in)
	case TemplateRFI:
		d = renderRFI(in)
	case TemplateForm470:
		d = renderForm470(in)
	default:
		return nil, model.NewValidationError("unknown export template %q", t)
	}
	return d.Bytes(in.Generated)
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9]+`)

// Filename is the attachment name for a project export.
func Filename(t Template, p *model.Project) string {
	slug := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(p.Name), "-"), "-")
	if slug == "" {
		slug = "project"
	}
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	suffix := map[Template]string{
		TemplateRFP:     "rfp-response",
		TemplateRFI:     "rfi-response",
		TemplateForm470: "form470",
	}[t]
	return fmt.Sprintf("%s-%s.docx", slug, suffix)
}

// Store is the persistence an export reads.
type Store interface {
	store.ActivityLogger
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetCompanyInfo(ctx context.Context) (*model.CompanyInfo, error)
	GetActiveDraft(ctx context.Context, projectID string) (*model.Draft, error)
	ListQuestions(ctx context.Context, projectID string) ([]model.Question, error)
}

// Service loads project data and renders exports.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a Service.
func NewService(st Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Generate renders the project's latest draft with template t. A project
// without a draft still exports its questions and company profile.
func (s *Service) Generate(ctx context.Context, projectID string, t Template) (*File, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	company, err := s.store.GetCompanyInfo(ctx)
	if err != nil {
		return nil, err
	}
	qs, err := s.store.ListQuestions(ctx, projectID)
	if err != nil {
		return nil, err
	}

	outline := &Outline{}
	d, err := s.store.GetActiveDraft(ctx, projectID)
	switch {
	case errors.Is(err, model.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		if outline, err = ParseOutline(d.Content); err != nil {
			return nil, err
		}
	}

	data, err := Render(t, Input{Project: p, Company: company, Draft: outline, Questions: qs, Generated: s.now()})
	if err != nil {
		return nil, err
	}
	f := &File{Name: Filename(t, p), ContentType: ContentType, Data: data}

	zap.L().Info("export: generated",
		zap.String("project_id", projectID),
		zap.String("template", string(t)),
		zap.Int("bytes", len(data)),
	)
	store.RecordActivity(ctx, s.store, projectID, model.ActivityExported, f.Name)
	return f, nil
}
