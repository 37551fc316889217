package knowledge

import (
	"context"
	"bytes"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rfpdesk/internal/model"
)

// Seed is the YAML layout accepted by `kb import`:
//
//	company:
//	  name: Acme Networks
//	  capabilities: [Wi-Fi, switching]
//	knowledge:
//	  - title: Library Wi-Fi case study
//	    category: case_study
//	    content: |
//	      ...
type Seed struct {
	Company   *model.CompanyInfo     `yaml:"company"`
	Knowledge []model.KnowledgeEntry `yaml:"knowledge"`
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	CompanyUpdated bool `json:"companyUpdated"`
	Added          int  `json:"added"`
	Skipped        int  `json:"skipped"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "knowledge: read seed %s", path)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML. Unknown keys are rejected.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, model.NewValidationError("knowledge: parse seed: %v", err)
	}
	return &seed, nil
}

// Import writes a seed. The company profile is replaced when the seed has
// one; entries whose title already exists are skipped so repeated imports
// are idempotent. Every entry is validated before anything is written.
func (s *Service) Import(ctx context.Context, seed *Seed) (*ImportResult, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		have[strings.ToLower(e.Title)] = true
	}

	for i := range seed.Knowledge {
		e := seed.Knowledge[i]
		if strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.Content) == "" {
			return nil, model.NewValidationError("knowledge entry %d: title and content are required", i+1)
		}
		if e.Category != "" {
			if err := validation.Validate(e.Category, validation.In(model.KnowledgeCategories...)); err != nil {
				return nil, model.NewValidationError("knowledge entry %d: category %v", i+1, err)
			}
		}
	}

	res := &ImportResult{}
	if seed.Company != nil && !seed.Company.Empty() {
		if _, err := s.SaveCompany(ctx, seed.Company); err != nil {
			return nil, err
		}
		res.CompanyUpdated = true
	}
	for i := range seed.Knowledge {
		e := seed.Knowledge[i]
		key := strings.ToLower(strings.TrimSpace(e.Title))
		if have[key] {
			res.Skipped++
			continue
		}
		if _, err := s.Add(ctx, &e); err != nil {
			return res, eris.Wrapf(err, "knowledge: import %q", e.Title)
		}
		have[key] = true
		res.Added++
	}
	zap.L().Info("knowledge: seed imported",
		zap.Bool("company_updated", res.CompanyUpdated),
		zap.Int("added", res.Added),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}
