// Package summarize reduces document and web-source text to a structured
// summary and caches the result on the owning entity.
//
// Text is handled in three size bands: small text is wrapped verbatim,
// medium text gets one model call, and large text is split into chunks that
// are summarized independently and merged in order.
package summarize

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rfpdesk/internal/config"
	"github.com/sells-group/rfpdesk/internal/keyinfo"
	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/pkg/anthropic"
)

// Options tunes the size bands and the model call.
type Options struct {
	SmallThreshold int
	LargeThreshold int
	ChunkSize      int
	MaxKeyPoints   int
	Concurrency    int
	Model          string
	MaxTokens      int64
}

// OptionsFromConfig builds Options from the summary and anthropic config sections.
func OptionsFromConfig(s config.SummaryConfig, a config.AnthropicConfig) Options {
	m := a.SummaryModel
	if m == "" {
		m = a.Model
	}
	return Options{
		SmallThreshold: s.SmallThreshold,
		LargeThreshold: s.LargeThreshold,
		ChunkSize:      s.ChunkSize,
		MaxKeyPoints:   s.MaxKeyPoints,
		Concurrency:    s.ChunkConcurrency,
		Model:          m,
		MaxTokens:      a.MaxTokens,
	}
}

func (o Options) withDefaults() Options {
	if o.SmallThreshold <= 0 {
		o.SmallThreshold = 2000
	}
	if o.LargeThreshold <= 0 {
		o.LargeThreshold = 15000
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 12000
	}
	if o.MaxKeyPoints <= 0 {
		o.MaxKeyPoints = 10
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	return o
}

// Summarizer produces summaries. Safe for concurrent use.
type Summarizer struct {
	client anthropic.Client
	opts   Options
}

// New creates a Summarizer. client may be nil, in which case only the
// verbatim band succeeds.
func New(client anthropic.Client, opts Options) *Summarizer {
	return &Summarizer{client: client, opts: opts.withDefaults()}
}

// Summarize applies the size-band policy to text. It returns
// model.ErrNothingToSummarize for blank input and model.ErrSummarizationFailed
// when the model produced nothing usable.
func (s *Summarizer) Summarize(ctx context.Context, text, label string, projectType model.ProjectType) (*model.Summary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, eris.Wrapf(model.ErrNothingToSummarize, "summarize: %s", label)
	}

	n := utf8.RuneCountInString(text)
	switch {
	case n < s.opts.SmallThreshold:
		return &model.Summary{
			Narrative:  text,
			KeyPoints:  []string{text},
			ChunkCount: 1,
			Strategy:   model.StrategyVerbatim,
		}, nil

	case n <= s.opts.LargeThreshold:
		part, err := s.summarizeChunk(ctx, text, label, projectType, 1, 1)
		if err != nil {
			return nil, eris.Wrapf(model.ErrSummarizationFailed, "summarize: %s: %v", label, err)
		}
		sum := &model.Summary{
			Narrative:  part.Narrative,
			KeyPoints:  part.KeyPoints,
			Fields:     keyinfo.Extract(text).FillFields(part.Fields),
			ChunkCount: 1,
			Strategy:   model.StrategySingle,
		}
		return sum, nil

	default:
		return s.summarizeChunked(ctx, text, label, projectType)
	}
}

func (s *Summarizer) summarizeChunked(ctx context.Context, text, label string, projectType model.ProjectType) (*model.Summary, error) {
	chunks := Split(text, s.opts.ChunkSize)
	parts := make([]*chunkSummary, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			part, err := s.summarizeChunk(gctx, strings.TrimSpace(chunk), label, projectType, i+1, len(chunks))
			if err != nil {
				// A failed chunk contributes nothing; the merge decides
				// whether anything survived.
				zap.L().Warn("summarize: chunk failed",
					zap.String("label", label),
					zap.Int("chunk", i+1),
					zap.Int("chunks", len(chunks)),
					zap.Error(err),
				)
				return nil
			}
			parts[i] = part
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "summarize: chunked")
	}

	sum := merge(parts)
	if !sum.Valid() {
		return nil, eris.Wrapf(model.ErrSummarizationFailed, "summarize: %s: all %d chunks failed", label, len(chunks))
	}
	sum.Fields = keyinfo.Extract(text).FillFields(sum.Fields)

	zap.L().Info("summarize: merged chunks",
		zap.String("label", label),
		zap.Int("chunks", sum.ChunkCount),
		zap.Int("failed", sum.FailedChunks),
		zap.Int("key_points", len(sum.KeyPoints)),
	)
	return sum, nil
}

// chunkSummary is the JSON shape requested from the model.
type chunkSummary struct {
	Narrative string                      `json:"narrative"`
	KeyPoints []string                    `json:"key_points"`
	Fields    map[string]model.FieldValue `json:"fields"`
}

func (s *Summarizer) summarizeChunk(ctx context.Context, text, label string, projectType model.ProjectType, part, total int) (*chunkSummary, error) {
	if s.client == nil {
		return nil, eris.New("summarize: no language model configured")
	}
	if text == "" {
		return nil, eris.New("summarize: empty chunk")
	}

	temp := 0.0
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.opts.Model,
		MaxTokens:   s.opts.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: systemPrompt(projectType, s.opts.MaxKeyPoints)}},
		Messages:    []anthropic.Message{{Role: "user", Content: userPrompt(label, text, part, total)}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	return parseChunk(resp.Text(), s.opts.MaxKeyPoints)
}

func parseChunk(reply string, maxKeyPoints int) (*chunkSummary, error) {
	var cs chunkSummary
	if err := json.Unmarshal([]byte(anthropic.ExtractJSON(reply)), &cs); err != nil {
		return nil, eris.Wrap(err, "summarize: parse model reply")
	}

	cs.Narrative = strings.TrimSpace(cs.Narrative)
	if cs.Narrative == "" {
		return nil, eris.New("summarize: model reply has no narrative")
	}

	points := make([]string, 0, len(cs.KeyPoints))
	for _, kp := range cs.KeyPoints {
		if kp = strings.TrimSpace(kp); kp != "" {
			points = append(points, kp)
		}
		if len(points) == maxKeyPoints {
			break
		}
	}
	cs.KeyPoints = points

	for name, v := range cs.Fields {
		if v.Empty() {
			delete(cs.Fields, name)
		}
	}
	return &cs, nil
}

// merge combines chunk results in order. Nil entries are failed chunks.
func merge(parts []*chunkSummary) *model.Summary {
	sum := &model.Summary{
		ChunkCount: len(parts),
		Strategy:   model.StrategyChunked,
		KeyPoints:  []string{},
		Fields:     make(map[string]model.FieldValue),
	}

	var narratives []string
	seen := make(map[string]bool)
	for _, p := range parts {
		if p == nil {
			sum.FailedChunks++
			continue
		}
		narratives = append(narratives, p.Narrative)
		for _, kp := range p.KeyPoints {
			key := strings.ToLower(strings.TrimSpace(kp))
			if seen[key] {
				continue
			}
			seen[key] = true
			sum.KeyPoints = append(sum.KeyPoints, kp)
		}
		for name, v := range p.Fields {
			if cur, ok := sum.Fields[name]; ok && !cur.Empty() {
				continue
			}
			sum.Fields[name] = v
		}
	}
	sum.Narrative = strings.Join(narratives, "\n\n")
	return sum
}
