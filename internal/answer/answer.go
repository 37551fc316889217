// Package answer drafts responses to project questions from a shared
// context bundle of company profile, source material and knowledge base.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rfpdesk/internal/config"
	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/pkg/anthropic"
)

// Store is the persistence the orchestrator reads.
type Store interface {
	GetCompanyInfo(ctx context.Context) (*model.CompanyInfo, error)
	ListKnowledge(ctx context.Context) ([]model.KnowledgeEntry, error)
}

// TextSource picks the best text for a source: its cached summary when
// valid, otherwise truncated raw content.
type TextSource interface {
	BestText(ctx context.Context, kind model.EntityKind, id, raw string, maxRaw int) (string, bool)
}

// Options tunes context assembly and the model call.
type Options struct {
	Model           string
	MaxTokens       int64
	MaxContextChars int
	DocRawChars     int
	Concurrency     int
}

// OptionsFromConfig builds Options from config.
func OptionsFromConfig(a config.AnswerConfig, ac config.AnthropicConfig) Options {
	return Options{
		Model:           ac.Model,
		MaxTokens:       ac.MaxTokens,
		MaxContextChars: a.MaxContextChars,
		DocRawChars:     a.DocRawChars,
		Concurrency:     a.Concurrency,
	}
}

// Orchestrator generates answers.
type Orchestrator struct {
	client anthropic.Client
	store  Store
	texts  TextSource
	opts   Options
}

// New creates an Orchestrator.
func New(client anthropic.Client, st Store, texts TextSource, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Orchestrator{client: client, store: st, texts: texts, opts: opts}
}

// Request describes one answer-generation run.
type Request struct {
	ProjectName      string
	ProjectType      model.ProjectType
	Questions        []model.Question
	Sources          []Source
	UseKnowledgeBase bool
}

// GenerateAnswers answers every question. All questions go to the model in
// one call; any the reply leaves out are retried one call per question.
// Answers come back in question order. When some questions still have no
// answer, the produced answers are returned with a
// *model.PartialFailureError naming the missing ids.
func (o *Orchestrator) GenerateAnswers(ctx context.Context, req Request) ([]model.Answer, error) {
	if len(req.Questions) == 0 {
		return []model.Answer{}, nil
	}
	if o.client == nil {
		return nil, eris.Wrap(model.ErrCollaborator, "answer: no language model configured")
	}

	bundle, err := o.BuildContext(ctx, req.Sources, req.UseKnowledgeBase)
	if err != nil {
		return nil, err
	}
	system := anthropic.BuildCachedSystemBlocks(instructions(req.ProjectName, req.ProjectType), contextBlock(bundle))

	got := make(map[string]string, len(req.Questions))
	var lastErr error

	batch, err := o.answerBatch(ctx, system, req.Questions)
	if err != nil {
		lastErr = err
		zap.L().Warn("answer: batched call failed, answering individually", zap.Error(err))
	}
	for id, text := range batch {
		got[id] = text
	}

	var missing []model.Question
	for _, q := range req.Questions {
		if _, ok := got[q.ID]; !ok {
			missing = append(missing, q)
		}
	}

	if len(missing) > 0 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.opts.Concurrency)
		for _, q := range missing {
			g.Go(func() error {
				text, err := o.answerOne(gctx, system, q)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					lastErr = err
					zap.L().Warn("answer: question failed", zap.String("question_id", q.ID), zap.Error(err))
					return nil
				}
				got[q.ID] = text
				return nil
			})
		}
		_ = g.Wait()
	}

	answers := make([]model.Answer, 0, len(req.Questions))
	var missingIDs []string
	for _, q := range req.Questions {
		if text, ok := got[q.ID]; ok {
			answers = append(answers, model.Answer{QuestionID: q.ID, Text: text})
		} else {
			missingIDs = append(missingIDs, q.ID)
		}
	}

	zap.L().Info("answer: generated",
		zap.Int("questions", len(req.Questions)),
		zap.Int("batched", len(batch)),
		zap.Int("individual", len(missing)),
		zap.Int("missing", len(missingIDs)),
	)

	if len(missingIDs) > 0 {
		return answers, &model.PartialFailureError{MissingIDs: missingIDs, Cause: lastErr}
	}
	return answers, nil
}

type batchQuestion struct {
	ID       string `json:"id"`
	Category string `json:"category,omitempty"`
	Question string `json:"question"`
}

// answerBatch returns the answers the model produced for known question ids.
func (o *Orchestrator) answerBatch(ctx context.Context, system []anthropic.SystemBlock, qs []model.Question) (map[string]string, error) {
	items := make([]batchQuestion, len(qs))
	known := make(map[string]bool, len(qs))
	for i, q := range qs {
		items[i] = batchQuestion{ID: q.ID, Category: string(q.Category), Question: q.Text}
		known[q.ID] = true
	}
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "answer: marshal questions")
	}

	resp, err := o.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     o.opts.Model,
		MaxTokens: o.opts.MaxTokens,
		System:    system,
		Messages: []anthropic.Message{{Role: "user", Content: fmt.Sprintf(
			"Answer each question below. Reply with only a JSON array of objects {\"id\": \"...\", \"answer\": \"...\"}, one per question, using the ids given.\n\n%s", payload)}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "answer: batched call")
	}

	var parsed []model.Answer
	if err := json.Unmarshal([]byte(anthropic.ExtractJSON(resp.Text())), &parsed); err != nil {
		return nil, eris.Wrap(err, "answer: parse batched reply")
	}

	out := make(map[string]string, len(parsed))
	for _, a := range parsed {
		text := strings.TrimSpace(a.Text)
		if !known[a.QuestionID] || text == "" {
			continue
		}
		if _, dup := out[a.QuestionID]; dup {
			continue
		}
		out[a.QuestionID] = text
	}
	return out, nil
}

func (o *Orchestrator) answerOne(ctx context.Context, system []anthropic.SystemBlock, q model.Question) (string, error) {
	resp, err := o.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     o.opts.Model,
		MaxTokens: o.opts.MaxTokens,
		System:    system,
		Messages: []anthropic.Message{{Role: "user", Content: fmt.Sprintf(
			"Question (%s): %s\n\nReply with the answer text only.", q.Category, q.Text)}},
	})
	if err != nil {
		return "", eris.Wrapf(err, "answer: question %s", q.ID)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.Errorf("answer: empty reply for question %s", q.ID)
	}
	return text, nil
}

func instructions(projectName string, pt model.ProjectType) string {
	kind := "Request for Proposal"
	switch pt {
	case model.ProjectTypeRFI:
		kind = "Request for Information"
	case model.ProjectTypeForm470:
		kind = "E-Rate Form 470 service request"
	}
	name := ""
	if projectName != "" {
		name = fmt.Sprintf(" (%s)", projectName)
	}
	return fmt.Sprintf(`You write answers for a company responding to a %s%s.
Answer in the company's voice, in clear professional prose. Ground every claim in the context provided.
When the context does not support an answer, say what information is needed instead of inventing it.`, kind, name)
}

func contextBlock(bundle string) string {
	if bundle == "" {
		return ""
	}
	return "<context>\n" + bundle + "\n</context>"
}
