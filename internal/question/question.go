// Package question manages a project's question list and drafts answers
// for it.
package question

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/answer"
	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/store"
)

// Store is the persistence the question service needs.
type Store interface {
	store.ActivityLogger
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, projectID string) ([]model.Document, error)
	ListWebSources(ctx context.Context, projectID string) ([]model.WebSource, error)
	CreateQuestions(ctx context.Context, qs []model.Question) error
	ListQuestions(ctx context.Context, projectID string) ([]model.Question, error)
	GetQuestion(ctx context.Context, id string) (*model.Question, error)
	UpdateQuestion(ctx context.Context, q *model.Question) error
	DeleteQuestion(ctx context.Context, projectID, id string) error
	ReorderQuestions(ctx context.Context, projectID string, order []model.QuestionPosition) error
	SetAnswers(ctx context.Context, projectID string, answers []model.Answer) error
	NextQuestionPosition(ctx context.Context, projectID string) (int, error)
}

// Answerer drafts answers from a context bundle.
type Answerer interface {
	GenerateAnswers(ctx context.Context, req answer.Request) ([]model.Answer, error)
}

// Input is a new question.
type Input struct {
	Text     string                 `json:"text"`
	Category model.QuestionCategory `json:"category"`
	Answer   string                 `json:"answer"`
}

// Patch changes some fields of a question. Nil fields are left alone.
type Patch struct {
	Text     *string                 `json:"text"`
	Category *model.QuestionCategory `json:"category"`
	Answer   *string                 `json:"answer"`
}

// AnswerRequest selects the material answers are drawn from. With no
// document ids every document and web source of the project is used.
type AnswerRequest struct {
	DocumentIDs      []string `json:"documentIds"`
	UseKnowledgeBase *bool    `json:"useKnowledgeBase"`
}

func (r AnswerRequest) knowledge() bool {
	return r.UseKnowledgeBase == nil || *r.UseKnowledgeBase
}

// Service implements question operations.
type Service struct {
	store   Store
	answers Answerer
}

// NewService creates a Service. answers may be nil, in which case answer
// generation reports a collaborator error.
func NewService(st Store, answers Answerer) *Service {
	return &Service{store: st, answers: answers}
}

// List returns the project's questions in position order.
func (s *Service) List(ctx context.Context, projectID string) ([]model.Question, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	qs, err := s.store.ListQuestions(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if qs == nil {
		qs = []model.Question{}
	}
	return qs, nil
}

func validateText(text *string) validation.Rule {
	return validation.By(func(any) error {
		if strings.TrimSpace(*text) == "" {
			return errors.New("cannot be blank")
		}
		if len([]rune(*text)) > maxQuestionChars*4 {
			return errors.New("is too long")
		}
		return nil
	})
}

// Create appends a question to the end of the list.
func (s *Service) Create(ctx context.Context, projectID string, in Input) (*model.Question, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	in.Text = strings.TrimSpace(in.Text)
	if in.Category == "" {
		in.Category = Categorize(in.Text)
	}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Text, validateText(&in.Text)),
		validation.Field(&in.Category, validation.In(model.QuestionCategories...)),
	)
	if err != nil {
		return nil, model.Invalid(err)
	}

	pos, err := s.store.NextQuestionPosition(ctx, projectID)
	if err != nil {
		return nil, err
	}
	qs := []model.Question{{
		ProjectID: projectID,
		Text:      in.Text,
		Category:  in.Category,
		Answer:    strings.TrimSpace(in.Answer),
		Position:  pos,
	}}
	if err := s.store.CreateQuestions(ctx, qs); err != nil {
		return nil, eris.Wrap(err, "question: create")
	}
	store.RecordActivity(ctx, s.store, projectID, model.ActivityQuestionsChanged, "added 1 question")
	return &qs[0], nil
}

// Update applies a patch to one question.
func (s *Service) Update(ctx context.Context, projectID, id string, p Patch) (*model.Question, error) {
	q, err := s.owned(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if p.Text != nil {
		q.Text = strings.TrimSpace(*p.Text)
	}
	if p.Category != nil {
		q.Category = *p.Category
	}
	if p.Answer != nil {
		q.Answer = strings.TrimSpace(*p.Answer)
	}
	err = validation.ValidateStruct(q,
		validation.Field(&q.Text, validateText(&q.Text)),
		validation.Field(&q.Category, validation.Required, validation.In(model.QuestionCategories...)),
	)
	if err != nil {
		return nil, model.Invalid(err)
	}
	if err := s.store.UpdateQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Delete removes a question.
func (s *Service) Delete(ctx context.Context, projectID, id string) error {
	if _, err := s.owned(ctx, projectID, id); err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, projectID, id); err != nil {
		return err
	}
	store.RecordActivity(ctx, s.store, projectID, model.ActivityQuestionsChanged, "deleted question "+id)
	return nil
}

// Reorder assigns new positions in one transaction. An unknown id, or an id
// from another project, rolls back every change.
func (s *Service) Reorder(ctx context.Context, projectID string, order []model.QuestionPosition) ([]model.Question, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, model.NewValidationError("order must list at least one question")
	}
	seen := make(map[string]bool, len(order))
	for _, item := range order {
		if item.ID == "" {
			return nil, model.NewValidationError("order entries need an id")
		}
		if item.Position < 0 {
			return nil, model.NewValidationError("position for %s must not be negative", item.ID)
		}
		if seen[item.ID] {
			return nil, model.NewValidationError("question %s listed twice", item.ID)
		}
		seen[item.ID] = true
	}

	if err := s.store.ReorderQuestions(ctx, projectID, order); err != nil {
		return nil, err
	}
	store.RecordActivity(ctx, s.store, projectID, model.ActivityQuestionsChanged, "reordered questions")
	return s.List(ctx, projectID)
}

// Import detects questions in a project document and appends the ones not
// already on the list, all in one transaction.
func (s *Service) Import(ctx context.Context, projectID, documentID string) ([]model.Question, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, model.NewValidationError("documentId is required")
	}
	existing, err := s.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProjectID != projectID {
		return nil, model.NotFound("document", documentID)
	}

	have := make(map[string]bool, len(existing))
	for _, q := range existing {
		have[strings.ToLower(strings.TrimSpace(q.Text))] = true
	}

	pos, err := s.store.NextQuestionPosition(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var qs []model.Question
	for _, d := range Detect(doc.Content) {
		if have[strings.ToLower(d.Text)] {
			continue
		}
		qs = append(qs, model.Question{ProjectID: projectID, Text: d.Text, Category: d.Category, Position: pos})
		pos++
	}
	if len(qs) == 0 {
		return []model.Question{}, nil
	}

	if err := s.store.CreateQuestions(ctx, qs); err != nil {
		return nil, eris.Wrap(err, "question: import")
	}
	zap.L().Info("question: imported",
		zap.String("project_id", projectID),
		zap.String("document_id", documentID),
		zap.Int("count", len(qs)),
	)
	store.RecordActivity(ctx, s.store, projectID, model.ActivityQuestionsChanged, "imported from "+doc.Filename)
	return qs, nil
}

// Regenerate drafts a new answer for one question and saves it.
func (s *Service) Regenerate(ctx context.Context, projectID, id string, req AnswerRequest) (*model.Question, error) {
	q, err := s.owned(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	answers, err := s.generate(ctx, projectID, []model.Question{*q}, req)
	if err != nil {
		return nil, err
	}
	q.Answer = answers[0].Text
	if err := s.store.UpdateQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// GenerateAll drafts answers for every question and saves those produced.
// When some questions get no answer the saved answers are returned together
// with a *model.PartialFailureError.
func (s *Service) GenerateAll(ctx context.Context, projectID string, req AnswerRequest) ([]model.Answer, error) {
	qs, err := s.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return []model.Answer{}, nil
	}
	return s.generate(ctx, projectID, qs, req)
}

func (s *Service) generate(ctx context.Context, projectID string, qs []model.Question, req AnswerRequest) ([]model.Answer, error) {
	if s.answers == nil {
		return nil, eris.Wrap(model.ErrCollaborator, "question: answer generation is not configured")
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sources, err := s.sources(ctx, projectID, req.DocumentIDs)
	if err != nil {
		return nil, err
	}

	answers, genErr := s.answers.GenerateAnswers(ctx, answer.Request{
		ProjectName:      p.Name,
		ProjectType:      p.ProjectType,
		Questions:        qs,
		Sources:          sources,
		UseKnowledgeBase: req.knowledge(),
	})

	var partial *model.PartialFailureError
	if genErr != nil && !errors.As(genErr, &partial) {
		return nil, genErr
	}
	if len(answers) > 0 {
		if err := s.store.SetAnswers(ctx, projectID, answers); err != nil {
			return nil, eris.Wrap(err, "question: save answers")
		}
		store.RecordActivity(ctx, s.store, projectID, model.ActivityAnswersGenerated, pluralize(len(answers), "answer"))
	}
	if genErr != nil && len(answers) == 0 {
		return nil, eris.Wrap(model.ErrCollaborator, genErr.Error())
	}
	return answers, genErr
}

func (s *Service) sources(ctx context.Context, projectID string, docIDs []string) ([]answer.Source, error) {
	if len(docIDs) == 0 {
		docs, err := s.store.ListDocuments(ctx, projectID)
		if err != nil {
			return nil, err
		}
		webs, err := s.store.ListWebSources(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return append(answer.SourcesFromDocuments(docs), answer.SourcesFromWebSources(webs)...), nil
	}

	docs := make([]model.Document, 0, len(docIDs))
	for _, id := range docIDs {
		d, err := s.store.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		if d.ProjectID != projectID {
			return nil, model.NotFound("document", id)
		}
		docs = append(docs, *d)
	}
	return answer.SourcesFromDocuments(docs), nil
}

func (s *Service) owned(ctx context.Context, projectID, id string) (*model.Question, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.ProjectID != projectID {
		return nil, model.NotFound("question", id)
	}
	return q, nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
