// Package interview provides the interviewer agent, which generates the
// clarifying questions asked before a roadmap is designed.
package interview

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// DefaultMaxQuestions bounds how many questions one interview asks.
const DefaultMaxQuestions = 5

type questionsResponse struct {
	Questions []rawQuestion `json:"questions"`
}

type rawQuestion struct {
	Question       string `json:"question"`
	Purpose        string `json:"purpose"`
	ExampleOptions []struct {
		Label string `json:"label"`
		Text  string `json:"text"`
	} `json:"example_options"`
	AllowsFreeform *bool `json:"allows_freeform"`
}

// Interviewer generates clarifying questions for a learning topic.
type Interviewer struct {
	gen    llm.Generator
	schema *schemas.Schema
	logger *zap.Logger
}

// New creates an interviewer backed by the given generator.
func New(gen llm.Generator, logger *zap.Logger) *Interviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interviewer{
		gen:    gen,
		schema: schemas.MustLoad("interview_questions"),
		logger: logger.With(zap.String("agent", "interviewer")),
	}
}

// GenerateQuestions asks the model for up to maxQuestions clarifying
// questions about the topic. Each question gets a fresh opaque id. Missing
// optional fields default rather than fail.
func (iv *Interviewer) GenerateQuestions(ctx context.Context, topic string, maxQuestions int, lang string) ([]types.InterviewQuestion, error) {
	if maxQuestions <= 0 {
		maxQuestions = DefaultMaxQuestions
	}

	data := map[string]string{
		"MaxQuestions": strconv.Itoa(maxQuestions),
		"Topic":        topic,
	}
	prompt := prompts.LanguageInstruction(lang) + prompts.Format(prompts.MustGet("interview/generate_questions"), data)

	var resp questionsResponse
	err := iv.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Role:         llm.RoleInterviewer,
		Prompt:       prompt,
		SystemPrompt: prompts.Format(prompts.MustGet("interview/system"), data),
		Schema:       iv.schema,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("interview question generation failed: %w", err)
	}

	raw := resp.Questions
	if len(raw) > maxQuestions {
		raw = raw[:maxQuestions]
	}

	questions := make([]types.InterviewQuestion, 0, len(raw))
	for _, q := range raw {
		question := types.InterviewQuestion{
			ID:             types.NewID("q"),
			Question:       q.Question,
			Purpose:        q.Purpose,
			ExampleOptions: make([]types.ExampleOption, 0, len(q.ExampleOptions)),
			AllowsFreeform: q.AllowsFreeform == nil || *q.AllowsFreeform,
		}
		for _, opt := range q.ExampleOptions {
			question.ExampleOptions = append(question.ExampleOptions, types.ExampleOption{
				Label: opt.Label,
				Text:  opt.Text,
			})
		}
		questions = append(questions, question)
	}

	iv.logger.Info("interview questions generated", zap.Int("count", len(questions)))
	return questions, nil
}
