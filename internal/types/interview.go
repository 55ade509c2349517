// Package types provides type definitions for structured data used throughout the roadmap pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

// ExampleOption is one suggested answer for an interview question.
type ExampleOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// InterviewQuestion is a clarifying question produced by the interviewer agent.
// Questions are immutable once created and referenced by ID from answers.
type InterviewQuestion struct {
	ID             string          `json:"id"`
	Question       string          `json:"question"`
	Purpose        string          `json:"purpose"`
	ExampleOptions []ExampleOption `json:"example_options"`
	AllowsFreeform bool            `json:"allows_freeform"`
}

// InterviewAnswer is the learner's answer to a question, joined by question ID.
type InterviewAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// QAPair is a resolved question/answer pair.
type QAPair struct {
	Question string
	Answer   string
}

// InterviewContext aggregates the topic plus the ordered questions and answers
// collected during the interview phase. It is read-only input for the
// architect, researchers, and editor.
type InterviewContext struct {
	Topic     string              `json:"topic"`
	Questions []InterviewQuestion `json:"questions"`
	Answers   []InterviewAnswer   `json:"answers"`
}

// QAPairs joins questions to answers by question ID, preserving question
// order. Questions without a matching answer are excluded.
func (c *InterviewContext) QAPairs() []QAPair {
	answers := make(map[string]string, len(c.Answers))
	for _, a := range c.Answers {
		answers[a.QuestionID] = a.Answer
	}

	pairs := make([]QAPair, 0, len(c.Questions))
	for _, q := range c.Questions {
		if answer, ok := answers[q.ID]; ok {
			pairs = append(pairs, QAPair{Question: q.Question, Answer: answer})
		}
	}
	return pairs
}
