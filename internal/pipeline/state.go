package pipeline

import (
	"github.com/jonathan/roadmap-agent/internal/language"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// Stage is one step of the pipeline state machine. Runs advance strictly
// forward, except for the validating/revising loop; error is reachable from
// any stage.
type Stage string

// Pipeline stages.
const (
	StageInitialized  Stage = "initialized"
	StageInterviewing Stage = "interviewing"
	StageArchitecting Stage = "architecting"
	StageResearching  Stage = "researching"
	StageValidating   Stage = "validating"
	StageRevising     Stage = "revising"
	StageSaving       Stage = "saving"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// maxTitleLen bounds the topic-derived fallback title.
const maxTitleLen = 100

// FixRecord documents one revision pass for audit.
type FixRecord struct {
	Attempt            int      `json:"attempt"`
	IssueCount         int      `json:"issue_count"`
	IssueTypes         []string `json:"issue_types"`
	AffectedSessionIDs []string `json:"affected_session_ids"`
}

// State is the aggregate root for one pipeline run. It is mutated only by
// the orchestrator; concurrent fan-out tasks write into disjoint slots that
// are merged after the fan-out completes.
type State struct {
	PipelineID         string                     `json:"pipeline_id"`
	UserID             string                     `json:"user_id"`
	Topic              string                     `json:"topic"`
	Language           string                     `json:"language"`
	Stage              Stage                      `json:"stage"`
	InterviewQuestions []types.InterviewQuestion  `json:"interview_questions"`
	InterviewAnswers   []types.InterviewAnswer    `json:"interview_answers"`
	SuggestedTitle     string                     `json:"suggested_title"`
	ConfirmedTitle     string                     `json:"confirmed_title"`
	SessionOutline     *types.SessionOutline      `json:"session_outline"`
	ResearchedSessions []*types.ResearchedSession `json:"researched_sessions"`
	ResearchProgress   int                        `json:"research_progress"`
	ResearchTotal      int                        `json:"research_total"`
	ValidationResult   *types.ValidationResult    `json:"validation_result"`
	FixAttempt         int                        `json:"fix_attempt"`
	FixHistory         []FixRecord                `json:"fix_history"`
	RoadmapID          string                     `json:"roadmap_id"`
	ErrorMessage       string                     `json:"error_message"`
}

// NewState creates the state for a fresh run. The response language is
// detected from the topic once and threaded through every generation call.
func NewState(userID, topic string) *State {
	return &State{
		PipelineID: types.NewID("pipeline"),
		UserID:     userID,
		Topic:      topic,
		Language:   language.Detect(topic),
		Stage:      StageInitialized,
	}
}

// InterviewContext assembles the read-only interview input for the agents.
func (s *State) InterviewContext() *types.InterviewContext {
	return &types.InterviewContext{
		Topic:     s.Topic,
		Questions: s.InterviewQuestions,
		Answers:   s.InterviewAnswers,
	}
}

// ResolveTitle picks the roadmap title: a user-confirmed title wins, then
// the architect's suggestion, then the topic truncated to a sane length.
func (s *State) ResolveTitle() string {
	if s.ConfirmedTitle != "" {
		return s.ConfirmedTitle
	}
	if s.SuggestedTitle != "" {
		return s.SuggestedTitle
	}
	return types.TruncateRunes(s.Topic, maxTitleLen)
}

// ReplaceSession swaps the session with the same outline ID in place.
// Sessions are replaced by outline_id, never appended, so exactly one
// researched session exists per outline item.
func (s *State) ReplaceSession(edited *types.ResearchedSession) {
	for i, existing := range s.ResearchedSessions {
		if existing.OutlineID == edited.OutlineID {
			s.ResearchedSessions[i] = edited
			return
		}
	}
}

// SessionByOutlineID returns the researched session for an outline item, or
// nil when none exists.
func (s *State) SessionByOutlineID(outlineID string) *types.ResearchedSession {
	for _, session := range s.ResearchedSessions {
		if session.OutlineID == outlineID {
			return session
		}
	}
	return nil
}
