package architect

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/roadmap-agent/internal/gate"
	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// fakeGenerator answers the skeleton call once, then answers every detail
// call with payloads keyed by the session title found in the prompt.
type fakeGenerator struct {
	mu       sync.Mutex
	skeleton string
	details  map[string]string
	calls    []llm.StructuredRequest
}

func (f *fakeGenerator) GenerateStructured(_ context.Context, req llm.StructuredRequest, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if strings.Contains(req.Prompt, "roadmap structure") {
		return json.Unmarshal([]byte(f.skeleton), out)
	}
	for title, payload := range f.details {
		if strings.Contains(req.Prompt, "Session: "+title) {
			return json.Unmarshal([]byte(payload), out)
		}
	}
	return json.Unmarshal([]byte(`{"objective": "o", "estimated_duration_minutes": 60, "prerequisites": []}`), out)
}

func newTestContext() *types.InterviewContext {
	return &types.InterviewContext{
		Topic:     "Rust programming",
		Questions: []types.InterviewQuestion{{ID: "q_1", Question: "Level?"}},
		Answers:   []types.InterviewAnswer{{QuestionID: "q_1", Answer: "Beginner"}},
	}
}

func TestCreateOutline(t *testing.T) {
	gen := &fakeGenerator{
		skeleton: `{
			"title": "Rust from Scratch",
			"learning_path_summary": "A journey through Rust.",
			"sessions": [
				{"title": "Ownership Basics", "session_type": "concept"},
				{"title": "Build a CLI", "session_type": "project"},
				{"title": "Mystery Session", "session_type": "quiz"}
			]
		}`,
		details: map[string]string{
			"Ownership Basics": `{"objective": "Understand moves", "estimated_duration_minutes": 45, "prerequisites": []}`,
			"Build a CLI":      `{"objective": "Ship a tool", "estimated_duration_minutes": 90, "prerequisites": [0]}`,
			"Mystery Session":  `{"objective": "Recap", "estimated_duration_minutes": 30, "prerequisites": [0, 1, 2, 7]}`,
		},
	}

	a := New(gen, gate.New(5), nil)
	title, outline, err := a.CreateOutline(context.Background(), newTestContext(), "en")
	require.NoError(t, err)

	assert.Equal(t, "Rust from Scratch", title)
	assert.Equal(t, "A journey through Rust.", outline.LearningPathSummary)
	require.Len(t, outline.Sessions, 3)

	first := outline.Sessions[0]
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, types.SessionConcept, first.SessionType)
	assert.Equal(t, "Understand moves", first.Objective)
	assert.Empty(t, first.Prerequisites)

	second := outline.Sessions[1]
	assert.Equal(t, types.SessionProject, second.SessionType)
	assert.Equal(t, []string{first.ID}, second.Prerequisites)

	// Unknown session type falls back to concept; self and forward
	// prerequisite references are dropped.
	third := outline.Sessions[2]
	assert.Equal(t, types.SessionConcept, third.SessionType)
	assert.Equal(t, []string{first.ID, second.ID}, third.Prerequisites)

	// 45 + 90 + 30 minutes = 2.8 hours.
	assert.InDelta(t, 2.8, outline.TotalEstimatedHours, 0.001)
}

func TestCreateOutlineEmptySkeleton(t *testing.T) {
	gen := &fakeGenerator{skeleton: `{"title": "T", "learning_path_summary": "S", "sessions": []}`}
	a := New(gen, gate.New(5), nil)
	_, _, err := a.CreateOutline(context.Background(), newTestContext(), "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty outline")
}

func TestCreateOutlineIncludesAnswersInSkeletonPrompt(t *testing.T) {
	gen := &fakeGenerator{
		skeleton: `{"title": "T", "learning_path_summary": "S", "sessions": [{"title": "A", "session_type": "concept"}]}`,
	}
	a := New(gen, gate.New(5), nil)
	_, _, err := a.CreateOutline(context.Background(), newTestContext(), "en")
	require.NoError(t, err)

	require.NotEmpty(t, gen.calls)
	assert.Contains(t, gen.calls[0].Prompt, "A: Beginner")
}

func TestCreateOutlineAssignsUniqueIDs(t *testing.T) {
	gen := &fakeGenerator{
		skeleton: `{"title": "T", "learning_path_summary": "S", "sessions": [
			{"title": "A", "session_type": "concept"},
			{"title": "B", "session_type": "practice"}
		]}`,
	}
	a := New(gen, gate.New(5), nil)
	_, outline, err := a.CreateOutline(context.Background(), newTestContext(), "en")
	require.NoError(t, err)
	require.Len(t, outline.Sessions, 2)
	assert.NotEqual(t, outline.Sessions[0].ID, outline.Sessions[1].ID)
	assert.True(t, strings.HasPrefix(outline.Sessions[0].ID, "session_"))
}
