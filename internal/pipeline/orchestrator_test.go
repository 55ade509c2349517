package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/roadmap-agent/internal/gate"
	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/types"
	"github.com/jonathan/roadmap-agent/internal/videos"
)

type fakeInterviewer struct {
	questions []types.InterviewQuestion
	err       error
}

func (f *fakeInterviewer) GenerateQuestions(context.Context, string, int, string) ([]types.InterviewQuestion, error) {
	return f.questions, f.err
}

type fakeArchitect struct {
	title   string
	outline *types.SessionOutline
	err     error
}

func (f *fakeArchitect) CreateOutline(context.Context, *types.InterviewContext, string) (string, *types.SessionOutline, error) {
	return f.title, f.outline, f.err
}

// fakeResearcher sleeps a random few milliseconds per session so completion
// order differs from submission order.
type fakeResearcher struct {
	jitter bool
	err    error
}

func (f *fakeResearcher) ResearchSession(_ context.Context, item types.SessionOutlineItem, _ *types.InterviewContext, _ []types.SessionOutlineItem, lang string) (*types.ResearchedSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.jitter {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}
	return &types.ResearchedSession{
		OutlineID:   item.ID,
		Title:       item.Title,
		SessionType: item.SessionType,
		Order:       item.Order,
		Content:     "content for " + item.Title,
		Language:    lang,
	}, nil
}

// fakeValidator returns its queued results in order, repeating the last one.
type fakeValidator struct {
	mu      sync.Mutex
	results []*types.ValidationResult
	calls   int
}

func (f *fakeValidator) Validate(context.Context, *types.SessionOutline, []*types.ResearchedSession, string) (*types.ValidationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	return f.results[idx], nil
}

type fakeEditor struct {
	mu     sync.Mutex
	edited []string
	err    error
}

func (f *fakeEditor) EditSession(_ context.Context, session *types.ResearchedSession, _ types.SessionOutlineItem, issues []types.ValidationIssue, _ *types.SessionOutline, _, _ string) (*types.ResearchedSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.edited = append(f.edited, session.OutlineID)
	f.mu.Unlock()
	fixed := *session
	fixed.Content = "edited " + session.Content
	fixed.Videos = nil
	return &fixed, nil
}

type fakeVideoFinder struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeVideoFinder) FindVideos(_ context.Context, session *types.ResearchedSession, _ int) []types.VideoResource {
	f.mu.Lock()
	f.calls = append(f.calls, session.OutlineID)
	f.mu.Unlock()
	return []types.VideoResource{{URL: "https://youtu.be/" + session.OutlineID, Title: "Video"}}
}

type fakeStore struct {
	savedTitle    string
	savedSessions int
	err           error
}

func (f *fakeStore) SaveRoadmap(_ context.Context, _, title string, _ *types.SessionOutline, sessions []*types.ResearchedSession, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.savedTitle = title
	f.savedSessions = len(sessions)
	return "roadmap_abc123", nil
}

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Send(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.events))
	for i, e := range c.events {
		names[i] = e.Name
	}
	return names
}

func (c *captureSink) count(name string) int {
	n := 0
	for _, got := range c.names() {
		if got == name {
			n++
		}
	}
	return n
}

func (c *captureSink) last(name string) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Name == name {
			return c.events[i], true
		}
	}
	return Event{}, false
}

func outlineOf(n int) *types.SessionOutline {
	items := make([]types.SessionOutlineItem, n)
	for i := range items {
		items[i] = types.SessionOutlineItem{
			ID:                       fmt.Sprintf("session_%02d", i+1),
			Title:                    fmt.Sprintf("Session %d", i+1),
			SessionType:              types.SessionConcept,
			EstimatedDurationMinutes: 60,
			Order:                    i + 1,
		}
	}
	return &types.SessionOutline{
		Sessions:            items,
		LearningPathSummary: "summary",
		TotalEstimatedHours: types.EstimateTotalHours(items),
	}
}

func validResult(score float64) *types.ValidationResult {
	return types.NewValidationResult(nil, score, "all good")
}

func invalidResult(affected ...string) *types.ValidationResult {
	return types.NewValidationResult([]types.ValidationIssue{{
		ID:                 "issue_1",
		IssueType:          types.IssueGap,
		Severity:           types.SeverityHigh,
		Description:        "missing prerequisite coverage",
		AffectedSessionIDs: affected,
	}}, 55, "needs work")
}

type fixture struct {
	orch      *Orchestrator
	validator *fakeValidator
	editor    *fakeEditor
	videos    *fakeVideoFinder
	store     *fakeStore
}

func newFixture(t *testing.T, outline *types.SessionOutline, results ...*types.ValidationResult) *fixture {
	t.Helper()
	f := &fixture{
		validator: &fakeValidator{results: results},
		editor:    &fakeEditor{},
		videos:    &fakeVideoFinder{},
		store:     &fakeStore{},
	}
	f.orch = New(
		&fakeInterviewer{questions: []types.InterviewQuestion{{ID: "q_1", Question: "Level?"}}},
		&fakeArchitect{title: "Suggested Title", outline: outline},
		&fakeResearcher{jitter: true},
		f.validator,
		f.editor,
		f.videos,
		f.store,
		gate.New(5),
		nil,
		Options{},
		nil,
	)
	return f
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture(t, outlineOf(8), validResult(88))
	state := NewState("user_1", "Learn Go")
	sink := &captureSink{}

	err := f.orch.Run(context.Background(), state, nil, sink)
	require.NoError(t, err)

	assert.Equal(t, StageComplete, state.Stage)
	assert.Equal(t, "roadmap_abc123", state.RoadmapID)
	assert.Equal(t, 0, state.FixAttempt)
	require.Len(t, state.ResearchedSessions, 8)

	// Fan-in is order-stable regardless of completion order.
	for i, session := range state.ResearchedSessions {
		assert.Equal(t, i+1, session.Order)
		assert.Equal(t, fmt.Sprintf("session_%02d", i+1), session.OutlineID)
		assert.Len(t, session.Videos, 1)
	}

	// Exactly one researched session per outline item.
	seen := map[string]int{}
	for _, session := range state.ResearchedSessions {
		seen[session.OutlineID]++
	}
	for _, item := range state.SessionOutline.Sessions {
		assert.Equal(t, 1, seen[item.ID])
	}

	assert.Equal(t, 1, f.validator.calls)
	assert.Equal(t, 8, f.store.savedSessions)
	assert.Equal(t, "Suggested Title", f.store.savedTitle)

	assert.Equal(t, 8, sink.count(EventSessionProgress))
	assert.Equal(t, 1, sink.count(EventTitleSuggestion))
	assert.Equal(t, 1, sink.count(EventValidationResult))
	assert.Equal(t, 1, sink.count(EventComplete))
	assert.Equal(t, 0, sink.count(EventError))

	complete, ok := sink.last(EventComplete)
	require.True(t, ok)
	assert.Equal(t, "roadmap_abc123", complete.Payload["roadmap_id"])
}

// queryGenStub answers the video finder's model calls.
type queryGenStub struct{}

func (queryGenStub) GenerateStructured(_ context.Context, req llm.StructuredRequest, out any) error {
	if req.Role != llm.RoleVideoQuery {
		return fmt.Errorf("unexpected role %s", req.Role)
	}
	return json.Unmarshal([]byte(`{"queries": ["q1", "q2"]}`), out)
}

// slowSearchStub holds each search long enough that sessions genuinely
// overlap on the gate.
type slowSearchStub struct{}

func (slowSearchStub) Search(context.Context, string) ([]string, error) {
	time.Sleep(2 * time.Millisecond)
	return []string{"v1"}, nil
}

func (slowSearchStub) Details(_ context.Context, ids []string) ([]videos.Candidate, error) {
	out := make([]videos.Candidate, len(ids))
	for i, id := range ids {
		out[i] = videos.Candidate{ID: id, Title: "Video " + id, DurationMinutes: 10}
	}
	return out, nil
}

type rejectVerifierStub struct{}

func (rejectVerifierStub) Verify(_ context.Context, videoURL string) (*videos.OEmbedMeta, error) {
	return nil, fmt.Errorf("unexpected verification of %s", videoURL)
}

// The real finder shares the orchestrator's gate. With more sessions in
// flight than gate slots, enrichment must still drain: the finder takes the
// slot itself, so the fan-out must not hold one around the call.
func TestRunEnrichesVideosOverSharedGate(t *testing.T) {
	g := gate.New(2)
	finder := videos.New(queryGenStub{}, slowSearchStub{}, rejectVerifierStub{}, videos.NewBreaker(), g, nil)

	orch := New(
		&fakeInterviewer{questions: []types.InterviewQuestion{{ID: "q_1", Question: "Level?"}}},
		&fakeArchitect{title: "Suggested Title", outline: outlineOf(6)},
		&fakeResearcher{jitter: true},
		&fakeValidator{results: []*types.ValidationResult{validResult(90)}},
		&fakeEditor{},
		finder,
		&fakeStore{},
		g,
		nil,
		Options{},
		nil,
	)

	state := NewState("user_1", "Learn Go")
	done := make(chan error, 1)
	go func() {
		done <- orch.Run(context.Background(), state, nil, &captureSink{})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("run did not finish; video enrichment stalled on the gate")
	}

	require.Len(t, state.ResearchedSessions, 6)
	for _, session := range state.ResearchedSessions {
		require.Len(t, session.Videos, 1)
		assert.Equal(t, "https://www.youtube.com/watch?v=v1", session.Videos[0].URL)
	}
}

func TestRunAutoFixThenValid(t *testing.T) {
	f := newFixture(t, outlineOf(5),
		invalidResult("session_03"),
		validResult(90),
	)
	state := NewState("user_1", "Learn Go")
	sink := &captureSink{}

	err := f.orch.Run(context.Background(), state, nil, sink)
	require.NoError(t, err)

	assert.Equal(t, StageComplete, state.Stage)
	assert.Equal(t, 2, f.validator.calls)
	assert.Equal(t, 1, state.FixAttempt)
	require.Len(t, state.FixHistory, 1)
	assert.Equal(t, 1, state.FixHistory[0].Attempt)
	assert.Equal(t, []string{"session_03"}, state.FixHistory[0].AffectedSessionIDs)
	assert.Equal(t, []string{"gap"}, state.FixHistory[0].IssueTypes)

	// Only the affected session was edited and re-enriched.
	assert.Equal(t, []string{"session_03"}, f.editor.edited)
	edited := state.SessionByOutlineID("session_03")
	require.NotNil(t, edited)
	assert.Contains(t, edited.Content, "edited ")
	assert.Len(t, edited.Videos, 1)

	// The others kept their original content, and order stayed dense.
	untouched := state.SessionByOutlineID("session_01")
	assert.NotContains(t, untouched.Content, "edited")
	for i, session := range state.ResearchedSessions {
		assert.Equal(t, i+1, session.Order)
	}
}

func TestRunFixBudgetExhaustedSavesAnyway(t *testing.T) {
	f := newFixture(t, outlineOf(3), invalidResult("session_01"))
	state := NewState("user_1", "Learn Go")
	sink := &captureSink{}

	err := f.orch.Run(context.Background(), state, nil, sink)
	require.NoError(t, err)

	// Budget of 2 edit attempts, then save regardless.
	assert.Equal(t, StageComplete, state.Stage)
	assert.Equal(t, 2, state.FixAttempt)
	assert.Len(t, state.FixHistory, 2)
	assert.Equal(t, 3, f.validator.calls)
	assert.Equal(t, "roadmap_abc123", state.RoadmapID)
	assert.False(t, state.ValidationResult.IsValid)
	assert.Equal(t, 3, sink.count(EventValidationResult))
}

func TestRunArchitectFailure(t *testing.T) {
	f := newFixture(t, outlineOf(3), validResult(90))
	f.orch.architect = &fakeArchitect{err: errors.New("model refused")}
	state := NewState("user_1", "Learn Go")
	sink := &captureSink{}

	err := f.orch.Run(context.Background(), state, nil, sink)
	require.Error(t, err)

	assert.Equal(t, StageError, state.Stage)
	assert.Contains(t, state.ErrorMessage, "model refused")
	assert.Equal(t, 1, sink.count(EventError))
	assert.Equal(t, 0, sink.count(EventComplete))
	assert.Empty(t, state.RoadmapID)
}

func TestRunResearchFailurePreservesPartialState(t *testing.T) {
	f := newFixture(t, outlineOf(3), validResult(90))
	f.orch.researcher = &fakeResearcher{err: errors.New("generation exhausted")}
	state := NewState("user_1", "Learn Go")

	err := f.orch.Run(context.Background(), state, nil, &captureSink{})
	require.Error(t, err)

	assert.Equal(t, StageError, state.Stage)
	// Partial state up to the failure is preserved, not rolled back.
	assert.Equal(t, "Suggested Title", state.SuggestedTitle)
	assert.NotNil(t, state.SessionOutline)
}

func TestRunSaveFailure(t *testing.T) {
	f := newFixture(t, outlineOf(2), validResult(90))
	f.store.err = errors.New("db down")
	state := NewState("user_1", "Learn Go")
	sink := &captureSink{}

	err := f.orch.Run(context.Background(), state, nil, sink)
	require.Error(t, err)
	assert.Equal(t, StageError, state.Stage)
	assert.Equal(t, 1, sink.count(EventError))
}

func TestRunNilStoreCompletesWithoutSaving(t *testing.T) {
	f := newFixture(t, outlineOf(2), validResult(90))
	f.orch.store = nil
	state := NewState("user_1", "Learn Go")

	err := f.orch.Run(context.Background(), state, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StageComplete, state.Stage)
	assert.Empty(t, state.RoadmapID)
}

func TestStartInterview(t *testing.T) {
	f := newFixture(t, outlineOf(2), validResult(90))
	state := NewState("user_1", "Learn Go")

	questions, err := f.orch.StartInterview(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, StageInterviewing, state.Stage)
	assert.Equal(t, questions, state.InterviewQuestions)
}

func TestStartInterviewFailure(t *testing.T) {
	f := newFixture(t, outlineOf(2), validResult(90))
	f.orch.interviewer = &fakeInterviewer{err: errors.New("nope")}
	state := NewState("user_1", "Learn Go")

	_, err := f.orch.StartInterview(context.Background(), state)
	require.Error(t, err)
	assert.Equal(t, StageError, state.Stage)
}

func TestResolveTitlePrecedence(t *testing.T) {
	state := NewState("user_1", "Machine learning for bioinformatics researchers")

	assert.Equal(t, "Machine learning for bioinformatics researchers", state.ResolveTitle())

	state.SuggestedTitle = "ML for Biologists"
	assert.Equal(t, "ML for Biologists", state.ResolveTitle())

	state.ConfirmedTitle = "My Custom Roadmap"
	assert.Equal(t, "My Custom Roadmap", state.ResolveTitle())
}

func TestResolveTitleTruncatesTopic(t *testing.T) {
	longTopic := ""
	for range 30 {
		longTopic += "abcdefghij"
	}
	state := NewState("user_1", longTopic)
	assert.Len(t, state.ResolveTitle(), 100)
}

func TestResolveTitleTruncatesTopicByRunes(t *testing.T) {
	// Hebrew runes are two bytes each; the cut counts characters, not bytes.
	hebrewTopic := ""
	for range 60 {
		hebrewTopic += "למ"
	}
	state := NewState("user_1", hebrewTopic)

	title := state.ResolveTitle()
	assert.True(t, utf8.ValidString(title))
	assert.Equal(t, 100, utf8.RuneCountInString(title))
}

func TestStateLanguageDetection(t *testing.T) {
	assert.Equal(t, "en", NewState("u", "Learn Go").Language)
	assert.Equal(t, "he", NewState("u", "ללמוד תכנות").Language)
}

func TestReplaceSessionByOutlineID(t *testing.T) {
	state := NewState("u", "t")
	state.ResearchedSessions = []*types.ResearchedSession{
		{OutlineID: "a", Content: "one"},
		{OutlineID: "b", Content: "two"},
	}

	state.ReplaceSession(&types.ResearchedSession{OutlineID: "b", Content: "edited"})
	require.Len(t, state.ResearchedSessions, 2)
	assert.Equal(t, "edited", state.ResearchedSessions[1].Content)

	// Unknown outline ids are never appended.
	state.ReplaceSession(&types.ResearchedSession{OutlineID: "zzz", Content: "ghost"})
	assert.Len(t, state.ResearchedSessions, 2)
}

func TestGroupIssuesBySession(t *testing.T) {
	issues := []types.ValidationIssue{
		{ID: "i1", AffectedSessionIDs: []string{"a", "b"}},
		{ID: "i2", AffectedSessionIDs: []string{"b"}},
		{ID: "i3", AffectedSessionIDs: nil},
	}
	grouped := groupIssuesBySession(issues)
	assert.Len(t, grouped, 2)
	assert.Len(t, grouped["a"], 1)
	assert.Len(t, grouped["b"], 2)
}
