package editing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// fakeGenerator routes by role: the edit call and the gap-fill call use
// different payloads.
type fakeGenerator struct {
	editPayload string
	gapPayload  string
	gapErr      error
	requests    []llm.StructuredRequest
}

func (f *fakeGenerator) GenerateStructured(_ context.Context, req llm.StructuredRequest, out any) error {
	f.requests = append(f.requests, req)
	if req.Role == llm.RoleGapFill {
		if f.gapErr != nil {
			return f.gapErr
		}
		return json.Unmarshal([]byte(f.gapPayload), out)
	}
	return json.Unmarshal([]byte(f.editPayload), out)
}

func testInputs() (*types.ResearchedSession, types.SessionOutlineItem, *types.SessionOutline) {
	session := &types.ResearchedSession{
		OutlineID:   "session_b",
		Title:       "Pointers",
		SessionType: types.SessionConcept,
		Order:       2,
		Content:     "old content",
		KeyConcepts: []string{"pointer"},
		Videos:      []types.VideoResource{{URL: "https://youtube.com/watch?v=x", Title: "Old"}},
		Language:    "en",
	}
	item := types.SessionOutlineItem{ID: "session_b", Title: "Pointers", Objective: "Understand pointers", Order: 2}
	outline := &types.SessionOutline{Sessions: []types.SessionOutlineItem{
		{ID: "session_a", Title: "Basics", Objective: "Start", SessionType: types.SessionConcept, Order: 1},
		item,
	}}
	return session, item, outline
}

func TestEditSession(t *testing.T) {
	gen := &fakeGenerator{editPayload: `{"edited_content": "new content", "needs_research": false}`}
	e := New(gen, nil)

	session, item, outline := testInputs()
	issues := []types.ValidationIssue{{
		IssueType:    types.IssueOverlap,
		Severity:     types.SeverityHigh,
		Description:  "Repeats session A",
		SuggestedFix: "Remove the duplicated intro",
	}}

	edited, err := e.EditSession(context.Background(), session, item, issues, outline, "Go", "en")
	require.NoError(t, err)

	assert.Equal(t, "new content", edited.Content)
	// Videos are cleared for re-enrichment; everything else carries over.
	assert.Nil(t, edited.Videos)
	assert.Equal(t, "session_b", edited.OutlineID)
	assert.Equal(t, []string{"pointer"}, edited.KeyConcepts)
	assert.Equal(t, 2, edited.Order)

	// Input session is not mutated.
	assert.Equal(t, "old content", session.Content)
	assert.Len(t, session.Videos, 1)

	require.Len(t, gen.requests, 1)
	assert.Contains(t, gen.requests[0].Prompt, "Repeats session A")
	assert.Contains(t, gen.requests[0].Prompt, "Suggested fix: Remove the duplicated intro")
	assert.Contains(t, gen.requests[0].Prompt, "1. Basics (concept): Start")
	assert.NotContains(t, gen.requests[0].Prompt, "2. Pointers")
}

func TestEditSessionGapFill(t *testing.T) {
	gen := &fakeGenerator{
		editPayload: `{"edited_content": "fixed", "needs_research": true, "research_request": "Explain nil pointers"}`,
		gapPayload:  `{"section_content": "Nil pointers explained.", "suggested_heading": "Nil Pointers"}`,
	}
	e := New(gen, nil)
	session, item, outline := testInputs()

	edited, err := e.EditSession(context.Background(), session, item, nil, outline, "Go", "en")
	require.NoError(t, err)

	assert.Equal(t, "fixed\n\n## Nil Pointers\n\nNil pointers explained.", edited.Content)
	require.Len(t, gen.requests, 2)
	assert.Equal(t, llm.RoleGapFill, gen.requests[1].Role)
	assert.Contains(t, gen.requests[1].Prompt, "Explain nil pointers")
}

func TestEditSessionGapFillDefaultHeading(t *testing.T) {
	gen := &fakeGenerator{
		editPayload: `{"edited_content": "fixed", "needs_research": true, "research_request": "r"}`,
		gapPayload:  `{"section_content": "Extra.", "suggested_heading": null}`,
	}
	e := New(gen, nil)
	session, item, outline := testInputs()

	edited, err := e.EditSession(context.Background(), session, item, nil, outline, "Go", "en")
	require.NoError(t, err)
	assert.Equal(t, "fixed\n\n## Additional Information\n\nExtra.", edited.Content)
}

func TestEditSessionGapFillFailureNonFatal(t *testing.T) {
	gen := &fakeGenerator{
		editPayload: `{"edited_content": "fixed", "needs_research": true, "research_request": "r"}`,
		gapErr:      errors.New("model unavailable"),
	}
	e := New(gen, nil)
	session, item, outline := testInputs()

	edited, err := e.EditSession(context.Background(), session, item, nil, outline, "Go", "en")
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Content)
}

func TestEditSessionNoGapWithoutRequest(t *testing.T) {
	gen := &fakeGenerator{
		editPayload: `{"edited_content": "fixed", "needs_research": true, "research_request": null}`,
	}
	e := New(gen, nil)
	session, item, outline := testInputs()

	edited, err := e.EditSession(context.Background(), session, item, nil, outline, "Go", "en")
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Content)
	assert.Len(t, gen.requests, 1)
}

func TestEditSessionError(t *testing.T) {
	gen := &fakeGenerator{editPayload: `not json`}
	e := New(gen, nil)
	session, item, outline := testInputs()

	_, err := e.EditSession(context.Background(), session, item, nil, outline, "Go", "en")
	require.Error(t, err)
}
