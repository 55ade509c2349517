// Package editing repairs individual sessions flagged by validation. Fixes
// are surgical: the editor rewrites content to address specific issues, and
// when a real knowledge gap exists, a cheaper gap-fill call generates a new
// section appended to the edited content.
package editing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/research"
	"github.com/jonathan/roadmap-agent/internal/schemas"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// defaultGapHeading is used when the gap-fill call suggests no heading.
const defaultGapHeading = "Additional Information"

type editResponse struct {
	EditedContent   string  `json:"edited_content"`
	NeedsResearch   bool    `json:"needs_research"`
	ResearchRequest *string `json:"research_request"`
}

type gapFillResponse struct {
	SectionContent   string  `json:"section_content"`
	SuggestedHeading *string `json:"suggested_heading"`
}

// Editor fixes validation issues in researched sessions.
type Editor struct {
	gen       llm.Generator
	schema    *schemas.Schema
	gapSchema *schemas.Schema
	logger    *zap.Logger
}

// New creates an editor backed by the given generator.
func New(gen llm.Generator, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{
		gen:       gen,
		schema:    schemas.MustLoad("edit"),
		gapSchema: schemas.MustLoad("gap_fill"),
		logger:    logger.With(zap.String("agent", "editor")),
	}
}

// EditSession rewrites the session's content to fix the given issues. If the
// editor reports a gap it cannot close, a gap-fill call generates a section
// that is appended under its heading; a gap-fill failure is non-fatal and the
// edited content is returned without the extra section. All fields other than
// Content and Videos carry over unchanged from the input session; Videos are
// cleared so the caller re-enriches the rewritten content.
func (e *Editor) EditSession(ctx context.Context, session *types.ResearchedSession, item types.SessionOutlineItem, issues []types.ValidationIssue, outline *types.SessionOutline, topic, lang string) (*types.ResearchedSession, error) {
	prompt := prompts.Format(prompts.MustGet("editing/edit_session"), map[string]string{
		"LanguageInstruction": prompts.LanguageInstruction(lang),
		"SessionTitle":        session.Title,
		"SessionType":         string(session.SessionType),
		"Objective":           item.Objective,
		"Order":               strconv.Itoa(session.Order),
		"OtherSessions":       formatOtherSessions(outline, session.OutlineID),
		"Issues":              formatIssues(issues),
		"Content":             session.Content,
	})

	var resp editResponse
	err := e.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Role:         llm.RoleEditor,
		Prompt:       prompt,
		SystemPrompt: prompts.MustGet("editing/system"),
		Schema:       e.schema,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("edit failed for session %q: %w", session.Title, err)
	}

	content := research.SanitizeContent(resp.EditedContent)
	if resp.NeedsResearch && resp.ResearchRequest != nil && *resp.ResearchRequest != "" {
		section, heading, gapErr := e.fillGap(ctx, session, item, topic, *resp.ResearchRequest, lang)
		if gapErr != nil {
			e.logger.Warn("gap fill failed, keeping edited content",
				zap.String("outline_id", session.OutlineID), zap.Error(gapErr))
		} else {
			content = content + "\n\n## " + heading + "\n\n" + section
		}
	}

	edited := *session
	edited.Content = content
	edited.Videos = nil

	e.logger.Info("session edited",
		zap.String("outline_id", session.OutlineID),
		zap.Int("issues", len(issues)),
		zap.Bool("gap_fill", resp.NeedsResearch))
	return &edited, nil
}

func (e *Editor) fillGap(ctx context.Context, session *types.ResearchedSession, item types.SessionOutlineItem, topic, request, lang string) (string, string, error) {
	prompt := prompts.Format(prompts.MustGet("editing/gap_fill"), map[string]string{
		"LanguageInstruction": prompts.LanguageInstruction(lang),
		"SessionTitle":        session.Title,
		"SessionType":         string(session.SessionType),
		"Objective":           item.Objective,
		"Topic":               topic,
		"Request":             request,
	})

	var resp gapFillResponse
	err := e.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Role:         llm.RoleGapFill,
		Prompt:       prompt,
		SystemPrompt: prompts.MustGet("editing/gap_system"),
		Schema:       e.gapSchema,
	}, &resp)
	if err != nil {
		return "", "", err
	}

	heading := defaultGapHeading
	if resp.SuggestedHeading != nil && strings.TrimSpace(*resp.SuggestedHeading) != "" {
		heading = strings.TrimSpace(*resp.SuggestedHeading)
	}
	return research.SanitizeContent(resp.SectionContent), heading, nil
}

func formatIssues(issues []types.ValidationIssue) string {
	var b strings.Builder
	for i, issue := range issues {
		fmt.Fprintf(&b, "%d. [%s/%s] %s", i+1, issue.IssueType, issue.Severity, issue.Description)
		if issue.SuggestedFix != "" {
			fmt.Fprintf(&b, "\n   Suggested fix: %s", issue.SuggestedFix)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatOtherSessions lists the rest of the outline so edits stay coherent
// with neighboring sessions.
func formatOtherSessions(outline *types.SessionOutline, excludeID string) string {
	var b strings.Builder
	for _, item := range outline.Sessions {
		if item.ID == excludeID {
			continue
		}
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", item.Order, item.Title, item.SessionType, item.Objective)
	}
	return b.String()
}
