// Package validation reviews an assembled roadmap for quality issues such as
// content overlap, knowledge gaps, and ordering problems.
package validation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
	"github.com/jonathan/roadmap-agent/internal/types"
)

const (
	// previewConcepts caps how many key concepts each session preview lists.
	previewConcepts = 5
	// previewContentLen caps the content excerpt per session preview.
	previewContentLen = 500
)

type validateResponse struct {
	IsValid      bool    `json:"is_valid"`
	OverallScore float64 `json:"overall_score"`
	Summary      string  `json:"summary"`
	Issues       []struct {
		IssueType              string `json:"issue_type"`
		Severity               string `json:"severity"`
		Description            string `json:"description"`
		AffectedSessionIndices []int  `json:"affected_session_indices"`
		SuggestedFix           string `json:"suggested_fix"`
	} `json:"issues"`
}

// Validator scores a researched roadmap and reports issues.
type Validator struct {
	gen    llm.Generator
	schema *schemas.Schema
	logger *zap.Logger
}

// New creates a validator backed by the given generator.
func New(gen llm.Generator, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		gen:    gen,
		schema: schemas.MustLoad("validation"),
		logger: logger.With(zap.String("agent", "validator")),
	}
}

// Validate reviews the researched sessions against the outline. The model
// references sessions by 0-based index; indices are resolved to outline IDs
// here, with out-of-range indices silently dropped. The returned result's
// validity is recomputed from issue severities regardless of what the model
// claimed.
func (v *Validator) Validate(ctx context.Context, outline *types.SessionOutline, sessions []*types.ResearchedSession, lang string) (*types.ValidationResult, error) {
	prompt := prompts.LanguageInstruction(lang) + prompts.Format(prompts.MustGet("validation/validate"), map[string]string{
		"Summary":  outline.LearningPathSummary,
		"Total":    strconv.Itoa(len(sessions)),
		"Hours":    strconv.FormatFloat(outline.TotalEstimatedHours, 'f', 1, 64),
		"Sessions": formatPreviews(sessions),
	})

	var resp validateResponse
	err := v.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Role:         llm.RoleValidator,
		Prompt:       prompt,
		SystemPrompt: prompts.MustGet("validation/system"),
		Schema:       v.schema,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("roadmap validation failed: %w", err)
	}

	issues := make([]types.ValidationIssue, 0, len(resp.Issues))
	for _, raw := range resp.Issues {
		issues = append(issues, types.ValidationIssue{
			ID:                 types.NewID("issue"),
			IssueType:          types.ParseIssueType(raw.IssueType),
			Severity:           types.ParseSeverity(raw.Severity),
			Description:        raw.Description,
			AffectedSessionIDs: resolveIndices(raw.AffectedSessionIndices, outline.Sessions),
			SuggestedFix:       raw.SuggestedFix,
		})
	}

	result := types.NewValidationResult(issues, resp.OverallScore, resp.Summary)
	v.logger.Info("roadmap validated",
		zap.Bool("is_valid", result.IsValid),
		zap.Float64("score", result.OverallScore),
		zap.Int("issues", len(result.Issues)))
	return result, nil
}

// resolveIndices maps 0-based outline indices to session IDs, dropping any
// index outside the outline.
func resolveIndices(indices []int, items []types.SessionOutlineItem) []string {
	ids := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(items) {
			ids = append(ids, items[idx].ID)
		}
	}
	return ids
}

// formatPreviews renders each session as a compact preview so the full
// roadmap fits one validation prompt.
func formatPreviews(sessions []*types.ResearchedSession) string {
	var b strings.Builder
	for i, s := range sessions {
		concepts := s.KeyConcepts
		if len(concepts) > previewConcepts {
			concepts = concepts[:previewConcepts]
		}
		content := types.TruncateRunes(s.Content, previewContentLen)
		if content != s.Content {
			content += "..."
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\nKey concepts: %s\nContent preview: %s\n\n",
			i, s.Title, s.SessionType, strings.Join(concepts, ", "), content)
	}
	return b.String()
}
