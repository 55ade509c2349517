// Package research produces the full content for a single session. Each
// session type gets a specialized system prompt layered on a shared base.
package research

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

// priorContextWindow is how many preceding sessions are summarized into the
// research prompt to keep content non-repetitive without blowing the context.
const priorContextWindow = 3

type researchResponse struct {
	Content     string   `json:"content"`
	KeyConcepts []string `json:"key_concepts"`
	Resources   []string `json:"resources"`
	Exercises   []string `json:"exercises"`
}

// Researcher writes the content for individual sessions.
type Researcher struct {
	gen    llm.Generator
	schema *schemas.Schema
	logger *zap.Logger
}

// New creates a researcher backed by the given generator.
func New(gen llm.Generator, logger *zap.Logger) *Researcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Researcher{
		gen:    gen,
		schema: schemas.MustLoad("research"),
		logger: logger.With(zap.String("agent", "researcher")),
	}
}

// ResearchSession generates content for one outline item. allItems is the
// full outline in order; the prompt includes the titles and objectives of up
// to priorContextWindow sessions preceding this item.
func (r *Researcher) ResearchSession(ctx context.Context, item types.SessionOutlineItem, ictx *types.InterviewContext, allItems []types.SessionOutlineItem, lang string) (*types.ResearchedSession, error) {
	var qa strings.Builder
	for _, pair := range ictx.QAPairs() {
		fmt.Fprintf(&qa, "Q: %s\nA: %s\n", pair.Question, pair.Answer)
	}

	prompt := prompts.Format(prompts.MustGet("research/research_session"), map[string]string{
		"LanguageInstruction": prompts.LanguageInstruction(lang),
		"SessionTitle":        item.Title,
		"SessionType":         string(item.SessionType),
		"Objective":           item.Objective,
		"Duration":            strconv.Itoa(item.EstimatedDurationMinutes),
		"Topic":               ictx.Topic,
		"QAContext":           qa.String(),
		"PriorContext":        priorContext(item, allItems),
	})

	var resp researchResponse
	err := r.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Role:         llm.RoleResearcher,
		Prompt:       prompt,
		SystemPrompt: systemPromptFor(item.SessionType),
		Schema:       r.schema,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("research failed for session %q: %w", item.Title, err)
	}

	session := &types.ResearchedSession{
		OutlineID:   item.ID,
		Title:       item.Title,
		SessionType: item.SessionType,
		Order:       item.Order,
		Content:     SanitizeContent(resp.Content),
		KeyConcepts: resp.KeyConcepts,
		Resources:   resp.Resources,
		Exercises:   resp.Exercises,
		Language:    lang,
	}

	r.logger.Info("session researched",
		zap.String("outline_id", item.ID),
		zap.String("title", item.Title),
		zap.Int("content_len", len(session.Content)))
	return session, nil
}

// systemPromptFor layers the type specialization on the shared base prompt.
func systemPromptFor(st types.SessionType) string {
	base := prompts.MustGet("research/base")
	spec, err := prompts.Get("research/" + string(st))
	if err != nil {
		return base
	}
	return base + "\n\n" + spec
}

// priorContext summarizes up to priorContextWindow sessions preceding the
// item, by outline order. The first session gets a fixed marker instead.
func priorContext(item types.SessionOutlineItem, allItems []types.SessionOutlineItem) string {
	var prior []types.SessionOutlineItem
	for _, other := range allItems {
		if other.Order < item.Order {
			prior = append(prior, other)
		}
	}
	if len(prior) == 0 {
		return "(this is the first session)"
	}
	if len(prior) > priorContextWindow {
		prior = prior[len(prior)-priorContextWindow:]
	}

	var b strings.Builder
	for _, p := range prior {
		fmt.Fprintf(&b, "- %s: %s\n", p.Title, p.Objective)
	}
	return b.String()
}

// SanitizeContent repairs a common model artifact where literal backslash-n
// token pairs appear in place of real newlines in markdown content.
func SanitizeContent(content string) string {
	if !strings.Contains(content, `\n`) {
		return content
	}
	// Only rewrite when the content has few real newlines relative to the
	// literal tokens, which indicates the whole body was escaped.
	literals := strings.Count(content, `\n`)
	real := strings.Count(content, "\n")
	if literals > real {
		content = strings.ReplaceAll(content, `\n`, "\n")
	}
	return content
}
