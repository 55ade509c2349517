// Package architect designs the session outline for a roadmap. Outline
// creation runs in two phases: one call for the titled skeleton, then
// bounded-concurrency calls filling in per-session detail.
package architect

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/roadmap-agent/internal/gate"
	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
	"github.com/jonathan/roadmap-agent/internal/types"
)

type skeletonResponse struct {
	Title               string `json:"title"`
	LearningPathSummary string `json:"learning_path_summary"`
	Sessions            []struct {
		Title       string `json:"title"`
		SessionType string `json:"session_type"`
	} `json:"sessions"`
}

type detailResponse struct {
	Objective                string `json:"objective"`
	EstimatedDurationMinutes int    `json:"estimated_duration_minutes"`
	Prerequisites            []int  `json:"prerequisites"`
}

// Architect turns an interview context into an ordered session outline.
type Architect struct {
	gen            llm.Generator
	gate           *gate.Gate
	skeletonSchema *schemas.Schema
	detailSchema   *schemas.Schema
	logger         *zap.Logger
}

// New creates an architect. The gate bounds the concurrent detail calls.
func New(gen llm.Generator, g *gate.Gate, logger *zap.Logger) *Architect {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Architect{
		gen:            gen,
		gate:           g,
		skeletonSchema: schemas.MustLoad("outline_skeleton"),
		detailSchema:   schemas.MustLoad("session_detail"),
		logger:         logger.With(zap.String("agent", "architect")),
	}
}

// CreateOutline produces the roadmap title and the complete session outline.
// Phase one generates the skeleton (title, summary, ordered session titles and
// types). Phase two fills objective, duration, and prerequisites for each
// session concurrently. Prerequisite indices are resolved to the IDs of
// strictly earlier sessions; forward and out-of-range references are dropped.
func (a *Architect) CreateOutline(ctx context.Context, ictx *types.InterviewContext, lang string) (string, *types.SessionOutline, error) {
	skeleton, err := a.generateSkeleton(ctx, ictx, lang)
	if err != nil {
		return "", nil, err
	}
	if len(skeleton.Sessions) == 0 {
		return "", nil, fmt.Errorf("architect produced an empty outline for topic %q", ictx.Topic)
	}

	items := make([]types.SessionOutlineItem, len(skeleton.Sessions))
	for i, s := range skeleton.Sessions {
		items[i] = types.SessionOutlineItem{
			ID:          types.NewID("session"),
			Title:       s.Title,
			SessionType: types.ParseSessionType(s.SessionType),
			Order:       i + 1,
		}
	}

	sessionList := formatSessionList(items)
	details := make([]detailResponse, len(items))

	eg, gctx := errgroup.WithContext(ctx)
	for i := range items {
		eg.Go(func() error {
			return a.gate.Do(gctx, func() error {
				detail, err := a.generateDetail(gctx, ictx.Topic, items[i], len(items), sessionList, lang)
				if err != nil {
					return err
				}
				details[i] = detail
				return nil
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return "", nil, err
	}

	for i := range items {
		items[i].Objective = details[i].Objective
		items[i].EstimatedDurationMinutes = details[i].EstimatedDurationMinutes
		items[i].Prerequisites = resolvePrerequisites(details[i].Prerequisites, items, i)
	}

	outline := &types.SessionOutline{
		Sessions:            items,
		LearningPathSummary: skeleton.LearningPathSummary,
		TotalEstimatedHours: types.EstimateTotalHours(items),
	}

	a.logger.Info("outline created",
		zap.String("title", skeleton.Title),
		zap.Int("sessions", len(items)),
		zap.Float64("total_hours", outline.TotalEstimatedHours))
	return skeleton.Title, outline, nil
}

func (a *Architect) generateSkeleton(ctx context.Context, ictx *types.InterviewContext, lang string) (skeletonResponse, error) {
	var qa strings.Builder
	for _, pair := range ictx.QAPairs() {
		fmt.Fprintf(&qa, "Q: %s\nA: %s\n", pair.Question, pair.Answer)
	}

	prompt := prompts.LanguageInstruction(lang) + prompts.Format(prompts.MustGet("architect/skeleton"), map[string]string{
		"Topic":     ictx.Topic,
		"QAContext": qa.String(),
	})

	var resp skeletonResponse
	err := a.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Role:         llm.RoleArchitect,
		Prompt:       prompt,
		SystemPrompt: prompts.MustGet("architect/system"),
		Schema:       a.skeletonSchema,
	}, &resp)
	if err != nil {
		return skeletonResponse{}, fmt.Errorf("outline skeleton generation failed: %w", err)
	}
	return resp, nil
}

func (a *Architect) generateDetail(ctx context.Context, topic string, item types.SessionOutlineItem, total int, sessionList, lang string) (detailResponse, error) {
	prompt := prompts.LanguageInstruction(lang) + prompts.Format(prompts.MustGet("architect/session_detail"), map[string]string{
		"SessionTitle": item.Title,
		"SessionType":  string(item.SessionType),
		"Position":     strconv.Itoa(item.Order),
		"Total":        strconv.Itoa(total),
		"Topic":        topic,
		"SessionList":  sessionList,
	})

	var resp detailResponse
	err := a.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Role:         llm.RoleArchitect,
		Prompt:       prompt,
		SystemPrompt: prompts.MustGet("architect/system"),
		Schema:       a.detailSchema,
	}, &resp)
	if err != nil {
		return detailResponse{}, fmt.Errorf("session detail generation failed for %q: %w", item.Title, err)
	}
	return resp, nil
}

// resolvePrerequisites maps 0-based indices to session IDs, keeping only
// references to sessions that come before position.
func resolvePrerequisites(indices []int, items []types.SessionOutlineItem, position int) []string {
	ids := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < position {
			ids = append(ids, items[idx].ID)
		}
	}
	return ids
}

func formatSessionList(items []types.SessionOutlineItem) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i, item.Title, item.SessionType)
	}
	return b.String()
}
