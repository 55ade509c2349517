// Package videos enriches researched sessions with YouTube videos. Finding
// runs a three-tier strategy: structured Data API search, a quota circuit
// breaker that skips the primary tier once it fails, and a model-suggestion
// fallback verified through the public oEmbed endpoint. Videos are
// enrichment; every failure degrades to an empty list.
package videos

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/roadmap-agent/internal/gate"
	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// DefaultMaxVideos is how many videos a session gets by default.
const DefaultMaxVideos = 3

type queriesResponse struct {
	Queries []string `json:"queries"`
}

type rerankResponse struct {
	SelectedVideos []struct {
		Index  int    `json:"index"`
		Reason string `json:"reason"`
	} `json:"selected_videos"`
}

type suggestionsResponse struct {
	Videos []struct {
		URL             string  `json:"url"`
		Title           string  `json:"title"`
		Channel         string  `json:"channel"`
		ThumbnailURL    string  `json:"thumbnail_url"`
		DurationMinutes *int    `json:"duration_minutes"`
		Description     *string `json:"description"`
	} `json:"videos"`
}

// Finder locates videos for researched sessions.
type Finder struct {
	gen           llm.Generator
	search        SearchClient
	verifier      Verifier
	breaker       *Breaker
	gate          *gate.Gate
	queriesSchema *schemas.Schema
	rerankSchema  *schemas.Schema
	suggestSchema *schemas.Schema
	logger        *zap.Logger
}

// New creates a finder. search may be nil when the primary provider is not
// configured; the finder then goes straight to the fallback tier. The breaker
// is shared across finders so one quota failure benefits every later session.
// The gate bounds how many sessions are enriched at once; the finder acquires
// one slot per FindVideos call and nothing inside it, so callers fanning out
// over the same gate must not also hold a slot around the call.
func New(gen llm.Generator, search SearchClient, verifier Verifier, breaker *Breaker, g *gate.Gate, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if breaker == nil {
		breaker = NewBreaker()
	}
	if search == nil {
		breaker.Trip()
	}
	return &Finder{
		gen:           gen,
		search:        search,
		verifier:      verifier,
		breaker:       breaker,
		gate:          g,
		queriesSchema: schemas.MustLoad("video_queries"),
		rerankSchema:  schemas.MustLoad("video_rerank"),
		suggestSchema: schemas.MustLoad("video_suggestions"),
		logger:        logger.With(zap.String("agent", "video_finder")),
	}
}

// FindVideos returns up to maxVideos videos for the session. It never returns
// an error: any failure degrades to an empty list.
func (f *Finder) FindVideos(ctx context.Context, session *types.ResearchedSession, maxVideos int) []types.VideoResource {
	if maxVideos <= 0 {
		maxVideos = DefaultMaxVideos
	}

	var videos []types.VideoResource
	err := f.gate.Do(ctx, func() error {
		videos = f.find(ctx, session, maxVideos)
		return nil
	})
	if err != nil {
		f.logger.Warn("video search aborted",
			zap.String("outline_id", session.OutlineID), zap.Error(err))
		return nil
	}
	return videos
}

// find runs the tiers in order. The caller already holds the admission slot.
func (f *Finder) find(ctx context.Context, session *types.ResearchedSession, maxVideos int) []types.VideoResource {
	if !f.breaker.Tripped() {
		videos, err := f.findViaSearch(ctx, session, maxVideos)
		if err == nil {
			return filterVideoHosts(videos)
		}
		if isQuotaError(err) {
			f.breaker.Trip()
			f.logger.Warn("primary video search unavailable, switching to fallback tier",
				zap.String("outline_id", session.OutlineID), zap.Error(err))
		} else {
			f.logger.Warn("primary video search failed",
				zap.String("outline_id", session.OutlineID), zap.Error(err))
			return nil
		}
	}

	videos, err := f.findViaSuggestions(ctx, session, maxVideos)
	if err != nil {
		f.logger.Warn("fallback video search failed",
			zap.String("outline_id", session.OutlineID), zap.Error(err))
		return nil
	}
	return filterVideoHosts(videos)
}

// findViaSearch is the primary tier: model-generated queries against the Data
// API, dedup, batch details, then model re-rank.
func (f *Finder) findViaSearch(ctx context.Context, session *types.ResearchedSession, maxVideos int) ([]types.VideoResource, error) {
	queries := f.generateQueries(ctx, session)

	var (
		mu  sync.Mutex
		ids []string
	)
	eg, gctx := errgroup.WithContext(ctx)
	for _, query := range queries {
		eg.Go(func() error {
			found, err := f.search.Search(gctx, query)
			if err != nil {
				return err
			}
			mu.Lock()
			ids = append(ids, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	candidates, err := f.search.Details(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Few enough candidates means every one is kept; no re-rank call.
	if len(candidates) <= maxVideos {
		return toResources(candidates), nil
	}

	selected := f.rerank(ctx, session, candidates, maxVideos)
	return toResources(selected), nil
}

// generateQueries asks a cheap model for diverse search queries, falling back
// to one naive query on failure.
func (f *Finder) generateQueries(ctx context.Context, session *types.ResearchedSession) []string {
	prompt := prompts.Format(prompts.MustGet("videos/generate_queries"), map[string]string{
		"SessionTitle": session.Title,
		"KeyConcepts":  strings.Join(session.KeyConcepts, ", "),
	})

	var resp queriesResponse
	err := f.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Role:         llm.RoleVideoQuery,
		Prompt:       prompt,
		SystemPrompt: prompts.MustGet("videos/system"),
		Schema:       f.queriesSchema,
	}, &resp)
	if err != nil || len(resp.Queries) == 0 {
		return []string{naiveQuery(session)}
	}
	return resp.Queries
}

func naiveQuery(session *types.ResearchedSession) string {
	parts := []string{session.Title}
	if len(session.KeyConcepts) > 0 {
		parts = append(parts, session.KeyConcepts[0])
	}
	parts = append(parts, "tutorial")
	return strings.Join(parts, " ")
}

// rerank picks the best candidates via a model call; on failure it sorts by
// view count descending and truncates.
func (f *Finder) rerank(ctx context.Context, session *types.ResearchedSession, candidates []Candidate, maxVideos int) []Candidate {
	prompt := prompts.Format(prompts.MustGet("videos/rerank"), map[string]string{
		"MaxVideos":    strconv.Itoa(maxVideos),
		"SessionTitle": session.Title,
		"KeyConcepts":  strings.Join(session.KeyConcepts, ", "),
		"Candidates":   formatCandidates(candidates),
	})

	var resp rerankResponse
	err := f.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Role:         llm.RoleVideoRerank,
		Prompt:       prompt,
		SystemPrompt: prompts.MustGet("videos/system"),
		Schema:       f.rerankSchema,
	}, &resp)
	if err != nil {
		f.logger.Warn("video re-rank failed, sorting by view count", zap.Error(err))
		return topByViews(candidates, maxVideos)
	}

	selected := make([]Candidate, 0, maxVideos)
	seen := make(map[int]bool)
	for _, pick := range resp.SelectedVideos {
		if pick.Index < 0 || pick.Index >= len(candidates) || seen[pick.Index] {
			continue
		}
		seen[pick.Index] = true
		selected = append(selected, candidates[pick.Index])
		if len(selected) == maxVideos {
			break
		}
	}
	if len(selected) == 0 {
		return topByViews(candidates, maxVideos)
	}
	return selected
}

// findViaSuggestions is the fallback tier: model-suggested videos verified
// through the public metadata endpoint. Verified metadata wins over the
// model's guess.
func (f *Finder) findViaSuggestions(ctx context.Context, session *types.ResearchedSession, maxVideos int) ([]types.VideoResource, error) {
	preview := types.TruncateRunes(session.Content, 500)
	prompt := prompts.Format(prompts.MustGet("videos/suggest"), map[string]string{
		"MaxVideos":      strconv.Itoa(maxVideos),
		"SessionTitle":   session.Title,
		"KeyConcepts":    strings.Join(session.KeyConcepts, ", "),
		"ContentPreview": preview,
	})

	var resp suggestionsResponse
	err := f.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Role:         llm.RoleVideoFinder,
		Prompt:       prompt,
		SystemPrompt: prompts.MustGet("videos/system"),
		Schema:       f.suggestSchema,
	}, &resp)
	if err != nil {
		return nil, err
	}

	videos := make([]types.VideoResource, 0, maxVideos)
	for _, suggestion := range resp.Videos {
		if len(videos) == maxVideos {
			break
		}
		if !IsVideoHost(suggestion.URL) {
			continue
		}

		video := types.VideoResource{
			URL:          suggestion.URL,
			Title:        suggestion.Title,
			Channel:      suggestion.Channel,
			ThumbnailURL: suggestion.ThumbnailURL,
		}
		if suggestion.DurationMinutes != nil {
			video.DurationMinutes = *suggestion.DurationMinutes
		}
		if suggestion.Description != nil {
			video.Description = *suggestion.Description
		}

		meta, err := f.verifier.Verify(ctx, suggestion.URL)
		if err != nil {
			f.logger.Debug("suggested video failed verification",
				zap.String("url", suggestion.URL), zap.Error(err))
			continue
		}
		if meta.Title != "" {
			video.Title = meta.Title
		}
		if meta.AuthorName != "" {
			video.Channel = meta.AuthorName
		}
		if meta.ThumbnailURL != "" {
			video.ThumbnailURL = meta.ThumbnailURL
		}
		videos = append(videos, video)
	}
	return videos, nil
}

// IsVideoHost reports whether the URL points at a recognized video host.
func IsVideoHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == "youtube.com" || host == "youtu.be" || strings.HasSuffix(host, ".youtube.com")
}

func filterVideoHosts(videos []types.VideoResource) []types.VideoResource {
	kept := videos[:0]
	for _, v := range videos {
		if IsVideoHost(v.URL) {
			kept = append(kept, v)
		}
	}
	return kept
}

func isQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func topByViews(candidates []Candidate, n int) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ViewCount > sorted[j].ViewCount
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func toResources(candidates []Candidate) []types.VideoResource {
	resources := make([]types.VideoResource, len(candidates))
	for i, c := range candidates {
		resources[i] = types.VideoResource{
			URL:             c.URL(),
			Title:           c.Title,
			Channel:         c.Channel,
			ThumbnailURL:    c.ThumbnailURL,
			DurationMinutes: c.DurationMinutes,
			Description:     types.TruncateRunes(c.Description, 200),
		}
	}
	return resources
}

func formatCandidates(candidates []Candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s | %s | %d views | %d min | %s\n",
			i, c.Title, c.Channel, c.ViewCount, c.DurationMinutes,
			types.TruncateRunes(c.Description, 150))
	}
	return b.String()
}
