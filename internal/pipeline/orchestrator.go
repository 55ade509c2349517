// Package pipeline sequences the agents into a roadmap-generation run:
// interview, architecture, bounded-concurrency research and video enrichment,
// a validate-edit-revalidate loop, and persistence. The orchestrator owns the
// run's State and is its only writer.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/roadmap-agent/internal/gate"
	"github.com/jonathan/roadmap-agent/internal/trace"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// Default budgets.
const (
	DefaultMaxFixAttempts = 2
	DefaultMaxQuestions   = 5
	DefaultMaxVideos      = 3
)

// Interviewer generates the clarifying interview questions.
type Interviewer interface {
	GenerateQuestions(ctx context.Context, topic string, maxQuestions int, lang string) ([]types.InterviewQuestion, error)
}

// Architect designs the session outline.
type Architect interface {
	CreateOutline(ctx context.Context, ictx *types.InterviewContext, lang string) (string, *types.SessionOutline, error)
}

// Researcher writes the content for one session.
type Researcher interface {
	ResearchSession(ctx context.Context, item types.SessionOutlineItem, ictx *types.InterviewContext, allItems []types.SessionOutlineItem, lang string) (*types.ResearchedSession, error)
}

// Validator reviews the assembled roadmap.
type Validator interface {
	Validate(ctx context.Context, outline *types.SessionOutline, sessions []*types.ResearchedSession, lang string) (*types.ValidationResult, error)
}

// Editor fixes validation issues in one session.
type Editor interface {
	EditSession(ctx context.Context, session *types.ResearchedSession, item types.SessionOutlineItem, issues []types.ValidationIssue, outline *types.SessionOutline, topic, lang string) (*types.ResearchedSession, error)
}

// VideoFinder enriches one session with videos. It never fails; it degrades
// to an empty list.
type VideoFinder interface {
	FindVideos(ctx context.Context, session *types.ResearchedSession, maxVideos int) []types.VideoResource
}

// Store is the persistence collaborator. SaveRoadmap durably creates the
// roadmap record plus one record per session and returns the roadmap id.
type Store interface {
	SaveRoadmap(ctx context.Context, userID, title string, outline *types.SessionOutline, sessions []*types.ResearchedSession, lang string) (string, error)
}

// Options tune a run's budgets.
type Options struct {
	MaxFixAttempts int
	MaxQuestions   int
	MaxVideos      int
}

func (o Options) withDefaults() Options {
	if o.MaxFixAttempts <= 0 {
		o.MaxFixAttempts = DefaultMaxFixAttempts
	}
	if o.MaxQuestions <= 0 {
		o.MaxQuestions = DefaultMaxQuestions
	}
	if o.MaxVideos <= 0 {
		o.MaxVideos = DefaultMaxVideos
	}
	return o
}

// Orchestrator drives pipeline runs.
type Orchestrator struct {
	interviewer Interviewer
	architect   Architect
	researcher  Researcher
	validator   Validator
	editor      Editor
	videos      VideoFinder
	store       Store
	gate        *gate.Gate
	recorder    trace.Recorder
	opts        Options
	logger      *zap.Logger
}

// New assembles an orchestrator. store and recorder may be nil, in which
// case the run completes without persisting and without audit spans.
func New(interviewer Interviewer, architect Architect, researcher Researcher, validator Validator, editor Editor, videos VideoFinder, store Store, g *gate.Gate, recorder trace.Recorder, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		interviewer: interviewer,
		architect:   architect,
		researcher:  researcher,
		validator:   validator,
		editor:      editor,
		videos:      videos,
		store:       store,
		gate:        g,
		recorder:    recorder,
		opts:        opts.withDefaults(),
		logger:      logger,
	}
}

// safeSink serializes Send calls so fan-out tasks can emit progress events
// concurrently.
type safeSink struct {
	mu   sync.Mutex
	sink Sink
}

func (s *safeSink) Send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.Send(event)
}

// StartInterview advances a fresh run into the interviewing stage and
// generates the questions the client must answer before Run.
func (o *Orchestrator) StartInterview(ctx context.Context, state *State) ([]types.InterviewQuestion, error) {
	tracer := trace.New(state.PipelineID, o.recorder, o.logger)
	state.Stage = StageInterviewing

	finish := tracer.Start("interviewer", "generate_questions")
	questions, err := o.interviewer.GenerateQuestions(ctx, state.Topic, o.opts.MaxQuestions, state.Language)
	finish(ctx, err, fmt.Sprintf("%d questions", len(questions)))
	if err != nil {
		state.Stage = StageError
		state.ErrorMessage = err.Error()
		return nil, err
	}

	state.InterviewQuestions = questions
	return questions, nil
}

// Run executes the pipeline from the architect stage onward, using the
// answers collected for the interview questions. Progress events stream to
// the sink as stages advance; the terminal event is complete or error. Any
// stage failure is caught here, recorded on the state, and returned.
func (o *Orchestrator) Run(ctx context.Context, state *State, answers []types.InterviewAnswer, rawSink Sink) error {
	if rawSink == nil {
		rawSink = NopSink
	}
	sink := &safeSink{sink: rawSink}
	tracer := trace.New(state.PipelineID, o.recorder, o.logger)
	state.InterviewAnswers = answers

	err := o.run(ctx, state, sink, tracer)
	if err != nil {
		state.Stage = StageError
		state.ErrorMessage = err.Error()
		o.logger.Error("pipeline run failed",
			zap.String("pipeline_id", state.PipelineID),
			zap.Error(err))
		sink.Send(Event{Name: EventError, Payload: map[string]any{
			"pipeline_id": state.PipelineID,
			"message":     err.Error(),
		}})
		return err
	}

	sink.Send(Event{Name: EventComplete, Payload: map[string]any{
		"pipeline_id": state.PipelineID,
		"roadmap_id":  state.RoadmapID,
		"title":       state.ResolveTitle(),
		"sessions":    len(state.ResearchedSessions),
	}})
	return nil
}

func (o *Orchestrator) run(ctx context.Context, state *State, sink Sink, tracer *trace.Tracer) error {
	if err := o.architectStage(ctx, state, sink, tracer); err != nil {
		return err
	}
	if err := o.researchStage(ctx, state, sink, tracer); err != nil {
		return err
	}
	o.videoStage(ctx, state, tracer, state.ResearchedSessions)
	if err := o.validationLoop(ctx, state, sink, tracer); err != nil {
		return err
	}
	return o.saveStage(ctx, state, sink, tracer)
}

func (o *Orchestrator) setStage(state *State, sink Sink, stage Stage) {
	state.Stage = stage
	sink.Send(Event{Name: EventStageUpdate, Payload: map[string]any{
		"pipeline_id": state.PipelineID,
		"stage":       string(stage),
	}})
}

func (o *Orchestrator) completeStage(state *State, sink Sink, stage Stage, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["pipeline_id"] = state.PipelineID
	payload["stage"] = string(stage)
	sink.Send(Event{Name: EventStageComplete, Payload: payload})
}

func (o *Orchestrator) architectStage(ctx context.Context, state *State, sink Sink, tracer *trace.Tracer) error {
	o.setStage(state, sink, StageArchitecting)

	finish := tracer.Start("architect", "create_outline")
	title, outline, err := o.architect.CreateOutline(ctx, state.InterviewContext(), state.Language)
	if err != nil {
		finish(ctx, err, "")
		return err
	}
	finish(ctx, nil, fmt.Sprintf("%d sessions, %.1f hours", len(outline.Sessions), outline.TotalEstimatedHours))

	state.SuggestedTitle = title
	state.SessionOutline = outline
	state.ResearchTotal = len(outline.Sessions)

	sink.Send(Event{Name: EventTitleSuggestion, Payload: map[string]any{
		"pipeline_id": state.PipelineID,
		"title":       title,
	}})
	o.completeStage(state, sink, StageArchitecting, map[string]any{
		"sessions":              len(outline.Sessions),
		"total_estimated_hours": outline.TotalEstimatedHours,
	})
	return nil
}

// researchStage fans out one researcher task per outline item over the
// shared gate. Progress events fire in completion order; the final
// recombination is sorted by outline order.
func (o *Orchestrator) researchStage(ctx context.Context, state *State, sink Sink, tracer *trace.Tracer) error {
	o.setStage(state, sink, StageResearching)

	items := state.SessionOutline.Sessions
	results := make([]*types.ResearchedSession, len(items))
	var (
		mu   sync.Mutex
		done int
	)

	eg, gctx := errgroup.WithContext(ctx)
	for i := range items {
		eg.Go(func() error {
			return o.gate.Do(gctx, func() error {
				item := items[i]
				finish := tracer.Start("researcher", "research_session")
				session, err := o.researcher.ResearchSession(gctx, item, state.InterviewContext(), items, state.Language)
				if err != nil {
					finish(gctx, err, "")
					return err
				}
				finish(gctx, nil, fmt.Sprintf("%d chars", len(session.Content)))

				results[i] = session
				mu.Lock()
				done++
				completed := done
				mu.Unlock()
				sink.Send(Event{Name: EventSessionProgress, Payload: map[string]any{
					"pipeline_id": state.PipelineID,
					"outline_id":  item.ID,
					"title":       item.Title,
					"completed":   completed,
					"total":       len(items),
				}})
				return nil
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Order < results[j].Order })
	state.ResearchedSessions = results
	state.ResearchProgress = len(results)

	o.completeStage(state, sink, StageResearching, map[string]any{
		"sessions": len(results),
	})
	return nil
}

// videoStage enriches the given sessions with videos. The finder owns
// admission on the shared gate, so sessions are only spawned and joined
// here; wrapping the call in another acquire would have the in-flight
// sessions hold every slot the finder needs. Video finding never fails
// a run.
func (o *Orchestrator) videoStage(ctx context.Context, state *State, tracer *trace.Tracer, sessions []*types.ResearchedSession) {
	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			finish := tracer.Start("video_finder", "find_videos")
			videos := o.videos.FindVideos(ctx, session, o.opts.MaxVideos)
			finish(ctx, nil, fmt.Sprintf("%d videos", len(videos)))
			session.Videos = videos
		}()
	}
	wg.Wait()
}

// validationLoop runs validate, and while the roadmap is invalid and the fix
// budget remains, edits the affected sessions and validates again. An
// exhausted budget falls through to save; the artifact is delivered either
// way.
func (o *Orchestrator) validationLoop(ctx context.Context, state *State, sink Sink, tracer *trace.Tracer) error {
	for {
		o.setStage(state, sink, StageValidating)

		finish := tracer.Start("validator", "validate")
		result, err := o.validator.Validate(ctx, state.SessionOutline, state.ResearchedSessions, state.Language)
		if err != nil {
			finish(ctx, err, "")
			return err
		}
		finish(ctx, nil, fmt.Sprintf("score %.0f, %d issues", result.OverallScore, len(result.Issues)))

		state.ValidationResult = result
		sink.Send(Event{Name: EventValidationResult, Payload: map[string]any{
			"pipeline_id":   state.PipelineID,
			"is_valid":      result.IsValid,
			"overall_score": result.OverallScore,
			"issues":        len(result.Issues),
			"summary":       result.Summary,
		}})

		if result.IsValid {
			o.completeStage(state, sink, StageValidating, map[string]any{"is_valid": true})
			return nil
		}
		if state.FixAttempt >= o.opts.MaxFixAttempts {
			o.logger.Warn("fix budget exhausted, saving as-is",
				zap.String("pipeline_id", state.PipelineID),
				zap.Float64("score", result.OverallScore))
			o.completeStage(state, sink, StageValidating, map[string]any{"is_valid": false})
			return nil
		}
		if err := o.revisionStage(ctx, state, sink, tracer, result.Issues); err != nil {
			return err
		}
	}
}

// revisionStage groups issues by affected session and runs one editor task
// per session, fanned out over the gate. Edited sessions replace their
// originals by outline id and are re-enriched with videos.
func (o *Orchestrator) revisionStage(ctx context.Context, state *State, sink Sink, tracer *trace.Tracer, issues []types.ValidationIssue) error {
	o.setStage(state, sink, StageRevising)

	grouped := groupIssuesBySession(issues)
	itemsByID := make(map[string]types.SessionOutlineItem, len(state.SessionOutline.Sessions))
	for _, item := range state.SessionOutline.Sessions {
		itemsByID[item.ID] = item
	}

	affected := make([]string, 0, len(grouped))
	for outlineID := range grouped {
		if state.SessionByOutlineID(outlineID) != nil {
			affected = append(affected, outlineID)
		}
	}
	sort.Strings(affected)

	edited := make([]*types.ResearchedSession, len(affected))
	eg, gctx := errgroup.WithContext(ctx)
	for i, outlineID := range affected {
		eg.Go(func() error {
			return o.gate.Do(gctx, func() error {
				session := state.SessionByOutlineID(outlineID)
				finish := tracer.Start("editor", "edit_session")
				fixed, err := o.editor.EditSession(gctx, session, itemsByID[outlineID], grouped[outlineID], state.SessionOutline, state.Topic, state.Language)
				if err != nil {
					finish(gctx, err, "")
					return err
				}
				finish(gctx, nil, fmt.Sprintf("%d issues fixed", len(grouped[outlineID])))
				edited[i] = fixed
				return nil
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, session := range edited {
		state.ReplaceSession(session)
	}
	o.videoStage(ctx, state, tracer, edited)

	state.FixAttempt++
	state.FixHistory = append(state.FixHistory, FixRecord{
		Attempt:            state.FixAttempt,
		IssueCount:         len(issues),
		IssueTypes:         issueTypes(issues),
		AffectedSessionIDs: affected,
	})
	o.completeStage(state, sink, StageRevising, map[string]any{
		"attempt":         state.FixAttempt,
		"edited_sessions": len(edited),
	})
	return nil
}

func (o *Orchestrator) saveStage(ctx context.Context, state *State, sink Sink, tracer *trace.Tracer) error {
	o.setStage(state, sink, StageSaving)

	if o.store != nil {
		finish := tracer.Start("orchestrator", "save_roadmap")
		roadmapID, err := o.store.SaveRoadmap(ctx, state.UserID, state.ResolveTitle(), state.SessionOutline, state.ResearchedSessions, state.Language)
		if err != nil {
			finish(ctx, err, "")
			return fmt.Errorf("saving roadmap: %w", err)
		}
		finish(ctx, nil, roadmapID)
		state.RoadmapID = roadmapID
	}

	state.Stage = StageComplete
	o.completeStage(state, sink, StageSaving, map[string]any{"roadmap_id": state.RoadmapID})
	return nil
}

// groupIssuesBySession fans issues out to every session they affect. Issues
// with no affected session are dropped; there is nothing to edit.
func groupIssuesBySession(issues []types.ValidationIssue) map[string][]types.ValidationIssue {
	grouped := make(map[string][]types.ValidationIssue)
	for _, issue := range issues {
		for _, outlineID := range issue.AffectedSessionIDs {
			grouped[outlineID] = append(grouped[outlineID], issue)
		}
	}
	return grouped
}

func issueTypes(issues []types.ValidationIssue) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		t := string(issue.IssueType)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
