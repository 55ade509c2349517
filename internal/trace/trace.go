// Package trace records one audit span per agent invocation so a finished
// run can be reconstructed: which agent ran, when, for how long, and with
// what outcome. Recording is best-effort; a failing recorder never fails the
// pipeline.
package trace

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Span statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Span is one recorded agent invocation.
type Span struct {
	RunID        string
	Agent        string
	Operation    string
	StartedAt    time.Time
	EndedAt      time.Time
	DurationMS   int64
	Status       string
	Summary      string
	ErrorType    string
	ErrorMessage string
}

// Recorder persists spans. Implementations must tolerate concurrent calls.
type Recorder interface {
	Record(ctx context.Context, span Span) error
}

// NopRecorder discards every span.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Span) error { return nil }

// Tracer builds and records spans for a single pipeline run.
type Tracer struct {
	runID    string
	recorder Recorder
	logger   *zap.Logger
}

// New creates a tracer for one run. A nil recorder discards spans.
func New(runID string, recorder Recorder, logger *zap.Logger) *Tracer {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{runID: runID, recorder: recorder, logger: logger}
}

// Start begins a span for one agent operation. The returned finish function
// closes and records it; pass the operation's error and a short output
// summary. Recorder failures are logged and swallowed.
func (t *Tracer) Start(agent, operation string) func(ctx context.Context, err error, summary string) {
	started := time.Now()
	return func(ctx context.Context, opErr error, summary string) {
		ended := time.Now()
		span := Span{
			RunID:      t.runID,
			Agent:      agent,
			Operation:  operation,
			StartedAt:  started,
			EndedAt:    ended,
			DurationMS: ended.Sub(started).Milliseconds(),
			Status:     StatusOK,
			Summary:    summary,
		}
		if opErr != nil {
			span.Status = StatusError
			span.ErrorType = errorType(opErr)
			span.ErrorMessage = opErr.Error()
		}
		if err := t.recorder.Record(ctx, span); err != nil {
			t.logger.Warn("trace record failed",
				zap.String("agent", agent),
				zap.String("operation", operation),
				zap.Error(err))
		}
	}
}

func errorType(err error) string {
	return fmt.Sprintf("%T", err)
}
