package db

import (
	"context"
	"fmt"

	"github.com/jonathan/roadmap-agent/internal/trace"
)

// Record persists one agent trace span. It implements trace.Recorder.
func (db *DB) Record(ctx context.Context, span trace.Span) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO agent_traces
		     (run_id, agent, operation, started_at, ended_at, duration_ms, status, summary, error_type, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		span.RunID, span.Agent, span.Operation, span.StartedAt, span.EndedAt,
		span.DurationMS, span.Status, span.Summary, span.ErrorType, span.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record trace: %w", err)
	}
	return nil
}
