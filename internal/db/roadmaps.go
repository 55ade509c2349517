package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/roadmap-agent/internal/types"
)

// MaxVideoRetries caps how many times one session's video search may be
// re-run.
const MaxVideoRetries = 3

// Roadmap is a persisted roadmap record.
type Roadmap struct {
	ID                  uuid.UUID        `json:"id"`
	UserID              string           `json:"user_id"`
	Title               string           `json:"title"`
	Summary             string           `json:"summary"`
	Language            string           `json:"language"`
	TotalEstimatedHours float64          `json:"total_estimated_hours"`
	CreatedAt           time.Time        `json:"created_at"`
	Sessions            []RoadmapSession `json:"sessions,omitempty"`
}

// RoadmapSession is one persisted session of a roadmap.
type RoadmapSession struct {
	ID                       uuid.UUID             `json:"id"`
	RoadmapID                uuid.UUID             `json:"roadmap_id"`
	OutlineID                string                `json:"outline_id"`
	Order                    int                   `json:"order"`
	Title                    string                `json:"title"`
	SessionType              string                `json:"session_type"`
	Objective                string                `json:"objective"`
	EstimatedDurationMinutes int                   `json:"estimated_duration_minutes"`
	Content                  string                `json:"content"`
	KeyConcepts              []string              `json:"key_concepts"`
	Resources                []string              `json:"resources"`
	Exercises                []string              `json:"exercises"`
	Videos                   []types.VideoResource `json:"videos"`
	Completed                bool                  `json:"completed"`
	Notes                    string                `json:"notes"`
	VideoRetryCount          int                   `json:"video_retry_count"`
	VideoRetryPending        bool                  `json:"video_retry_pending"`
}

// SaveRoadmap creates the roadmap record plus one record per session in a
// single transaction and returns the roadmap id. It implements the
// orchestrator's Store interface.
func (db *DB) SaveRoadmap(ctx context.Context, userID, title string, outline *types.SessionOutline, sessions []*types.ResearchedSession, lang string) (string, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var roadmapID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO roadmaps (user_id, title, summary, language, total_estimated_hours)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		userID, title, outline.LearningPathSummary, lang, outline.TotalEstimatedHours,
	).Scan(&roadmapID)
	if err != nil {
		return "", fmt.Errorf("failed to create roadmap: %w", err)
	}

	itemsByID := make(map[string]types.SessionOutlineItem, len(outline.Sessions))
	for _, item := range outline.Sessions {
		itemsByID[item.ID] = item
	}

	for _, session := range sessions {
		item := itemsByID[session.OutlineID]
		concepts, _ := json.Marshal(emptyIfNil(session.KeyConcepts))
		resources, _ := json.Marshal(emptyIfNil(session.Resources))
		exercises, _ := json.Marshal(emptyIfNil(session.Exercises))
		videos, err := json.Marshal(emptyVideosIfNil(session.Videos))
		if err != nil {
			return "", fmt.Errorf("failed to marshal videos: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO roadmap_sessions
			     (roadmap_id, outline_id, session_order, title, session_type, objective,
			      estimated_duration_minutes, content, key_concepts, resources, exercises, videos)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			roadmapID, session.OutlineID, session.Order, session.Title, string(session.SessionType),
			item.Objective, item.EstimatedDurationMinutes, session.Content,
			concepts, resources, exercises, videos,
		)
		if err != nil {
			return "", fmt.Errorf("failed to create session %q: %w", session.OutlineID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit roadmap: %w", err)
	}
	return roadmapID.String(), nil
}

// GetRoadmap fetches a roadmap with its sessions in outline order. The
// userID must match the record's owner; a mismatch reads as not found.
func (db *DB) GetRoadmap(ctx context.Context, roadmapID uuid.UUID, userID string) (*Roadmap, error) {
	var r Roadmap
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, title, summary, language, total_estimated_hours, created_at
		 FROM roadmaps WHERE id = $1 AND user_id = $2`,
		roadmapID, userID,
	).Scan(&r.ID, &r.UserID, &r.Title, &r.Summary, &r.Language, &r.TotalEstimatedHours, &r.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "get roadmap")
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, roadmap_id, outline_id, session_order, title, session_type, objective,
		        estimated_duration_minutes, content, key_concepts, resources, exercises, videos,
		        completed, notes, video_retry_count, video_retry_pending
		 FROM roadmap_sessions WHERE roadmap_id = $1 ORDER BY session_order`,
		roadmapID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s                                      RoadmapSession
			concepts, resources, exercises, videos []byte
		)
		err := rows.Scan(&s.ID, &s.RoadmapID, &s.OutlineID, &s.Order, &s.Title, &s.SessionType,
			&s.Objective, &s.EstimatedDurationMinutes, &s.Content,
			&concepts, &resources, &exercises, &videos,
			&s.Completed, &s.Notes, &s.VideoRetryCount, &s.VideoRetryPending)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		_ = json.Unmarshal(concepts, &s.KeyConcepts)
		_ = json.Unmarshal(resources, &s.Resources)
		_ = json.Unmarshal(exercises, &s.Exercises)
		_ = json.Unmarshal(videos, &s.Videos)
		r.Sessions = append(r.Sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return &r, nil
}

// UpdateSessionProgress sets a session's completion flag and notes without
// touching the roadmap record. The owner check goes through the roadmap.
func (db *DB) UpdateSessionProgress(ctx context.Context, sessionID uuid.UUID, userID string, completed bool, notes string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE roadmap_sessions s SET completed = $1, notes = $2, updated_at = NOW()
		 FROM roadmaps r
		 WHERE s.id = $3 AND s.roadmap_id = r.id AND r.user_id = $4`,
		completed, notes, sessionID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSession fetches one persisted session, owner-checked via its roadmap.
func (db *DB) GetSession(ctx context.Context, sessionID uuid.UUID, userID string) (*RoadmapSession, error) {
	var (
		s                                      RoadmapSession
		concepts, resources, exercises, videos []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT s.id, s.roadmap_id, s.outline_id, s.session_order, s.title, s.session_type,
		        s.objective, s.estimated_duration_minutes, s.content, s.key_concepts,
		        s.resources, s.exercises, s.videos, s.completed, s.notes,
		        s.video_retry_count, s.video_retry_pending
		 FROM roadmap_sessions s JOIN roadmaps r ON s.roadmap_id = r.id
		 WHERE s.id = $1 AND r.user_id = $2`,
		sessionID, userID,
	).Scan(&s.ID, &s.RoadmapID, &s.OutlineID, &s.Order, &s.Title, &s.SessionType,
		&s.Objective, &s.EstimatedDurationMinutes, &s.Content,
		&concepts, &resources, &exercises, &videos,
		&s.Completed, &s.Notes, &s.VideoRetryCount, &s.VideoRetryPending)
	if err != nil {
		return nil, notFoundOr(err, "get session")
	}
	_ = json.Unmarshal(concepts, &s.KeyConcepts)
	_ = json.Unmarshal(resources, &s.Resources)
	_ = json.Unmarshal(exercises, &s.Exercises)
	_ = json.Unmarshal(videos, &s.Videos)
	return &s, nil
}

// RequestVideoRetry marks a session's video search for re-running and
// increments the retry counter. ErrRetryBudgetExhausted is returned once the
// cap is reached; a pending retry cannot be requested twice.
func (db *DB) RequestVideoRetry(ctx context.Context, sessionID uuid.UUID, userID string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE roadmap_sessions s
		 SET video_retry_count = s.video_retry_count + 1, video_retry_pending = TRUE, updated_at = NOW()
		 FROM roadmaps r
		 WHERE s.id = $1 AND s.roadmap_id = r.id AND r.user_id = $2
		   AND s.video_retry_count < $3 AND NOT s.video_retry_pending`,
		sessionID, userID, MaxVideoRetries,
	)
	if err != nil {
		return fmt.Errorf("failed to request video retry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing session from an exhausted budget.
		if _, getErr := db.GetSession(ctx, sessionID, userID); getErr != nil {
			return getErr
		}
		return ErrRetryBudgetExhausted
	}
	return nil
}

// CompleteVideoRetry stores the re-found videos and clears the pending flag.
func (db *DB) CompleteVideoRetry(ctx context.Context, sessionID uuid.UUID, videos []types.VideoResource) error {
	payload, err := json.Marshal(emptyVideosIfNil(videos))
	if err != nil {
		return fmt.Errorf("failed to marshal videos: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`UPDATE roadmap_sessions SET videos = $1, video_retry_pending = FALSE, updated_at = NOW()
		 WHERE id = $2`,
		payload, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete video retry: %w", err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyVideosIfNil(v []types.VideoResource) []types.VideoResource {
	if v == nil {
		return []types.VideoResource{}
	}
	return v
}
