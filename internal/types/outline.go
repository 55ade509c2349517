package types

import (
	"math"
	"strings"
)

// SessionType classifies a learning session and selects the researcher
// specialization that produces its content.
type SessionType string

// Session type values.
const (
	SessionConcept  SessionType = "concept"
	SessionTutorial SessionType = "tutorial"
	SessionPractice SessionType = "practice"
	SessionProject  SessionType = "project"
	SessionReview   SessionType = "review"
)

// ParseSessionType maps a raw model string to a SessionType. Unrecognized
// values default to concept rather than failing.
func ParseSessionType(raw string) SessionType {
	switch SessionType(strings.ToLower(strings.TrimSpace(raw))) {
	case SessionConcept, SessionTutorial, SessionPractice, SessionProject, SessionReview:
		return SessionType(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return SessionConcept
	}
}

// SessionOutlineItem is one planned session from the architect. The ID is a
// stable opaque identifier used as the foreign key for researched content,
// validation issue targeting, and edit targeting.
type SessionOutlineItem struct {
	ID                       string      `json:"id"`
	Title                    string      `json:"title"`
	Objective                string      `json:"objective"`
	SessionType              SessionType `json:"session_type"`
	EstimatedDurationMinutes int         `json:"estimated_duration_minutes"`
	Prerequisites            []string    `json:"prerequisites"`
	Order                    int         `json:"order"`
}

// SessionOutline is the complete ordered session plan. Immutable once the
// architect completes.
type SessionOutline struct {
	Sessions            []SessionOutlineItem `json:"sessions"`
	LearningPathSummary string               `json:"learning_path_summary"`
	TotalEstimatedHours float64              `json:"total_estimated_hours"`
}

// EstimateTotalHours sums session durations into hours, rounded to 1 decimal.
func EstimateTotalHours(sessions []SessionOutlineItem) float64 {
	totalMinutes := 0
	for _, s := range sessions {
		totalMinutes += s.EstimatedDurationMinutes
	}
	return math.Round(float64(totalMinutes)/60*10) / 10
}
