package types

// VideoResource is a recommended video for a learning session.
type VideoResource struct {
	URL             string `json:"url"`
	Title           string `json:"title"`
	Channel         string `json:"channel"`
	ThumbnailURL    string `json:"thumbnail_url"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Description     string `json:"description,omitempty"`
}

// ResearchedSession is a fully researched session with content. OutlineID
// references the SessionOutlineItem that produced it; exactly one researched
// session exists per outline item at steady state. Content and Videos may be
// replaced wholesale by an editor pass; other fields persist.
type ResearchedSession struct {
	OutlineID   string          `json:"outline_id"`
	Title       string          `json:"title"`
	SessionType SessionType     `json:"session_type"`
	Order       int             `json:"order"`
	Content     string          `json:"content"`
	KeyConcepts []string        `json:"key_concepts"`
	Resources   []string        `json:"resources"`
	Exercises   []string        `json:"exercises"`
	Videos      []VideoResource `json:"videos"`
	Language    string          `json:"language"`
}
