// Package llm provides the model gateway used by every agent: a thin client
// abstraction over the Gemini API plus schema-constrained structured
// generation with parse-failure and network retry.
package llm

// Role identifies the agent or operation issuing a model call. Each role has
// its own model assignment so cost and quality can be tuned per stage.
type Role string

// Roles used by the pipeline.
const (
	RoleInterviewer Role = "interviewer"
	RoleArchitect   Role = "architect"
	RoleResearcher  Role = "researcher"
	RoleValidator   Role = "validator"
	RoleEditor      Role = "editor"
	RoleGapFill     Role = "gap_fill"
	RoleVideoQuery  Role = "video_query"
	RoleVideoRerank Role = "video_rerank"
	RoleVideoFinder Role = "video_finder"
)

// Gemini model names.
const (
	ModelFlashLite = "gemini-2.5-flash-lite"
	ModelFlash     = "gemini-2.5-flash"
)

// RoleConfig holds the model assignment for one role.
type RoleConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int32
}

// roleConfigs assigns models per role. Cheap, low-temperature models handle
// classification-like work; content generation gets the larger budget.
var roleConfigs = map[Role]RoleConfig{
	RoleInterviewer: {Model: ModelFlashLite, Temperature: 0.7, MaxTokens: 3072},
	RoleArchitect:   {Model: ModelFlash, Temperature: 0.7, MaxTokens: 6144},
	RoleResearcher:  {Model: ModelFlash, Temperature: 0.7, MaxTokens: 12288},
	RoleValidator:   {Model: ModelFlashLite, Temperature: 0.3, MaxTokens: 3072},
	RoleEditor:      {Model: ModelFlash, Temperature: 0.5, MaxTokens: 12288},
	RoleGapFill:     {Model: ModelFlashLite, Temperature: 0.5, MaxTokens: 4096},
	RoleVideoQuery:  {Model: ModelFlashLite, Temperature: 0.3, MaxTokens: 1536},
	RoleVideoRerank: {Model: ModelFlashLite, Temperature: 0.3, MaxTokens: 2048},
	RoleVideoFinder: {Model: ModelFlashLite, Temperature: 0.3, MaxTokens: 4096},
}

// ConfigForRole returns the model configuration for a role, falling back to
// the researcher assignment for unknown roles.
func ConfigForRole(role Role) RoleConfig {
	if cfg, ok := roleConfigs[role]; ok {
		return cfg
	}
	return roleConfigs[RoleResearcher]
}
