package types

import "strings"

// IssueType classifies a validation issue.
type IssueType string

// Issue type values.
const (
	IssueOverlap   IssueType = "overlap"
	IssueGap       IssueType = "gap"
	IssueOrdering  IssueType = "ordering"
	IssueCoherence IssueType = "coherence"
	IssueDepth     IssueType = "depth"
)

// ParseIssueType maps a raw model string to an IssueType, defaulting to
// coherence for unrecognized values.
func ParseIssueType(raw string) IssueType {
	switch IssueType(strings.ToLower(strings.TrimSpace(raw))) {
	case IssueOverlap, IssueGap, IssueOrdering, IssueCoherence, IssueDepth:
		return IssueType(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return IssueCoherence
	}
}

// Severity levels for validation issues.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ParseSeverity maps a raw model string to a severity, defaulting to medium.
func ParseSeverity(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return strings.ToLower(strings.TrimSpace(raw))
	default:
		return SeverityMedium
	}
}

// ValidationIssue is a single quality problem found by the validator.
// Issues are produced fresh on every validation pass and never mutated.
type ValidationIssue struct {
	ID                 string    `json:"id"`
	IssueType          IssueType `json:"issue_type"`
	Severity           string    `json:"severity"`
	Description        string    `json:"description"`
	AffectedSessionIDs []string  `json:"affected_session_ids"`
	SuggestedFix       string    `json:"suggested_fix"`
}

// ValidationResult is the validator's verdict on the assembled roadmap.
type ValidationResult struct {
	IsValid      bool              `json:"is_valid"`
	Issues       []ValidationIssue `json:"issues"`
	OverallScore float64           `json:"overall_score"`
	Summary      string            `json:"summary"`
}

// NewValidationResult builds a result whose IsValid reflects the sole gate:
// true if and only if no issue has high severity.
func NewValidationResult(issues []ValidationIssue, score float64, summary string) *ValidationResult {
	valid := true
	for _, issue := range issues {
		if issue.Severity == SeverityHigh {
			valid = false
			break
		}
	}
	return &ValidationResult{
		IsValid:      valid,
		Issues:       issues,
		OverallScore: score,
		Summary:      summary,
	}
}
