package analysis

import "strings"

// RecoveryStatus reports how much of the model response survived parsing.
type RecoveryStatus string

const (
	// RecoveryOK means the response decoded strictly and only key
	// sanitization / shape defaults were applied.
	RecoveryOK RecoveryStatus = "ok"
	// RecoveryRecovered means strict decoding failed but one or more
	// top-level sections were salvaged from the raw text.
	RecoveryRecovered RecoveryStatus = "recovered"
	// RecoveryMinimal means nothing was salvageable; all sections are
	// empty defaults.
	RecoveryMinimal RecoveryStatus = "minimal"
)

type Severity string

const (
	SeverityCritical    Severity = "Critical"
	SeverityMajor       Severity = "Major"
	SeverityMinor       Severity = "Minor"
	SeverityObservation Severity = "Observation"
)

// Issue is one finding extracted from a drawing analysis response.
type Issue struct {
	Severity          Severity `json:"severity"`
	Description       string   `json:"description"`
	Location          string   `json:"location,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	ReferenceStandard string   `json:"reference_standard,omitempty"`
}

// Result is the parser's output contract. It is always well-shaped:
// Issues, Summary and DrawingInfo are never nil, whatever the input was.
type Result struct {
	DrawingInfo    map[string]any `json:"drawing_info"`
	Issues         []Issue        `json:"issues"`
	Summary        map[string]any `json:"summary"`
	RecoveryStatus RecoveryStatus `json:"recovery_status"`
	Diagnostic     string         `json:"diagnostic,omitempty"`
}

// NormalizeSeverity maps free-form model output onto the severity enum.
// Unknown values fall back to Observation.
func NormalizeSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "safety", "high":
		return SeverityCritical
	case "major", "significant", "medium":
		return SeverityMajor
	case "minor", "low":
		return SeverityMinor
	default:
		return SeverityObservation
	}
}

// DeriveSummary builds severity counts from issues, used when the model
// response carries issues but no summary section.
func DeriveSummary(issues []Issue) map[string]any {
	if len(issues) == 0 {
		return map[string]any{}
	}
	counts := map[Severity]int{}
	for _, is := range issues {
		counts[is.Severity]++
	}
	return map[string]any{
		"total_issues":      len(issues),
		"critical_count":    counts[SeverityCritical],
		"major_count":       counts[SeverityMajor],
		"minor_count":       counts[SeverityMinor],
		"observation_count": counts[SeverityObservation],
	}
}
