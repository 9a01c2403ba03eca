package analysis

import (
	"fmt"
	"strings"
)

const drawingAnalysisPromptTemplate = `You are a senior process engineer reviewing a P&ID/PFD drawing.
Extract the visible engineering data and identify real, specific issues.

Output STRICT JSON with this schema:
{
  "drawing_info": {
    "drawing_number": "string",
    "drawing_title": "string",
    "revision": "string",
    "project": "string"
  },
  "issues": [
    {
      "severity": "Critical|Major|Minor|Observation",
      "description": "specific finding with exact tags and values from the drawing",
      "location": "equipment tag or drawing area",
      "tags": ["P-101A"],
      "reference_standard": "applicable code or standard, if any"
    }
  ],
  "summary": {
    "total_issues": 0,
    "critical_count": 0,
    "major_count": 0,
    "minor_count": 0,
    "observation_count": 0
  }
}

Rules:
- Review safety devices, control loops, isolation, drains/vents, line sizing,
  material specs and documentation completeness.
- Every issue must cite what you actually see (tag numbers, set pressures, line numbers).
- Identify at least %d issues; if you cannot, review the drawing again systematically.
- Never emit generic placeholder issues.
- If a section has no content, emit its empty value, not prose.`

// BuildAnalysisPrompt renders the drawing review prompt with the advisory
// minimum issue target.
func BuildAnalysisPrompt(minIssues int) string {
	if minIssues <= 0 {
		minIssues = 1
	}
	return fmt.Sprintf(drawingAnalysisPromptTemplate, minIssues)
}

// BuildAugmentedPrompt prefixes retrieved reference context onto a base
// prompt. An empty context returns the base prompt unchanged.
func BuildAugmentedPrompt(base, context string) string {
	context = strings.TrimSpace(context)
	if context == "" {
		return base
	}
	return "**REFERENCE CONTEXT FROM ENGINEERING STANDARDS:**\n\n" + context +
		"\n\n---\n\n" + base +
		"\n\nUse the reference context above to cross-check equipment specifications and design requirements against the cited standards."
}
