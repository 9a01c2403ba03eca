package analysis

import (
	"strings"
	"testing"
)

func TestBuildAnalysisPromptMinIssues(t *testing.T) {
	p := BuildAnalysisPrompt(12)
	if !strings.Contains(p, "at least 12 issues") {
		t.Fatalf("prompt missing issue target:\n%s", p)
	}
	if !strings.Contains(BuildAnalysisPrompt(0), "at least 1 issues") {
		t.Fatal("non-positive target should clamp to 1")
	}
}

func TestBuildAugmentedPrompt(t *testing.T) {
	base := BuildAnalysisPrompt(5)
	if got := BuildAugmentedPrompt(base, "  \n"); got != base {
		t.Fatal("empty context must return base prompt unchanged")
	}
	got := BuildAugmentedPrompt(base, "[STANDARD: API 520]\nrelief sizing")
	if !strings.HasPrefix(got, "**REFERENCE CONTEXT FROM ENGINEERING STANDARDS:**") {
		t.Fatalf("context prefix missing:\n%s", got[:80])
	}
	if !strings.Contains(got, base) {
		t.Fatal("base prompt missing from augmented prompt")
	}
}
