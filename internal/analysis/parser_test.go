package analysis

import (
	"strings"
	"testing"
)

const cleanResponse = `{
  "drawing_info": {"drawing_number": "P&ID-1001", "revision": "B"},
  "issues": [
    {"severity": "Critical", "description": "PSV-101 relief valve missing on V-201", "location": "V-201", "tags": ["PSV-101", "V-201"], "reference_standard": "API 521"},
    {"severity": "minor", "description": "Line 6\"-P-1203 missing insulation spec"}
  ],
  "summary": {"total_issues": 2, "critical_count": 1, "minor_count": 1}
}`

func TestParseCleanResponse(t *testing.T) {
	res := Parse(cleanResponse)
	if res.RecoveryStatus != RecoveryOK {
		t.Fatalf("status = %q, want ok", res.RecoveryStatus)
	}
	if len(res.Issues) != 2 {
		t.Fatalf("expected 2 issues got %d", len(res.Issues))
	}
	if res.Issues[0].Severity != SeverityCritical || res.Issues[0].Location != "V-201" {
		t.Fatalf("unexpected first issue: %+v", res.Issues[0])
	}
	if res.Issues[1].Severity != SeverityMinor {
		t.Fatalf("severity not normalized: %+v", res.Issues[1])
	}
	if res.DrawingInfo["drawing_number"] != "P&ID-1001" {
		t.Fatalf("unexpected drawing_info: %v", res.DrawingInfo)
	}
	if res.Summary["total_issues"] != float64(2) {
		t.Fatalf("unexpected summary: %v", res.Summary)
	}
}

func TestParseFencedResponse(t *testing.T) {
	fenced := "```json\n" + cleanResponse + "\n```"
	res := Parse(fenced)
	if res.RecoveryStatus != RecoveryOK {
		t.Fatalf("status = %q, want ok", res.RecoveryStatus)
	}
	if len(res.Issues) != 2 {
		t.Fatalf("expected 2 issues got %d", len(res.Issues))
	}
}

func TestParseCorruptedKeys(t *testing.T) {
	raw := `{"\"issues\"": [{" severity ": "Major", "'description'": "no isolation valve on P-101A suction"}], "\n summary": {"total_issues": 1}}`
	res := Parse(raw)
	if res.RecoveryStatus != RecoveryOK {
		t.Fatalf("status = %q, want ok", res.RecoveryStatus)
	}
	if len(res.Issues) != 1 || res.Issues[0].Severity != SeverityMajor {
		t.Fatalf("key sanitization did not recover issues: %+v", res.Issues)
	}
	if res.Summary["total_issues"] != float64(1) {
		t.Fatalf("unexpected summary: %v", res.Summary)
	}
}

func TestParseIndependentSectionDefaults(t *testing.T) {
	// issues has the wrong shape; summary and drawing_info are intact.
	raw := `{"issues": "not an array", "summary": {"total_issues": 0}, "drawing_info": {"drawing_number": "D-1"}}`
	res := Parse(raw)
	if res.RecoveryStatus != RecoveryOK {
		t.Fatalf("status = %q, want ok", res.RecoveryStatus)
	}
	if res.Issues == nil || len(res.Issues) != 0 {
		t.Fatalf("expected empty issues default, got %+v", res.Issues)
	}
	if res.DrawingInfo["drawing_number"] != "D-1" {
		t.Fatalf("drawing_info lost: %v", res.DrawingInfo)
	}
}

func TestParseDerivesSummaryWhenMissing(t *testing.T) {
	raw := `{"issues": [{"severity": "Critical", "description": "a"}, {"severity": "Minor", "description": "b"}, "loose observation"]}`
	res := Parse(raw)
	if res.Summary["total_issues"] != 3 {
		t.Fatalf("derived summary wrong: %v", res.Summary)
	}
	if res.Summary["critical_count"] != 1 || res.Summary["observation_count"] != 1 {
		t.Fatalf("derived counts wrong: %v", res.Summary)
	}
}

func TestParseRecoversSectionsFromBrokenJSON(t *testing.T) {
	// Trailing prose after the closing brace makes the whole document
	// invalid, but each section span still decodes on its own.
	raw := `Here is my analysis:
"issues": [{"severity": "Critical", "description": "PSV missing"}],
"summary": {"total_issues": 1, "critical_count": 1},
"drawing_info": {"drawing_number": "P&ID-1001"}
I hope this helps!`
	res := Parse(raw)
	if res.RecoveryStatus != RecoveryRecovered {
		t.Fatalf("status = %q, want recovered", res.RecoveryStatus)
	}
	if len(res.Issues) != 1 || res.Issues[0].Severity != SeverityCritical {
		t.Fatalf("issues not recovered: %+v", res.Issues)
	}
	if res.Summary["total_issues"] != float64(1) {
		t.Fatalf("summary not recovered: %v", res.Summary)
	}
	if res.DrawingInfo["drawing_number"] != "P&ID-1001" {
		t.Fatalf("drawing_info not recovered: %v", res.DrawingInfo)
	}
}

func TestParsePartialRecovery(t *testing.T) {
	// issues span is unbalanced and cannot be recovered; summary can.
	raw := `"issues": [{"severity": "Critical", "description": "broken...
"summary": {"total_issues": 5}`
	res := Parse(raw)
	if res.RecoveryStatus != RecoveryRecovered {
		t.Fatalf("status = %q, want recovered", res.RecoveryStatus)
	}
	if len(res.Issues) != 0 {
		t.Fatalf("expected no recovered issues, got %+v", res.Issues)
	}
	if res.Summary["total_issues"] != float64(5) {
		t.Fatalf("summary not recovered: %v", res.Summary)
	}
}

func TestParseMinimalFallback(t *testing.T) {
	for _, raw := range []string{
		"",
		"   \n\t  ",
		"complete garbage with no structure at all",
		"{{{{[[[",
		string([]byte{0xff, 0xfe, 0x00, 0x41}),
	} {
		res := Parse(raw)
		if res.RecoveryStatus != RecoveryMinimal {
			t.Fatalf("Parse(%q) status = %q, want minimal", raw, res.RecoveryStatus)
		}
		if res.Issues == nil || res.Summary == nil || res.DrawingInfo == nil {
			t.Fatalf("minimal result has nil sections: %+v", res)
		}
		if res.Diagnostic == "" {
			t.Fatalf("minimal result missing diagnostic")
		}
	}
}

func TestParseNeverReturnsNilSections(t *testing.T) {
	inputs := []string{
		cleanResponse,
		"null",
		"[1,2,3]",
		`"just a string"`,
		"42",
		`{"unrelated": true}`,
	}
	for _, raw := range inputs {
		res := Parse(raw)
		if res.Issues == nil || res.Summary == nil || res.DrawingInfo == nil {
			t.Fatalf("Parse(%q) produced nil section: %+v", raw, res)
		}
	}
}

func TestIsolateSectionSkipsFalseMatches(t *testing.T) {
	// "total_issues" contains "issues" but is followed by a number, not
	// a bracket; the real array later in the text must win.
	raw := `"summary": {"total_issues": 5}, "issues": [{"severity": "Minor", "description": "x"}]`
	span, ok := isolateSection(raw, "issues")
	if !ok {
		t.Fatal("expected issues section to be found")
	}
	if !strings.HasPrefix(span, "[") {
		t.Fatalf("wrong span isolated: %q", span)
	}
}

func TestNormalizeSeverity(t *testing.T) {
	cases := map[string]Severity{
		"Critical":  SeverityCritical,
		"SAFETY":    SeverityCritical,
		"high":      SeverityCritical,
		"major":     SeverityMajor,
		"medium":    SeverityMajor,
		" Minor ":   SeverityMinor,
		"low":       SeverityMinor,
		"":          SeverityObservation,
		"whatever":  SeverityObservation,
		"critical!": SeverityObservation,
	}
	for in, want := range cases {
		if got := NormalizeSeverity(in); got != want {
			t.Fatalf("NormalizeSeverity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeriveSummaryEmpty(t *testing.T) {
	s := DeriveSummary(nil)
	if len(s) != 0 {
		t.Fatalf("expected empty summary for no issues, got %v", s)
	}
}
