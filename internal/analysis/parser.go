package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// sectionKeys are the top-level members every analysis response is
// expected to carry.
var sectionKeys = []string{"issues", "summary", "drawing_info"}

// Parse turns raw model output into a Result. It has no error path: any
// input, including empty strings and byte garbage, yields a well-shaped
// Result whose RecoveryStatus says how much of it is trustworthy.
func Parse(raw string) Result {
	text := stripCodeFence(strings.TrimSpace(raw))
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return recoverSections(text, err)
	}
	mapping, _ := SanitizeKeys(decoded).(map[string]any)
	return shapeResult(mapping, RecoveryOK)
}

// shapeResult derives each required section independently, so a malformed
// issues array cannot cost the caller an intact summary or drawing_info.
func shapeResult(m map[string]any, status RecoveryStatus) Result {
	res := Result{RecoveryStatus: status}

	if issues, ok := asIssues(m["issues"]); ok {
		res.Issues = issues
	} else {
		res.Issues = []Issue{}
	}

	if info, ok := asMapping(m["drawing_info"]); ok {
		res.DrawingInfo = info
	} else {
		res.DrawingInfo = map[string]any{}
	}

	if summary, ok := asMapping(m["summary"]); ok {
		res.Summary = summary
	} else {
		res.Summary = DeriveSummary(res.Issues)
	}

	return res
}

// recoverSections is the emergency path for text that is not valid JSON.
// It isolates the bracket-delimited span after each known section key and
// strict-decodes every span independently; whatever decodes contributes
// to the result. If nothing decodes the terminal minimal Result is
// returned, which allocates only literals and cannot fail.
func recoverSections(text string, decodeErr error) Result {
	recovered := map[string]any{}
	for _, key := range sectionKeys {
		span, ok := isolateSection(text, key)
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(span), &v); err != nil {
			continue
		}
		recovered[key] = SanitizeKeys(v)
	}
	if len(recovered) == 0 {
		return Result{
			DrawingInfo:    map[string]any{},
			Issues:         []Issue{},
			Summary:        map[string]any{},
			RecoveryStatus: RecoveryMinimal,
			Diagnostic:     fmt.Sprintf("no recoverable sections in model response: %v", decodeErr),
		}
	}
	return shapeResult(recovered, RecoveryRecovered)
}

// isolateSection finds the first occurrence of key that is followed by a
// colon and an opening bracket or brace, and returns the balanced span.
// Keys corrupted by stray quotes or whitespace still match because the
// search is on the bare name.
func isolateSection(text, key string) (string, bool) {
	offset := 0
	for {
		idx := strings.Index(text[offset:], key)
		if idx < 0 {
			return "", false
		}
		rest := text[offset+idx+len(key):]
		if span, ok := spanAfterColon(rest); ok {
			return span, true
		}
		offset += idx + len(key)
	}
}

// spanAfterColon expects s to start just past a section key: an optional
// closing quote, a colon, then an array or object.
func spanAfterColon(s string) (string, bool) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 || colon > 8 {
		return "", false
	}
	for i := 0; i < colon; i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r', '"', '\'':
		default:
			return "", false
		}
	}
	after := strings.TrimLeft(s[colon+1:], " \t\n\r")
	if after == "" || (after[0] != '[' && after[0] != '{') {
		return "", false
	}
	return balancedSpan(after)
}

// balancedSpan returns the shortest prefix of s that closes the bracket
// or brace s opens with, skipping over string literals and escapes.
func balancedSpan(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

func asMapping(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return m, true
}

func asIssues(v any) ([]Issue, bool) {
	seq, ok := v.([]any)
	if !ok {
		return nil, false
	}
	issues := make([]Issue, 0, len(seq))
	for _, item := range seq {
		if is, ok := issueFromValue(item); ok {
			issues = append(issues, is)
		}
	}
	return issues, true
}

func issueFromValue(v any) (Issue, bool) {
	switch item := v.(type) {
	case map[string]any:
		is := Issue{
			Severity:          NormalizeSeverity(stringField(item, "severity", "category")),
			Description:       stringField(item, "description", "issue", "finding"),
			Location:          stringField(item, "location", "area"),
			ReferenceStandard: stringField(item, "reference_standard", "standard"),
		}
		if tags, ok := item["tags"].([]any); ok {
			for _, t := range tags {
				if s, ok := t.(string); ok {
					is.Tags = append(is.Tags, s)
				}
			}
		}
		return is, true
	case string:
		if strings.TrimSpace(item) == "" {
			return Issue{}, false
		}
		return Issue{Severity: SeverityObservation, Description: item}, true
	default:
		return Issue{}, false
	}
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func stripCodeFence(s string) string {
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
