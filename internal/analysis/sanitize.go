package analysis

import "strings"

const keyCutset = " \t\n\r\"'"

// CleanKey strips leading/trailing whitespace and quote characters from a
// mapping key, repeating until a fixed point so nested patterns like
// `\n "key"` fully resolve. An already-clean key comes back unchanged.
func CleanKey(key string) string {
	for {
		trimmed := strings.Trim(key, keyCutset)
		if trimmed == key {
			return trimmed
		}
		key = trimmed
	}
}

// SanitizeKeys walks a decoded JSON value and rewrites every mapping key
// with CleanKey, at any nesting depth, including inside arrays. Keys that
// clean to the empty string carry no retrievable meaning and their entries
// are dropped. Scalars pass through unchanged.
func SanitizeKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		sanitized := make(map[string]any, len(val))
		for k, inner := range val {
			clean := CleanKey(k)
			if clean == "" {
				continue
			}
			sanitized[clean] = SanitizeKeys(inner)
		}
		return sanitized
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = SanitizeKeys(item)
		}
		return out
	default:
		// null, bool, number, string: nothing to rewrite.
		return v
	}
}
