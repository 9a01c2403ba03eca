package vector

import "strings"

// FormatContext renders retrieval results as labelled text blocks for
// injection into an analysis prompt:
//
//	[STANDARD: API 520]
//	chunk text...
//	---
//	[GUIDELINE: ...]
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		category := r.Chunk.Metadata["category"]
		if category == "" {
			category = "document"
		}
		title := r.Chunk.Metadata["title"]
		if title == "" {
			title = "Unknown"
		}
		parts = append(parts, "["+strings.ToUpper(category)+": "+title+"]\n"+r.Chunk.Text+"\n")
	}
	return strings.Join(parts, "\n---\n")
}
