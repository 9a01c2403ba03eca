package analysis

import (
	"reflect"
	"testing"
)

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"severity":            "severity",
		" severity ":          "severity",
		"\"severity\"":        "severity",
		"\n \"'severity'\" ":  "severity",
		"\t'\" issues \"'\n ": "issues",
		"\"\"":                "",
		"   ":                 "",
	}
	for in, want := range cases {
		if got := CleanKey(in); got != want {
			t.Fatalf("CleanKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanKeyIdempotent(t *testing.T) {
	once := CleanKey("\n\"drawing_info\" ")
	if CleanKey(once) != once {
		t.Fatalf("CleanKey not idempotent on %q", once)
	}
}

func TestSanitizeKeysNested(t *testing.T) {
	in := map[string]any{
		"\"issues\"": []any{
			map[string]any{" severity ": "Critical", "'description'": "relief valve missing"},
		},
		"\n summary": map[string]any{"\"total_issues\"": float64(1)},
		"  ":         "dropped",
		"\"\"":       "also dropped",
	}
	want := map[string]any{
		"issues": []any{
			map[string]any{"severity": "Critical", "description": "relief valve missing"},
		},
		"summary": map[string]any{"total_issues": float64(1)},
	}
	got := SanitizeKeys(in)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SanitizeKeys mismatch:\ngot  %#v\nwant %#v", got, want)
	}
}

func TestSanitizeKeysScalarsPassThrough(t *testing.T) {
	for _, v := range []any{nil, true, float64(3), "text"} {
		if got := SanitizeKeys(v); !reflect.DeepEqual(got, v) {
			t.Fatalf("SanitizeKeys(%v) = %v", v, got)
		}
	}
}
