package providers

import (
	"context"
	"testing"
)

func TestMockEmbedDeterministic(t *testing.T) {
	p := NewMockProvider(8)
	a, _, err := p.Embed(context.Background(), EmbedRequest{Operation: "embed", Inputs: []string{"pump specs"}})
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := p.Embed(context.Background(), EmbedRequest{Operation: "embed", Inputs: []string{"pump specs"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 1 || len(a[0]) != 8 {
		t.Fatalf("unexpected vector shape: %d x %d", len(a), len(a[0]))
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("embedding not deterministic at index %d", i)
		}
	}
}

func TestMockGenerateAnalysisIsParseable(t *testing.T) {
	p := NewMockProvider(0)
	resp, info, err := p.Generate(context.Background(), GenerateRequest{Operation: "drawing_analysis", ForceJSON: true})
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "mock" {
		t.Fatalf("unexpected provider info: %+v", info)
	}
	if resp.Text == "" || resp.Text[0] != '{' {
		t.Fatalf("expected JSON analysis text, got %q", resp.Text)
	}
}
