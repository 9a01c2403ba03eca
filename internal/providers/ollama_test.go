package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func ollamaTestProvider(t *testing.T, handler http.HandlerFunc) *OllamaEmbeddingProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("AIFLOW_OLLAMA_BASE_URL", srv.URL)
	return NewOllamaEmbeddingProvider("nomic")
}

func TestOllamaEmbedMatchingDimension(t *testing.T) {
	p := ollamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3]}`))
	})

	out, info, err := p.Embed(context.Background(), EmbedRequest{
		Operation: "embed",
		Inputs:    []string{"pump specs"},
		Dimension: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "ollama" {
		t.Fatalf("unexpected provider info: %+v", info)
	}
	if len(out) != 1 || len(out[0]) != 3 {
		t.Fatalf("unexpected vector shape: %d x %d", len(out), len(out[0]))
	}
}

func TestOllamaEmbedRejectsWrongDimension(t *testing.T) {
	// The loaded model's native dimension disagrees with the configured
	// one. The vector must be refused, not padded or truncated to fit.
	p := ollamaTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3]}`))
	})

	out, _, err := p.Embed(context.Background(), EmbedRequest{
		Operation: "embed",
		Inputs:    []string{"pump specs"},
		Dimension: 5,
	})
	if err == nil {
		t.Fatalf("expected dimension error, got vectors %v", out)
	}
	if !strings.Contains(err.Error(), "dimension 3, expected 5") {
		t.Fatalf("unexpected error: %v", err)
	}
}
