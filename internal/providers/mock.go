package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// MockProvider produces deterministic embeddings and canned generation
// output, so ingestion and analysis run end-to-end without any API keys.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

const mockAnalysisJSON = `{
  "drawing_info": {"drawing_number": "MOCK-001", "drawing_title": "Mock P&ID", "revision": "A"},
  "issues": [
    {"severity": "Critical", "description": "PSV-101 discharge routed to closed drain without backpressure check.", "location": "V-101 overhead", "tags": ["PSV-101"], "reference_standard": "API 520"},
    {"severity": "Minor", "description": "Line 6\"-P-1012 missing insulation specification.", "location": "P-101A discharge", "tags": ["P-101A"]}
  ],
  "summary": {"total_issues": 2, "critical_count": 1, "major_count": 0, "minor_count": 1, "observation_count": 0}
}`

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	op := strings.ToLower(req.Operation)
	if strings.Contains(op, "analysis") || req.ForceJSON {
		return GenerateResponse{Text: mockAnalysisJSON, TokensUsed: len(mockAnalysisJSON) / 4}, info, nil
	}
	return GenerateResponse{Text: "Mock response."}, info, nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return vec
}
