package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// GenerateRequest describes one LLM call. Images carry base64-encoded PNG
// or JPEG pages for vision-capable analysis; ForceJSON asks the provider
// to constrain output to a JSON object where the API supports it.
type GenerateRequest struct {
	Operation string   `json:"operation"`
	Prompt    string   `json:"prompt"`
	Context   []string `json:"context"`
	Images    []string `json:"images,omitempty"`
	ForceJSON bool     `json:"force_json,omitempty"`
	MaxTokens int      `json:"max_tokens,omitempty"`
	// Temperature applies when positive; zero leaves the provider default.
	Temperature float64 `json:"temperature,omitempty"`
}

type GenerateResponse struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}
