package activities

import "aiflow/internal/vector"

type ExtractTextInput struct {
	Path string `json:"path"`
}

type ExtractTextOutput struct {
	Text string `json:"text"`
}

type PrepareDrawingInput struct {
	Path string `json:"path"`
}

// PrepareDrawingOutput carries either base64 page images (image uploads,
// sent to the vision model) or extracted text (PDF uploads).
type PrepareDrawingOutput struct {
	Images []string `json:"images,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type ChunkTextInput struct {
	DocumentID   string `json:"document_id"`
	Text         string `json:"text"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type ChunkTextOutput struct {
	Chunks []vector.Chunk `json:"chunks"`
}

type EmbedChunksInput struct {
	Operation     string   `json:"operation"`
	Texts         []string `json:"texts"`
	ProviderIndex int      `json:"provider_index"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type IndexChunksInput struct {
	DocumentID string         `json:"document_id"`
	Chunks     []vector.Chunk `json:"chunks"`
}

type UpdateDocumentStatusInput struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Title      string `json:"title,omitempty"`
	Category   string `json:"category,omitempty"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	Active     bool   `json:"active"`
	ChunkCount int    `json:"chunk_count"`
}

type EmbedQueryInput struct {
	Operation     string `json:"operation"`
	Text          string `json:"text"`
	ProviderIndex int    `json:"provider_index"`
}

type EmbedQueryOutput struct {
	Vector       []float32 `json:"vector"`
	ProviderName string    `json:"provider_name"`
	Model        string    `json:"model"`
}

type RetrieveContextInput struct {
	QueryVec  []float32 `json:"query_vec"`
	TopK      int       `json:"top_k"`
	Threshold float64   `json:"threshold"`
}

type ContextHit struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Title      string  `json:"title,omitempty"`
	Category   string  `json:"category,omitempty"`
	Score      float64 `json:"score"`
}

type RetrieveContextOutput struct {
	Context string       `json:"context"`
	Hits    []ContextHit `json:"hits"`
}

type AnalyzeDrawingInput struct {
	Operation     string   `json:"operation"`
	Prompt        string   `json:"prompt"`
	Images        []string `json:"images,omitempty"`
	ProviderIndex int      `json:"provider_index"`
	ProviderRef   string   `json:"provider_ref,omitempty"`
}

type AnalyzeDrawingOutput struct {
	Text         string `json:"text"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	TokensUsed   int    `json:"tokens_used"`
}

type SaveAnalysisInput struct {
	DrawingID    string `json:"drawing_id"`
	RawText      string `json:"raw_text"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type SaveAnalysisOutput struct {
	AnalysisID     string `json:"analysis_id"`
	RecoveryStatus string `json:"recovery_status"`
	IssueCount     int    `json:"issue_count"`
}

type UpdateDrawingStatusInput struct {
	DrawingID     string `json:"drawing_id"`
	DrawingNumber string `json:"drawing_number,omitempty"`
	Filename      string `json:"filename,omitempty"`
	Status        string `json:"status"`
	FailReason    string `json:"fail_reason,omitempty"`
}

type LogLLMCallInput struct {
	CallID         string `json:"call_id"`
	Operation      string `json:"operation"`
	DrawingID      string `json:"drawing_id,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
	ProviderName   string `json:"provider_name"`
	Model          string `json:"model"`
	Status         string `json:"status"`
	ErrorType      string `json:"error_type,omitempty"`
	RecoveryStatus string `json:"recovery_status,omitempty"`
	TokensUsed     int    `json:"tokens_used,omitempty"`
}
