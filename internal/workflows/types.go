package workflows

type ReferenceIngestInput struct {
	DocumentID      string `json:"document_id"`
	Path            string `json:"path"`
	Filename        string `json:"filename"`
	Title           string `json:"title,omitempty"`
	Category        string `json:"category,omitempty"`
	ChunkSize       int    `json:"chunk_size,omitempty"`
	ChunkOverlap    int    `json:"chunk_overlap,omitempty"`
	EmbedProviders  int    `json:"embed_providers"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

type DrawingAnalysisInput struct {
	DrawingID       string  `json:"drawing_id"`
	Path            string  `json:"path"`
	Filename        string  `json:"filename"`
	DrawingNumber   string  `json:"drawing_number,omitempty"`
	TopK            int     `json:"top_k,omitempty"`
	Threshold       float64 `json:"threshold,omitempty"`
	MinIssues       int     `json:"min_issues,omitempty"`
	StrictMinIssues bool    `json:"strict_min_issues,omitempty"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
	EmbedProviders  int     `json:"embed_providers"`
	LLMProviders    int     `json:"llm_providers"`
	LLMProviderRef  string  `json:"llm_provider_ref,omitempty"`
	CooldownSeconds int     `json:"cooldown_seconds"`
}

type IngestStatus struct {
	DocumentID  string            `json:"document_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	ChunkCount  int               `json:"chunk_count"`
	Providers   []string          `json:"providers_used"`
	RetryCounts map[string]int    `json:"retry_counts"`
	Steps       map[string]string `json:"steps"`
}

type AnalysisStatus struct {
	DrawingID      string            `json:"drawing_id"`
	AnalysisID     string            `json:"analysis_id,omitempty"`
	CurrentStep    string            `json:"current_step"`
	Status         string            `json:"status"`
	FailReason     string            `json:"fail_reason,omitempty"`
	RecoveryStatus string            `json:"recovery_status,omitempty"`
	IssueCount     int               `json:"issue_count"`
	ContextHits    int               `json:"context_hits"`
	Providers      []string          `json:"providers_used"`
	RetryCounts    map[string]int    `json:"retry_counts"`
	Steps          map[string]string `json:"steps"`
}
