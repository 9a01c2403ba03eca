package models

import "time"

// ReferenceDocument is an uploaded standards/guidelines document whose
// chunks feed the retrieval collection while it is active.
type ReferenceDocument struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title,omitempty"`
	Category   string    `json:"category,omitempty"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	Active     bool      `json:"active"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Drawing is an uploaded P&ID/PFD under review.
type Drawing struct {
	DrawingID     string    `json:"drawing_id"`
	DrawingNumber string    `json:"drawing_number,omitempty"`
	Filename      string    `json:"filename"`
	Status        string    `json:"status"`
	FailReason    string    `json:"fail_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Analysis is one persisted drawing-review result.
type Analysis struct {
	AnalysisID     string    `json:"analysis_id"`
	DrawingID      string    `json:"drawing_id"`
	RecoveryStatus string    `json:"recovery_status"`
	IssueCount     int       `json:"issue_count"`
	ResultJSON     string    `json:"result_json"`
	ProviderName   string    `json:"provider_name,omitempty"`
	Model          string    `json:"model,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ContextChunk is a retrieval hit returned by the context endpoint.
type ContextChunk struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Title      string  `json:"title,omitempty"`
	Category   string  `json:"category,omitempty"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}
