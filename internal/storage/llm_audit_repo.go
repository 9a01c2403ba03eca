package storage

import (
	"context"
	"fmt"
)

// LLMCallRecord is one audit row per provider call, including which parse
// recovery tier handled the response.
type LLMCallRecord struct {
	CallID         string
	Operation      string
	DrawingID      string
	DocumentID     string
	ProviderName   string
	Model          string
	Status         string
	ErrorType      string
	RecoveryStatus string
	TokensUsed     int
}

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, operation, drawing_id, document_id, provider_name, model, status, error_type, recovery_status, tokens_used)
VALUES (COALESCE(NULLIF($1,''), gen_random_uuid()::text), $2, NULLIF($3,''), NULLIF($4,''), $5, $6, $7, NULLIF($8,''), NULLIF($9,''), $10)`,
		rec.CallID, rec.Operation, rec.DrawingID, rec.DocumentID, rec.ProviderName, rec.Model, rec.Status, rec.ErrorType, rec.RecoveryStatus, rec.TokensUsed)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
