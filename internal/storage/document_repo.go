package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"aiflow/internal/models"
	"aiflow/internal/vector"
)

// DocumentRepo persists reference documents and their chunk payloads.
// Chunk payloads (text + embedding + metadata) are stored as JSON so the
// worker can rehydrate the in-memory retrieval collection on restart.
type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) UpsertDocument(ctx context.Context, d models.ReferenceDocument) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO reference_documents (document_id, filename, title, category, status, fail_reason, active, chunk_count)
VALUES ($1::uuid, $2, NULLIF($3,''), NULLIF($4,''), $5, NULLIF($6,''), $7, $8)
ON CONFLICT (document_id)
DO UPDATE SET
  filename = EXCLUDED.filename,
  title = COALESCE(EXCLUDED.title, reference_documents.title),
  category = COALESCE(EXCLUDED.category, reference_documents.category),
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  active = EXCLUDED.active,
  chunk_count = EXCLUDED.chunk_count,
  updated_at = NOW()`,
		d.DocumentID, d.Filename, d.Title, d.Category, d.Status, d.FailReason, d.Active, d.ChunkCount,
	)
	if err != nil {
		return fmt.Errorf("upsert reference document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateDocumentStatus(ctx context.Context, documentID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE reference_documents SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW()
WHERE document_id=$1::uuid`, documentID, status, failReason)
	if err != nil {
		return fmt.Errorf("update reference document status: %w", err)
	}
	return nil
}

func (r *DocumentRepo) DeactivateDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE reference_documents SET active=FALSE, updated_at=NOW() WHERE document_id=$1::uuid`, documentID)
	if err != nil {
		return fmt.Errorf("deactivate reference document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) ListDocuments(ctx context.Context) ([]models.ReferenceDocument, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id::text, filename, COALESCE(title,''), COALESCE(category,''), status,
       COALESCE(fail_reason,''), active, chunk_count, created_at, updated_at
FROM reference_documents
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reference documents: %w", err)
	}
	defer rows.Close()
	out := make([]models.ReferenceDocument, 0)
	for rows.Next() {
		var d models.ReferenceDocument
		if err := rows.Scan(&d.DocumentID, &d.Filename, &d.Title, &d.Category, &d.Status, &d.FailReason, &d.Active, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reference document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference documents: %w", err)
	}
	return out, nil
}

// ReplaceChunks swaps the stored chunk payloads for a document in one
// transaction, so rehydration never sees a half-written document.
func (r *DocumentRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []vector.Chunk) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM reference_chunks WHERE document_id=$1::uuid`, documentID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	for i, c := range chunks {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal chunk %s: %w", c.ChunkID, err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO reference_chunks (chunk_id, document_id, chunk_index, payload)
VALUES ($1, $2::uuid, $3, $4::jsonb)`,
			c.ChunkID, documentID, i, payload); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

// LoadActiveChunks returns chunk payloads for all active, completed
// reference documents, in document order then chunk order, for hydrating
// the retrieval collection at startup.
func (r *DocumentRepo) LoadActiveChunks(ctx context.Context) ([]vector.DocumentChunks, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT c.document_id::text, c.payload
FROM reference_chunks c
JOIN reference_documents d ON d.document_id = c.document_id
WHERE d.active AND d.status = 'completed'
ORDER BY d.created_at ASC, c.chunk_index ASC`)
	if err != nil {
		return nil, fmt.Errorf("load active chunks: %w", err)
	}
	defer rows.Close()

	out := make([]vector.DocumentChunks, 0)
	for rows.Next() {
		var docID string
		var payload []byte
		if err := rows.Scan(&docID, &payload); err != nil {
			return nil, fmt.Errorf("scan chunk payload: %w", err)
		}
		var c vector.Chunk
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode chunk payload for document %s: %w", docID, err)
		}
		if n := len(out); n > 0 && out[n-1].DocumentID == docID {
			out[n-1].Chunks = append(out[n-1].Chunks, c)
		} else {
			out = append(out, vector.DocumentChunks{DocumentID: docID, Chunks: []vector.Chunk{c}})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk payloads: %w", err)
	}
	return out, nil
}
