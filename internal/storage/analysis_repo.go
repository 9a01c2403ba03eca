package storage

import (
	"context"
	"fmt"

	"aiflow/internal/models"
)

type AnalysisRepo struct {
	db *DB
}

func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

func (r *AnalysisRepo) InsertAnalysis(ctx context.Context, a models.Analysis) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO analyses (analysis_id, drawing_id, recovery_status, issue_count, result, provider_name, model)
VALUES ($1::uuid, $2::uuid, $3, $4, $5::jsonb, NULLIF($6,''), NULLIF($7,''))`,
		a.AnalysisID, a.DrawingID, a.RecoveryStatus, a.IssueCount, a.ResultJSON, a.ProviderName, a.Model,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// LatestAnalysis returns the most recent analysis for a drawing.
func (r *AnalysisRepo) LatestAnalysis(ctx context.Context, drawingID string) (models.Analysis, error) {
	var a models.Analysis
	err := r.db.Pool.QueryRow(ctx, `
SELECT analysis_id::text, drawing_id::text, recovery_status, issue_count, result::text,
       COALESCE(provider_name,''), COALESCE(model,''), created_at
FROM analyses
WHERE drawing_id=$1::uuid
ORDER BY created_at DESC
LIMIT 1`, drawingID).
		Scan(&a.AnalysisID, &a.DrawingID, &a.RecoveryStatus, &a.IssueCount, &a.ResultJSON, &a.ProviderName, &a.Model, &a.CreatedAt)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("get latest analysis: %w", err)
	}
	return a, nil
}

func (r *AnalysisRepo) ListAnalyses(ctx context.Context, drawingID string) ([]models.Analysis, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT analysis_id::text, drawing_id::text, recovery_status, issue_count, result::text,
       COALESCE(provider_name,''), COALESCE(model,''), created_at
FROM analyses
WHERE drawing_id=$1::uuid
ORDER BY created_at DESC`, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()
	out := make([]models.Analysis, 0)
	for rows.Next() {
		var a models.Analysis
		if err := rows.Scan(&a.AnalysisID, &a.DrawingID, &a.RecoveryStatus, &a.IssueCount, &a.ResultJSON, &a.ProviderName, &a.Model, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}
