package storage

import (
	"context"
	"fmt"

	"aiflow/internal/models"
)

type DrawingRepo struct {
	db *DB
}

func NewDrawingRepo(db *DB) *DrawingRepo {
	return &DrawingRepo{db: db}
}

func (r *DrawingRepo) UpsertDrawing(ctx context.Context, d models.Drawing) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO drawings (drawing_id, drawing_number, filename, status, fail_reason)
VALUES ($1::uuid, NULLIF($2,''), $3, $4, NULLIF($5,''))
ON CONFLICT (drawing_id)
DO UPDATE SET
  drawing_number = COALESCE(EXCLUDED.drawing_number, drawings.drawing_number),
  filename = EXCLUDED.filename,
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		d.DrawingID, d.DrawingNumber, d.Filename, d.Status, d.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert drawing: %w", err)
	}
	return nil
}

func (r *DrawingRepo) UpdateDrawingStatus(ctx context.Context, drawingID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE drawings SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE drawing_id=$1::uuid`,
		drawingID, status, failReason)
	if err != nil {
		return fmt.Errorf("update drawing status: %w", err)
	}
	return nil
}

func (r *DrawingRepo) GetDrawing(ctx context.Context, drawingID string) (models.Drawing, error) {
	var d models.Drawing
	err := r.db.Pool.QueryRow(ctx, `
SELECT drawing_id::text, COALESCE(drawing_number,''), filename, status, COALESCE(fail_reason,''), created_at, updated_at
FROM drawings
WHERE drawing_id=$1::uuid`, drawingID).
		Scan(&d.DrawingID, &d.DrawingNumber, &d.Filename, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Drawing{}, fmt.Errorf("get drawing: %w", err)
	}
	return d, nil
}

func (r *DrawingRepo) ListDrawings(ctx context.Context) ([]models.Drawing, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT drawing_id::text, COALESCE(drawing_number,''), filename, status, COALESCE(fail_reason,''), created_at, updated_at
FROM drawings
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list drawings: %w", err)
	}
	defer rows.Close()
	out := make([]models.Drawing, 0)
	for rows.Next() {
		var d models.Drawing
		if err := rows.Scan(&d.DrawingID, &d.DrawingNumber, &d.Filename, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan drawing: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drawings: %w", err)
	}
	return out, nil
}
