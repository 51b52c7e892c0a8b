package storage

import (
	"context"
	"fmt"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/model"
)

// SaveAnnotations stores committed boxes and marks their images annotated,
// all in one transaction. Earlier annotations of the same images are
// replaced.
func (s *SQLiteStorage) SaveAnnotations(ctx context.Context, annotations []model.Annotation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(annotations) == 0 {
		return common.InvalidPrecondition("save annotations", "no annotations to save")
	}
	for i := range annotations {
		if err := validateAnnotation(&annotations[i]); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	seen := make(map[int64]bool)
	for _, a := range annotations {
		if seen[a.ImageID] {
			continue
		}
		seen[a.ImageID] = true

		if _, err = tx.ExecContext(ctx, `DELETE FROM annotations WHERE piece_image_id = ?`, a.ImageID); err != nil {
			return fmt.Errorf("failed to clear annotations: %w", err)
		}
		result, execErr := tx.ExecContext(ctx, `UPDATE piece_images SET is_annotated = 1 WHERE id = ?`, a.ImageID)
		if execErr != nil {
			err = execErr
			return fmt.Errorf("failed to mark image annotated: %w", err)
		}
		n, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			err = rowsErr
			return fmt.Errorf("failed to check image update: %w", err)
		}
		if n == 0 {
			err = common.NotFound("save annotations", "image %d not found", a.ImageID)
			return err
		}
	}

	for _, a := range annotations {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO annotations (piece_image_id, annotation_txt_name, type, x, y, width, height)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.ImageID, a.LabelFile, a.Type, a.XCenter, a.YCenter, a.Width, a.Height); err != nil {
			return fmt.Errorf("failed to save annotation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit annotations: %w", err)
	}
	return nil
}

// ListAnnotations returns the committed boxes of an image in insertion order.
func (s *SQLiteStorage) ListAnnotations(ctx context.Context, imageID int64) ([]model.Annotation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(imageID, "imageID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, piece_image_id, annotation_txt_name, type, x, y, width, height
		FROM annotations
		WHERE piece_image_id = ?
		ORDER BY id
	`, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Annotation
	for rows.Next() {
		var a model.Annotation
		if err := rows.Scan(&a.ID, &a.ImageID, &a.LabelFile, &a.Type, &a.XCenter, &a.YCenter, &a.Width, &a.Height); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
