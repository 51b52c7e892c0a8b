package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/model"
)

const imageColumns = `id, piece_id, image_name, url, is_annotated, created_at`

// AddImage records a captured image of a piece and bumps the piece's image
// count.
func (s *SQLiteStorage) AddImage(ctx context.Context, pieceID int64, name, url string) (*model.PieceImage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(pieceID, "pieceID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO piece_images (piece_id, image_name, url) VALUES (?, ?, ?)
	`, pieceID, name, url)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return nil, common.NotFound("add image", "piece %d not found", pieceID)
		case isUniqueViolation(err):
			return nil, common.InvalidPrecondition("add image", "image %s already recorded for piece %d", name, pieceID)
		}
		return nil, fmt.Errorf("failed to add image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get image id: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE pieces SET nbre_img = nbre_img + 1 WHERE id = ?`, pieceID); err != nil {
		return nil, fmt.Errorf("failed to update image count: %w", err)
	}

	img, err := s.getImageTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit image: %w", err)
	}
	return img, nil
}

// GetImage returns one image record.
func (s *SQLiteStorage) GetImage(ctx context.Context, imageID int64) (*model.PieceImage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(imageID, "imageID"); err != nil {
		return nil, err
	}
	return s.getImageTx(ctx, s.db, imageID)
}

func (s *SQLiteStorage) getImageTx(ctx context.Context, q queryable, imageID int64) (*model.PieceImage, error) {
	row := q.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM piece_images WHERE id = ?`, imageID)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("get image", "image %d not found", imageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

// ListImages returns the images of a piece, optionally only those still
// waiting for annotations.
func (s *SQLiteStorage) ListImages(ctx context.Context, pieceID int64, onlyUnannotated bool) ([]model.PieceImage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(pieceID, "pieceID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + imageColumns + ` FROM piece_images WHERE piece_id = ?`
	if onlyUnannotated {
		query += ` AND is_annotated = 0`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, pieceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var images []model.PieceImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// CountUnannotated returns how many images of a piece have no committed
// annotations yet.
func (s *SQLiteStorage) CountUnannotated(ctx context.Context, pieceID int64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateID(pieceID, "pieceID"); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM piece_images WHERE piece_id = ? AND is_annotated = 0
	`, pieceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unannotated images: %w", err)
	}
	return n, nil
}

func scanImage(row scanner) (*model.PieceImage, error) {
	var img model.PieceImage
	var createdAt sql.NullTime
	if err := row.Scan(
		&img.ID,
		&img.PieceID,
		&img.Name,
		&img.URL,
		&img.IsAnnotated,
		&createdAt,
	); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		img.CreatedAt = createdAt.Time
	}
	return &img, nil
}
