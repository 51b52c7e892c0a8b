package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/model"
)

const pieceColumns = `id, piece_label, class_data_id, is_annotated, is_yolo_trained, nbre_img, created_at`

// CreatePiece inserts a new piece. A duplicate label is rejected.
func (s *SQLiteStorage) CreatePiece(ctx context.Context, label string, classID int) (*model.Piece, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateLabel(label); err != nil {
		return nil, err
	}
	if classID < 0 {
		return nil, common.InvalidPrecondition("create piece", "class id %d is negative", classID)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pieces (piece_label, class_data_id) VALUES (?, ?)
	`, label, classID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.InvalidPrecondition("create piece", "piece %s already exists", label)
		}
		return nil, fmt.Errorf("failed to create piece: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get piece id: %w", err)
	}
	return s.getPieceTx(ctx, s.db, "id = ?", id)
}

// GetPieceByLabel returns the piece with the given label.
func (s *SQLiteStorage) GetPieceByLabel(ctx context.Context, label string) (*model.Piece, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(label, "label"); err != nil {
		return nil, err
	}
	return s.getPieceTx(ctx, s.db, "piece_label = ?", label)
}

func (s *SQLiteStorage) getPieceTx(ctx context.Context, q queryable, where string, arg any) (*model.Piece, error) {
	row := q.QueryRowContext(ctx, `SELECT `+pieceColumns+` FROM pieces WHERE `+where, arg)
	p, err := scanPiece(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("get piece", "piece %v not found", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get piece: %w", err)
	}
	return p, nil
}

// ListPieces returns all pieces ordered by label.
func (s *SQLiteStorage) ListPieces(ctx context.Context) ([]model.Piece, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryPieces(ctx, `SELECT `+pieceColumns+` FROM pieces ORDER BY piece_label`)
}

// ListPiecesByGroup returns the pieces whose label starts with group.
func (s *SQLiteStorage) ListPiecesByGroup(ctx context.Context, group string) ([]model.Piece, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(group, "group"); err != nil {
		return nil, err
	}
	return s.queryPieces(ctx, `
		SELECT `+pieceColumns+` FROM pieces
		WHERE substr(piece_label, 1, length(?)) = ?
		ORDER BY piece_label
	`, group, group)
}

func (s *SQLiteStorage) queryPieces(ctx context.Context, query string, args ...any) ([]model.Piece, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pieces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pieces []model.Piece
	for rows.Next() {
		p, err := scanPiece(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan piece: %w", err)
		}
		pieces = append(pieces, *p)
	}
	return pieces, rows.Err()
}

// MarkPieceAnnotated flags a piece as fully annotated.
func (s *SQLiteStorage) MarkPieceAnnotated(ctx context.Context, pieceID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(pieceID, "pieceID"); err != nil {
		return err
	}
	return s.updatePieceFlag(ctx, pieceID, "is_annotated")
}

// MarkPieceTrained flags a piece as included in a finished training run.
func (s *SQLiteStorage) MarkPieceTrained(ctx context.Context, pieceID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(pieceID, "pieceID"); err != nil {
		return err
	}
	return s.updatePieceFlag(ctx, pieceID, "is_yolo_trained")
}

func (s *SQLiteStorage) updatePieceFlag(ctx context.Context, pieceID int64, column string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE pieces SET `+column+` = 1 WHERE id = ?`, pieceID)
	if err != nil {
		return fmt.Errorf("failed to update piece: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return common.NotFound("update piece", "piece %d not found", pieceID)
	}
	return nil
}

// DeletePiece removes a piece with its images and annotations.
func (s *SQLiteStorage) DeletePiece(ctx context.Context, pieceID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(pieceID, "pieceID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM pieces WHERE id = ?`, pieceID)
	if err != nil {
		return fmt.Errorf("failed to delete piece: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete: %w", err)
	}
	if n == 0 {
		return common.NotFound("delete piece", "piece %d not found", pieceID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPiece(row scanner) (*model.Piece, error) {
	var p model.Piece
	var createdAt sql.NullTime
	if err := row.Scan(
		&p.ID,
		&p.Label,
		&p.ClassID,
		&p.IsAnnotated,
		&p.IsTrained,
		&p.ImageCount,
		&createdAt,
	); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	return &p, nil
}
