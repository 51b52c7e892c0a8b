// Package service defines the contracts between the dataset pipeline and
// its collaborators.
package service

import (
	"context"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/model"
)

// PieceStore is the piece/image metadata lookup consumed by the commit
// pipeline.
type PieceStore interface {
	// Piece operations
	CreatePiece(ctx context.Context, label string, classID int) (*model.Piece, error)
	GetPieceByLabel(ctx context.Context, label string) (*model.Piece, error)
	ListPieces(ctx context.Context) ([]model.Piece, error)
	ListPiecesByGroup(ctx context.Context, group string) ([]model.Piece, error)
	MarkPieceAnnotated(ctx context.Context, pieceID int64) error
	DeletePiece(ctx context.Context, pieceID int64) error

	// Image operations
	AddImage(ctx context.Context, pieceID int64, name, url string) (*model.PieceImage, error)
	GetImage(ctx context.Context, imageID int64) (*model.PieceImage, error)
	ListImages(ctx context.Context, pieceID int64, onlyUnannotated bool) ([]model.PieceImage, error)
	CountUnannotated(ctx context.Context, pieceID int64) (int, error)

	// Annotation operations
	SaveAnnotations(ctx context.Context, annotations []model.Annotation) error
	ListAnnotations(ctx context.Context, imageID int64) ([]model.Annotation, error)
}
