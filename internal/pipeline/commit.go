// Package pipeline turns a finished annotation session into label files and
// database rows, and fires dataset augmentation once a piece is fully
// annotated.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/dataset"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/manifest"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/model"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/service"
)

// Augmenter builds the train pool of a piece.
type Augmenter interface {
	Run(ctx context.Context, label string) (dataset.Report, error)
}

// Registry records trained classes in the manifest.
type Registry interface {
	Load() (*manifest.Manifest, error)
	Register(classID int, label string) (*manifest.Manifest, error)
	Unregister(classID int) (*manifest.Manifest, error)
	UnregisterIf(classID int, label string) (*manifest.Manifest, error)
}

// Committer writes committed annotations and runs the fully-annotated
// trigger.
type Committer struct {
	Store     service.PieceStore
	Layout    dataset.Layout
	Augmenter Augmenter
	Manifest  Registry
	Locker    *dataset.Locker
}

// CommitResult describes one commit.
type CommitResult struct {
	Piece          string             `json:"piece"`
	Images         int                `json:"images"`
	Annotations    int                `json:"annotations"`
	Remaining      int                `json:"remaining"`
	LabelFiles     []string           `json:"label_files"`
	FullyAnnotated bool               `json:"fully_annotated"`
	Augment        *dataset.Report    `json:"augment,omitempty"`
	Manifest       *manifest.Manifest `json:"manifest,omitempty"`
}

// Commit writes one label file per annotated image into the piece's
// validation label pool, stores the boxes and marks the images annotated.
// When no unannotated image remains, the piece's train pool is built, its
// class is registered in the manifest and the piece is marked annotated.
//
// The session is discarded only when everything succeeded, so a failed
// commit can be retried with the same session.
func (c *Committer) Commit(ctx context.Context, s *annotation.Session) (*CommitResult, error) {
	if s == nil || s.Len() == 0 {
		return nil, common.InvalidPrecondition("commit", "no annotations to save")
	}
	label := s.PieceLabel
	if err := dataset.ValidatePieceLabel(label); err != nil {
		return nil, err
	}

	piece, err := c.Store.GetPieceByLabel(ctx, label)
	if err != nil {
		return nil, err
	}

	result := &CommitResult{Piece: label}
	if err := c.writeLabels(ctx, piece, s, result); err != nil {
		return nil, err
	}

	remaining, err := c.Store.CountUnannotated(ctx, piece.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unannotated images: %w", err)
	}
	result.Remaining = remaining

	if remaining == 0 && !piece.IsAnnotated {
		if err := c.finish(ctx, piece, result); err != nil {
			return result, err
		}
	}

	s.Discard()
	slog.Info("Committed annotations",
		"piece", label,
		"images", result.Images,
		"annotations", result.Annotations,
		"remaining", remaining,
		"fully_annotated", result.FullyAnnotated)
	return result, nil
}

func (c *Committer) writeLabels(ctx context.Context, piece *model.Piece, s *annotation.Session, result *CommitResult) error {
	if c.Locker != nil {
		unlock := c.Locker.Lock(piece.Label)
		defer unlock()
	}

	labelDir := c.Layout.ValidLabels(piece.Label)
	drafts := s.ByImage()

	var rows []model.Annotation
	for _, imageID := range s.ImageIDs() {
		img, err := c.Store.GetImage(ctx, imageID)
		if err != nil {
			return err
		}
		if img.PieceID != piece.ID {
			return common.InvalidPrecondition("commit", "image %d belongs to another piece", imageID)
		}

		boxes := make([]annotation.BoundingBox, 0, len(drafts[imageID]))
		for _, d := range drafts[imageID] {
			boxes = append(boxes, d.ToBox(piece.ClassID))
		}

		path := annotation.LabelPath(labelDir, img.Name)
		if err := annotation.WriteFile(path, boxes); err != nil {
			return err
		}
		result.LabelFiles = append(result.LabelFiles, path)

		for i, b := range boxes {
			rows = append(rows, model.Annotation{
				ImageID:   imageID,
				LabelFile: filepath.Base(path),
				Type:      drafts[imageID][i].Type,
				XCenter:   b.XCenter,
				YCenter:   b.YCenter,
				Width:     b.Width,
				Height:    b.Height,
			})
		}
	}

	if err := c.Store.SaveAnnotations(ctx, rows); err != nil {
		return err
	}
	result.Images = len(result.LabelFiles)
	result.Annotations = len(rows)
	return nil
}

// finish runs the fully-annotated trigger. The piece flag is set last so a
// failed augmentation leaves the piece eligible for another attempt.
func (c *Committer) finish(ctx context.Context, piece *model.Piece, result *CommitResult) error {
	slog.Info("Piece fully annotated", "piece", piece.Label, "class_id", piece.ClassID)

	if c.Augmenter != nil {
		report, err := c.Augmenter.Run(ctx, piece.Label)
		if err != nil {
			return fmt.Errorf("failed to augment %s: %w", piece.Label, err)
		}
		result.Augment = &report
	}

	if c.Manifest != nil {
		m, err := c.Manifest.Register(piece.ClassID, piece.Label)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", piece.Label, err)
		}
		result.Manifest = m
	}

	if err := c.Store.MarkPieceAnnotated(ctx, piece.ID); err != nil {
		return err
	}
	result.FullyAnnotated = true
	return nil
}

// DeletePiece removes a piece's rows, its dataset subtree and its manifest
// entry.
func (c *Committer) DeletePiece(ctx context.Context, label string) error {
	dir, err := c.Layout.CheckPieceDir(label)
	if err != nil {
		return err
	}
	piece, err := c.Store.GetPieceByLabel(ctx, label)
	if err != nil {
		return err
	}

	if c.Locker != nil {
		unlock := c.Locker.Lock(label)
		defer unlock()
	}

	if err := c.Store.DeletePiece(ctx, piece.ID); err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return common.IOFailure("delete piece", "failed to remove "+dir, err)
	}

	if c.Manifest != nil {
		if _, err := c.Manifest.UnregisterIf(piece.ClassID, label); err != nil {
			return err
		}
	}

	slog.Info("Deleted piece", "piece", label, "dir", dir)
	return nil
}
