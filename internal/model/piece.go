// Package model holds the records persisted by the piece metadata store.
package model

import "time"

// Piece is one detectable part class. ClassID is the detector class index
// written into label files and the manifest.
type Piece struct {
	CreatedAt   time.Time
	Label       string
	ID          int64
	ClassID     int
	ImageCount  int
	IsAnnotated bool
	IsTrained   bool
}

// PieceImage is a captured image of a piece, stored under the piece's
// validation pool.
type PieceImage struct {
	CreatedAt   time.Time
	Name        string
	URL         string
	ID          int64
	PieceID     int64
	IsAnnotated bool
}

// Annotation is a committed box in normalized YOLO form, linked to the
// label file it was written to.
type Annotation struct {
	LabelFile string
	Type      string
	ID        int64
	ImageID   int64
	XCenter   float64
	YCenter   float64
	Width     float64
	Height    float64
}
