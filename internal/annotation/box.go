// Package annotation holds the YOLO bounding-box record, its text codec and
// the caller-owned annotation session used before a commit.
package annotation

import "fmt"

// BoundingBox is one YOLO label line. Coordinates are normalized to the
// image width and height.
type BoundingBox struct {
	ClassID int     `json:"class_id"`
	XCenter float64 `json:"x_center"`
	YCenter float64 `json:"y_center"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Validate checks the invariants of a freshly parsed or drafted box.
// Transformed boxes may leave [0,1] and are not validated here.
func (b BoundingBox) Validate() error {
	if b.ClassID < 0 {
		return fmt.Errorf("class id %d is negative", b.ClassID)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("box size %gx%g is not positive", b.Width, b.Height)
	}
	if b.XCenter < 0 || b.XCenter > 1 || b.YCenter < 0 || b.YCenter > 1 {
		return fmt.Errorf("box center (%g,%g) outside [0,1]", b.XCenter, b.YCenter)
	}
	return nil
}

// Bounds returns the normalized corners (x1, y1, x2, y2).
func (b BoundingBox) Bounds() (x1, y1, x2, y2 float64) {
	return b.XCenter - b.Width/2, b.YCenter - b.Height/2,
		b.XCenter + b.Width/2, b.YCenter + b.Height/2
}

// Area is the normalized area of the box.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// FromBounds builds a box from normalized corners.
func FromBounds(classID int, x1, y1, x2, y2 float64) BoundingBox {
	return BoundingBox{
		ClassID: classID,
		XCenter: (x1 + x2) / 2,
		YCenter: (y1 + y2) / 2,
		Width:   x2 - x1,
		Height:  y2 - y1,
	}
}
