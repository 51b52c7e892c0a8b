package transform

import (
	"fmt"
	"math"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
)

// Tolerance below which trigonometric terms and rotated offsets are treated
// as exactly zero, so axis-aligned angles produce exact boxes.
const Tolerance = 1e-10

func snap(v float64) float64 {
	if math.Abs(v) < Tolerance {
		return 0
	}
	return v
}

// RotateBox returns the axis-aligned envelope of box after the image it
// belongs to is rotated by angle degrees. w and h are the pixel dimensions
// of that image. The result is not clamped to the frame.
func RotateBox(box annotation.BoundingBox, angle float64, w, h int) annotation.BoundingBox {
	fw, fh := float64(w), float64(h)

	xc := box.XCenter * fw
	yc := box.YCenter * fh
	bw := box.Width * fw
	bh := box.Height * fh

	corners := [4][2]float64{
		{xc - bw/2, yc - bh/2},
		{xc + bw/2, yc - bh/2},
		{xc + bw/2, yc + bh/2},
		{xc - bw/2, yc + bh/2},
	}

	rad := -angle * math.Pi / 180
	cos := snap(math.Cos(rad))
	sin := snap(math.Sin(rad))
	cx, cy := fw/2, fh/2

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		dx, dy := c[0]-cx, c[1]-cy
		x := snap(cos*dx-sin*dy) + cx
		y := snap(sin*dx+cos*dy) + cy
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	return annotation.BoundingBox{
		ClassID: box.ClassID,
		XCenter: (minX + maxX) / 2 / fw,
		YCenter: (minY + maxY) / 2 / fh,
		Width:   (maxX - minX) / fw,
		Height:  (maxY - minY) / fh,
	}
}

// FlipBox mirrors box about the given axis of the frame.
func FlipBox(box annotation.BoundingBox, axis Axis) (annotation.BoundingBox, error) {
	switch axis {
	case Horizontal:
		box.XCenter = 1 - box.XCenter
	case Vertical:
		box.YCenter = 1 - box.YCenter
	default:
		return annotation.BoundingBox{}, fmt.Errorf("invalid flip axis %d: use 0 for vertical and 1 for horizontal", int(axis))
	}
	return box, nil
}

// Boxes applies spec to every box of an image with pixel size w x h,
// preserving order.
func Boxes(boxes []annotation.BoundingBox, spec Spec, w, h int) ([]annotation.BoundingBox, error) {
	out := make([]annotation.BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		switch spec.Kind {
		case KindRotate:
			out = append(out, RotateBox(b, spec.Angle, w, h))
		case KindFlip:
			fb, err := FlipBox(b, spec.Axis)
			if err != nil {
				return nil, err
			}
			out = append(out, fb)
		default:
			return nil, fmt.Errorf("unknown transform kind %d", spec.Kind)
		}
	}
	return out, nil
}
