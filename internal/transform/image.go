package transform

import (
	"fmt"
	"image"
	"image/color"

	bildtransform "github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
)

// Fill is the color of canvas areas exposed by a rotation.
var Fill color.Color = color.Black

// RotateImage rotates img counter-clockwise by angle degrees about its
// center. The output has the same size as img; imaging resamples with
// bilinear interpolation.
func RotateImage(img image.Image, angle float64) image.Image {
	b := img.Bounds()
	rotated := imaging.Rotate(img, angle, Fill)
	canvas := imaging.New(b.Dx(), b.Dy(), Fill)
	return imaging.PasteCenter(canvas, rotated)
}

// FlipImage mirrors img about the given axis.
func FlipImage(img image.Image, axis Axis) (image.Image, error) {
	switch axis {
	case Horizontal:
		return bildtransform.FlipH(img), nil
	case Vertical:
		return bildtransform.FlipV(img), nil
	default:
		return nil, fmt.Errorf("invalid flip axis %d", int(axis))
	}
}

// Apply produces one variant of an image and its boxes. Box geometry uses
// the dimensions of img itself.
func Apply(img image.Image, boxes []annotation.BoundingBox, spec Spec, policy BoxPolicy) (image.Image, []annotation.BoundingBox, error) {
	b := img.Bounds()
	newBoxes, err := Boxes(boxes, spec, b.Dx(), b.Dy())
	if err != nil {
		return nil, nil, err
	}

	var out image.Image
	switch spec.Kind {
	case KindRotate:
		out = RotateImage(img, spec.Angle)
	case KindFlip:
		out, err = FlipImage(img, spec.Axis)
		if err != nil {
			return nil, nil, err
		}
	}

	return out, policy.Apply(newBoxes), nil
}
