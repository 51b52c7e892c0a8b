package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
)

// CropResult contains the cropped region of one box.
type CropResult struct {
	Box         annotation.BoundingBox `json:"box"`
	X1          int                    `json:"x1"`
	Y1          int                    `json:"y1"`
	X2          int                    `json:"x2"`
	Y2          int                    `json:"y2"`
	Width       int                    `json:"width"`
	Height      int                    `json:"height"`
	ImageBase64 string                 `json:"image_base64"`
	MimeType    string                 `json:"mime_type"`
}

// pixelSlack keeps float noise from widening a crop by a whole pixel.
const pixelSlack = 1e-6

// BoxRect converts a YOLO box to a pixel rectangle of an image with the
// given bounds. margin grows the box on every side by that fraction of its
// own size. The result is clipped to the frame and may be empty.
func BoxRect(bounds image.Rectangle, box annotation.BoundingBox, margin float64) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x1, y1, x2, y2 := box.Bounds()
	mx, my := box.Width*margin, box.Height*margin

	r := image.Rect(
		int(math.Floor((x1-mx)*w+pixelSlack)),
		int(math.Floor((y1-my)*h+pixelSlack)),
		int(math.Ceil((x2+mx)*w-pixelSlack)),
		int(math.Ceil((y2+my)*h-pixelSlack)),
	).Add(bounds.Min)
	return r.Intersect(bounds)
}

// CropBox extracts the region of box from img, scaled by scale when it is
// positive and not 1.
func CropBox(img image.Image, box annotation.BoundingBox, margin, scale float64) (*CropResult, error) {
	if margin < 0 {
		return nil, fmt.Errorf("margin must not be negative, got %g", margin)
	}
	r := BoxRect(img.Bounds(), box, margin)
	if r.Empty() {
		return nil, fmt.Errorf("box (%g,%g %gx%g) lies outside the image", box.XCenter, box.YCenter, box.Width, box.Height)
	}

	cropped := imaging.Crop(img, r)

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth < 1 || newHeight < 1 {
			return nil, fmt.Errorf("scale %g leaves an empty crop", scale)
		}
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		Box:         box,
		X1:          r.Min.X,
		Y1:          r.Min.Y,
		X2:          r.Max.X,
		Y2:          r.Max.Y,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
