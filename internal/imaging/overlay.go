package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
)

// OverlayOptions controls how boxes are drawn.
type OverlayOptions struct {
	// Thickness of the box outline in pixels. Zero means 2.
	Thickness int
	// ColorHex overrides the per-class palette, e.g. "#00FF00".
	ColorHex string
	// ShowClass draws the class id above each box.
	ShowClass bool
}

// OverlayResult contains an image with drawn boxes encoded as base64 PNG.
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Boxes       int    `json:"boxes"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// DrawBoxes renders YOLO boxes on a copy of img. Parts of a box outside the
// frame are not drawn. This is how a rotated image and its rotated labels
// are checked for alignment by eye.
func DrawBoxes(img image.Image, boxes []annotation.BoundingBox, opts OverlayOptions) (*image.RGBA, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	override, hasOverride, err := ParseHexColor(opts.ColorHex)
	if err != nil {
		return nil, err
	}
	thickness := opts.Thickness
	if thickness <= 0 {
		thickness = 2
	}

	result := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	for _, b := range boxes {
		c := ClassColor(b.ClassID)
		if hasOverride {
			c = override
		}

		nx1, ny1, nx2, ny2 := b.Bounds()
		x1 := int(math.Round(nx1 * float64(w)))
		y1 := int(math.Round(ny1 * float64(h)))
		x2 := int(math.Round(nx2 * float64(w)))
		y2 := int(math.Round(ny2 * float64(h)))

		for i := 0; i < thickness; i++ {
			drawRect(result, x1+i, y1+i, x2-1-i, y2-1-i, c)
		}

		if opts.ShowClass {
			drawLabel(result, x1+thickness+1, y1+thickness+1, strconv.Itoa(b.ClassID),
				color.RGBA{255, 255, 255, 255}, color.RGBA{c.R / 2, c.G / 2, c.B / 2, 255})
		}
	}

	return result, nil
}

// RenderOverlay draws boxes and encodes the result as PNG.
func RenderOverlay(img image.Image, boxes []annotation.BoundingBox, opts OverlayOptions) (*OverlayResult, error) {
	result, err := DrawBoxes(img, boxes, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &OverlayResult{
		Width:       result.Bounds().Dx(),
		Height:      result.Bounds().Dy(),
		Boxes:       len(boxes),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// drawRect draws a one pixel outline, clipped to the image.
func drawRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	if x2 < x1 || y2 < y1 {
		return
	}
	for x := x1; x <= x2; x++ {
		setClipped(img, x, y1, c)
		setClipped(img, x, y2, c)
	}
	for y := y1; y <= y2; y++ {
		setClipped(img, x1, y, c)
		setClipped(img, x2, y, c)
	}
}

func setClipped(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawLabel draws a simple text label at the given position
// using a 3x5 pixel font for digits.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		'-': {"000", "000", "111", "000", "000"},
	}

	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			setClipped(img, x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					setClipped(img, cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}
