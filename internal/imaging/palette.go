package imaging

import (
	"fmt"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// goldenAngle spreads consecutive class ids around the hue wheel so
// neighbouring ids get clearly different colors.
const goldenAngle = 137.50776405003785

// ClassColor returns a stable, saturated color for a class id.
func ClassColor(classID int) color.RGBA {
	hue := math.Mod(float64(classID)*goldenAngle, 360)
	if hue < 0 {
		hue += 360
	}
	c := colorful.Hsv(hue, 0.85, 0.95)
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// ParseHexColor parses "#RRGGBB". An empty string yields ok=false so callers
// can fall back to ClassColor.
func ParseHexColor(hex string) (c color.RGBA, ok bool, err error) {
	if hex == "" {
		return color.RGBA{}, false, nil
	}
	parsed, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, false, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := parsed.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, true, nil
}
