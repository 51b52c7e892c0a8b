package transform

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes rotation from flip specs.
type Kind int

const (
	KindRotate Kind = iota
	KindFlip
)

// Axis is a flip axis. The numeric values are the flip codes used in
// output file names: 0 flips vertically, 1 horizontally.
type Axis int

const (
	Vertical   Axis = 0
	Horizontal Axis = 1
)

func (a Axis) String() string {
	switch a {
	case Vertical:
		return "vertical"
	case Horizontal:
		return "horizontal"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Spec is a single transform applied to an original image. Specs are never
// composed.
type Spec struct {
	Kind  Kind
	Angle float64 // degrees, for KindRotate
	Axis  Axis    // for KindFlip
}

// Rotate returns a rotation spec.
func Rotate(angle float64) Spec {
	return Spec{Kind: KindRotate, Angle: angle}
}

// Flip returns a flip spec.
func Flip(axis Axis) Spec {
	return Spec{Kind: KindFlip, Axis: axis}
}

// Suffix is appended to the file stem of the variant, e.g. "_rot90" or
// "_flip0".
func (s Spec) Suffix() string {
	switch s.Kind {
	case KindFlip:
		return "_flip" + strconv.Itoa(int(s.Axis))
	default:
		return "_rot" + strconv.FormatFloat(s.Angle, 'f', -1, 64)
	}
}

func (s Spec) String() string {
	return strings.TrimPrefix(s.Suffix(), "_")
}

// ParseSpec accepts the String form: "rot<angle>" or "flip<0|1>".
func ParseSpec(v string) (Spec, error) {
	switch {
	case strings.HasPrefix(v, "rot"):
		angle, err := strconv.ParseFloat(strings.TrimPrefix(v, "rot"), 64)
		if err != nil {
			return Spec{}, fmt.Errorf("invalid rotation %q: %w", v, err)
		}
		return Rotate(angle), nil
	case v == "flip0":
		return Flip(Vertical), nil
	case v == "flip1":
		return Flip(Horizontal), nil
	default:
		return Spec{}, fmt.Errorf("unknown transform %q", v)
	}
}

// DefaultSpecs returns one rotation per angle followed by the vertical and
// horizontal flips.
func DefaultSpecs(angles []float64) []Spec {
	specs := make([]Spec, 0, len(angles)+2)
	for _, a := range angles {
		specs = append(specs, Rotate(a))
	}
	return append(specs, Flip(Vertical), Flip(Horizontal))
}
