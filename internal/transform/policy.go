package transform

import (
	"fmt"
	"math"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
)

// BoxPolicy decides what happens to boxes that extend past the frame after
// a transform.
type BoxPolicy int

const (
	// PolicyClip intersects boxes with the frame and drops empty results.
	PolicyClip BoxPolicy = iota
	// PolicyKeep writes the raw envelope, possibly outside [0,1].
	PolicyKeep
	// PolicyDrop removes any box that leaves the frame.
	PolicyDrop
)

// edgeSlack absorbs float noise for boxes that touch the frame edge.
const edgeSlack = 1e-9

func (p BoxPolicy) String() string {
	switch p {
	case PolicyKeep:
		return "keep"
	case PolicyDrop:
		return "drop"
	default:
		return "clip"
	}
}

// ParseBoxPolicy converts a config value.
func ParseBoxPolicy(v string) (BoxPolicy, error) {
	switch v {
	case "", "clip":
		return PolicyClip, nil
	case "keep":
		return PolicyKeep, nil
	case "drop":
		return PolicyDrop, nil
	default:
		return PolicyClip, fmt.Errorf("unknown box policy %q (want clip, keep or drop)", v)
	}
}

// Apply returns the boxes that survive the policy, in order.
func (p BoxPolicy) Apply(boxes []annotation.BoundingBox) []annotation.BoundingBox {
	out := make([]annotation.BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		x1, y1, x2, y2 := b.Bounds()
		switch p {
		case PolicyKeep:
			out = append(out, b)
		case PolicyDrop:
			if x1 >= -edgeSlack && y1 >= -edgeSlack && x2 <= 1+edgeSlack && y2 <= 1+edgeSlack {
				out = append(out, b)
			}
		default:
			x1, y1 = math.Max(x1, 0), math.Max(y1, 0)
			x2, y2 = math.Min(x2, 1), math.Min(y2, 1)
			if x2-x1 <= edgeSlack || y2-y1 <= edgeSlack {
				continue
			}
			out = append(out, annotation.FromBounds(b.ClassID, x1, y1, x2, y2))
		}
	}
	return out
}
