package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
)

// Draft is an annotation as drawn in the annotation UI: the top-left corner
// and size of the box in percent (0-100) of the image.
type Draft struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate rejects drafts with missing or out-of-range geometry.
func (d Draft) Validate() error {
	if d.Type == "" {
		return common.InvalidPrecondition("draft", "missing annotation type")
	}
	for _, v := range []float64{d.X, d.Y, d.Width, d.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return common.InvalidPrecondition("draft", "box (%g,%g,%g,%g) is not finite", d.X, d.Y, d.Width, d.Height)
		}
	}
	if d.Width <= 0 || d.Height <= 0 {
		return common.InvalidPrecondition("draft", "box size %gx%g is not positive", d.Width, d.Height)
	}
	if d.X < 0 || d.Y < 0 || d.X+d.Width > 100 || d.Y+d.Height > 100 {
		return common.InvalidPrecondition("draft", "box (%g,%g,%g,%g) outside 0-100", d.X, d.Y, d.Width, d.Height)
	}
	return nil
}

// ToBox converts the percent top-left form into a normalized YOLO box.
func (d Draft) ToBox(classID int) BoundingBox {
	return BoundingBox{
		ClassID: classID,
		XCenter: (d.X + d.Width/2) / 100,
		YCenter: (d.Y + d.Height/2) / 100,
		Width:   d.Width / 100,
		Height:  d.Height / 100,
	}
}

// Entry is a draft attached to an image id.
type Entry struct {
	ImageID int64 `json:"image_id"`
	Draft   Draft `json:"draft"`
}

// Session collects drafts for one piece label between drawing and commit.
// It is owned by a single caller and is not safe for concurrent use.
type Session struct {
	PieceLabel string  `json:"piece_label"`
	Entries    []Entry `json:"entries"`
}

// NewSession starts an empty session for a piece label.
func NewSession(pieceLabel string) *Session {
	return &Session{PieceLabel: pieceLabel}
}

// Add validates and records a draft for an image.
func (s *Session) Add(imageID int64, d Draft) error {
	if imageID <= 0 {
		return common.InvalidPrecondition("draft", "invalid image id %d", imageID)
	}
	if err := d.Validate(); err != nil {
		return err
	}
	s.Entries = append(s.Entries, Entry{ImageID: imageID, Draft: d})
	return nil
}

// Len is the number of pending drafts.
func (s *Session) Len() int {
	return len(s.Entries)
}

// ImageIDs returns the distinct annotated image ids in ascending order.
func (s *Session) ImageIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, e := range s.Entries {
		if !seen[e.ImageID] {
			seen[e.ImageID] = true
			ids = append(ids, e.ImageID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ByImage groups drafts per image, keeping insertion order within an image.
func (s *Session) ByImage() map[int64][]Draft {
	out := make(map[int64][]Draft)
	for _, e := range s.Entries {
		out[e.ImageID] = append(out[e.ImageID], e.Draft)
	}
	return out
}

// Discard drops all pending drafts.
func (s *Session) Discard() {
	s.Entries = nil
}

// SaveFile persists the session as JSON so a CLI can resume it.
func (s *Session) SaveFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return common.IOFailure("save session", "failed to create session directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return common.IOFailure("save session", "failed to write "+path, err)
	}
	return nil
}

// LoadSessionFile reads a session written by SaveFile. A missing file
// yields a fresh session for pieceLabel.
func LoadSessionFile(path, pieceLabel string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewSession(pieceLabel), nil
		}
		return nil, common.IOFailure("load session", "failed to read "+path, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, common.InvalidPrecondition("load session", "corrupt session file %s: %v", path, err)
	}
	if pieceLabel != "" && s.PieceLabel != pieceLabel {
		return nil, common.InvalidPrecondition("load session", "session belongs to %s, not %s", s.PieceLabel, pieceLabel)
	}
	return &s, nil
}
