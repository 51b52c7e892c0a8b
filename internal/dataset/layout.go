package dataset

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/filemover"
)

// labelPattern matches the group prefix of a piece label, e.g. "D123.12345"
// in "D123.12345.A".
var labelPattern = regexp.MustCompile(`^([A-Z]\d{3}\.\d{5})`)

// fullLabelPattern bounds the suffix to characters that are safe as a single
// path element.
var fullLabelPattern = regexp.MustCompile(`^[A-Z]\d{3}\.\d{5}[A-Za-z0-9._-]*$`)

// ValidatePieceLabel rejects labels that do not start with a letter, three
// digits, a dot and five digits, or that would not name a single directory
// directly under the dataset root.
func ValidatePieceLabel(label string) error {
	if !fullLabelPattern.MatchString(label) || strings.Contains(label, "..") || filepath.Base(label) != label {
		return common.InvalidPrecondition("validate label", "invalid piece label %q", label)
	}
	return nil
}

// GroupLabel returns the matched group prefix of a piece label.
func GroupLabel(label string) (string, error) {
	if err := ValidatePieceLabel(label); err != nil {
		return "", err
	}
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return "", common.InvalidPrecondition("group label", "invalid piece label %q", label)
	}
	return m[1], nil
}

// Layout resolves the per-label directory tree under Root:
//
//	<root>/<label>/images/{valid,train}
//	<root>/<label>/labels/{valid,train}
type Layout struct {
	Root string
}

// PieceDir is the subtree owned by one label.
func (l Layout) PieceDir(label string) string {
	return filepath.Join(l.Root, label)
}

// CheckPieceDir returns the label's subtree, or an error when the label is
// invalid or the joined path is not a direct child of Root.
func (l Layout) CheckPieceDir(label string) (string, error) {
	if err := ValidatePieceLabel(label); err != nil {
		return "", err
	}
	dir := l.PieceDir(label)
	rel, err := filepath.Rel(filepath.Clean(l.Root), dir)
	if err != nil || rel != label {
		return "", common.InvalidPrecondition("piece dir", "piece directory %q escapes %q", dir, l.Root)
	}
	return dir, nil
}

func (l Layout) ValidImages(label string) string {
	return filepath.Join(l.Root, label, "images", "valid")
}

func (l Layout) ValidLabels(label string) string {
	return filepath.Join(l.Root, label, "labels", "valid")
}

func (l Layout) TrainImages(label string) string {
	return filepath.Join(l.Root, label, "images", "train")
}

func (l Layout) TrainLabels(label string) string {
	return filepath.Join(l.Root, label, "labels", "train")
}

// Pools returns the valid -> train pools of a label for the file mover.
func (l Layout) Pools(label string) filemover.Pools {
	return filemover.Pools{
		SrcImages: l.ValidImages(label),
		SrcLabels: l.ValidLabels(label),
		DstImages: l.TrainImages(label),
		DstLabels: l.TrainLabels(label),
	}
}
