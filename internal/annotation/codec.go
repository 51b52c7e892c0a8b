package annotation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
)

// LabelExt is the extension of YOLO label files.
const LabelExt = ".txt"

// LineError describes a label line that was skipped.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

// ParseLine parses "<class_id> <x_center> <y_center> <width> <height>".
func ParseLine(line string) (BoundingBox, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return BoundingBox{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	classID, err := strconv.Atoi(fields[0])
	if err != nil {
		return BoundingBox{}, fmt.Errorf("invalid class id: %w", err)
	}

	var vals [4]float64
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("invalid coordinate %q: %w", f, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return BoundingBox{}, fmt.Errorf("coordinate %q is not finite", f)
		}
		vals[i] = v
	}

	box := BoundingBox{ClassID: classID, XCenter: vals[0], YCenter: vals[1], Width: vals[2], Height: vals[3]}
	if box.ClassID < 0 {
		return BoundingBox{}, fmt.Errorf("class id %d is negative", box.ClassID)
	}
	if box.Width <= 0 || box.Height <= 0 {
		return BoundingBox{}, fmt.Errorf("box size %gx%g is not positive", box.Width, box.Height)
	}
	return box, nil
}

// Parse reads label lines from r. Blank lines are ignored; malformed lines
// are returned as LineErrors and do not stop parsing.
func Parse(r io.Reader) ([]BoundingBox, []LineError, error) {
	var (
		boxes   []BoundingBox
		skipped []LineError
	)

	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		box, err := ParseLine(text)
		if err != nil {
			skipped = append(skipped, LineError{Line: n, Text: text, Err: err})
			continue
		}
		boxes = append(boxes, box)
	}
	if err := scanner.Err(); err != nil {
		return boxes, skipped, fmt.Errorf("failed to read labels: %w", err)
	}
	return boxes, skipped, nil
}

// ReadFile loads a label file, logging each skipped line at warn level.
// A missing file returns an ErrNotFound error.
func ReadFile(path string) ([]BoundingBox, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NotFound("read labels", "label file %s", path)
		}
		return nil, common.IOFailure("read labels", "failed to open "+path, err)
	}
	defer f.Close()

	boxes, skipped, err := Parse(f)
	for _, le := range skipped {
		slog.Warn("Skipping malformed label line", "file", path, "line", le.Line, "error", le.Err)
	}
	if err != nil {
		return nil, common.IOFailure("read labels", path, err)
	}
	return boxes, nil
}

// FormatLine renders one box. Floats use the shortest representation that
// parses back to the same value.
func FormatLine(b BoundingBox) string {
	return strconv.Itoa(b.ClassID) + " " +
		formatFloat(b.XCenter) + " " +
		formatFloat(b.YCenter) + " " +
		formatFloat(b.Width) + " " +
		formatFloat(b.Height)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Format writes one line per box, in order.
func Format(w io.Writer, boxes []BoundingBox) error {
	bw := bufio.NewWriter(w)
	for _, b := range boxes {
		if _, err := bw.WriteString(FormatLine(b) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes boxes to path, creating the parent directory. An empty
// slice produces an empty file.
func WriteFile(path string, boxes []BoundingBox) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return common.IOFailure("write labels", "failed to create label directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return common.IOFailure("write labels", "failed to create "+path, err)
	}
	if err := Format(f, boxes); err != nil {
		f.Close()
		return common.IOFailure("write labels", "failed to write "+path, err)
	}
	if err := f.Close(); err != nil {
		return common.IOFailure("write labels", "failed to close "+path, err)
	}
	return nil
}

// LabelPath returns the label file for an image name inside labelDir.
func LabelPath(labelDir, imageName string) string {
	stem := strings.TrimSuffix(filepath.Base(imageName), filepath.Ext(imageName))
	return filepath.Join(labelDir, stem+LabelExt)
}
