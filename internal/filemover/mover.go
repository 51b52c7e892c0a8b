// Package filemover moves surplus files from a validation pool to a
// training pool, using content hashes to skip files that already arrived.
package filemover

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/imaging"
)

// Pools names the four directories of a rebalance.
type Pools struct {
	SrcImages string
	SrcLabels string
	DstImages string
	DstLabels string
}

// Report summarizes one rebalance run.
type Report struct {
	Listed        int      `json:"listed"`
	Selected      int      `json:"selected"`
	MovedImages   int      `json:"moved_images"`
	MovedLabels   int      `json:"moved_labels"`
	Skipped       int      `json:"skipped_identical"`
	MissingLabels []string `json:"missing_labels,omitempty"`
}

// Mover rebalances pools. The zero value uses a time-seeded random source.
type Mover struct {
	// Rand selects the files to move. Set it to a seeded source for
	// reproducible runs.
	Rand *rand.Rand
}

// New returns a mover with a time-seeded random source.
func New() *Mover {
	return &Mover{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// HashFile returns the hex md5 digest of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sameContent reports whether dst exists and has the same digest as src.
func sameContent(src, dst string) (bool, error) {
	if _, err := os.Stat(dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	srcHash, err := HashFile(src)
	if err != nil {
		return false, err
	}
	dstHash, err := HashFile(dst)
	if err != nil {
		return false, err
	}
	return srcHash == dstHash, nil
}

// Rebalance moves randomly selected files out of the source image pool until
// at most keep remain, taking each image's label file along.
//
// An image whose destination already holds identical content is skipped and
// left in the source, so a second run moves nothing. A missing source pool,
// an empty one, or one already at or below keep is a no-op.
func (m *Mover) Rebalance(ctx context.Context, pools Pools, keep int) (Report, error) {
	var report Report
	if keep < 0 {
		return report, common.InvalidPrecondition("rebalance", "keep must not be negative, got %d", keep)
	}

	entries, err := os.ReadDir(pools.SrcImages)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("Source pool does not exist, nothing to move", "dir", pools.SrcImages)
			return report, nil
		}
		return report, common.IOFailure("rebalance", "failed to list "+pools.SrcImages, err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && imaging.IsImageFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	report.Listed = len(files)

	if len(files) == 0 {
		slog.Info("Source pool is empty, nothing to move", "dir", pools.SrcImages)
		return report, nil
	}
	if len(files) <= keep {
		slog.Info("Source pool already at target size", "dir", pools.SrcImages, "files", len(files), "keep", keep)
		return report, nil
	}

	rng := m.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
	selected := files[:len(files)-keep]
	report.Selected = len(selected)

	for _, dir := range []string{pools.DstImages, pools.DstLabels} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return report, common.IOFailure("rebalance", "failed to create "+dir, err)
		}
	}

	for _, name := range selected {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		moved, err := m.moveIfChanged(filepath.Join(pools.SrcImages, name), filepath.Join(pools.DstImages, name))
		if err != nil {
			return report, common.IOFailure("rebalance", "failed to move image "+name, err)
		}
		if !moved {
			slog.Debug("Image already moved", "file", name)
			report.Skipped++
			continue
		}
		report.MovedImages++

		srcLabel := annotation.LabelPath(pools.SrcLabels, name)
		dstLabel := annotation.LabelPath(pools.DstLabels, name)
		if _, err := os.Stat(srcLabel); errors.Is(err, fs.ErrNotExist) {
			slog.Warn("No label file for moved image", "image", name, "label", srcLabel)
			report.MissingLabels = append(report.MissingLabels, name)
			continue
		}
		moved, err = m.moveIfChanged(srcLabel, dstLabel)
		if err != nil {
			return report, common.IOFailure("rebalance", "failed to move label for "+name, err)
		}
		if moved {
			report.MovedLabels++
		} else {
			slog.Debug("Label already moved", "file", filepath.Base(srcLabel))
		}
	}

	slog.Info("Rebalanced pool",
		"src", pools.SrcImages,
		"dst", pools.DstImages,
		"moved", report.MovedImages,
		"skipped", report.Skipped)
	return report, nil
}

// moveIfChanged moves src to dst unless dst already has the same content.
func (m *Mover) moveIfChanged(src, dst string) (bool, error) {
	same, err := sameContent(src, dst)
	if err != nil {
		return false, err
	}
	if same {
		return false, nil
	}
	return true, moveFile(src, dst)
}

// moveFile renames src to dst, falling back to copy and remove when the
// pools live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
