// Package dataset builds the training pool of a piece label: it writes
// rotated and flipped variants of every validation image into train, then
// rebalances the remaining originals.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/filemover"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/imaging"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/transform"
)

// DefaultAngles are the rotations applied when none are configured.
var DefaultAngles = []float64{45, 90, 135, 180, 270}

// DefaultKeepValid is the number of originals left in valid after a run.
const DefaultKeepValid = 2

// OutputExt is the extension of every generated variant.
const OutputExt = ".jpg"

// ImageRecord is one decoded-on-demand image with its annotations.
// Dimensions are not stored; they come from the decoded raster.
type ImageRecord struct {
	Path        string
	Annotations []annotation.BoundingBox
}

// Report summarizes one augmentation run.
type Report struct {
	Label       string           `json:"label"`
	Images      int              `json:"images"`
	Unannotated int              `json:"unannotated"`
	Variants    int              `json:"variants"`
	Boxes       int              `json:"boxes"`
	Dropped     int              `json:"dropped_boxes"`
	Rebalance   filemover.Report `json:"rebalance"`
	Duration    time.Duration    `json:"duration"`
}

// Augmenter produces the train pool of a piece label.
type Augmenter struct {
	Layout Layout

	// Specs are applied to every original image. Empty means
	// DefaultSpecs(DefaultAngles).
	Specs  []transform.Spec
	Policy transform.BoxPolicy

	Quality   int
	Workers   int
	KeepValid int

	Mover  *filemover.Mover
	Locker *Locker

	// OnImage, when set, is called after each source image is done. It may
	// be called from several goroutines.
	OnImage func(name string)
}

// NewAugmenter returns an augmenter with default transforms, quality and
// worker count.
func NewAugmenter(root string) *Augmenter {
	return &Augmenter{
		Layout:    Layout{Root: root},
		Specs:     transform.DefaultSpecs(DefaultAngles),
		Quality:   imaging.DefaultJPEGQuality,
		Workers:   runtime.NumCPU(),
		KeepValid: DefaultKeepValid,
		Mover:     filemover.New(),
		Locker:    NewLocker(),
	}
}

// ListImages returns the sorted image file names in dir.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && imaging.IsImageFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Run augments every image in the label's valid pool into train, then moves
// surplus originals so that KeepValid remain in valid.
//
// The first failure aborts the batch. Files written before the failure stay
// in place and are overwritten by the next run.
func (a *Augmenter) Run(ctx context.Context, label string) (Report, error) {
	start := time.Now()
	report := Report{Label: label}

	if err := ValidatePieceLabel(label); err != nil {
		return report, err
	}
	if a.Locker != nil {
		unlock := a.Locker.Lock(label)
		defer unlock()
	}

	validImages := a.Layout.ValidImages(label)
	names, err := ListImages(validImages)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, common.NotFound("augment", "no validation images for %s at %s", label, validImages)
		}
		return report, common.IOFailure("augment", "failed to list "+validImages, err)
	}
	if len(names) == 0 {
		return report, common.InvalidPrecondition("augment", "validation pool of %s is empty", label)
	}

	for _, dir := range []string{a.Layout.TrainImages(label), a.Layout.TrainLabels(label)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return report, common.IOFailure("augment", "failed to create "+dir, err)
		}
	}

	specs := a.Specs
	if len(specs) == 0 {
		specs = transform.DefaultSpecs(DefaultAngles)
	}
	workers := a.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	slog.Info("Augmenting piece",
		"label", label,
		"images", len(names),
		"transforms", len(specs),
		"policy", a.Policy.String(),
		"workers", workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := a.augmentImage(label, name, specs)
			if err != nil {
				return err
			}

			mu.Lock()
			report.Images++
			report.Variants += res.variants
			report.Boxes += res.boxes
			report.Dropped += res.dropped
			if res.unannotated {
				report.Unannotated++
			}
			mu.Unlock()

			if a.OnImage != nil {
				a.OnImage(name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	keep := a.KeepValid
	if keep < 0 {
		keep = 0
	}
	mover := a.Mover
	if mover == nil {
		mover = filemover.New()
	}
	moved, err := mover.Rebalance(ctx, a.Layout.Pools(label), keep)
	report.Rebalance = moved
	if err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	slog.Info("Augmented piece",
		"label", label,
		"images", report.Images,
		"variants", report.Variants,
		"unannotated", report.Unannotated,
		"moved", moved.MovedImages,
		"duration", report.Duration)
	return report, nil
}

type imageResult struct {
	variants    int
	boxes       int
	dropped     int
	unannotated bool
}

func (a *Augmenter) augmentImage(label, name string, specs []transform.Spec) (imageResult, error) {
	var res imageResult

	rec, err := a.loadRecord(label, name)
	if err != nil {
		return res, err
	}
	res.unannotated = rec.Annotations == nil

	img, err := imaging.Load(rec.Path)
	if err != nil {
		return res, common.IOFailure("augment", "failed to decode "+name, err)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	trainImages := a.Layout.TrainImages(label)
	trainLabels := a.Layout.TrainLabels(label)

	for _, spec := range specs {
		out, boxes, err := transform.Apply(img, rec.Annotations, spec, a.Policy)
		if err != nil {
			return res, fmt.Errorf("failed to apply %s to %s: %w", spec, name, err)
		}

		outName := stem + spec.Suffix() + OutputExt
		if err := imaging.Save(out, filepath.Join(trainImages, outName), a.Quality); err != nil {
			return res, common.IOFailure("augment", "failed to write "+outName, err)
		}
		if err := annotation.WriteFile(annotation.LabelPath(trainLabels, outName), boxes); err != nil {
			return res, err
		}

		res.variants++
		res.boxes += len(boxes)
		res.dropped += len(rec.Annotations) - len(boxes)
	}

	slog.Debug("Augmented image", "label", label, "image", name, "variants", res.variants)
	return res, nil
}

// loadRecord pairs an image with its labels. A missing label file is the
// unannotated case and yields nil annotations.
func (a *Augmenter) loadRecord(label, name string) (ImageRecord, error) {
	rec := ImageRecord{Path: filepath.Join(a.Layout.ValidImages(label), name)}

	boxes, err := annotation.ReadFile(annotation.LabelPath(a.Layout.ValidLabels(label), name))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			slog.Debug("Image has no labels", "label", label, "image", name)
			return rec, nil
		}
		return rec, err
	}
	if boxes == nil {
		boxes = []annotation.BoundingBox{}
	}
	rec.Annotations = boxes
	return rec, nil
}
