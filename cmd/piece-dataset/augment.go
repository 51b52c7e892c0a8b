package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/dataset"
)

func augmentCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "augment <label>",
		Short: "Build a piece's training pool",
		Long: `Write a rotated and a flipped copy of every validation image of the piece
into its training pool, with transformed labels, then move surplus originals
so that dataset.keep_valid remain for validation.

Running it again overwrites the variants and moves nothing new.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			label := args[0]
			if err := dataset.ValidatePieceLabel(label); err != nil {
				return err
			}
			aug := newAugmenter()

			if !noProgress {
				names, err := dataset.ListImages(aug.Layout.ValidImages(label))
				if err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				if len(names) > 0 {
					bar := newProgressBar(len(names), fmt.Sprintf("[cyan]Augmenting %s...[reset]", label))
					aug.OnImage = func(string) {
						if err := bar.Add(1); err != nil {
							slog.Warn("Failed to update progress bar", "error", err)
						}
					}
				}
			}

			report, err := aug.Run(ctx, label)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not draw a progress bar")
	return cmd
}

func rebalanceCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "rebalance <label>",
		Short: "Move surplus validation images into training",
		Long: `Move randomly chosen images and their labels from the piece's validation
pool to its training pool until --keep remain. Files whose content already
arrived are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := args[0]
			if err := dataset.ValidatePieceLabel(label); err != nil {
				return err
			}

			aug := newAugmenter()
			if !cmd.Flags().Changed("keep") {
				keep = aug.KeepValid
			}

			report, err := aug.Mover.Rebalance(cmd.Context(), aug.Layout.Pools(label), keep)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "images to keep in validation (default dataset.keep_valid)")
	return cmd
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}
