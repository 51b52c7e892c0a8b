package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
)

func annotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Draw, review and commit annotations",
		Long: `Annotations are collected in a per-piece session file and only reach the
label pool and the database on commit. Committing the last unannotated image
of a piece builds its training pool and registers its class in data.yaml.`,
	}

	cmd.AddCommand(annotateAddCmd())
	cmd.AddCommand(annotateShowCmd())
	cmd.AddCommand(annotateCommitCmd())
	cmd.AddCommand(annotateDiscardCmd())

	return cmd
}

func annotateAddCmd() *cobra.Command {
	var (
		imageID int64
		draft   annotation.Draft
	)

	cmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Add a box to a piece's pending session",
		Long: `Add a box drawn on an image. The box is given as its top-left corner and
size in percent of the image, the way the annotation UI reports it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			label := args[0]
			path, err := sessionPath(label)
			if err != nil {
				return err
			}

			session, err := annotation.LoadSessionFile(path, label)
			if err != nil {
				return err
			}
			if err := session.Add(imageID, draft); err != nil {
				return err
			}
			if err := session.SaveFile(path); err != nil {
				return err
			}
			slog.Info("Added annotation to session", "piece", label, "image_id", imageID, "pending", session.Len())
			return nil
		},
	}

	cmd.Flags().Int64Var(&imageID, "image-id", 0, "image id from 'piece images'")
	cmd.Flags().StringVar(&draft.Type, "type", "defect", "annotation type")
	cmd.Flags().Float64Var(&draft.X, "x", 0, "left edge in percent")
	cmd.Flags().Float64Var(&draft.Y, "y", 0, "top edge in percent")
	cmd.Flags().Float64Var(&draft.Width, "width", 0, "width in percent")
	cmd.Flags().Float64Var(&draft.Height, "height", 0, "height in percent")
	_ = cmd.MarkFlagRequired("image-id")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

func annotateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <label>",
		Short: "Print a piece's pending session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path, err := sessionPath(args[0])
			if err != nil {
				return err
			}
			session, err := annotation.LoadSessionFile(path, args[0])
			if err != nil {
				return err
			}
			return printJSON(session)
		},
	}
}

func annotateCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit <label>",
		Short: "Write a piece's pending annotations",
		Long: `Write one label file per annotated image, store the boxes and mark the
images annotated. A failed commit leaves the session in place so it can be
retried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			label := args[0]
			path, err := sessionPath(label)
			if err != nil {
				return err
			}

			session, err := annotation.LoadSessionFile(path, label)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := newCommitter(store, newAugmenter()).Commit(ctx, session)
			if err != nil {
				if common.IsRetryable(err) {
					slog.Warn("Commit failed, session kept for retry", "piece", label, "session", path)
				}
				return err
			}

			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("Failed to remove committed session", "path", path, "error", err)
			}
			return printJSON(result)
		},
	}
}

func annotateDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <label>",
		Short: "Drop a piece's pending annotations",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path, err := sessionPath(args[0])
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					fmt.Println("No pending annotations.")
					return nil
				}
				return common.IOFailure("discard", "failed to remove "+path, err)
			}
			slog.Info("Discarded pending annotations", "piece", args[0])
			return nil
		},
	}
}
