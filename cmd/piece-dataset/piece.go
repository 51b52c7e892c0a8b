package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/dataset"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/imaging"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/model"
)

func pieceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "piece",
		Short: "Manage pieces and their captured images",
		Long:  `Create pieces, import their photos into the validation pool, list them and delete them.`,
	}

	cmd.AddCommand(pieceAddCmd())
	cmd.AddCommand(pieceImportCmd())
	cmd.AddCommand(pieceListCmd())
	cmd.AddCommand(pieceImagesCmd())
	cmd.AddCommand(pieceTrainedCmd())
	cmd.AddCommand(pieceDeleteCmd())

	return cmd
}

func pieceAddCmd() *cobra.Command {
	var classID int

	cmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Create a piece",
		Long:  `Create a piece with a label such as A123.12345 and the class id the detector will use for it.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			label := args[0]
			if err := dataset.ValidatePieceLabel(label); err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			piece, err := store.CreatePiece(ctx, label, classID)
			if err != nil {
				return err
			}
			slog.Info("Created piece", "label", piece.Label, "id", piece.ID, "class_id", piece.ClassID)
			return nil
		},
	}

	cmd.Flags().IntVar(&classID, "class-id", 0, "detector class id")
	_ = cmd.MarkFlagRequired("class-id")
	return cmd
}

func pieceImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <label> <image>...",
		Short: "Copy captured images into a piece's validation pool",
		Long: `Copy image files into <root>/<label>/images/valid and register them as
unannotated images of the piece.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			label := args[0]
			if err := dataset.ValidatePieceLabel(label); err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			piece, err := store.GetPieceByLabel(ctx, label)
			if err != nil {
				return err
			}

			layout := dataset.Layout{Root: appCfg.DatasetRoot}
			dir := layout.ValidImages(label)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return common.IOFailure("import", "failed to create "+dir, err)
			}

			for _, src := range args[1:] {
				name := filepath.Base(src)
				if !imaging.IsImageFile(name) {
					slog.Warn("Skipping non-image file", "file", src)
					continue
				}
				dst := filepath.Join(dir, name)
				if err := copyFile(src, dst); err != nil {
					return common.IOFailure("import", "failed to copy "+src, err)
				}
				img, err := store.AddImage(ctx, piece.ID, name, dst)
				if err != nil {
					return err
				}
				slog.Info("Imported image", "piece", label, "image", name, "id", img.ID)
			}
			return nil
		},
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func pieceListCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pieces",
		Long:  `List all pieces, or those whose label contains the given group.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var pieces []model.Piece
			if group != "" {
				pieces, err = store.ListPiecesByGroup(ctx, group)
			} else {
				pieces, err = store.ListPieces(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to list pieces: %w", err)
			}

			if len(pieces) == 0 {
				fmt.Println("No pieces found. Use 'piece-dataset piece add' to create one.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "ID\tLABEL\tCLASS\tIMAGES\tANNOTATED\tTRAINED")
			for _, p := range pieces {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%t\t%t\n", p.ID, p.Label, p.ClassID, p.ImageCount, p.IsAnnotated, p.IsTrained)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "only pieces whose label contains this group")
	return cmd
}

func pieceImagesCmd() *cobra.Command {
	var unannotated bool

	cmd := &cobra.Command{
		Use:   "images <label>",
		Short: "List a piece's images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			piece, err := store.GetPieceByLabel(ctx, args[0])
			if err != nil {
				return err
			}
			images, err := store.ListImages(ctx, piece.ID, unannotated)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "ID\tNAME\tANNOTATED\tURL")
			for _, img := range images {
				fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", img.ID, img.Name, img.IsAnnotated, img.URL)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unannotated, "unannotated", false, "only images without annotations")
	return cmd
}

func pieceTrainedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-trained <label>",
		Short: "Record that a piece's class went through a training run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			piece, err := store.GetPieceByLabel(ctx, args[0])
			if err != nil {
				return err
			}
			if !piece.IsAnnotated {
				return common.InvalidPrecondition("mark trained", "piece %s is not fully annotated", piece.Label)
			}
			if err := store.MarkPieceTrained(ctx, piece.ID); err != nil {
				return err
			}
			slog.Info("Marked piece trained", "label", piece.Label)
			return nil
		},
	}
}

func pieceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <label>",
		Short: "Delete a piece with its files and manifest entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			return newCommitter(store, newAugmenter()).DeletePiece(ctx, args[0])
		},
	}
}
