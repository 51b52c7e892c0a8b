package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/dataset"
)

func manifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect and edit data.yaml",
		Long:  `Show the trainer manifest or register a class name in it by hand.`,
	}

	cmd.AddCommand(manifestShowCmd())
	cmd.AddCommand(manifestRegisterCmd())

	return cmd
}

func manifestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the manifest",
		RunE: func(_ *cobra.Command, _ []string) error {
			store := newManifestStore()
			m, err := store.Load()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "path\t%s\n", store.Path)
			fmt.Fprintf(w, "train\t%s\n", m.Train)
			fmt.Fprintf(w, "val\t%s\n", m.Val)
			fmt.Fprintf(w, "nc\t%d\n", m.NC)
			for _, id := range m.ClassIDs() {
				fmt.Fprintf(w, "%d\t%s\n", id, m.Names[id])
			}
			return nil
		},
	}
}

func manifestRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <class-id> <label>",
		Short: "Add or replace a class name",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			classID, err := strconv.Atoi(args[0])
			if err != nil {
				return common.InvalidPrecondition("manifest register", "class id %q is not a number", args[0])
			}
			if err := dataset.ValidatePieceLabel(args[1]); err != nil {
				return err
			}
			m, err := newManifestStore().Register(classID, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Registered %d: %s (nc=%d)\n", classID, args[1], m.NC)
			return nil
		},
	}
}
