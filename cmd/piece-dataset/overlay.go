package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/annotation"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/imaging"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/transform"
)

func overlayCmd() *cobra.Command {
	var (
		spec      string
		policy    string
		colorHex  string
		thickness int
		hideClass bool
	)

	cmd := &cobra.Command{
		Use:   "overlay <image> <labels> <output>",
		Short: "Draw label boxes on an image",
		Long: `Draw the boxes of a YOLO label file on its image and save the result.
With --transform the image and its boxes are transformed first, which shows
whether a rotation or flip keeps the labels on the defect.`,
		Args: cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			img, err := imaging.Load(args[0])
			if err != nil {
				return common.IOFailure("overlay", "failed to decode "+args[0], err)
			}
			boxes, err := annotation.ReadFile(args[1])
			if err != nil {
				return err
			}

			if spec != "" {
				s, err := transform.ParseSpec(spec)
				if err != nil {
					return common.InvalidPrecondition("overlay", "%v", err)
				}
				p := appCfg.BoxPolicy
				if policy != "" {
					if p, err = transform.ParseBoxPolicy(policy); err != nil {
						return common.InvalidPrecondition("overlay", "%v", err)
					}
				}
				if img, boxes, err = transform.Apply(img, boxes, s, p); err != nil {
					return err
				}
			}

			out, err := imaging.DrawBoxes(img, boxes, imaging.OverlayOptions{
				Thickness: thickness,
				ColorHex:  colorHex,
				ShowClass: !hideClass,
			})
			if err != nil {
				return common.InvalidPrecondition("overlay", "%v", err)
			}
			if err := imaging.Save(out, args[2], appCfg.JPEGQuality); err != nil {
				return common.IOFailure("overlay", "failed to write "+args[2], err)
			}
			slog.Info("Wrote overlay", "output", args[2], "boxes", len(boxes))
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "transform", "", "transform to apply first, e.g. rot90 or flip1")
	cmd.Flags().StringVar(&policy, "policy", "", "box policy after the transform (clip, keep, drop)")
	cmd.Flags().StringVar(&colorHex, "color", "", "outline color, e.g. #00FF00 (default per class)")
	cmd.Flags().IntVar(&thickness, "thickness", 2, "outline thickness in pixels")
	cmd.Flags().BoolVar(&hideClass, "hide-class", false, "do not draw class ids")
	return cmd
}
