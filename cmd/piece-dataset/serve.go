package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server on stdin/stdout",
		Long: `Serve the annotation, dataset and manifest tools over the Model Context
Protocol. Requests are read from stdin one per line and responses written to
stdout; logs go to stderr. Configure it in your MCP client.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			server.Version = Version

			srv := server.New(server.Deps{
				Augmenter: newAugmenter(),
				Manifest:  newManifestStore(),
				Policy:    appCfg.BoxPolicy,
			})

			slog.Info("Starting tool server", "version", Version, "root", appCfg.DatasetRoot)
			return srv.Run(cmd.Context())
		},
	}
}
