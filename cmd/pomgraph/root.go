package main

import (
	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/pomgraph/pomgraph/log"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pomgraph",
		Short:         "Resolve the transitive dependency graph of a Maven POM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := log.GetBaseLogger(cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(slogcontext.NewCtx(cmd.Context(), logger))
			return nil
		},
	}

	log.RegisterLoggingFlags(cmd)
	cmd.PersistentFlags().String("settings", "", "path to a settings YAML file")
	cmd.PersistentFlags().String("workspace", "", "path of the on-disk artifact cache; empty keeps the cache in memory only")

	cmd.AddCommand(newResolveCmd())
	return cmd
}
