package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"
	"gopkg.in/yaml.v3"

	"github.com/pomgraph/pomgraph/maven"
	"github.com/pomgraph/pomgraph/maven/cache"
	"github.com/pomgraph/pomgraph/maven/remote"
	"github.com/pomgraph/pomgraph/maven/settings"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <pom.yaml>",
		Short: "Resolve a raw POM's transitive dependencies and print the graph",
		Long: `Resolve reads a raw POM from its YAML form, resolves every transitive
dependency against the configured repositories and prints the resulting
dependency tree with conflict-resolved versions.`,
		Args: cobra.ExactArgs(1),
		RunE: runResolve,
	}

	cmd.Flags().StringSlice("profile", nil, "profiles to activate during resolution")
	cmd.Flags().Bool("resolve-optional", false, "follow optional dependencies")
	cmd.Flags().Bool("continue-on-error", false, "prune failing branches instead of aborting")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	settingsPath, _ := cmd.Flags().GetString("settings")
	workspace, _ := cmd.Flags().GetString("workspace")
	profiles, _ := cmd.Flags().GetStringSlice("profile")
	resolveOptional, _ := cmd.Flags().GetBool("resolve-optional")
	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")

	var st *settings.Settings
	if settingsPath != "" {
		loaded, err := settings.Load(settingsPath)
		if err != nil {
			return err
		}
		st = loaded
	}

	workspaceCache, err := cache.ForWorkspace(workspace)
	if err != nil {
		return err
	}

	downloader := remote.New(workspaceCache, remote.Options{
		Settings:       st,
		ActiveProfiles: profiles,
		DecodePom:      decodeRawPom,
	})

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading POM file %q failed: %w", args[0], err)
	}
	raw, err := decodeRawPom(data, args[0])
	if err != nil {
		return err
	}

	logger := slogcontext.FromCtx(ctx)
	resolver := maven.NewResolver(downloader, maven.Options{
		ActiveProfiles:  profiles,
		Settings:        st,
		ResolveOptional: resolveOptional,
		ContinueOnError: continueOnError,
		OnError: func(err error) {
			logger.Log(ctx, slog.LevelWarn, "resolution error",
				slog.String("error", err.Error()))
		},
	})

	pom, err := resolver.Resolve(ctx, raw)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, pom.GAV())
	fmt.Fprint(out, pom.DependencyTree())
	return nil
}

func decodeRawPom(data []byte, sourceURL string) (*maven.RawPom, error) {
	var raw maven.RawPom
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing POM %q failed: %w", sourceURL, err)
	}
	raw.SourcePath = sourceURL
	return &raw, nil
}
