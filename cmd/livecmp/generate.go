package main

import (
	"github.com/spf13/cobra"

	"github.com/pthm/livecmp/lib/generator"
)

func generateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate [packages]",
		Short: "Generate Fields methods for components",
		Long: `Scan packages for structs embedding livecmp.Base and write a
Fields method for each into <file>_live.go. Exported fields become state;
tag them live:"name" to rename or live:"-" to skip.

Examples:
  livecmp generate ./...
  livecmp generate ./components/billing
  livecmp generate --dry-run ./...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := generator.New(generator.Options{DryRun: dryRun, Out: cmd.OutOrStdout()})
			return gen.Generate(patterns(args)...)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be generated without writing files")
	return cmd
}

func cleanCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean [packages]",
		Short: "Remove generated files (*" + generator.GeneratedSuffix + ")",
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := generator.New(generator.Options{DryRun: dryRun, Out: cmd.OutOrStdout()})
			return gen.Clean(patterns(args)...)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List files without removing them")
	return cmd
}

func patterns(args []string) []string {
	if len(args) == 0 {
		return []string{"./..."}
	}
	return args
}
