// Package cli provides the command-line interface of the listing cleaning job.
package cli

import (
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "listing-cleaner",
		Short: "Clean raw rental listings into a versioned dataset artifact",
		Long: `listing-cleaner fetches a raw listings CSV artifact, removes duplicates and
outliers, imputes missing availability and publishes the cleaned table as a new
artifact version.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./cleaning.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")
	rootCmd.PersistentFlags().String("registry", "", "Artifact registry URL (sqlite:path or postgres://...)")
	rootCmd.PersistentFlags().String("store", "", "Blob store kind (local|s3|gcs)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	configPath := func() string { return cfgFile }

	rootCmd.AddCommand(NewCleanCommand(configPath))
	rootCmd.AddCommand(NewArtifactsCommand(configPath))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
