package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the docqa command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docqa",
		Short: "Document question-answering service",
		Long:  "docqa serves an HTTP API that answers natural-language questions about PDF documents.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file to load before reading the environment")
	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}
