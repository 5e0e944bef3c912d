package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootVerbose bool
	rootQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "scubascore",
	Short: "Compliance scoring for Google Workspace security scans",
	Long: "Parses scan result exports in the common JSON layouts, normalizes rule\n" +
		"verdicts, and computes weighted per-service and overall compliance scores.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if rootVerbose {
			level = slog.LevelDebug
		}
		if rootQuiet {
			level = slog.LevelError
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&rootQuiet, "quiet", "q", false, "Log errors only")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
