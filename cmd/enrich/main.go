package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octobees/enrichment-pipeline/internal/logging"
)

var (
	logLevel  string
	logFormat string
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run enrichment recipes over CSV contact lists",
	Long: `Run enrichment recipes and connection qualification over CSV files without a database.

Available subcommands:
  run     - apply a recipe to a contact list
  qualify - pre-filter and qualify a LinkedIn connections export
  token   - mint an API token for local development`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logLevel, logFormat)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (json or console)")

	rootCmd.AddCommand(runCmd, qualifyCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
