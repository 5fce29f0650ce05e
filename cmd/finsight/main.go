// Package main provides the finsight CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finsight/internal/config"
	"finsight/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	dbPath     string
	apiKey     string

	// Filter scope flags shared by ask and chat
	bankIDs    []int64
	accountIDs []int64
	refDate    string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "finsight - natural-language questions over your transaction data",
	Long: `finsight answers natural-language questions about bank transactions.

A question is translated into a single read-only SQL statement, checked
against a static security policy, executed against the local transaction
store, and repaired through a bounded retry loop when execution fails.
Answers come back as a short summary or as a CSV export.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Store.DatabasePath = dbPath
		}
		if apiKey != "" {
			cfg.LLM.APIKey = apiKey
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, err = logging.New(logging.Options{
			Level:      cfg.Logging.Level,
			FilePath:   cfg.Logging.FilePath,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			// The chat TUI owns the terminal; console logging is reserved
			// for the one-shot commands.
			Console: cfg.Logging.Console && cmd.Name() != "finsight",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "finsight.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override transaction store path")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "override LLM API key")
	rootCmd.PersistentFlags().Int64SliceVar(&bankIDs, "banks", nil, "allowed bank IDs (required for questions)")
	rootCmd.PersistentFlags().Int64SliceVar(&accountIDs, "accounts", nil, "allowed account IDs (required for questions)")
	rootCmd.PersistentFlags().StringVar(&refDate, "date", "", "reference date for relative phrases (YYYY-MM-DD, default today)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(idsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
