package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quivermath/quiver/cmd/quiver/commands"
	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/logger"
)

var rootCmd = &cobra.Command{
	Use:   "quiver",
	Short: "Quiver - semantic tagging and difficulty inference for question banks",
	Long: `Quiver - semantic tagging and difficulty inference for question banks.

Quiver analyzes question content fully offline: it assigns curriculum tags
from a hierarchical ontology and infers a difficulty score, with every
result explained by a stored rationale.

Available commands:
  seed      - Seed the tag ontology
  analyze   - Analyze one question or a batch file
  queue     - Manage the background analysis queue
  calibrate - Recalibrate difficulty scores across the corpus
  tune      - Re-derive tuning parameters from the corpus
  similar   - Find questions with similar content
  db        - Manage the database
  config    - Inspect configuration

Examples:
  quiver seed
  quiver analyze --id q-1 --text "Prove that the derivative of sin(x) is cos(x)"
  quiver queue run --file questions.yaml
  quiver calibrate
  quiver db stats`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput := false
		if cfg, err := config.Load(); err == nil {
			jsonOutput = cfg.Logging.JSON
		}
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.SeedCmd)
	rootCmd.AddCommand(commands.AnalyzeCmd)
	rootCmd.AddCommand(commands.QueueCmd)
	rootCmd.AddCommand(commands.CalibrateCmd)
	rootCmd.AddCommand(commands.TuneCmd)
	rootCmd.AddCommand(commands.SimilarCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
