package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/errors"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect Quiver configuration",
	Long: `Inspect Quiver configuration.

Examples:
  quiver config show    # Show effective configuration and its source file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE:  runConfigShow,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	fmt.Printf("Config file: %s\n\n", config.Path())
	fmt.Printf("[database]\n")
	fmt.Printf("path = %q\n\n", cfg.Database.Path)

	fmt.Printf("[semantic.tuning]\n")
	fmt.Printf("enabled = %t\n", cfg.Semantic.Tuning.Enabled)
	fmt.Printf("tag_threshold = %.4f\n", cfg.Semantic.Tuning.TagThreshold)
	fmt.Printf("sibling_lambda = %.4f\n", cfg.Semantic.Tuning.SiblingLambda)
	fmt.Printf("up_beta = %.4f\n", cfg.Semantic.Tuning.UpBeta)
	fmt.Printf("down_gamma = %.4f\n", cfg.Semantic.Tuning.DownGamma)
	fmt.Printf("target_avg_tags = %.2f\n\n", cfg.Semantic.Tuning.TargetAvgTags)

	fmt.Printf("[queue]\n")
	fmt.Printf("batch_size = %d\n", cfg.Queue.BatchSize)
	fmt.Printf("poll_interval_millis = %d\n", cfg.Queue.PollIntervalMillis)
	fmt.Printf("calibrate_after_secs = %d\n\n", cfg.Queue.CalibrateAfterSecs)

	fmt.Printf("[logging]\n")
	fmt.Printf("json = %t\n", cfg.Logging.JSON)
	return nil
}
