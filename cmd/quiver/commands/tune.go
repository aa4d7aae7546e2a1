package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/logger"
	"github.com/quivermath/quiver/semantic"
)

// TuneCmd represents the tune command
var TuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Re-derive tuning parameters from the analyzed corpus",
	Long: `Re-derive activation tuning parameters from the stored analyses.

The optimizer grid-searches the tag threshold toward the configured target
average tag count and derives the propagation constants from observed score
composition. Parameters only apply to future analyses; stored rows are never
rewritten. Fewer than five analyzed questions leaves everything unchanged.

With --save the derived parameters are also written to the config file so
they survive a fresh database.`,
	RunE: runTune,
}

var tuneSaveFlag bool

func init() {
	TuneCmd.Flags().BoolVar(&tuneSaveFlag, "save", false, "Persist derived parameters to the config file")
}

func runTune(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	tuner := semantic.NewTuner(app.semantics, app.cfg.Semantic.Tuning, logger.Logger)
	report, err := tuner.Tune()
	if err != nil {
		return err
	}

	if !report.Updated {
		fmt.Printf("Not enough samples to tune (%d, need 5)\n", report.Samples)
		return nil
	}

	fmt.Printf("Tuned from %d samples\n", report.Samples)
	fmt.Printf("  tag_threshold:  %.4f (avg %.2f tags at threshold)\n", report.Params.TagThreshold, report.AvgTagsAtThreshold)
	fmt.Printf("  up_beta:        %.4f (up ratio %.4f)\n", report.Params.UpBeta, report.UpRatio)
	fmt.Printf("  down_gamma:     %.4f (down ratio %.4f)\n", report.Params.DownGamma, report.DownRatio)
	fmt.Printf("  sibling_lambda: %.4f (suppression ratio %.4f)\n", report.Params.SiblingLambda, report.SuppressionRatio)

	if tuneSaveFlag {
		if err := config.SaveTuning(config.Path(), report.Params); err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", config.Path())
	}
	return nil
}
