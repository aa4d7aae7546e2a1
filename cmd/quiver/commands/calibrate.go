package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CalibrateCmd represents the calibrate command
var CalibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Recalibrate difficulty scores across the corpus",
	Long: `Recalibrate difficulty scores so they form a uniform percentile spread
across the analyzed corpus. With fewer than three analyzed questions the
corpus is left untouched.

Explicit calibration ignores the queue's debounce window.`,
	RunE: runCalibrate,
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	changed, err := app.calibrator.Calibrate()
	if err != nil {
		return err
	}
	fmt.Printf("Calibrated corpus, %d analyses updated\n", changed)
	return nil
}
