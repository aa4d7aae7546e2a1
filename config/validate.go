package config

import "github.com/quivermath/quiver/errors"

// Tuning parameter clamp ranges. Values loaded from config or written by
// the optimizer must stay inside these bounds.
const (
	MinTagThreshold, MaxTagThreshold   = 0.05, 0.95
	MinSiblingLambda, MaxSiblingLambda = 0.10, 0.60
	MinUpBeta, MaxUpBeta               = 0.30, 0.80
	MinDownGamma, MaxDownGamma         = 0.05, 0.40
	MinTargetAvgTags, MaxTargetAvgTags = 1.0, 8.0
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Semantic.Tuning.Validate(); err != nil {
		return err
	}

	// Queue batch size: 0 = default, negative = invalid
	if c.Queue.BatchSize < 0 {
		return errors.Newf("queue.batch_size must be >= 0, got %d", c.Queue.BatchSize)
	}
	if c.Queue.PollIntervalMillis < 0 {
		return errors.Newf("queue.poll_interval_millis must be >= 0, got %d", c.Queue.PollIntervalMillis)
	}
	if c.Queue.CalibrateAfterSecs < 0 {
		return errors.Newf("queue.calibrate_after_secs must be >= 0, got %d", c.Queue.CalibrateAfterSecs)
	}

	return nil
}

// Validate checks the tuning block against the documented clamp ranges.
func (t *TuningConfig) Validate() error {
	checks := []struct {
		name     string
		value    float64
		lo, hi   float64
	}{
		{"semantic.tuning.tag_threshold", t.TagThreshold, MinTagThreshold, MaxTagThreshold},
		{"semantic.tuning.sibling_lambda", t.SiblingLambda, MinSiblingLambda, MaxSiblingLambda},
		{"semantic.tuning.up_beta", t.UpBeta, MinUpBeta, MaxUpBeta},
		{"semantic.tuning.down_gamma", t.DownGamma, MinDownGamma, MaxDownGamma},
		{"semantic.tuning.target_avg_tags", t.TargetAvgTags, MinTargetAvgTags, MaxTargetAvgTags},
	}
	for _, c := range checks {
		if c.value < c.lo || c.value > c.hi {
			return errors.Wrapf(errors.ErrInvalidInput,
				"%s must be in [%.2f, %.2f], got %.4f", c.name, c.lo, c.hi, c.value)
		}
	}
	return nil
}
