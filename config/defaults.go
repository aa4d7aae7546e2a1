package config

import (
	"github.com/spf13/viper"
)

// Activation constants carried as tunable defaults. The tuning optimizer
// may overwrite them at runtime within the clamped ranges.
const (
	DefaultTagThreshold  = 0.30
	DefaultSiblingLambda = 0.35
	DefaultUpBeta        = 0.55
	DefaultDownGamma     = 0.18
	DefaultTargetAvgTags = 3.5
)

// DefaultTuning returns the built-in tuning parameters, used until the
// optimizer or the user writes their own.
func DefaultTuning() TuningConfig {
	return TuningConfig{
		Enabled:       true,
		TagThreshold:  DefaultTagThreshold,
		SiblingLambda: DefaultSiblingLambda,
		UpBeta:        DefaultUpBeta,
		DownGamma:     DefaultDownGamma,
		TargetAvgTags: DefaultTargetAvgTags,
	}
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "quiver.db")

	// Semantic tuning defaults
	v.SetDefault("semantic.tuning.enabled", true)
	v.SetDefault("semantic.tuning.tag_threshold", DefaultTagThreshold)
	v.SetDefault("semantic.tuning.sibling_lambda", DefaultSiblingLambda)
	v.SetDefault("semantic.tuning.up_beta", DefaultUpBeta)
	v.SetDefault("semantic.tuning.down_gamma", DefaultDownGamma)
	v.SetDefault("semantic.tuning.target_avg_tags", DefaultTargetAvgTags)

	// Queue defaults: small batches with inter-batch yielding so a single
	// UI thread is never starved
	v.SetDefault("queue.batch_size", 2)
	v.SetDefault("queue.poll_interval_millis", 500)
	v.SetDefault("queue.calibrate_after_secs", 30)

	// Logging defaults
	v.SetDefault("logging.json", false)
}
