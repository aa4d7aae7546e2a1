// Package config manages the Quiver configuration file (~/.quiver/config.toml),
// loaded through Viper with QUIVER_* environment overrides.
package config

// Config represents the core Quiver configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Semantic SemanticConfig `mapstructure:"semantic"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SemanticConfig configures the semantic tagging and difficulty engine.
// The tuning block mirrors the semantic_tuning table; the tuning optimizer
// writes derived values back here so they survive a fresh database.
type SemanticConfig struct {
	Tuning TuningConfig `mapstructure:"tuning"`
}

// TuningConfig holds the runtime-tunable activation constants.
// Each value is clamped into its documented range on load.
type TuningConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	TagThreshold  float64 `mapstructure:"tag_threshold"`   // [0.05, 0.95]
	SiblingLambda float64 `mapstructure:"sibling_lambda"`  // [0.10, 0.60]
	UpBeta        float64 `mapstructure:"up_beta"`         // [0.30, 0.80]
	DownGamma     float64 `mapstructure:"down_gamma"`      // [0.05, 0.40]
	TargetAvgTags float64 `mapstructure:"target_avg_tags"` // [1.0, 8.0]
}

// QueueConfig configures the background analysis queue
type QueueConfig struct {
	BatchSize          int `mapstructure:"batch_size"`            // questions per batch (default: 2)
	PollIntervalMillis int `mapstructure:"poll_interval_millis"`  // how often to check for queued work (default: 500)
	CalibrateAfterSecs int `mapstructure:"calibrate_after_secs"`  // debounce between corpus calibrations (default: 30)
}

// LoggingConfig configures log output
type LoggingConfig struct {
	JSON bool `mapstructure:"json"`
}
