package config

import (
	"os"

	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full daemon configuration: the clusterer parameters plus
// ingestion and storage knobs. Immutable after Load.
type Config struct {
	// Clustering parameters
	Eps           float64 `mapstructure:"eps"`
	Lambda        float64 `mapstructure:"lambda"`
	Beta          float64 `mapstructure:"beta"`
	Mu            float64 `mapstructure:"mu"`
	MinResolution float64 `mapstructure:"min_resolution"`

	// Ingestion
	GridKey   string `mapstructure:"grid_key"`
	Input     string `mapstructure:"input"`
	BatchSize int    `mapstructure:"batch_size"`

	// Storage
	SnapshotDB  string `mapstructure:"snapshot_db"`
	Reset       bool   `mapstructure:"reset"`
	Telemetry   bool   `mapstructure:"telemetry"`
	TelemetryDB string `mapstructure:"telemetry_db"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`
}

const (
	DefaultLogLevel  = "info"
	defaultEps       = 50.0
	defaultLambda    = 0.01
	defaultBeta      = 2.0
	defaultMu        = 1.0
	defaultGridKey   = "default"
	defaultBatchSize = 512
)

func Load() (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	setDefaults(v)

	flags := pflag.NewFlagSet("infostopd", pflag.ContinueOnError)
	flags.Float64("eps", defaultEps, "Merge radius threshold in meters")
	flags.Float64("lambda", defaultLambda, "Forgetting rate per tick (0 disables decay)")
	flags.Float64("beta", defaultBeta, "Outlier weight multiplier")
	flags.Float64("mu", defaultMu, "Base weight threshold")
	flags.Float64("min-resolution", 0, "Minimum spatial resolution in meters (reserved)")
	flags.String("grid-key", defaultGridKey, "Logical partition key for persisted state")
	flags.String("input", "", "CSV input path (defaults to stdin)")
	flags.Int("batch-size", defaultBatchSize, "Points per ingested batch")
	flags.String("snapshot-db", "", "Path to the snapshot database")
	flags.Bool("reset", false, "Discard corrupt persisted state and start fresh")
	flags.Bool("telemetry", false, "Enable batch telemetry collection")
	flags.String("telemetry-db", "", "Path to the telemetry database")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	for flagName, key := range map[string]string{
		"eps":            "eps",
		"lambda":         "lambda",
		"beta":           "beta",
		"mu":             "mu",
		"min-resolution": "min_resolution",
		"grid-key":       "grid_key",
		"input":          "input",
		"batch-size":     "batch_size",
		"snapshot-db":    "snapshot_db",
		"reset":          "reset",
		"telemetry":      "telemetry",
		"telemetry-db":   "telemetry_db",
		"log-level":      "log_level",
		"debug":          "debug",
		"verbose":        "verbose",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	// An explicit config path wins over the search path
	if path := os.Getenv("INFOSTOPD_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("infostopd")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("INFOSTOPD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").
				WithData(err.Error())
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("eps", defaultEps)
	v.SetDefault("lambda", defaultLambda)
	v.SetDefault("beta", defaultBeta)
	v.SetDefault("mu", defaultMu)
	v.SetDefault("min_resolution", 0.0)
	v.SetDefault("grid_key", defaultGridKey)
	v.SetDefault("input", "")
	v.SetDefault("batch_size", defaultBatchSize)
	v.SetDefault("snapshot_db", "")
	v.SetDefault("reset", false)
	v.SetDefault("telemetry", false)
	v.SetDefault("telemetry_db", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Eps <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "eps must be positive")
	}
	if c.Lambda < 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "lambda must be non-negative")
	}
	if c.Beta <= 0 || c.Mu <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "beta and mu must be positive")
	}
	if c.BatchSize <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "batch_size must be positive")
	}
	if c.GridKey == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "grid_key must not be empty")
	}

	return nil
}
