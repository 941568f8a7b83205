// Package config loads the settings shared by the framesets commands.
package config

import (
	"math/rand"
	"os"
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/actionframes/datasets"
)

// Dataset variants.
const (
	VariantFrames   = "frames"
	VariantSegments = "segments"
)

// Config holds the dataset and process settings. Every field can be set
// from an ACTIONFRAMES_* variable or from the YAML key in its tag.
type Config struct {
	DataRoot string `env:"DATA_ROOT" envDefault:"data"   yaml:"data_root"`
	FileRoot string `env:"FILE_ROOT" envDefault:"frames" yaml:"file_root"`
	Split    string `env:"SPLIT"     envDefault:"train"  yaml:"split"`
	Variant  string `env:"VARIANT"   envDefault:"frames" yaml:"variant"`

	ImageSize    int    `env:"IMAGE_SIZE"    envDefault:"224" yaml:"image_size"`
	SegmentCount int    `env:"SEGMENT_COUNT" envDefault:"3"   yaml:"segment_count"`
	Seed         *int64 `env:"SEED"                           yaml:"seed"` // nil seeds from the clock
	BatchSize    int    `env:"BATCH_SIZE"    envDefault:"32"  yaml:"batch_size"`
	Workers      int    `env:"WORKERS"       envDefault:"0"   yaml:"workers"` // 0 means one per CPU

	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info" yaml:"log_level"`
	MetricsAddr string `env:"METRICS_ADDR"                   yaml:"metrics_addr"`
}

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ACTIONFRAMES_"

// Load reads the environment, then overlays the YAML file at path when path
// is not empty. Keys missing from the file keep their environment value.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path on cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(datasets.ErrInvalidConfiguration, "failed to parse config %s: %v", path, err)
	}
	return nil
}

// Validate checks the dataset settings without touching the filesystem.
func (c *Config) Validate() error {
	if _, err := datasets.ParseSplit(c.Split); err != nil {
		return err
	}
	if c.Variant != VariantFrames && c.Variant != VariantSegments {
		return errors.Wrapf(datasets.ErrInvalidConfiguration, "unknown variant %q (want %q or %q)",
			c.Variant, VariantFrames, VariantSegments)
	}
	if c.ImageSize < 1 || c.ImageSize > datasets.ScaleSize {
		return errors.Wrapf(datasets.ErrInvalidConfiguration, "image size must be in [1, %d], got %d",
			datasets.ScaleSize, c.ImageSize)
	}
	if c.Variant == VariantSegments && c.SegmentCount < 1 {
		return errors.Wrapf(datasets.ErrInvalidConfiguration, "segment count must be >= 1, got %d", c.SegmentCount)
	}
	if c.BatchSize < 1 {
		return errors.Wrapf(datasets.ErrInvalidConfiguration, "batch size must be >= 1, got %d", c.BatchSize)
	}
	if c.Workers < 0 {
		return errors.Wrapf(datasets.ErrInvalidConfiguration, "workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

// Options converts the settings to dataset options.
func (c *Config) Options(logger *zap.Logger) []datasets.Option {
	workers := c.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	opts := []datasets.Option{
		datasets.WithImageSize(c.ImageSize),
		datasets.WithBatchSize(c.BatchSize),
		datasets.WithWorkers(workers),
		datasets.WithLogger(logger),
	}
	if c.Seed != nil {
		opts = append(opts, datasets.WithRand(rand.New(rand.NewSource(*c.Seed))))
	}
	return opts
}

// Open validates the settings and builds the configured dataset.
func (c *Config) Open(logger *zap.Logger, extra ...datasets.Option) (datasets.Dataset, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	split := datasets.Split(c.Split)
	opts := append(c.Options(logger), extra...)
	if c.Variant == VariantSegments {
		return datasets.NewSegmentDataset(c.DataRoot, c.FileRoot, split, c.SegmentCount, opts...)
	}
	return datasets.NewFrameDataset(c.DataRoot, c.FileRoot, split, opts...)
}
