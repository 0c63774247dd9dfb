// Package config holds the YAML configuration of the kizuna tools.
package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Default values applied before the file is read.
const (
	DefaultLogLevel        = "info"
	DefaultLogEncoding     = "console"
	DefaultSceneCapacity   = 1024
	DefaultStressWorkers   = 8
	DefaultStressObjects   = 64
	DefaultStressIteration = 10000
)

// Config is the top level configuration.
type Config struct {
	Logging Logging `yaml:"Logging"`
	Scene   Scene   `yaml:"Scene"`
	Stress  Stress  `yaml:"Stress"`
}

// Logging configures the zap logger.
type Logging struct {
	Level    string `yaml:"Level"`
	Encoding string `yaml:"Encoding"`
	// Path is an optional log file; stderr is used when empty.
	Path string `yaml:"Path"`
}

// Scene configures scene allocation.
type Scene struct {
	InitialCapacity int `yaml:"InitialCapacity"`
}

// Stress configures the concurrent ownership workload.
type Stress struct {
	Workers    int `yaml:"Workers"`
	Objects    int `yaml:"Objects"`
	Iterations int `yaml:"Iterations"`
	// MetricsAddress enables the Prometheus endpoint when not empty.
	MetricsAddress string `yaml:"MetricsAddress"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Logging: Logging{
			Level:    DefaultLogLevel,
			Encoding: DefaultLogEncoding,
		},
		Scene: Scene{
			InitialCapacity: DefaultSceneCapacity,
		},
		Stress: Stress{
			Workers:    DefaultStressWorkers,
			Objects:    DefaultStressObjects,
			Iterations: DefaultStressIteration,
		},
	}
}

// Load reads the configuration from path on top of the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config")
	}
	return Parse(data)
}

// Parse decodes YAML data on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "problem unmarshaling config yaml data")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrapf(err, "invalid Logging.Level %q", c.Logging.Level)
	}
	switch c.Logging.Encoding {
	case "console", "json":
	default:
		return errors.Errorf("invalid Logging.Encoding %q: want console or json", c.Logging.Encoding)
	}
	if c.Scene.InitialCapacity < 0 {
		return errors.Errorf("Scene.InitialCapacity must not be negative, got %d", c.Scene.InitialCapacity)
	}
	if c.Stress.Workers <= 0 {
		return errors.Errorf("Stress.Workers must be positive, got %d", c.Stress.Workers)
	}
	if c.Stress.Objects <= 0 {
		return errors.Errorf("Stress.Objects must be positive, got %d", c.Stress.Objects)
	}
	if c.Stress.Iterations < 0 {
		return errors.Errorf("Stress.Iterations must not be negative, got %d", c.Stress.Iterations)
	}
	return nil
}

// BuildLogger creates a zap logger from the Logging section. debug forces the
// debug level.
func (c Config) BuildLogger(debug bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log setting")
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = c.Logging.Encoding
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil
	if c.Logging.Path != "" {
		cc.OutputPaths = []string{c.Logging.Path}
	}

	l, err := cc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return l, nil
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}
	return data, nil
}
