// Package config loads scamguard configuration from a YAML file plus
// SCAMGUARD_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings for the scamguard service.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Detection DetectionConfig `mapstructure:"detection"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Drift     DriftConfig     `mapstructure:"drift"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PostgresConfig configures the optional feedback sink. Empty DSN disables it.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DetectionConfig holds detector and ensemble tuning.
type DetectionConfig struct {
	// MinTextLength and MaxTextLength bound what Analyze accepts.
	MinTextLength int `mapstructure:"min_text_length"`
	MaxTextLength int `mapstructure:"max_text_length"`

	// EnsembleWeights are the per-source weights, renormalized on update.
	EnsembleWeights map[string]float64 `mapstructure:"ensemble_weights"`

	// ModelRefreshInterval doubles as the analysis cache TTL.
	ModelRefreshInterval time.Duration `mapstructure:"model_refresh_interval"`

	// SimulatorSeed makes the fallback classifier reproducible.
	SimulatorSeed int64 `mapstructure:"simulator_seed"`

	// ModelPath points at a local ONNX text-classification model directory.
	// Empty means classifier-unavailable and the simulator is used.
	ModelPath string `mapstructure:"model_path"`

	// RulesFile is an optional YAML overlay of extra pattern rules.
	RulesFile string `mapstructure:"rules_file"`
}

type QueueConfig struct {
	Workers         int           `mapstructure:"workers"`
	ResultTTL       time.Duration `mapstructure:"result_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
}

type DriftConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	WindowSize    int           `mapstructure:"window_size"`
	Threshold     float64       `mapstructure:"threshold"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file (optional) and environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SCAMGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Detection.MinTextLength < 1 {
		return fmt.Errorf("detection.min_text_length must be >= 1")
	}
	if c.Detection.MaxTextLength <= c.Detection.MinTextLength {
		return fmt.Errorf("detection.max_text_length must exceed min_text_length")
	}
	for name, w := range c.Detection.EnsembleWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("detection.ensemble_weights[%s] must be in [0,1], got %v", name, w)
		}
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be >= 1")
	}
	if c.Drift.Threshold <= 0 || c.Drift.Threshold >= 1 {
		return fmt.Errorf("drift.threshold must be in (0,1)")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "scamguard")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "0.1.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "scamguard:")

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("detection.min_text_length", 10)
	v.SetDefault("detection.max_text_length", 10000)
	v.SetDefault("detection.ensemble_weights", map[string]float64{
		"bert":      0.4,
		"pattern":   0.3,
		"sentiment": 0.15,
		"ner":       0.15,
	})
	v.SetDefault("detection.model_refresh_interval", "1h")
	v.SetDefault("detection.simulator_seed", 42)
	v.SetDefault("detection.model_path", "")
	v.SetDefault("detection.rules_file", "")

	v.SetDefault("queue.workers", 1)
	v.SetDefault("queue.result_ttl", "1h")
	v.SetDefault("queue.cleanup_interval", "10m")
	v.SetDefault("queue.callback_timeout", "30s")

	v.SetDefault("drift.check_interval", "30m")
	v.SetDefault("drift.window_size", 200)
	v.SetDefault("drift.threshold", 0.10)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}
