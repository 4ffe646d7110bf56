package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"JumpVol/pkg/logger"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"required"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`

		// Fits per minute allowed per client IP on POST /api/fit; 0 disables the limit.
		FitRatePerMinute float64 `yaml:"fit_rate_per_minute" default:"6" validate:"gte=0"`
		FitBurst         int     `yaml:"fit_burst" default:"2" validate:"gte=1"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Source struct {
		// Kind is csv or clickhouse.
		Kind   string `yaml:"kind" default:"csv" validate:"oneof=csv clickhouse"`
		Path   string `yaml:"path"` // may contain {symbol}
		Symbol string `yaml:"symbol" default:"SPY" validate:"required"`
		Table  string `yaml:"table" default:"jumpvol.bars"`
	} `yaml:"source"`
	Estimator struct {
		Delta        int     `yaml:"delta" default:"390" validate:"min=1"`
		Significance float64 `yaml:"significance" default:"0.01" validate:"gt=0,lt=1"`
	} `yaml:"estimator"`
	Features struct {
		ShortWindow   int     `yaml:"short_window" default:"5" validate:"min=1"`
		LongWindow    int     `yaml:"long_window" default:"21" validate:"min=1"`
		TrainFraction float64 `yaml:"train_fraction" default:"0.7" validate:"gt=0,lt=1"`
	} `yaml:"features"`
	Sampler struct {
		Kind         string  `yaml:"kind" default:"nuts" validate:"oneof=nuts metropolis"`
		Chains       int     `yaml:"chains" default:"4" validate:"min=1,max=64"`
		Warmup       int     `yaml:"warmup" default:"1000" validate:"min=0"`
		Draws        int     `yaml:"draws" default:"250" validate:"min=1"`
		Seed         uint64  `yaml:"seed" default:"20240601"`
		TargetAccept float64 `yaml:"target_accept" default:"0.8" validate:"gt=0,lt=1"`
		MaxTreeDepth int     `yaml:"max_tree_depth" default:"10" validate:"min=1,max=15"`
	} `yaml:"sampler"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"jumpvol"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"jumpvol.fits"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"jumpvol"`
		TTL      time.Duration `yaml:"ttl" default:"24h"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Default returns a configuration holding only default values.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML (or defaults when path is empty) and
// overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = Load(path); err != nil {
		return nil, err
	}

	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("JV_INPUT"); v != "" {
		c.Source.Path = v
	}
	if v := getenv("JV_SYMBOL"); v != "" {
		c.Source.Symbol = v
	}
	if v := getenv("JV_SAMPLER"); v != "" {
		c.Sampler.Kind = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Features.ShortWindow >= c.Features.LongWindow {
		return fmt.Errorf("features.short_window (%d) must be below long_window (%d)", c.Features.ShortWindow, c.Features.LongWindow)
	}
	if c.Source.Kind == "clickhouse" && !c.ClickHouse.Enabled {
		return errors.New("source.kind clickhouse requires clickhouse.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
