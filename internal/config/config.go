package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Namespace    string        `yaml:"namespace"`     // redis key prefix
	Workers      int           `yaml:"workers"`       // concurrent executors
	PollTimeout  time.Duration `yaml:"poll_timeout"`  // blocking pop timeout
	ReapInterval time.Duration `yaml:"reap_interval"` // stalled-job sweep period
	StalledAfter time.Duration `yaml:"stalled_after"` // RUNNING age before a job counts as stalled
}

type PredictorConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"` // bound on one compute call
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// PricingConfig holds the trajectory pricing policy: the first BasePoints
// forecast points cost BaseRateMicros each; every further point costs
// ExtendedRateMicros plus a one-off ExtendedSurchargeMicros once the
// threshold is crossed.
type PricingConfig struct {
	BasePoints              int   `yaml:"base_points"`
	BaseRateMicros          int64 `yaml:"base_rate_micros"`
	ExtendedRateMicros      int64 `yaml:"extended_rate_micros"`
	ExtendedSurchargeMicros int64 `yaml:"extended_surcharge_micros"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Predictor PredictorConfig `yaml:"predictor"`
	Auth      AuthConfig      `yaml:"auth"`
	Pricing   PricingConfig   `yaml:"pricing"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Queue.Namespace == "" {
		cfg.Queue.Namespace = "trajjobs"
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.PollTimeout <= 0 {
		cfg.Queue.PollTimeout = 2 * time.Second
	}
	if cfg.Queue.ReapInterval <= 0 {
		cfg.Queue.ReapInterval = time.Minute
	}
	if cfg.Queue.StalledAfter <= 0 {
		cfg.Queue.StalledAfter = 10 * time.Minute
	}
	if cfg.Predictor.Timeout <= 0 {
		cfg.Predictor.Timeout = 5 * time.Minute
	}
	if cfg.Pricing.BasePoints <= 0 {
		cfg.Pricing.BasePoints = 100
	}
	if cfg.Pricing.BaseRateMicros <= 0 {
		cfg.Pricing.BaseRateMicros = 5_000
	}
	if cfg.Pricing.ExtendedRateMicros <= 0 {
		cfg.Pricing.ExtendedRateMicros = 6_000
	}
	if cfg.Pricing.ExtendedSurchargeMicros <= 0 {
		cfg.Pricing.ExtendedSurchargeMicros = 500_000
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Predictor.URL == "" {
		return nil, errors.New("predictor.url is required")
	}
	if cfg.Auth.JWTSecret == "" && !dev {
		return nil, errors.New("auth.jwt_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
