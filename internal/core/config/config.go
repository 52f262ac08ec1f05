package config

import (
	"github.com/permitpath/engine/internal/baseline"
	"github.com/permitpath/engine/internal/diagnose"
	"github.com/permitpath/engine/internal/infra/catalog"
	redisclient "github.com/permitpath/engine/internal/infra/redis"
	"github.com/permitpath/engine/internal/infra/storage/postgres"
	"github.com/permitpath/engine/internal/predict"
	"github.com/permitpath/engine/internal/resilience/breaker"
	"github.com/permitpath/engine/internal/resilience/pool"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Catalog   catalog.Config     `yaml:"catalog"`
	Pool      pool.Config        `yaml:"pool"`
	Breaker   breaker.Config     `yaml:"breaker"`
	Baseline  BaselineConfig     `yaml:"baseline"`
	Predictor predict.Config     `yaml:"predictor"`
	Diagnoser diagnose.Config    `yaml:"diagnoser"`
	Logging   LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds ops HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// BaselineConfig carries the sample threshold alongside the refresher
// knobs.
type BaselineConfig struct {
	Refresher  baseline.RefresherConfig `yaml:",inline"`
	MinSamples int                      `yaml:"min_samples"`
}
